package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/genius-academy-api/internal/dto"
	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
)

type memTeacherInfos struct {
	mu   sync.Mutex
	rows map[string]models.TeacherInfo
}

func (m *memTeacherInfos) Create(_ context.Context, info *models.TeacherInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info.ID = uuid.NewString()
	m.rows[info.ID] = *info
	return nil
}

func (m *memTeacherInfos) FindByID(_ context.Context, id string) (*models.TeacherInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &info, nil
}

func (m *memTeacherInfos) ListForTeacher(_ context.Context, teacherID string) ([]models.TeacherInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TeacherInfo
	for _, info := range m.rows {
		if info.TeacherID == teacherID {
			out = append(out, info)
		}
	}
	return out, nil
}

func (m *memTeacherInfos) Update(_ context.Context, info *models.TeacherInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[info.ID]; !ok {
		return sql.ErrNoRows
	}
	m.rows[info.ID] = *info
	return nil
}

func (m *memTeacherInfos) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func teacherInfoRequest() dto.TeacherInfoRequest {
	return dto.TeacherInfoRequest{
		LastName:        "Lovelace",
		FirstName:       "Ada",
		BirthDate:       "1990-12-10",
		BirthPlace:      "London",
		MaritalStatus:   models.MaritalSingle,
		Email:           "ada@example.com",
		EmergencyPerson: "Charles",
		EmergencyPhone:  "+441234567890",
		TeachingSection: "Secondary",
		TeachingDomain:  models.DomainScientific,
		Diploma:         "MSc Mathematics",
	}
}

func newTeacherInfoFixture() (*TeacherInfoService, *memDB, *memTeacherInfos) {
	db := newMemDB()
	infos := &memTeacherInfos{rows: map[string]models.TeacherInfo{}}
	return NewTeacherInfoService(infos, fakeTeachers{db: db}, nil, nil), db, infos
}

func TestTeacherInfoCreateMakesTeacherProfile(t *testing.T) {
	svc, db, _ := newTeacherInfoFixture()
	lecturer := db.insertAccount(models.Account{Username: "26TGA1000", Role: models.RoleLecturer})
	actor := &models.Principal{ID: lecturer.ID, Role: models.RoleLecturer}

	info, err := svc.Create(context.Background(), actor, teacherInfoRequest())
	require.NoError(t, err)
	assert.Equal(t, 1990, info.BirthDate.Year())

	teacher, err := fakeTeachers{db: db}.FindByAccountID(context.Background(), nil, lecturer.ID)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, info.TeacherID)

	second, err := svc.Create(context.Background(), actor, teacherInfoRequest())
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, second.TeacherID)

	list, err := svc.ListForTeacher(context.Background(), actor, lecturer.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTeacherInfoCreateValidation(t *testing.T) {
	svc, db, _ := newTeacherInfoFixture()
	lecturer := db.insertAccount(models.Account{Username: "26TGA1000", Role: models.RoleLecturer})
	actor := &models.Principal{ID: lecturer.ID, Role: models.RoleLecturer}

	req := teacherInfoRequest()
	req.BirthDate = "10/12/1990"
	_, err := svc.Create(context.Background(), actor, req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = teacherInfoRequest()
	req.TeachingDomain = "ARTS"
	_, err = svc.Create(context.Background(), actor, req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), &models.Principal{ID: "x", Role: models.RoleStudent}, teacherInfoRequest())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestTeacherInfoOwnership(t *testing.T) {
	svc, db, _ := newTeacherInfoFixture()
	owner := db.insertAccount(models.Account{Username: "26TGA1000", Role: models.RoleLecturer})
	other := db.insertAccount(models.Account{Username: "26TGA1001", Role: models.RoleLecturer})
	ownerActor := &models.Principal{ID: owner.ID, Role: models.RoleLecturer}
	otherActor := &models.Principal{ID: other.ID, Role: models.RoleLecturer}

	info, err := svc.Create(context.Background(), ownerActor, teacherInfoRequest())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), otherActor, info.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.ListForTeacher(context.Background(), otherActor, owner.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(context.Background(), otherActor, info.ID), appErrors.ErrForbidden)

	got, err := svc.Get(context.Background(), superAdmin(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)
}

func TestTeacherInfoUpdateAndDelete(t *testing.T) {
	svc, db, infos := newTeacherInfoFixture()
	owner := db.insertAccount(models.Account{Username: "26TGA1000", Role: models.RoleLecturer})
	actor := &models.Principal{ID: owner.ID, Role: models.RoleLecturer}
	info, err := svc.Create(context.Background(), actor, teacherInfoRequest())
	require.NoError(t, err)

	req := teacherInfoRequest()
	req.MaritalStatus = models.MaritalMarried
	updated, err := svc.Update(context.Background(), actor, info.ID, req)
	require.NoError(t, err)
	assert.Equal(t, info.ID, updated.ID)
	assert.Equal(t, info.TeacherID, updated.TeacherID)
	assert.Equal(t, models.MaritalMarried, infos.rows[info.ID].MaritalStatus)

	require.NoError(t, svc.Delete(context.Background(), actor, info.ID))
	_, err = svc.Get(context.Background(), actor, info.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	// The teacher profile outlives its sheets.
	_, err = fakeTeachers{db: db}.FindByAccountID(context.Background(), nil, owner.ID)
	assert.NoError(t, err)
}
