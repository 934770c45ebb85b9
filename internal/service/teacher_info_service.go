package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/genius-academy-api/internal/dto"
	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/validation"
)

const birthDateLayout = "2006-01-02"

type teacherInfoRepository interface {
	Create(ctx context.Context, info *models.TeacherInfo) error
	FindByID(ctx context.Context, id string) (*models.TeacherInfo, error)
	ListForTeacher(ctx context.Context, teacherID string) ([]models.TeacherInfo, error)
	Update(ctx context.Context, info *models.TeacherInfo) error
	Delete(ctx context.Context, id string) error
}

type teacherLookup interface {
	FindByAccountID(ctx context.Context, exec sqlx.ExtContext, accountID string) (*models.Teacher, error)
	GetOrCreate(ctx context.Context, accountID string) (*models.Teacher, error)
}

// TeacherInfoService manages the registration sheets lecturers fill in.
type TeacherInfoService struct {
	infos     teacherInfoRepository
	teachers  teacherLookup
	validator *validation.Validator
	logger    *zap.Logger
}

// NewTeacherInfoService constructs a TeacherInfoService.
func NewTeacherInfoService(infos teacherInfoRepository, teachers teacherLookup, validate *validation.Validator, logger *zap.Logger) *TeacherInfoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &TeacherInfoService{infos: infos, teachers: teachers, validator: validate, logger: logger}
}

// Create stores a sheet for the calling lecturer, creating the teacher profile if it does not exist yet.
func (s *TeacherInfoService) Create(ctx context.Context, actor *models.Principal, req dto.TeacherInfoRequest) (*models.TeacherInfo, error) {
	if actor == nil || actor.Role != models.RoleLecturer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only lecturers can submit a registration sheet")
	}
	info, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	teacher, err := s.teachers.GetOrCreate(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}
	info.TeacherID = teacher.ID
	if err := s.infos.Create(ctx, info); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration sheet")
	}
	s.logger.Info("teacher info created", zap.String("teacher_info_id", info.ID), zap.String("teacher_id", teacher.ID))
	return info, nil
}

// Get returns one sheet if the actor owns it or is an admin.
func (s *TeacherInfoService) Get(ctx context.Context, actor *models.Principal, id string) (*models.TeacherInfo, error) {
	info, err := s.infos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration sheet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration sheet")
	}
	if err := s.authorize(ctx, actor, info.TeacherID); err != nil {
		return nil, err
	}
	return info, nil
}

// ListForTeacher lists the sheets of the lecturer account accountID.
func (s *TeacherInfoService) ListForTeacher(ctx context.Context, actor *models.Principal, accountID string) ([]models.TeacherInfo, error) {
	if actor == nil || (actor.Role != models.RoleAdmin && actor.ID != accountID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	teacher, err := s.teachers.FindByAccountID(ctx, nil, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.TeacherInfo{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}
	infos, err := s.infos.ListForTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registration sheets")
	}
	return infos, nil
}

// Update replaces the contents of a sheet.
func (s *TeacherInfoService) Update(ctx context.Context, actor *models.Principal, id string, req dto.TeacherInfoRequest) (*models.TeacherInfo, error) {
	existing, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	info, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	info.ID = existing.ID
	info.TeacherID = existing.TeacherID
	info.CreatedAt = existing.CreatedAt
	if err := s.infos.Update(ctx, info); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration sheet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration sheet")
	}
	return info, nil
}

// Delete removes a sheet. The teacher profile stays.
func (s *TeacherInfoService) Delete(ctx context.Context, actor *models.Principal, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.infos.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration sheet not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete registration sheet")
	}
	s.logger.Info("teacher info deleted", zap.String("teacher_info_id", id))
	return nil
}

func (s *TeacherInfoService) authorize(ctx context.Context, actor *models.Principal, teacherID string) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role == models.RoleLecturer {
		teacher, err := s.teachers.FindByAccountID(ctx, nil, actor.ID)
		if err == nil && teacher.ID == teacherID {
			return nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "")
}

func (s *TeacherInfoService) fromRequest(req dto.TeacherInfoRequest) (*models.TeacherInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err, "invalid registration sheet")
	}
	birth, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid registration sheet"), map[string]string{"birth_date": "birth_date must be YYYY-MM-DD"})
	}
	return &models.TeacherInfo{
		LastName:          strings.TrimSpace(req.LastName),
		FirstName:         strings.TrimSpace(req.FirstName),
		BirthDate:         birth,
		BirthPlace:        req.BirthPlace,
		Gender:            req.Gender,
		Nationality:       req.Nationality,
		MaritalStatus:     req.MaritalStatus,
		Email:             strings.TrimSpace(req.Email),
		Contact:           req.Contact,
		Address:           req.Address,
		NationalID:        req.NationalID,
		EmergencyContact:  req.EmergencyContact,
		EmergencyPerson:   req.EmergencyPerson,
		EmergencyPhone:    req.EmergencyPhone,
		TeachingSection:   req.TeachingSection,
		TeachingDomain:    req.TeachingDomain,
		SchoolLevel:       req.SchoolLevel,
		Diploma:           req.Diploma,
		TeachingRange:     req.TeachingRange,
		PrimarySubjects:   req.PrimarySubjects,
		SecondarySubjects: req.SecondarySubjects,
		Experience:        req.Experience,
	}, nil
}
