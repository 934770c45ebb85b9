package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
)

type memActivity struct {
	entries   []models.ActivityLog
	createErr error
	listErr   error
	ctxErr    error
}

func (m *memActivity) Create(ctx context.Context, entry *models.ActivityLog) error {
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memActivity) List(_ context.Context, _ models.ActivityFilter) ([]models.ActivityLog, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.entries, len(m.entries), nil
}

func TestActivityRecordSurvivesCancelledRequest(t *testing.T) {
	repo := &memActivity{}
	svc := NewActivityService(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, models.ActivityLog{Action: models.ActivityLogin, Resource: "auth"})

	require.Len(t, repo.entries, 1)
	assert.NoError(t, repo.ctxErr)

	repo.createErr = errors.New("db down")
	assert.NotPanics(t, func() { svc.Record(context.Background(), models.ActivityLog{Action: models.ActivityLogout}) })

	var nilSvc *ActivityService
	assert.NotPanics(t, func() { nilSvc.Record(context.Background(), models.ActivityLog{}) })
}

func TestActivityListPagination(t *testing.T) {
	repo := &memActivity{entries: []models.ActivityLog{{ID: "a"}, {ID: "b"}}}
	svc := NewActivityService(repo, nil)

	entries, page, err := svc.List(context.Background(), models.ActivityFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 2, page.TotalCount)

	repo.listErr = errors.New("db down")
	_, _, err = svc.List(context.Background(), models.ActivityFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
