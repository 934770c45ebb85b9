package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/genius-academy-api/internal/dto"
	"github.com/noah-isme/genius-academy-api/internal/models"
	"github.com/noah-isme/genius-academy-api/internal/service"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var testTokens = stubTokens{
	"super":    {AccountID: "acc-super", Username: "26ADM1000", Role: models.RoleAdmin, AdminRole: models.AdminSuper},
	"finance":  {AccountID: "acc-finance", Role: models.RoleAdmin, AdminRole: models.AdminFinance},
	"lecturer": {AccountID: "acc-lecturer", Role: models.RoleLecturer},
	"student":  {AccountID: "acc-student", Role: models.RoleStudent},
}

type stubAuth struct{}

func (stubAuth) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "password123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", Account: models.Principal{Username: req.Login}}, nil
}

func (stubAuth) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (stubAuth) Logout(context.Context, string, string, string, string) error { return nil }

func (stubAuth) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func (stubAuth) Me(_ context.Context, id string) (*models.Principal, error) {
	return &models.Principal{ID: id}, nil
}

type stubAccounts struct {
	mu          sync.Mutex
	lastReq     dto.RegisterRequest
	lastActor   *models.Principal
	lastFilter  models.AccountFilter
	pictureSize int
}

func (s *stubAccounts) Register(_ context.Context, req dto.RegisterRequest, actor *models.Principal) (*dto.RegisterResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReq, s.lastActor = req, actor
	if actor == nil && !req.Role.SelfRegistrable() {
		return nil, appErrors.ErrForbidden
	}
	return &dto.RegisterResponse{Account: models.AccountDetail{Account: models.Account{ID: "acc-new", Role: req.Role}}, CredentialsIssued: req.Role.IssuesCredentials()}, nil
}

func (s *stubAccounts) Get(_ context.Context, id string) (*models.AccountDetail, error) {
	if id == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return &models.AccountDetail{Account: models.Account{ID: id}}, nil
}

func (s *stubAccounts) List(_ context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	return []models.Account{{ID: "a1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (s *stubAccounts) UpdateProfile(_ context.Context, id string, _ models.ProfileFields) (*models.AccountDetail, error) {
	return &models.AccountDetail{Account: models.Account{ID: id}}, nil
}

func (s *stubAccounts) UpdateRoleProfile(_ context.Context, id string, _ dto.RoleProfileRequest, _ *models.Principal) (*models.AccountDetail, error) {
	return &models.AccountDetail{Account: models.Account{ID: id}}, nil
}

func (s *stubAccounts) SetPicture(_ context.Context, id string, r io.Reader) (*models.AccountDetail, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.pictureSize = len(data)
	s.mu.Unlock()
	return &models.AccountDetail{Account: models.Account{ID: id}, PictureURL: "/api/v1/media/token"}, nil
}

func (s *stubAccounts) Delete(context.Context, string, *models.Principal) error { return nil }

func (s *stubAccounts) DeleteStudentProfile(_ context.Context, id string) (string, error) {
	if id == "missing" {
		return "", appErrors.ErrNotFound
	}
	return "acc-of-" + id, nil
}

func (s *stubAccounts) DeleteParentProfile(_ context.Context, id string) (string, error) {
	return "acc-of-" + id, nil
}

func (s *stubAccounts) UsernameAvailable(_ context.Context, username string) (bool, error) {
	return username != "taken", nil
}

func (s *stubAccounts) Stats(context.Context) (*models.AccountStats, error) {
	return &models.AccountStats{Total: 3}, nil
}

type stubCredentials struct{}

func (stubCredentials) Issue(context.Context, string) (bool, error) { return true, nil }
func (stubCredentials) Reset(context.Context, string) error         { return nil }

type stubExports struct{}

func (stubExports) Export(_ context.Context, kind models.RoleKind, format string) (*service.ExportResult, error) {
	if format == "docx" {
		return nil, appErrors.ErrUnsupportedFormat
	}
	return &service.ExportResult{Filename: "lecturers-20260304.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("Username\n26TGA1000\n"), Rows: 1}, nil
}

type stubTeacherInfos struct{}

func (stubTeacherInfos) Create(_ context.Context, actor *models.Principal, _ dto.TeacherInfoRequest) (*models.TeacherInfo, error) {
	return &models.TeacherInfo{ID: "sheet-1"}, nil
}

func (stubTeacherInfos) Get(_ context.Context, _ *models.Principal, id string) (*models.TeacherInfo, error) {
	return &models.TeacherInfo{ID: id}, nil
}

func (stubTeacherInfos) ListForTeacher(_ context.Context, _ *models.Principal, accountID string) ([]models.TeacherInfo, error) {
	return []models.TeacherInfo{{ID: "sheet-of-" + accountID}}, nil
}

func (stubTeacherInfos) Update(_ context.Context, _ *models.Principal, id string, _ dto.TeacherInfoRequest) (*models.TeacherInfo, error) {
	return &models.TeacherInfo{ID: id}, nil
}

func (stubTeacherInfos) Delete(context.Context, *models.Principal, string) error { return nil }

type stubActivity struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (s *stubActivity) Record(_ context.Context, entry models.ActivityLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *stubActivity) List(context.Context, models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(s.entries)}, nil
}

type fixture struct {
	router   *gin.Engine
	accounts *stubAccounts
	activity *stubActivity
}

func newFixture(t *testing.T, media *MediaHandler, checks map[string]ReadinessCheck) *fixture {
	t.Helper()
	f := &fixture{accounts: &stubAccounts{}, activity: &stubActivity{}}
	if media == nil {
		media = NewMediaHandler(nil, nil, nil)
	}
	r := gin.New()
	RegisterRoutes(r, r.Group("/api/v1"), Handlers{
		Auth:         NewAuthHandler(stubAuth{}),
		Accounts:     NewAccountHandler(f.accounts, stubCredentials{}),
		Exports:      NewExportHandler(stubExports{}),
		TeacherInfos: NewTeacherInfoHandler(stubTeacherInfos{}),
		Activity:     NewActivityHandler(f.activity),
		Media:        media,
		Metrics:      NewMetricsHandler(service.NewMetricsService(), checks),
	}, testTokens, f.activity)
	f.router = r
	return f
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"login": "26TGA1000", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)

	w = f.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"login": "26TGA1000", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/auth/logout", "lecturer", gin.H{}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/v1/auth/logout", "lecturer", gin.H{"refresh_token": "r"}).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/auth/me", "", nil).Code)

	w = f.do(http.MethodGet, "/api/v1/auth/me", "lecturer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acc-lecturer")
}

func TestSelfRegisterTakesRoleFromPath(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(http.MethodPost, "/api/v1/register/students", "", gin.H{"email": "kid@example.com", "role": "ADMIN"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleStudent, f.accounts.lastReq.Role)
	assert.Nil(t, f.accounts.lastActor)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/register/lecturer", "", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/register/janitor", "", gin.H{}).Code)

	require.NotEmpty(t, f.activity.entries)
	created := f.activity.entries[0]
	assert.Equal(t, models.ActivityAccountCreate, created.Action)
	require.NotNil(t, created.ResourceID)
	assert.Equal(t, "acc-new", *created.ResourceID)
}

func TestAdminCreateAccount(t *testing.T) {
	f := newFixture(t, nil, nil)
	body := gin.H{"role": "lecturer", "email": "ada@example.com"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/accounts", "", body).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/accounts", "finance", body).Code)

	w := f.do(http.MethodPost, "/api/v1/accounts", "super", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleLecturer, f.accounts.lastReq.Role)
	require.NotNil(t, f.accounts.lastActor)
	assert.Equal(t, "acc-super", f.accounts.lastActor.ID)
	assert.Equal(t, models.AdminSuper, *f.accounts.lastActor.AdminRole)
	assert.Contains(t, w.Body.String(), `"credentials_issued":true`)
}

func TestUsernameAvailability(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/accounts/username-available", "", nil).Code)

	w := f.do(http.MethodGet, "/api/v1/accounts/username-available?username=taken", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got dto.UsernameAvailability
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.False(t, got.Available)
}

func TestListAccountsParsesFilters(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(http.MethodGet, "/api/v1/accounts?role=lecturers&active=true&page=2&page_size=5&search=ada", "finance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	filter := f.accounts.lastFilter
	require.NotNil(t, filter.Role)
	assert.Equal(t, models.RoleLecturer, *filter.Role)
	require.NotNil(t, filter.Active)
	assert.True(t, *filter.Active)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, "ada", filter.Search)
	assert.Equal(t, 1, decode(t, w).Pagination.TotalCount)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/accounts?active=maybe", "super", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/accounts", "lecturer", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/accounts/stats", "super", nil).Code)
}

func TestAccountSelfAccess(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/accounts/acc-lecturer", "lecturer", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/accounts/acc-other", "lecturer", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/accounts/missing", "super", nil).Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/v1/accounts/acc-lecturer/profile", "lecturer", gin.H{"first_name": "Ada"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/api/v1/accounts/acc-other/profile", "lecturer", gin.H{"first_name": "Ada"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/api/v1/accounts/acc-lecturer/role-profile", "lecturer", gin.H{"profile": gin.H{}}).Code)
}

func TestUploadPicture(t *testing.T) {
	f := newFixture(t, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("picture", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not-really-a-png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/accounts/acc-student/picture", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer student")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, len("not-really-a-png"), f.accounts.pictureSize)
	assert.Contains(t, w.Body.String(), "/api/v1/media/token")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/v1/accounts/acc-student/picture", "student", gin.H{}).Code)
}

func TestCredentialRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(http.MethodPost, "/api/v1/accounts/acc-1/credentials/issue", "super", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"issued":true}`, string(decode(t, w).Data))

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/v1/accounts/acc-1/credentials/reset", "super", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/accounts/acc-1/credentials/reset", "finance", nil).Code)
}

func TestDeleteProfilesRecordsAccount(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/students/st-1", "super", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/students/missing", "super", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/parents/pa-1", "super", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/accounts/acc-9", "super", nil).Code)

	require.Len(t, f.activity.entries, 3)
	assert.Equal(t, "acc-of-st-1", *f.activity.entries[0].ResourceID)
	assert.Equal(t, "parent", f.activity.entries[1].Resource)
	assert.Equal(t, "acc-9", *f.activity.entries[2].ResourceID)

	w := f.do(http.MethodGet, "/api/v1/activity", "finance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode(t, w).Pagination.TotalCount)
}

func TestExportRoute(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(http.MethodGet, "/api/v1/exports/lecturers?format=csv", "super", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="lecturers-20260304.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", w.Header().Get("X-Row-Count"))
	assert.Contains(t, w.Body.String(), "26TGA1000")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/exports/lecturers?format=docx", "super", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/exports/robots", "super", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/exports/lecturers", "student", nil).Code)
}

func TestTeacherInfoRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/teacher-infos", "student", nil).Code)

	w := f.do(http.MethodGet, "/api/v1/teacher-infos", "lecturer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sheet-of-acc-lecturer")

	w = f.do(http.MethodGet, "/api/v1/teacher-infos?account_id=acc-7", "super", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sheet-of-acc-7")

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/teacher-infos", "lecturer", gin.H{"first_name": "Ada"}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/teacher-infos/sheet-1", "lecturer", nil).Code)
}

func TestProbes(t *testing.T) {
	f := newFixture(t, nil, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil).Code)

	w := f.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
