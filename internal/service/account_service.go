package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/genius-academy-api/internal/dto"
	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/storage"
	"github.com/noah-isme/genius-academy-api/pkg/validation"
)

const (
	statsCacheKey = "accounts:stats"

	// registerRounds bounds how often a generated username that lost an insert race is replaced.
	registerRounds = 3
)

type accountRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error
	UpdateProfile(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error
	SetPicture(ctx context.Context, id string, picture, thumb *string) (*string, *string, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	CountByRole(ctx context.Context) (map[models.RoleKind]int, error)
	CountStudentsByGender(ctx context.Context) (int, int, error)
}

type studentProfileRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	FindByAccountID(ctx context.Context, accountID string) (*models.Student, error)
	Exists(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	UpdateLevel(ctx context.Context, exec sqlx.ExtContext, accountID string, level *models.EducationLevel) error
	ListParents(ctx context.Context, studentID string) ([]models.AccountSummary, error)
	DeleteWithAccount(ctx context.Context, exec sqlx.ExtContext, id string) (string, error)
}

type parentProfileRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, parent *models.Parent) error
	FindByAccountID(ctx context.Context, accountID string) (*models.Parent, error)
	Update(ctx context.Context, exec sqlx.ExtContext, accountID string, studentID *string, relationship *models.Relationship) error
	FindLinkedStudent(ctx context.Context, studentID string) (*models.AccountSummary, error)
	DeleteWithAccount(ctx context.Context, exec sqlx.ExtContext, id string) (string, error)
}

type teacherProfileRepository interface {
	credentialStatusRepository
	Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
	FindByAccountID(ctx context.Context, exec sqlx.ExtContext, accountID string) (*models.Teacher, error)
	Update(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
}

type adminProfileRepository interface {
	credentialStatusRepository
	Create(ctx context.Context, exec sqlx.ExtContext, admin *models.AdminRole) error
	FindByAccountID(ctx context.Context, exec sqlx.ExtContext, accountID string) (*models.AdminRole, error)
	Update(ctx context.Context, exec sqlx.ExtContext, accountID string, role models.AdminRoleKind, description *string) error
}

type identifierSource interface {
	Generate(ctx context.Context, kind models.RoleKind) (string, error)
}

type pictureStore interface {
	Save(ownerID string, r io.Reader) (*storage.Picture, error)
	Delete(pic storage.Picture) error
}

type urlSigner interface {
	Sign(relPath string) (string, time.Time, error)
}

// AccountRepositories groups the stores the account service writes through.
type AccountRepositories struct {
	Accounts accountRepository
	Students studentProfileRepository
	Parents  parentProfileRepository
	Teachers teacherProfileRepository
	Admins   adminProfileRepository
}

// AccountServiceConfig tunes presentation details of account responses.
type AccountServiceConfig struct {
	MediaBaseURL string
	StatsTTL     time.Duration
}

// AccountService provisions accounts and keeps each account consistent with its role profile.
type AccountService struct {
	tx          txRunner
	repos       AccountRepositories
	ids         identifierSource
	credentials *CredentialService
	pictures    pictureStore
	signer      urlSigner
	cache       *CacheService
	metrics     *MetricsService
	validator   *validation.Validator
	logger      *zap.Logger
	config      AccountServiceConfig
}

// NewAccountService constructs an AccountService.
func NewAccountService(
	tx txRunner,
	repos AccountRepositories,
	ids identifierSource,
	credentials *CredentialService,
	pictures pictureStore,
	signer urlSigner,
	cache *CacheService,
	metrics *MetricsService,
	validate *validation.Validator,
	logger *zap.Logger,
	cfg AccountServiceConfig,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 5 * time.Minute
	}
	cfg.MediaBaseURL = strings.TrimSuffix(cfg.MediaBaseURL, "/")
	return &AccountService{
		tx:          tx,
		repos:       repos,
		ids:         ids,
		credentials: credentials,
		pictures:    pictures,
		signer:      signer,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      cfg,
	}
}

// Register creates an account and its role profile in one transaction.
// actor is nil for public self-registration.
func (s *AccountService) Register(ctx context.Context, req dto.RegisterRequest, actor *models.Principal) (*dto.RegisterResponse, error) {
	kind := req.Role
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if err := authorizeCreate(actor, kind); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err, "invalid account payload")
	}
	role, err := dto.DecodeRole(kind, req.Profile)
	if err != nil {
		return nil, roleError(err)
	}
	if err := s.validator.Struct(role.Payload()); err != nil {
		return nil, validationError(s.validator, err, "invalid profile payload")
	}

	email := strings.TrimSpace(req.Email)
	taken, err := s.repos.Accounts.EmailExists(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrEmailTaken, "")
	}

	account := &models.Account{
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      kind,
		Gender:    req.Gender,
		Phone:     emptyToNil(req.Phone),
		Address:   emptyToNil(req.Address),
		Active:    true,
	}

	var detail *models.AccountDetail
	issued := false
	if kind.IssuesCredentials() {
		detail, issued, err = s.registerGenerated(ctx, account, role)
	} else {
		detail, err = s.registerChosen(ctx, account, role, req)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.AccountProvisioned(kind)
	s.invalidateStats(ctx)
	if issued {
		s.credentials.kick()
	}
	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("role", string(kind)),
		zap.Bool("credentials_issued", issued),
	)
	s.decoratePicture(detail)
	return &dto.RegisterResponse{Account: *detail, CredentialsIssued: issued}, nil
}

// registerChosen stores an account whose username and password the caller picked.
func (s *AccountService) registerChosen(ctx context.Context, account *models.Account, role models.Role, req dto.RegisterRequest) (*models.AccountDetail, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" && role.Kind() == models.RoleParent {
		username = account.Email
	}
	if username == "" {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "username is required"), map[string]string{"username": "username is required"})
	}
	if req.Password == "" {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "password is required"), map[string]string{"password": "password is required"})
	}
	if req.PasswordConfirm != req.Password {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "passwords do not match"), map[string]string{"password_confirm": "password_confirm must match password"})
	}

	exists, err := s.repos.Accounts.UsernameExists(ctx, username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrUsernameTaken, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	account.Username = username
	account.PasswordHash = string(hash)

	var detail *models.AccountDetail
	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		detail, err = s.createWithProfile(ctx, exec, account, role)
		return err
	})
	if err != nil {
		return nil, s.writeError(err, "failed to register account")
	}
	return detail, nil
}

// registerGenerated stores a lecturer or admin account with a generated identifier and password
// and issues the credentials in the same transaction.
func (s *AccountService) registerGenerated(ctx context.Context, account *models.Account, role models.Role) (*models.AccountDetail, bool, error) {
	var lastErr error
	for round := 1; round <= registerRounds; round++ {
		username, err := s.ids.Generate(ctx, role.Kind())
		if err != nil {
			return nil, false, toServiceError(err, "failed to generate identifier")
		}
		plain, err := s.credentials.GeneratePassword()
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}

		candidate := *account
		candidate.ID = ""
		candidate.Username = username
		candidate.PasswordHash = string(hash)

		var (
			detail *models.AccountDetail
			issued bool
		)
		err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
			var err error
			detail, err = s.createWithProfile(ctx, exec, &candidate, role)
			if err != nil {
				return err
			}
			issued, err = s.credentials.issueTx(ctx, exec, &candidate, plain, false)
			return err
		})
		if err == nil {
			*account = candidate
			if issued {
				markIssued(detail, s.credentials.now().UTC())
			}
			return detail, issued, nil
		}

		mapped := s.writeError(err, "failed to register account")
		if !errors.Is(mapped, appErrors.ErrUsernameTaken) {
			return nil, false, mapped
		}
		lastErr = mapped
		s.logger.Warn("generated username lost insert race", zap.String("username", username), zap.Int("round", round))
	}
	s.logger.Error("could not store generated account", zap.String("role", string(role.Kind())), zap.Error(lastErr))
	return nil, false, appErrors.Clone(appErrors.ErrIdentifierExhausted, "")
}

// createWithProfile inserts the account and the profile record its role requires.
func (s *AccountService) createWithProfile(ctx context.Context, exec sqlx.ExtContext, account *models.Account, role models.Role) (*models.AccountDetail, error) {
	if err := s.repos.Accounts.Create(ctx, exec, account); err != nil {
		return nil, err
	}
	detail := &models.AccountDetail{Account: *account}

	switch p := role.Payload().(type) {
	case models.StudentPayload:
		student := &models.Student{AccountID: account.ID, Level: p.Level}
		if err := s.repos.Students.Create(ctx, exec, student); err != nil {
			return nil, err
		}
		detail.Student = student
	case models.ParentPayload:
		if p.StudentID != nil {
			if err := s.ensureStudent(ctx, exec, *p.StudentID); err != nil {
				return nil, err
			}
		}
		parent := &models.Parent{AccountID: account.ID, StudentID: p.StudentID, Relationship: p.Relationship}
		if err := s.repos.Parents.Create(ctx, exec, parent); err != nil {
			return nil, err
		}
		detail.Parent = parent
	case models.LecturerPayload:
		available := true
		if p.Available != nil {
			available = *p.Available
		}
		teacher := &models.Teacher{
			AccountID:        account.ID,
			Speciality:       p.Speciality,
			Diploma:          p.Diploma,
			Bio:              p.Bio,
			Available:        available,
			CredentialStatus: models.CredentialPending,
		}
		if err := s.repos.Teachers.Create(ctx, exec, teacher); err != nil {
			return nil, err
		}
		detail.Teacher = teacher
	case models.AdminPayload:
		admin := &models.AdminRole{
			AccountID:        account.ID,
			Role:             p.Role,
			Description:      p.Description,
			CredentialStatus: models.CredentialPending,
		}
		if err := s.repos.Admins.Create(ctx, exec, admin); err != nil {
			return nil, err
		}
		detail.Admin = admin
	case models.OtherPayload:
	default:
		return nil, appErrors.Clone(appErrors.ErrRoleMismatch, "")
	}
	return detail, nil
}

func (s *AccountService) ensureStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) error {
	ok, err := s.repos.Students.Exists(ctx, exec, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "linked student does not exist"), map[string]string{"student_id": "student not found"})
	}
	return nil
}

// Get returns an account with its role profile and related accounts.
func (s *AccountService) Get(ctx context.Context, id string) (*models.AccountDetail, error) {
	account, err := s.repos.Accounts.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	detail := &models.AccountDetail{Account: *account}
	if err := s.loadProfile(ctx, detail); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	s.decoratePicture(detail)
	return detail, nil
}

func (s *AccountService) loadProfile(ctx context.Context, detail *models.AccountDetail) error {
	id := detail.ID
	switch detail.Role {
	case models.RoleStudent:
		student, err := s.repos.Students.FindByAccountID(ctx, id)
		if err != nil {
			return ignoreMissing(err)
		}
		detail.Student = student
		parents, err := s.repos.Students.ListParents(ctx, student.ID)
		if err != nil {
			return err
		}
		detail.Parents = parents
	case models.RoleParent:
		parent, err := s.repos.Parents.FindByAccountID(ctx, id)
		if err != nil {
			return ignoreMissing(err)
		}
		detail.Parent = parent
		if parent.StudentID != nil {
			child, err := s.repos.Parents.FindLinkedStudent(ctx, *parent.StudentID)
			if err != nil {
				return ignoreMissing(err)
			}
			child.Relation = (*string)(parent.Relationship)
			detail.Children = []models.AccountSummary{*child}
		}
	case models.RoleLecturer:
		teacher, err := s.repos.Teachers.FindByAccountID(ctx, nil, id)
		if err != nil {
			return ignoreMissing(err)
		}
		detail.Teacher = teacher
	case models.RoleAdmin:
		admin, err := s.repos.Admins.FindByAccountID(ctx, nil, id)
		if err != nil {
			return ignoreMissing(err)
		}
		detail.Admin = admin
	}
	return nil
}

// List returns accounts matching filter.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	accounts, total, err := s.repos.Accounts.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return accounts, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateProfile edits the shared profile fields. It is the only write path for them, whatever the role.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, fields models.ProfileFields) (*models.AccountDetail, error) {
	if err := s.validator.Struct(fields); err != nil {
		return nil, validationError(s.validator, err, "invalid profile payload")
	}
	if fields.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	account, err := s.repos.Accounts.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if fields.Email != nil {
		email := strings.TrimSpace(*fields.Email)
		if !strings.EqualFold(email, account.Email) {
			taken, err := s.repos.Accounts.EmailExists(ctx, email, account.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
			}
			if taken {
				return nil, appErrors.Clone(appErrors.ErrEmailTaken, "")
			}
		}
		account.Email = email
	}
	if fields.FirstName != nil {
		account.FirstName = strings.TrimSpace(*fields.FirstName)
	}
	if fields.LastName != nil {
		account.LastName = strings.TrimSpace(*fields.LastName)
	}
	if fields.Gender != nil {
		account.Gender = fields.Gender
	}
	if fields.Phone != nil {
		account.Phone = emptyToNil(fields.Phone)
	}
	if fields.Address != nil {
		account.Address = emptyToNil(fields.Address)
	}

	if err := s.repos.Accounts.UpdateProfile(ctx, nil, account); err != nil {
		return nil, s.writeError(err, "failed to update profile")
	}
	if fields.Gender != nil && account.Role == models.RoleStudent {
		s.invalidateStats(ctx)
	}
	return s.Get(ctx, id)
}

// UpdateRoleProfile edits the role-specific fields. The payload must belong to the account's role.
func (s *AccountService) UpdateRoleProfile(ctx context.Context, id string, req dto.RoleProfileRequest, actor *models.Principal) (*models.AccountDetail, error) {
	account, err := s.repos.Accounts.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if account.Role == models.RoleAdmin && !isSuperAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a super admin may change admin roles")
	}

	role, err := dto.DecodeRole(account.Role, req.Profile)
	if err != nil {
		return nil, roleError(err)
	}
	if err := s.validator.Struct(role.Payload()); err != nil {
		return nil, validationError(s.validator, err, "invalid profile payload")
	}

	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		switch p := role.Payload().(type) {
		case models.StudentPayload:
			return s.repos.Students.UpdateLevel(ctx, exec, id, p.Level)
		case models.ParentPayload:
			if p.StudentID != nil {
				if err := s.ensureStudent(ctx, exec, *p.StudentID); err != nil {
					return err
				}
			}
			return s.repos.Parents.Update(ctx, exec, id, p.StudentID, p.Relationship)
		case models.LecturerPayload:
			teacher, err := s.repos.Teachers.FindByAccountID(ctx, exec, id)
			if err != nil {
				return err
			}
			teacher.Speciality = p.Speciality
			teacher.Diploma = p.Diploma
			teacher.Bio = p.Bio
			if p.Available != nil {
				teacher.Available = *p.Available
			}
			return s.repos.Teachers.Update(ctx, exec, teacher)
		case models.AdminPayload:
			return s.repos.Admins.Update(ctx, exec, id, p.Role, p.Description)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, s.writeError(err, "failed to update role profile")
	}
	return s.Get(ctx, id)
}

// SetPicture stores a new profile picture and its thumbnail, replacing the previous ones.
func (s *AccountService) SetPicture(ctx context.Context, id string, r io.Reader) (*models.AccountDetail, error) {
	if s.pictures == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "picture storage is not configured")
	}
	if _, err := s.repos.Accounts.FindByID(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	pic, err := s.pictures.Save(id, r)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrPictureTooLarge):
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "picture is too large")
		case errors.Is(err, storage.ErrNotAnImage):
			return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "picture must be a PNG, JPEG or GIF image"), map[string]string{"picture": "unsupported image"})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store picture")
	}

	prev, prevThumb, err := s.repos.Accounts.SetPicture(ctx, id, &pic.Original, &pic.Thumbnail)
	if err != nil {
		if delErr := s.pictures.Delete(*pic); delErr != nil {
			s.logger.Warn("failed to remove orphaned picture", zap.String("path", pic.Original), zap.Error(delErr))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save picture")
	}
	s.removePicture(deref(prev), deref(prevThumb))
	return s.Get(ctx, id)
}

// Delete removes an account. Its profile goes with it; a parent's profile is removed first.
func (s *AccountService) Delete(ctx context.Context, id string, actor *models.Principal) error {
	account, err := s.repos.Accounts.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if actor != nil && actor.ID == account.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}
	if account.Role == models.RoleAdmin && !isSuperAdmin(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "only a super admin may delete admin accounts")
	}

	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		if account.Role == models.RoleParent {
			parent, err := s.repos.Parents.FindByAccountID(ctx, account.ID)
			switch {
			case err == nil:
				_, err = s.repos.Parents.DeleteWithAccount(ctx, exec, parent.ID)
				return err
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}
		return s.repos.Accounts.Delete(ctx, exec, account.ID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}

	s.removePicture(deref(account.Picture), deref(account.PictureThumb))
	s.invalidateStats(ctx)
	s.logger.Info("account deleted", zap.String("account_id", account.ID), zap.String("role", string(account.Role)))
	return nil
}

// DeleteStudentProfile removes a student profile together with the account that owns it.
func (s *AccountService) DeleteStudentProfile(ctx context.Context, studentID string) (string, error) {
	return s.deleteProfile(ctx, "student", studentID, s.repos.Students.DeleteWithAccount)
}

// DeleteParentProfile removes a parent profile together with the account that owns it.
func (s *AccountService) DeleteParentProfile(ctx context.Context, parentID string) (string, error) {
	return s.deleteProfile(ctx, "parent", parentID, s.repos.Parents.DeleteWithAccount)
}

func (s *AccountService) deleteProfile(ctx context.Context, kind, profileID string, del func(context.Context, sqlx.ExtContext, string) (string, error)) (string, error) {
	var accountID string
	err := s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		accountID, err = del(ctx, exec, profileID)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, kind+" not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete "+kind)
	}
	s.invalidateStats(ctx)
	s.logger.Info("profile deleted with account", zap.String("profile", kind), zap.String("profile_id", profileID), zap.String("account_id", accountID))
	return accountID, nil
}

// UsernameAvailable reports whether username is free.
func (s *AccountService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := s.validator.Var(username, "required,max=150,username"); err != nil {
		return false, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid username"), map[string]string{"username": "invalid username"})
	}
	exists, err := s.repos.Accounts.UsernameExists(ctx, username)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	return !exists, nil
}

// Stats returns account counts per role and the student gender split, cached briefly.
func (s *AccountService) Stats(ctx context.Context) (*models.AccountStats, error) {
	return Remember(ctx, s.cache, statsCacheKey, s.config.StatsTTL, s.countAccounts)
}

func (s *AccountService) countAccounts(ctx context.Context) (*models.AccountStats, error) {
	counts, err := s.repos.Accounts.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count accounts")
	}
	male, female, err := s.repos.Accounts.CountStudentsByGender(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	stats := &models.AccountStats{
		ByRole:         make(map[models.RoleKind]int, len(models.RoleKinds)),
		StudentsMale:   male,
		StudentsFemale: female,
		GeneratedAt:    time.Now().UTC(),
	}
	for _, kind := range models.RoleKinds {
		stats.ByRole[kind] = counts[kind]
		stats.Total += counts[kind]
	}
	return stats, nil
}

func (s *AccountService) invalidateStats(ctx context.Context) {
	s.cache.Invalidate(ctx, statsCacheKey)
}

func (s *AccountService) decoratePicture(detail *models.AccountDetail) {
	if detail == nil || s.signer == nil {
		return
	}
	detail.PictureURL = s.mediaURL(detail.Picture)
	detail.ThumbnailURL = s.mediaURL(detail.PictureThumb)
}

func (s *AccountService) mediaURL(path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	token, _, err := s.signer.Sign(*path)
	if err != nil {
		s.logger.Warn("failed to sign media url", zap.String("path", *path), zap.Error(err))
		return ""
	}
	return s.config.MediaBaseURL + "/" + token
}

func (s *AccountService) removePicture(original, thumb string) {
	if s.pictures == nil || (original == "" && thumb == "") {
		return
	}
	if err := s.pictures.Delete(storage.Picture{Original: original, Thumbnail: thumb}); err != nil {
		s.logger.Warn("failed to remove picture", zap.String("path", original), zap.Error(err))
	}
}

// writeError maps persistence failures of account writes onto API errors.
func (s *AccountService) writeError(err error, message string) error {
	if conflict, ok := uniqueConflict(err); ok {
		return conflict
	}
	return toServiceError(err, message)
}

func authorizeCreate(actor *models.Principal, kind models.RoleKind) error {
	if actor == nil {
		if !kind.SelfRegistrable() {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s accounts cannot self-register", strings.ToLower(string(kind))))
		}
		return nil
	}
	if actor.Role != models.RoleAdmin || actor.AdminRole == nil || !actor.AdminRole.ManagesAccounts() {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to create accounts")
	}
	if kind == models.RoleAdmin && *actor.AdminRole != models.AdminSuper {
		return appErrors.Clone(appErrors.ErrForbidden, "only a super admin may create admin accounts")
	}
	return nil
}

func isSuperAdmin(actor *models.Principal) bool {
	return actor != nil && actor.Role == models.RoleAdmin && actor.AdminRole != nil && *actor.AdminRole == models.AdminSuper
}

func roleError(err error) error {
	if errors.Is(err, models.ErrRoleMismatch) {
		return appErrors.Wrap(err, appErrors.ErrRoleMismatch.Code, appErrors.ErrRoleMismatch.Status, appErrors.ErrRoleMismatch.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role")
}

func markIssued(detail *models.AccountDetail, at time.Time) {
	switch {
	case detail.Teacher != nil:
		detail.Teacher.CredentialStatus = models.CredentialIssued
		detail.Teacher.CredentialIssuedAt = &at
	case detail.Admin != nil:
		detail.Admin.CredentialStatus = models.CredentialIssued
		detail.Admin.CredentialIssuedAt = &at
	}
}

func ignoreMissing(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func emptyToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
