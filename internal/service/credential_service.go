package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/notify"
)

const (
	passwordAlphabet      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultPasswordLength = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type credentialStatusRepository interface {
	MarkIssued(ctx context.Context, exec sqlx.ExtContext, accountID string, at time.Time) (bool, error)
	MarkPending(ctx context.Context, exec sqlx.ExtContext, accountID string, at time.Time) (bool, error)
}

type credentialAccountRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Account, error)
	UpdatePassword(ctx context.Context, exec sqlx.ExtContext, id, passwordHash string, updatedAt time.Time) error
}

type outboxWriter interface {
	Enqueue(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error
}

type notificationKicker interface {
	Kick()
}

// CredentialConfig configures generated passwords and credential messages.
type CredentialConfig struct {
	AppName        string
	LoginURL       string
	PasswordLength int
	SMSEnabled     bool
}

// CredentialService issues generated credentials and queues their notifications.
type CredentialService struct {
	tx       txRunner
	accounts credentialAccountRepository
	profiles map[models.RoleKind]credentialStatusRepository
	outbox   outboxWriter
	kicker   notificationKicker
	config   CredentialConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewCredentialService wires the credential flow. teachers and admins hold the credential status of their role.
func NewCredentialService(tx txRunner, accounts credentialAccountRepository, teachers, admins credentialStatusRepository, outbox outboxWriter, kicker notificationKicker, cfg CredentialConfig, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PasswordLength <= 0 {
		cfg.PasswordLength = defaultPasswordLength
	}
	if cfg.AppName == "" {
		cfg.AppName = "Genius Academy"
	}
	return &CredentialService{
		tx:       tx,
		accounts: accounts,
		profiles: map[models.RoleKind]credentialStatusRepository{
			models.RoleLecturer: teachers,
			models.RoleAdmin:    admins,
		},
		outbox: outbox,
		kicker: kicker,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// GeneratePassword returns a random alphanumeric password of the configured length.
func (s *CredentialService) GeneratePassword() (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, s.config.PasswordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Issue issues credentials for a lecturer or admin whose profile is still PENDING.
// It reports false, and sends nothing, when credentials were already issued.
func (s *CredentialService) Issue(ctx context.Context, accountID string) (bool, error) {
	var issued bool
	err := s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		account, err := s.loadIssuable(ctx, exec, accountID)
		if err != nil {
			return err
		}
		plain, err := s.GeneratePassword()
		if err != nil {
			return err
		}
		issued, err = s.issueTx(ctx, exec, account, plain, true)
		return err
	})
	if err != nil {
		return false, toServiceError(err, "failed to issue credentials")
	}
	if issued {
		s.kick()
		s.logger.Info("credentials issued", zap.String("account_id", accountID))
	}
	return issued, nil
}

// Reset regenerates the password of an issued account and queues a new notification.
func (s *CredentialService) Reset(ctx context.Context, accountID string) error {
	err := s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		account, err := s.loadIssuable(ctx, exec, accountID)
		if err != nil {
			return err
		}
		reopened, err := s.profiles[account.Role].MarkPending(ctx, exec, account.ID, s.now().UTC())
		if err != nil {
			return err
		}
		plain, err := s.GeneratePassword()
		if err != nil {
			return err
		}
		issued, err := s.issueTx(ctx, exec, account, plain, true)
		if err != nil {
			return err
		}
		if !issued {
			// Neither transition matched: there is no profile row to carry the status.
			if !reopened {
				return appErrors.Clone(appErrors.ErrNotFound, "profile not found")
			}
			return appErrors.Clone(appErrors.ErrConflict, "credentials are being reset concurrently")
		}
		return nil
	})
	if err != nil {
		return toServiceError(err, "failed to reset credentials")
	}
	s.kick()
	s.logger.Info("credentials reset", zap.String("account_id", accountID))
	return nil
}

func (s *CredentialService) loadIssuable(ctx context.Context, exec sqlx.ExtContext, accountID string) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, exec, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, err
	}
	if !account.Role.IssuesCredentials() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s accounts do not receive generated credentials", account.Role))
	}
	return account, nil
}

// issueTx moves the account's profile from PENDING to ISSUED inside exec and queues the
// credential notifications. When rehash is set the stored password is replaced by plain.
// It writes nothing and returns false if the profile was not PENDING.
func (s *CredentialService) issueTx(ctx context.Context, exec sqlx.ExtContext, account *models.Account, plain string, rehash bool) (bool, error) {
	repo, ok := s.profiles[account.Role]
	if !ok {
		return false, appErrors.Clone(appErrors.ErrRoleMismatch, "role has no credential status")
	}
	now := s.now().UTC()
	moved, err := repo.MarkIssued(ctx, exec, account.ID, now)
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}

	if rehash {
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return false, fmt.Errorf("hash password: %w", err)
		}
		if err := s.accounts.UpdatePassword(ctx, exec, account.ID, string(hash), now); err != nil {
			return false, err
		}
	}

	notifications, err := s.credentialNotifications(account, plain)
	if err != nil {
		return false, err
	}
	for i := range notifications {
		if err := s.outbox.Enqueue(ctx, exec, &notifications[i]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *CredentialService) credentialNotifications(account *models.Account, plain string) ([]models.Notification, error) {
	data := notify.CredentialData{
		AppName:  s.config.AppName,
		FullName: account.FullName(),
		RoleName: account.Role.Label(),
		Username: account.Username,
		Password: plain,
		LoginURL: s.config.LoginURL,
	}
	accountID := account.ID

	email, err := notify.CredentialEmail(account.Email, data)
	if err != nil {
		return nil, err
	}
	emailBody, err := json.Marshal(email)
	if err != nil {
		return nil, fmt.Errorf("encode email: %w", err)
	}
	out := []models.Notification{{
		AccountID: &accountID,
		Channel:   string(notify.ChannelEmail),
		Recipient: email.ToAddr,
		Subject:   email.Subject,
		Template:  models.NotificationTemplateCredentials,
		Body:      emailBody,
	}}

	if s.config.SMSEnabled && account.Phone != nil && *account.Phone != "" {
		sms, err := notify.CredentialSMS(*account.Phone, data)
		if err != nil {
			return nil, err
		}
		smsBody, err := json.Marshal(sms)
		if err != nil {
			return nil, fmt.Errorf("encode sms: %w", err)
		}
		out = append(out, models.Notification{
			AccountID: &accountID,
			Channel:   string(notify.ChannelSMS),
			Recipient: sms.To,
			Template:  models.NotificationTemplateCredentials,
			Body:      smsBody,
		})
	}
	return out, nil
}

func (s *CredentialService) kick() {
	if s.kicker != nil {
		s.kicker.Kick()
	}
}

// toServiceError keeps typed errors and wraps everything else as internal.
func toServiceError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
