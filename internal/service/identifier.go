package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
)

const (
	identifierMin = 1000
	identifierMax = 9999

	defaultIdentifierAttempts = 20
)

type usernameLocker interface {
	LockUsername(ctx context.Context, role models.RoleKind, username string) (bool, error)
}

// IdentifierConfig configures generated usernames.
type IdentifierConfig struct {
	LecturerPrefix string
	AdminPrefix    string
	MaxAttempts    int
}

// IdentifierGenerator produces <yy><PREFIX><NNNN> usernames for accounts that receive generated credentials.
type IdentifierGenerator struct {
	repo        usernameLocker
	prefixes    map[models.RoleKind]string
	maxAttempts int
	now         func() time.Time
	intn        func(n int) (int, error)
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewIdentifierGenerator constructs the generator.
func NewIdentifierGenerator(repo usernameLocker, cfg IdentifierConfig, metrics *MetricsService, logger *zap.Logger) *IdentifierGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LecturerPrefix == "" {
		cfg.LecturerPrefix = "TGA"
	}
	if cfg.AdminPrefix == "" {
		cfg.AdminPrefix = "ADM"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultIdentifierAttempts
	}
	return &IdentifierGenerator{
		repo: repo,
		prefixes: map[models.RoleKind]string{
			models.RoleLecturer: cfg.LecturerPrefix,
			models.RoleAdmin:    cfg.AdminPrefix,
		},
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
		intn:        cryptoIntn,
		metrics:     metrics,
		logger:      logger,
	}
}

// MaxAttempts is the number of candidates tried before giving up.
func (g *IdentifierGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// Generate returns an identifier no account of kind currently holds.
// Each candidate is checked in its own short transaction; after MaxAttempts collisions it fails
// with ErrIdentifierExhausted.
func (g *IdentifierGenerator) Generate(ctx context.Context, kind models.RoleKind) (string, error) {
	prefix, ok := g.prefixes[kind]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %s does not use generated identifiers", kind))
	}
	year := g.now().Year() % 100

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := g.intn(identifierMax - identifierMin + 1)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to draw identifier")
		}
		candidate := fmt.Sprintf("%02d%s%04d", year, prefix, identifierMin+n)

		taken, err := g.repo.LockUsername(ctx, kind, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check identifier")
		}
		if !taken {
			g.metrics.ObserveIdentifierAttempts(kind, attempt, false)
			return candidate, nil
		}
		g.logger.Debug("identifier collision", zap.String("role", string(kind)), zap.String("candidate", candidate), zap.Int("attempt", attempt))
	}

	g.metrics.ObserveIdentifierAttempts(kind, g.maxAttempts, true)
	g.logger.Warn("identifier space exhausted", zap.String("role", string(kind)), zap.Int("attempts", g.maxAttempts))
	return "", appErrors.Clone(appErrors.ErrIdentifierExhausted, "")
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
