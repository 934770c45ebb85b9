package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

const adminRoleColumns = `id, account_id, role, description, credential_status, credential_issued_at, created_at`

// AdminRoleRepository persists admin sub-role profiles.
type AdminRoleRepository struct {
	db *sqlx.DB
}

// NewAdminRoleRepository constructs an AdminRoleRepository.
func NewAdminRoleRepository(db *sqlx.DB) *AdminRoleRepository {
	return &AdminRoleRepository{db: db}
}

func (r *AdminRoleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an admin profile with credentials PENDING.
func (r *AdminRoleRepository) Create(ctx context.Context, exec sqlx.ExtContext, admin *models.AdminRole) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	if admin.CredentialStatus == "" {
		admin.CredentialStatus = models.CredentialPending
	}
	const query = `INSERT INTO admin_roles (id, account_id, role, description, credential_status, created_at)
VALUES (:id, :account_id, :role, :description, :credential_status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, admin); err != nil {
		return fmt.Errorf("create admin role: %w", err)
	}
	return nil
}

// FindByAccountID returns the profile owned by accountID.
func (r *AdminRoleRepository) FindByAccountID(ctx context.Context, exec sqlx.ExtContext, accountID string) (*models.AdminRole, error) {
	query := `SELECT ` + adminRoleColumns + ` FROM admin_roles WHERE account_id = $1`
	var admin models.AdminRole
	if err := sqlx.GetContext(ctx, r.exec(exec), &admin, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find admin role by account: %w", err)
	}
	return &admin, nil
}

// Update writes the sub-role and description.
func (r *AdminRoleRepository) Update(ctx context.Context, exec sqlx.ExtContext, accountID string, role models.AdminRoleKind, description *string) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE admin_roles SET role = $2, description = $3 WHERE account_id = $1`, accountID, role, description)
	if err != nil {
		return fmt.Errorf("update admin role: %w", err)
	}
	return expectAffected(res)
}

// MarkIssued moves the profile from PENDING to ISSUED, reporting whether this call did it.
func (r *AdminRoleRepository) MarkIssued(ctx context.Context, exec sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return transitionCredential(ctx, r.exec(exec), "admin_roles", accountID, models.CredentialPending, models.CredentialIssued, at)
}

// MarkPending moves the profile from ISSUED back to PENDING.
func (r *AdminRoleRepository) MarkPending(ctx context.Context, exec sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return transitionCredential(ctx, r.exec(exec), "admin_roles", accountID, models.CredentialIssued, models.CredentialPending, at)
}

// ListAll returns every admin profile.
func (r *AdminRoleRepository) ListAll(ctx context.Context) ([]models.AdminRole, error) {
	var admins []models.AdminRole
	if err := r.db.SelectContext(ctx, &admins, `SELECT `+adminRoleColumns+` FROM admin_roles`); err != nil {
		return nil, fmt.Errorf("list admin roles: %w", err)
	}
	return admins, nil
}
