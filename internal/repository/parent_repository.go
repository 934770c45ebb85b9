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

// ParentRepository persists parent profiles.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository constructs a ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

func (r *ParentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a parent profile.
func (r *ParentRepository) Create(ctx context.Context, exec sqlx.ExtContext, parent *models.Parent) error {
	if parent.ID == "" {
		parent.ID = uuid.NewString()
	}
	if parent.CreatedAt.IsZero() {
		parent.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO parents (id, account_id, student_id, relationship, created_at) VALUES (:id, :account_id, :student_id, :relationship, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, parent); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	return nil
}

// FindByAccountID returns the profile owned by accountID.
func (r *ParentRepository) FindByAccountID(ctx context.Context, accountID string) (*models.Parent, error) {
	const query = `SELECT id, account_id, student_id, relationship, created_at FROM parents WHERE account_id = $1`
	var parent models.Parent
	if err := r.db.GetContext(ctx, &parent, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by account: %w", err)
	}
	return &parent, nil
}

// Update changes the student link and relationship of the profile owned by accountID.
func (r *ParentRepository) Update(ctx context.Context, exec sqlx.ExtContext, accountID string, studentID *string, relationship *models.Relationship) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE parents SET student_id = $2, relationship = $3 WHERE account_id = $1`, accountID, studentID, relationship)
	if err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	return expectAffected(res)
}

// FindLinkedStudent returns the student account a parent profile points at.
func (r *ParentRepository) FindLinkedStudent(ctx context.Context, studentID string) (*models.AccountSummary, error) {
	const query = `SELECT a.id AS account_id, s.id AS profile_id, a.username, a.first_name, a.last_name, a.email
FROM students s JOIN accounts a ON a.id = s.account_id WHERE s.id = $1`
	var summary models.AccountSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find linked student: %w", err)
	}
	return &summary, nil
}

// ListAll returns every parent profile.
func (r *ParentRepository) ListAll(ctx context.Context) ([]models.Parent, error) {
	var parents []models.Parent
	if err := r.db.SelectContext(ctx, &parents, `SELECT id, account_id, student_id, relationship, created_at FROM parents`); err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	return parents, nil
}

// DeleteWithAccount deletes the parent profile and then its account.
func (r *ParentRepository) DeleteWithAccount(ctx context.Context, exec sqlx.ExtContext, id string) (string, error) {
	target := r.exec(exec)
	var accountID string
	if err := sqlx.GetContext(ctx, target, &accountID, `DELETE FROM parents WHERE id = $1 RETURNING account_id`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("delete parent: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return "", fmt.Errorf("delete parent account: %w", err)
	}
	return accountID, nil
}
