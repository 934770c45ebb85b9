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

// StudentRepository persists student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a student profile.
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (id, account_id, level, created_at) VALUES (:id, :account_id, :level, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// FindByAccountID returns the profile owned by accountID.
func (r *StudentRepository) FindByAccountID(ctx context.Context, accountID string) (*models.Student, error) {
	const query = `SELECT id, account_id, level, created_at FROM students WHERE account_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by account: %w", err)
	}
	return &student, nil
}

// Exists reports whether a student profile with id exists.
func (r *StudentRepository) Exists(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	return exists, nil
}

// UpdateLevel sets the education level on the profile owned by accountID.
func (r *StudentRepository) UpdateLevel(ctx context.Context, exec sqlx.ExtContext, accountID string, level *models.EducationLevel) error {
	res, err := r.exec(exec).ExecContext(ctx, `UPDATE students SET level = $2 WHERE account_id = $1`, accountID, level)
	if err != nil {
		return fmt.Errorf("update student level: %w", err)
	}
	return expectAffected(res)
}

// ListParents returns the parent accounts linked to a student profile.
func (r *StudentRepository) ListParents(ctx context.Context, studentID string) ([]models.AccountSummary, error) {
	const query = `SELECT a.id AS account_id, p.id AS profile_id, a.username, a.first_name, a.last_name, a.email, p.relationship
FROM parents p JOIN accounts a ON a.id = p.account_id
WHERE p.student_id = $1 ORDER BY a.last_name, a.first_name`
	var parents []models.AccountSummary
	if err := r.db.SelectContext(ctx, &parents, query, studentID); err != nil {
		return nil, fmt.Errorf("list student parents: %w", err)
	}
	return parents, nil
}

// ListAll returns every student profile.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, `SELECT id, account_id, level, created_at FROM students`); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// DeleteWithAccount removes the student profile by deleting its owning account.
// Linked parents keep their accounts; their student link is cleared by ON DELETE SET NULL.
func (r *StudentRepository) DeleteWithAccount(ctx context.Context, exec sqlx.ExtContext, id string) (string, error) {
	const query = `DELETE FROM accounts WHERE id = (SELECT account_id FROM students WHERE id = $1) RETURNING id`
	var accountID string
	if err := sqlx.GetContext(ctx, r.exec(exec), &accountID, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("delete student: %w", err)
	}
	return accountID, nil
}
