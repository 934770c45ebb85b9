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

const teacherColumns = `id, account_id, speciality, diploma, bio, available, credential_status, credential_issued_at, created_at`

// TeacherRepository persists lecturer profiles and their credential status.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

func (r *TeacherRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a teacher profile. New profiles start with credentials PENDING.
func (r *TeacherRepository) Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now().UTC()
	}
	if teacher.CredentialStatus == "" {
		teacher.CredentialStatus = models.CredentialPending
	}
	const query = `INSERT INTO teachers (id, account_id, speciality, diploma, bio, available, credential_status, created_at)
VALUES (:id, :account_id, :speciality, :diploma, :bio, :available, :credential_status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// FindByAccountID returns the profile owned by accountID.
func (r *TeacherRepository) FindByAccountID(ctx context.Context, exec sqlx.ExtContext, accountID string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE account_id = $1`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, r.exec(exec), &teacher, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by account: %w", err)
	}
	return &teacher, nil
}

// GetOrCreate returns the teacher profile of accountID, creating an empty one if missing.
// Profiles created here never carry generated credentials, so they start ISSUED.
func (r *TeacherRepository) GetOrCreate(ctx context.Context, accountID string) (*models.Teacher, error) {
	const insert = `INSERT INTO teachers (id, account_id, speciality, available, credential_status, created_at)
VALUES ($1, $2, '', TRUE, $3, $4) ON CONFLICT (account_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), accountID, models.CredentialIssued, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure teacher: %w", err)
	}
	return r.FindByAccountID(ctx, nil, accountID)
}

// Update writes the descriptive profile fields.
func (r *TeacherRepository) Update(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	const query = `UPDATE teachers SET speciality = :speciality, diploma = :diploma, bio = :bio, available = :available WHERE account_id = :account_id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return expectAffected(res)
}

// MarkIssued moves the profile from PENDING to ISSUED, reporting whether this call did it.
func (r *TeacherRepository) MarkIssued(ctx context.Context, exec sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return transitionCredential(ctx, r.exec(exec), "teachers", accountID, models.CredentialPending, models.CredentialIssued, at)
}

// MarkPending moves the profile from ISSUED back to PENDING.
func (r *TeacherRepository) MarkPending(ctx context.Context, exec sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return transitionCredential(ctx, r.exec(exec), "teachers", accountID, models.CredentialIssued, models.CredentialPending, at)
}

// ListAll returns every teacher profile.
func (r *TeacherRepository) ListAll(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, `SELECT `+teacherColumns+` FROM teachers`); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}
