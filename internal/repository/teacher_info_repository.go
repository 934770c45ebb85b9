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

const teacherInfoColumns = `id, teacher_id, last_name, first_name, birth_date, birth_place, gender, nationality, marital_status, email, contact, address, national_id,
emergency_contact, emergency_person, emergency_phone, teaching_section, teaching_domain, school_level, diploma, teaching_range,
primary_subjects, secondary_subjects, experience, created_at, updated_at`

// TeacherInfoRepository persists teacher registration sheets.
type TeacherInfoRepository struct {
	db *sqlx.DB
}

// NewTeacherInfoRepository constructs a TeacherInfoRepository.
func NewTeacherInfoRepository(db *sqlx.DB) *TeacherInfoRepository {
	return &TeacherInfoRepository{db: db}
}

// Create inserts a registration sheet.
func (r *TeacherInfoRepository) Create(ctx context.Context, info *models.TeacherInfo) error {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	info.CreatedAt = now
	info.UpdatedAt = now
	const query = `INSERT INTO teacher_infos (id, teacher_id, last_name, first_name, birth_date, birth_place, gender, nationality, marital_status, email, contact, address, national_id,
emergency_contact, emergency_person, emergency_phone, teaching_section, teaching_domain, school_level, diploma, teaching_range,
primary_subjects, secondary_subjects, experience, created_at, updated_at)
VALUES (:id, :teacher_id, :last_name, :first_name, :birth_date, :birth_place, :gender, :nationality, :marital_status, :email, :contact, :address, :national_id,
:emergency_contact, :emergency_person, :emergency_phone, :teaching_section, :teaching_domain, :school_level, :diploma, :teaching_range,
:primary_subjects, :secondary_subjects, :experience, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, info); err != nil {
		return fmt.Errorf("create teacher info: %w", err)
	}
	return nil
}

// FindByID returns a registration sheet.
func (r *TeacherInfoRepository) FindByID(ctx context.Context, id string) (*models.TeacherInfo, error) {
	var info models.TeacherInfo
	if err := r.db.GetContext(ctx, &info, `SELECT `+teacherInfoColumns+` FROM teacher_infos WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher info: %w", err)
	}
	return &info, nil
}

// ListForTeacher returns the sheets of a teacher profile, newest first.
func (r *TeacherInfoRepository) ListForTeacher(ctx context.Context, teacherID string) ([]models.TeacherInfo, error) {
	var infos []models.TeacherInfo
	if err := r.db.SelectContext(ctx, &infos, `SELECT `+teacherInfoColumns+` FROM teacher_infos WHERE teacher_id = $1 ORDER BY created_at DESC`, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher infos: %w", err)
	}
	return infos, nil
}

// Update rewrites every editable column of a sheet.
func (r *TeacherInfoRepository) Update(ctx context.Context, info *models.TeacherInfo) error {
	info.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teacher_infos SET last_name = :last_name, first_name = :first_name, birth_date = :birth_date, birth_place = :birth_place,
gender = :gender, nationality = :nationality, marital_status = :marital_status, email = :email, contact = :contact, address = :address,
national_id = :national_id, emergency_contact = :emergency_contact, emergency_person = :emergency_person, emergency_phone = :emergency_phone,
teaching_section = :teaching_section, teaching_domain = :teaching_domain, school_level = :school_level, diploma = :diploma,
teaching_range = :teaching_range, primary_subjects = :primary_subjects, secondary_subjects = :secondary_subjects, experience = :experience,
updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, info)
	if err != nil {
		return fmt.Errorf("update teacher info: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a sheet. The owning teacher profile is untouched.
func (r *TeacherInfoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teacher_infos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher info: %w", err)
	}
	return expectAffected(res)
}
