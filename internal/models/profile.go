package models

import "time"

// Student is the profile of a STUDENT account.
type Student struct {
	ID        string          `db:"id" json:"id"`
	AccountID string          `db:"account_id" json:"account_id"`
	Level     *EducationLevel `db:"level" json:"level,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Parent is the profile of a PARENT account. StudentID is cleared when the student is deleted.
type Parent struct {
	ID           string        `db:"id" json:"id"`
	AccountID    string        `db:"account_id" json:"account_id"`
	StudentID    *string       `db:"student_id" json:"student_id,omitempty"`
	Relationship *Relationship `db:"relationship" json:"relationship,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Teacher is the profile of a LECTURER account.
type Teacher struct {
	ID                 string           `db:"id" json:"id"`
	AccountID          string           `db:"account_id" json:"account_id"`
	Speciality         string           `db:"speciality" json:"speciality"`
	Diploma            *string          `db:"diploma" json:"diploma,omitempty"`
	Bio                *string          `db:"bio" json:"bio,omitempty"`
	Available          bool             `db:"available" json:"available"`
	CredentialStatus   CredentialStatus `db:"credential_status" json:"credential_status"`
	CredentialIssuedAt *time.Time       `db:"credential_issued_at" json:"credential_issued_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// AdminRole is the profile of an ADMIN account.
type AdminRole struct {
	ID                 string           `db:"id" json:"id"`
	AccountID          string           `db:"account_id" json:"account_id"`
	Role               AdminRoleKind    `db:"role" json:"role"`
	Description        *string          `db:"description" json:"description,omitempty"`
	CredentialStatus   CredentialStatus `db:"credential_status" json:"credential_status"`
	CredentialIssuedAt *time.Time       `db:"credential_issued_at" json:"credential_issued_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}
