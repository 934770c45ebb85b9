package models

import "time"

// TeacherInfo is the extended registration sheet a lecturer fills in on demand.
type TeacherInfo struct {
	ID                string         `db:"id" json:"id"`
	TeacherID         string         `db:"teacher_id" json:"teacher_id"`
	LastName          string         `db:"last_name" json:"last_name"`
	FirstName         string         `db:"first_name" json:"first_name"`
	BirthDate         time.Time      `db:"birth_date" json:"birth_date"`
	BirthPlace        string         `db:"birth_place" json:"birth_place"`
	Gender            *string        `db:"gender" json:"gender,omitempty"`
	Nationality       *string        `db:"nationality" json:"nationality,omitempty"`
	MaritalStatus     MaritalStatus  `db:"marital_status" json:"marital_status"`
	Email             string         `db:"email" json:"email"`
	Contact           *string        `db:"contact" json:"contact,omitempty"`
	Address           *string        `db:"address" json:"address,omitempty"`
	NationalID        *string        `db:"national_id" json:"national_id,omitempty"`
	EmergencyContact  *string        `db:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyPerson   string         `db:"emergency_person" json:"emergency_person"`
	EmergencyPhone    string         `db:"emergency_phone" json:"emergency_phone"`
	TeachingSection   string         `db:"teaching_section" json:"teaching_section"`
	TeachingDomain    TeachingDomain `db:"teaching_domain" json:"teaching_domain"`
	SchoolLevel       *string        `db:"school_level" json:"school_level,omitempty"`
	Diploma           string         `db:"diploma" json:"diploma"`
	TeachingRange     *string        `db:"teaching_range" json:"teaching_range,omitempty"`
	PrimarySubjects   *string        `db:"primary_subjects" json:"primary_subjects,omitempty"`
	SecondarySubjects *string        `db:"secondary_subjects" json:"secondary_subjects,omitempty"`
	Experience        *string        `db:"experience" json:"experience,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
