package dto

import "github.com/noah-isme/genius-academy-api/internal/models"

// TeacherInfoRequest is the registration sheet a lecturer submits or edits.
type TeacherInfoRequest struct {
	LastName          string                `json:"last_name" validate:"required,notblank,max=50"`
	FirstName         string                `json:"first_name" validate:"required,notblank,max=50"`
	BirthDate         string                `json:"birth_date" validate:"required,datetime=2006-01-02"`
	BirthPlace        string                `json:"birth_place" validate:"required,max=50"`
	Gender            *string               `json:"gender,omitempty" validate:"omitempty,gender"`
	Nationality       *string               `json:"nationality,omitempty" validate:"omitempty,max=50"`
	MaritalStatus     models.MaritalStatus  `json:"marital_status" validate:"required,marital_status"`
	Email             string                `json:"email" validate:"required,email"`
	Contact           *string               `json:"contact,omitempty" validate:"omitempty,max=30"`
	Address           *string               `json:"address,omitempty" validate:"omitempty,max=100"`
	NationalID        *string               `json:"national_id,omitempty" validate:"omitempty,max=30"`
	EmergencyContact  *string               `json:"emergency_contact,omitempty" validate:"omitempty,max=100"`
	EmergencyPerson   string                `json:"emergency_person" validate:"required,max=50"`
	EmergencyPhone    string                `json:"emergency_phone" validate:"required,phone"`
	TeachingSection   string                `json:"teaching_section" validate:"required,max=30"`
	TeachingDomain    models.TeachingDomain `json:"teaching_domain" validate:"required,teaching_domain"`
	SchoolLevel       *string               `json:"school_level,omitempty" validate:"omitempty,max=50"`
	Diploma           string                `json:"diploma" validate:"required,max=100"`
	TeachingRange     *string               `json:"teaching_range,omitempty" validate:"omitempty,max=50"`
	PrimarySubjects   *string               `json:"primary_subjects,omitempty" validate:"omitempty,max=200"`
	SecondarySubjects *string               `json:"secondary_subjects,omitempty" validate:"omitempty,max=200"`
	Experience        *string               `json:"experience,omitempty"`
}
