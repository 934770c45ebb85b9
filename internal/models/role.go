package models

import (
	"errors"
	"fmt"
	"strings"
)

// RoleKind identifies which of the mutually exclusive roles an account holds.
type RoleKind string

const (
	RoleStudent  RoleKind = "STUDENT"
	RoleParent   RoleKind = "PARENT"
	RoleLecturer RoleKind = "LECTURER"
	RoleOther    RoleKind = "OTHER"
	RoleAdmin    RoleKind = "ADMIN"
)

// RoleKinds lists every role in display order.
var RoleKinds = []RoleKind{RoleStudent, RoleParent, RoleLecturer, RoleOther, RoleAdmin}

// ErrRoleMismatch is returned when a payload is paired with a different role kind.
var ErrRoleMismatch = errors.New("role payload does not match role kind")

// ParseRoleKind accepts any casing of a role name, including the plural route forms.
func ParseRoleKind(raw string) (RoleKind, error) {
	k := RoleKind(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(raw)), "S"))
	if !k.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return k, nil
}

// Valid reports whether k is a known role.
func (k RoleKind) Valid() bool {
	switch k {
	case RoleStudent, RoleParent, RoleLecturer, RoleOther, RoleAdmin:
		return true
	}
	return false
}

// IssuesCredentials reports whether accounts of this role get a generated username and password.
func (k RoleKind) IssuesCredentials() bool {
	return k == RoleLecturer || k == RoleAdmin
}

// SelfRegistrable reports whether the public registration endpoint may create this role.
func (k RoleKind) SelfRegistrable() bool {
	return k == RoleStudent || k == RoleParent || k == RoleOther
}

// Label is the human readable role name used in notifications and exports.
func (k RoleKind) Label() string {
	switch k {
	case RoleStudent:
		return "Student"
	case RoleParent:
		return "Parent"
	case RoleLecturer:
		return "Lecturer"
	case RoleAdmin:
		return "Administrator"
	default:
		return "User"
	}
}

// RolePayload carries the role-specific fields of a Role.
type RolePayload interface {
	Kind() RoleKind
}

// StudentPayload holds student profile fields.
type StudentPayload struct {
	Level *EducationLevel `json:"level,omitempty" validate:"omitempty,education_level"`
}

// ParentPayload holds parent profile fields.
type ParentPayload struct {
	StudentID    *string       `json:"student_id,omitempty" validate:"omitempty,uuid"`
	Relationship *Relationship `json:"relationship,omitempty" validate:"omitempty,relationship"`
}

// LecturerPayload holds teacher profile fields.
type LecturerPayload struct {
	Speciality string  `json:"speciality" validate:"required,max=255"`
	Diploma    *string `json:"diploma,omitempty" validate:"omitempty,max=255"`
	Bio        *string `json:"bio,omitempty"`
	Available  *bool   `json:"available,omitempty"`
}

// OtherPayload is empty; OTHER accounts have no profile record.
type OtherPayload struct{}

// AdminPayload holds admin role fields.
type AdminPayload struct {
	Role        AdminRoleKind `json:"role" validate:"required,admin_role"`
	Description *string       `json:"description,omitempty"`
}

func (StudentPayload) Kind() RoleKind  { return RoleStudent }
func (ParentPayload) Kind() RoleKind   { return RoleParent }
func (LecturerPayload) Kind() RoleKind { return RoleLecturer }
func (OtherPayload) Kind() RoleKind    { return RoleOther }
func (AdminPayload) Kind() RoleKind    { return RoleAdmin }

// Role is the tagged variant: a kind plus the payload that belongs to it.
type Role struct {
	kind    RoleKind
	payload RolePayload
}

// NewRole pairs kind with payload. A nil payload becomes the zero payload for kind.
func NewRole(kind RoleKind, payload RolePayload) (Role, error) {
	if !kind.Valid() {
		return Role{}, fmt.Errorf("unknown role %q", kind)
	}
	if payload == nil {
		payload = ZeroPayload(kind)
	}
	if payload.Kind() != kind {
		return Role{}, fmt.Errorf("%w: %s payload for %s account", ErrRoleMismatch, payload.Kind(), kind)
	}
	return Role{kind: kind, payload: payload}, nil
}

// ZeroPayload returns the empty payload for kind.
func ZeroPayload(kind RoleKind) RolePayload {
	switch kind {
	case RoleStudent:
		return StudentPayload{}
	case RoleParent:
		return ParentPayload{}
	case RoleLecturer:
		return LecturerPayload{}
	case RoleAdmin:
		return AdminPayload{}
	default:
		return OtherPayload{}
	}
}

func (r Role) Kind() RoleKind       { return r.kind }
func (r Role) Payload() RolePayload { return r.payload }
func (r Role) IsZero() bool         { return r.kind == "" }
