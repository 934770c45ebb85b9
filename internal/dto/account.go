package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

// RegisterRequest creates an account of any role. Profile carries the role payload.
// Username and password are ignored for roles that receive generated credentials.
type RegisterRequest struct {
	Role            models.RoleKind `json:"role"`
	Username        string          `json:"username" validate:"omitempty,max=150,username"`
	Email           string          `json:"email" validate:"required,email,max=254"`
	Password        string          `json:"password" validate:"omitempty,min=8,max=128"`
	PasswordConfirm string          `json:"password_confirm" validate:"omitempty,eqfield=Password"`
	FirstName       string          `json:"first_name" validate:"required,notblank,max=150"`
	LastName        string          `json:"last_name" validate:"required,notblank,max=150"`
	Gender          *string         `json:"gender,omitempty" validate:"omitempty,gender"`
	Phone           *string         `json:"phone,omitempty" validate:"omitempty,phone"`
	Address         *string         `json:"address,omitempty" validate:"omitempty,max=120"`
	Profile         json.RawMessage `json:"profile,omitempty" swaggertype:"object"`
}

// RoleProfileRequest carries the role payload for an existing account.
type RoleProfileRequest struct {
	Profile json.RawMessage `json:"profile" validate:"required" swaggertype:"object"`
}

// RegisterResponse is returned after an account is created.
type RegisterResponse struct {
	Account           models.AccountDetail `json:"account"`
	CredentialsIssued bool                 `json:"credentials_issued"`
}

// UsernameAvailability answers the availability lookup.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// DecodeRole parses raw into the payload type that belongs to kind and returns the tagged role.
// Unknown fields are rejected so a payload meant for another role cannot slip through.
func DecodeRole(kind models.RoleKind, raw json.RawMessage) (models.Role, error) {
	payload, err := decodePayload(kind, raw)
	if err != nil {
		return models.Role{}, err
	}
	return models.NewRole(kind, payload)
}

func decodePayload(kind models.RoleKind, raw json.RawMessage) (models.RolePayload, error) {
	var dest models.RolePayload
	switch kind {
	case models.RoleStudent:
		dest = &models.StudentPayload{}
	case models.RoleParent:
		dest = &models.ParentPayload{}
	case models.RoleLecturer:
		dest = &models.LecturerPayload{}
	case models.RoleAdmin:
		dest = &models.AdminPayload{}
	case models.RoleOther:
		dest = &models.OtherPayload{}
	default:
		return nil, fmt.Errorf("unknown role %q", kind)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRoleMismatch, err)
		}
	}

	switch p := dest.(type) {
	case *models.StudentPayload:
		return *p, nil
	case *models.ParentPayload:
		return *p, nil
	case *models.LecturerPayload:
		return *p, nil
	case *models.AdminPayload:
		return *p, nil
	default:
		return models.OtherPayload{}, nil
	}
}
