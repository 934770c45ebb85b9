package service

import (
	"strings"

	"github.com/noah-isme/genius-academy-api/pkg/database"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/validation"
)

func validationError(v *validation.Validator, err error, message string) *appErrors.Error {
	out := appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, message), v.Fields(err))
	out.Err = err
	return out
}

// uniqueConflict maps a unique-constraint violation on accounts to the matching conflict error.
func uniqueConflict(err error) (*appErrors.Error, bool) {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return nil, false
	}
	switch {
	case strings.Contains(constraint, "username"):
		return appErrors.Clone(appErrors.ErrUsernameTaken, ""), true
	case strings.Contains(constraint, "email"):
		return appErrors.Clone(appErrors.ErrEmailTaken, ""), true
	default:
		return appErrors.Clone(appErrors.ErrConflict, ""), true
	}
}
