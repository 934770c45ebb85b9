package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleKind(t *testing.T) {
	cases := map[string]RoleKind{
		"student":   RoleStudent,
		"Parents":   RoleParent,
		"LECTURERS": RoleLecturer,
		"other":     RoleOther,
		"others":    RoleOther,
		"admin":     RoleAdmin,
	}
	for raw, want := range cases {
		got, err := ParseRoleKind(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRoleKind("janitor")
	assert.Error(t, err)
}

func TestNewRoleRejectsMismatchedPayload(t *testing.T) {
	_, err := NewRole(RoleLecturer, StudentPayload{})
	assert.ErrorIs(t, err, ErrRoleMismatch)

	_, err = NewRole("GHOST", nil)
	assert.Error(t, err)
}

func TestNewRoleDefaultsPayload(t *testing.T) {
	role, err := NewRole(RoleParent, nil)
	require.NoError(t, err)
	assert.Equal(t, RoleParent, role.Kind())
	assert.IsType(t, ParentPayload{}, role.Payload())

	level := LevelHigh
	role, err = NewRole(RoleStudent, StudentPayload{Level: &level})
	require.NoError(t, err)
	assert.Equal(t, &level, role.Payload().(StudentPayload).Level)
}

func TestRoleKindCapabilities(t *testing.T) {
	assert.True(t, RoleLecturer.IssuesCredentials())
	assert.True(t, RoleAdmin.IssuesCredentials())
	assert.False(t, RoleStudent.IssuesCredentials())

	assert.True(t, RoleOther.SelfRegistrable())
	assert.False(t, RoleAdmin.SelfRegistrable())
	assert.False(t, RoleLecturer.SelfRegistrable())

	assert.True(t, AdminSecretary.ManagesAccounts())
	assert.False(t, AdminFinance.ManagesAccounts())
}

func TestAccountFullName(t *testing.T) {
	assert.Equal(t, "Ada Obi", Account{FirstName: "Ada", LastName: "Obi"}.FullName())
	assert.Equal(t, "24TGA1234", Account{Username: "24TGA1234"}.FullName())
}
