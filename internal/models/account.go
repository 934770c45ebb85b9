package models

import (
	"strings"
	"time"
)

// Account is the single identity record every role shares.
type Account struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         RoleKind   `db:"role" json:"role"`
	Gender       *string    `db:"gender" json:"gender,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	Picture      *string    `db:"picture" json:"-"`
	PictureThumb *string    `db:"picture_thumb" json:"-"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name, falling back to the username.
func (a Account) FullName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Username
	}
	return name
}

// ProfileFields are the shared profile fields editable through one path for every role.
type ProfileFields struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,notblank,max=150"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,notblank,max=150"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Gender    *string `json:"gender,omitempty" validate:"omitempty,gender"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Address   *string `json:"address,omitempty" validate:"omitempty,max=120"`
}

// Empty reports whether no field is set.
func (p ProfileFields) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Gender == nil && p.Phone == nil && p.Address == nil
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Role      *RoleKind
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// AccountSummary is the compact form used when one account references another.
type AccountSummary struct {
	AccountID string  `db:"account_id" json:"account_id"`
	ProfileID string  `db:"profile_id" json:"profile_id"`
	Username  string  `db:"username" json:"username"`
	FirstName string  `db:"first_name" json:"first_name"`
	LastName  string  `db:"last_name" json:"last_name"`
	Email     string  `db:"email" json:"email"`
	Relation  *string `db:"relationship" json:"relationship,omitempty"`
}

// AccountDetail is an account together with its role profile and related accounts.
type AccountDetail struct {
	Account
	PictureURL   string           `json:"picture_url,omitempty"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	Student      *Student         `json:"student,omitempty"`
	Parent       *Parent          `json:"parent,omitempty"`
	Teacher      *Teacher         `json:"teacher,omitempty"`
	Admin        *AdminRole       `json:"admin,omitempty"`
	Children     []AccountSummary `json:"children,omitempty"`
	Parents      []AccountSummary `json:"parents,omitempty"`
}

// AccountStats is the dashboard summary of account counts.
type AccountStats struct {
	ByRole         map[RoleKind]int `json:"by_role"`
	Total          int              `json:"total"`
	StudentsMale   int              `json:"students_male"`
	StudentsFemale int              `json:"students_female"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
