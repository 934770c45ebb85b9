package models

import "time"

// Activity actions recorded in the activity log.
const (
	ActivityLogin            = "LOGIN"
	ActivityLogout           = "LOGOUT"
	ActivityAccountCreate    = "ACCOUNT_CREATE"
	ActivityAccountUpdate    = "ACCOUNT_UPDATE"
	ActivityAccountDelete    = "ACCOUNT_DELETE"
	ActivityPasswordChange   = "PASSWORD_CHANGE"
	ActivityCredentialIssue  = "CREDENTIAL_ISSUE"
	ActivityCredentialReset  = "CREDENTIAL_RESET"
	ActivityTeacherInfoWrite = "TEACHER_INFO_WRITE"
)

// ActivityLog is one entry of the admin-visible activity trail.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Message    string    `db:"message" json:"message"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	ActorID  string
	Action   string
	Page     int
	PageSize int
}
