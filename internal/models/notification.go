package models

import "time"

// NotificationStatus is the delivery state of an outbox row.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "PENDING"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationFailed    NotificationStatus = "FAILED"
)

// NotificationTemplateCredentials is the template name for new-account credentials.
const NotificationTemplateCredentials = "account_credentials"

// Notification is one outbound message waiting in the outbox.
// Body is cleared once the message is delivered so plaintext credentials do not linger.
type Notification struct {
	ID            string             `db:"id" json:"id"`
	AccountID     *string            `db:"account_id" json:"account_id,omitempty"`
	Channel       string             `db:"channel" json:"channel"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Subject       string             `db:"subject" json:"subject"`
	Template      string             `db:"template" json:"template"`
	Body          []byte             `db:"body" json:"-"`
	Status        NotificationStatus `db:"status" json:"status"`
	Attempts      int                `db:"attempts" json:"attempts"`
	NextAttemptAt time.Time          `db:"next_attempt_at" json:"next_attempt_at"`
	LastError     *string            `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	DeliveredAt   *time.Time         `db:"delivered_at" json:"delivered_at,omitempty"`
}
