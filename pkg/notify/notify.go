// Package notify delivers account notifications over email and SMS.
package notify

import (
	"context"
	"errors"
)

// Channel names a delivery transport.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// ErrPermanent marks failures that retrying cannot fix, such as a rejected recipient.
var ErrPermanent = errors.New("permanent delivery failure")

// Email is a rendered message ready for a Mailer.
type Email struct {
	ToName  string
	ToAddr  string
	Subject string
	Text    string
	HTML    string
}

// SMS is a rendered text message.
type SMS struct {
	To   string
	Body string
}

// Mailer sends email.
type Mailer interface {
	SendEmail(ctx context.Context, msg Email) error
}

// SMSSender sends text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMS) error
}
