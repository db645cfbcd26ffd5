// pkg/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
)

var ErrSendFailed = errors.New("email send failed")

// Message is one login email addressed to a single recipient.
type Message struct {
	To       string
	ReplyTo  string // per-account override, may be empty
	Subject  string
	BodyHTML string
	BodyText string
	Tag      string
}

// Sender delivers login emails. The protocol core only depends on the
// success/failure signal; transports are interchangeable.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
