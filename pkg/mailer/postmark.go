// pkg/mailer/postmark.go
package mailer

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkSender struct {
	client *postmark.Client
	from   string
}

// NewPostmarkSender creates a Postmark-backed Sender. Both tokens are
// required; environments without them should use the dev sender instead.
func NewPostmarkSender(serverToken, accountToken, senderEmail string) (Sender, error) {
	if serverToken == "" || accountToken == "" {
		return nil, fmt.Errorf("%w: postmark tokens are required", ErrSendFailed)
	}
	if senderEmail == "" {
		return nil, fmt.Errorf("%w: sender email is required", ErrSendFailed)
	}
	return &postmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   senderEmail,
	}, nil
}

func (s *postmarkSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		ReplyTo:  msg.ReplyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.BodyHTML,
		TextBody: msg.BodyText,
		// Opens are tracked by our own pixel, not Postmark's, so the
		// token state machine sees them.
		TrackOpens: false,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("%w: postmark error %d: %s", ErrSendFailed, resp.ErrorCode, resp.Message)
	}
	return nil
}
