// pkg/mailer/dev_sender.go
package mailer

import (
	"context"

	"go.uber.org/zap"
)

// devSender logs the login link instead of sending it. Used whenever
// Postmark tokens are not configured.
type devSender struct {
	log *zap.SugaredLogger
}

func NewDevSender(log *zap.SugaredLogger) Sender {
	return &devSender{log: log}
}

func (d *devSender) Send(ctx context.Context, msg Message) error {
	d.log.Infow("login email (dev sender)",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag,
		"body", msg.BodyText,
	)
	return nil
}
