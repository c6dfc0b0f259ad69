// Package notify holds the outbound delivery collaborators: SMTP email and
// the Slack ops-channel mirror.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/schedule"
	"gopkg.in/gomail.v2"
)

type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	From     string
	Password string
}

// EmailNotifier delivers over SMTP via gomail. Recipients are dialed one at
// a time so a bad address fails alone instead of sinking the whole batch.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.Password),
		from:   cfg.From,
	}
}

// Deliver sends the artifact to every recipient, reporting each outcome
// individually.
func (n *EmailNotifier) Deliver(ctx context.Context, recipients []string, subject, htmlBody string, attachment *models.Artifact) []schedule.DeliveryResult {
	results := make([]schedule.DeliveryResult, 0, len(recipients))
	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			results = append(results, schedule.DeliveryResult{Recipient: recipient, Err: err})
			continue
		}
		results = append(results, schedule.DeliveryResult{
			Recipient: recipient,
			Err:       n.send([]string{recipient}, subject, htmlBody, attachment),
		})
	}
	return results
}

// Send dispatches a plain notification message with no attachment.
func (n *EmailNotifier) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.send(to, subject, htmlBody, nil)
}

func (n *EmailNotifier) send(to []string, subject, htmlBody string, attachment *models.Artifact) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if attachment != nil {
		m.Attach(attachment.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(attachment.Bytes))
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {attachment.ContentType},
			}),
		)
	}

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
