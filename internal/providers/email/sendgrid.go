package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridProvider struct {
	apiKey   string
	from     string
	fromName string
}

func NewSendGrid(apiKey, from, fromName string) *SendGridProvider {
	return &SendGridProvider{apiKey: apiKey, from: from, fromName: fromName}
}

func (p *SendGridProvider) Name() string { return "sendgrid" }

func (p *SendGridProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if p.apiKey == "" || p.from == "" {
		return ErrNotConfigured
	}
	to = recipients(to)
	if len(to) == 0 {
		return ErrNoRecipients
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(p.fromName, p.from))
	message.Subject = subject

	personalization := mail.NewPersonalization()
	for _, addr := range to {
		personalization.AddTos(mail.NewEmail("", addr))
	}
	message.AddPersonalizations(personalization)
	message.AddContent(mail.NewContent("text/html", htmlBody))

	response, err := sendgrid.NewSendClient(p.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}
	return nil
}
