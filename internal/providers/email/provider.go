package email

import (
	"context"
	"errors"
)

var (
	ErrNoRecipients  = errors.New("email_no_recipients")
	ErrNotConfigured = errors.New("email_provider_not_configured")
)

type Provider interface {
	Name() string
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Name() string { return "noop" }

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func recipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
