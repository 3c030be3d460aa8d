package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFromConfigSelectsProvider(t *testing.T) {
	log := zap.NewNop()

	cfg := config.Config{}
	assert.Equal(t, "noop", NewFromConfig(cfg, log).Name())

	cfg.Email.Provider = config.EmailProviderSMTP
	assert.Equal(t, "smtp", NewFromConfig(cfg, log).Name())

	cfg.Email.Provider = config.EmailProviderSendGrid
	assert.Equal(t, "noop", NewFromConfig(cfg, log).Name())

	cfg.Email.SendGridAPIKey = "SG.key"
	assert.Equal(t, "sendgrid", NewFromConfig(cfg, log).Name())
}

func TestSMTPSend(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.test", Port: 2525, From: "billing@acme.test", FromName: "Acme"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	p.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Nil(t, a)
		assert.Equal(t, "billing@acme.test", from)
		return nil
	}

	err := p.Send(context.Background(), []string{"", "ap@globex.test"}, "Invoice INV-2024-00043", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "mail.test:2525", gotAddr)
	assert.Equal(t, []string{"ap@globex.test"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: Acme <billing@acme.test>\r\n"))
	assert.Contains(t, gotMsg, "To: ap@globex.test\r\n")
	assert.Contains(t, gotMsg, "Subject: Invoice INV-2024-00043\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>hi</p>"))
}

func TestSendRejectsMissingRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.test", Port: 25})
	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)

	sg := NewSendGrid("", "billing@acme.test", "")
	assert.ErrorIs(t, sg.Send(context.Background(), []string{"a@b.test"}, "s", "b"), ErrNotConfigured)
}
