package email

import (
	"github.com/smallbiznis/invoicer/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	switch cfg.Email.Provider {
	case config.EmailProviderSMTP:
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
	case config.EmailProviderSendGrid:
		if cfg.Email.SendGridAPIKey == "" {
			log.Warn("sendgrid selected without SENDGRID_API_KEY, email delivery disabled")
			return &NoOpProvider{}
		}
		return NewSendGrid(cfg.Email.SendGridAPIKey, cfg.Email.From, cfg.Email.FromName)
	default:
		return &NoOpProvider{}
	}
}
