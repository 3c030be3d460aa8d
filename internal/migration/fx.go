package migration

import (
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Apply(conn); err != nil {
			return err
		}

		if cfg.DefaultBusinessID != 0 {
			if err := seed.EnsureDefaultBusiness(conn, cfg.DefaultBusinessID); err != nil {
				return err
			}
			log.Info("default business ready", zap.Int64("business_id", cfg.DefaultBusinessID))
		}
		return nil
	}),
)
