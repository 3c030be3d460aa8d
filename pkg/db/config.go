package db

import (
	"time"

	"github.com/smallbiznis/invoicer/internal/config"
)

// PoolConfig holds connection pool limits. Durations are configured in seconds.
type PoolConfig struct {
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func poolConfigFrom(cfg config.Config) PoolConfig {
	pool := PoolConfig{
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY storms.
	if cfg.DBType == "sqlite" {
		pool.MaxOpenConn = 1
		pool.MaxIdleConn = 1
	}
	return pool
}
