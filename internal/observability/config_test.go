package observability

import (
	"testing"

	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production", OTelSamplingRatio: 4})

	assert.Equal(t, "invoicer", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestDebug(t *testing.T) {
	assert.True(t, LoadConfig(config.Config{Environment: "local"}).Debug())
	assert.True(t, LoadConfig(config.Config{Environment: "production", LogLevel: "debug"}).Debug())
}
