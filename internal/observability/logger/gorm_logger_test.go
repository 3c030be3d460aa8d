package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("UPDATE businesses SET invoice_next_number = invoice_next_number + 1"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestGormLoggerConfigFor(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLoggerConfigFor("debug", true).Level)
	assert.Equal(t, gormlogger.Warn, GormLoggerConfigFor("info", false).Level)
	assert.Equal(t, gormlogger.Silent, GormLoggerConfigFor("off", false).Level)
}

func TestParamsFilter(t *testing.T) {
	quiet := NewGormLogger(GormLoggerConfigFor("info", false))
	_, params := quiet.ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Nil(t, params)

	verbose := NewGormLogger(GormLoggerConfigFor("debug", true))
	_, params = verbose.ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Equal(t, []interface{}{"secret"}, params)
}
