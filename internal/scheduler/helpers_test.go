package scheduler

import (
	"testing"

	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func statuses(t *testing.T, db *gorm.DB) []invoicedomain.InvoiceStatus {
	t.Helper()
	var out []invoicedomain.InvoiceStatus
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Order("id ASC").Pluck("status", &out).Error)
	return out
}
