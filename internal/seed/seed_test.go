package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/invoicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultBusinessIsIdempotent(t *testing.T) {
	db := invoicetest.NewDB(t)

	require.NoError(t, EnsureDefaultBusiness(db, 1000))

	// Simulate invoices having been issued since the first run.
	require.NoError(t, db.Exec(`UPDATE businesses SET invoice_next_number = 12 WHERE id = ?`, 1000).Error)
	require.NoError(t, EnsureDefaultBusiness(db, 1000))

	var business businessdomain.Business
	require.NoError(t, db.First(&business, "id = ?", snowflake.ID(1000)).Error)
	assert.Equal(t, "INV", business.InvoicePrefix)
	assert.Equal(t, int64(12), business.InvoiceNextNumber)

	var clients int64
	require.NoError(t, db.Model(&clientdomain.Client{}).Where("business_id = ?", 1000).Count(&clients).Error)
	assert.Equal(t, int64(1), clients)
}

func TestEnsureDefaultBusinessRejectsInvalidID(t *testing.T) {
	db := invoicetest.NewDB(t)
	assert.Error(t, EnsureDefaultBusiness(db, 0))
	assert.Error(t, EnsureDefaultBusiness(nil, 1))
}
