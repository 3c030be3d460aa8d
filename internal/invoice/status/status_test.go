package status

import (
	"testing"
	"time"

	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[invoicedomain.InvoiceStatus][]invoicedomain.InvoiceStatus{
		invoicedomain.InvoiceStatusDraft:     {invoicedomain.InvoiceStatusSent, invoicedomain.InvoiceStatusCancelled},
		invoicedomain.InvoiceStatusSent:      {invoicedomain.InvoiceStatusViewed, invoicedomain.InvoiceStatusPaid, invoicedomain.InvoiceStatusOverdue, invoicedomain.InvoiceStatusCancelled},
		invoicedomain.InvoiceStatusViewed:    {invoicedomain.InvoiceStatusPaid, invoicedomain.InvoiceStatusOverdue, invoicedomain.InvoiceStatusCancelled},
		invoicedomain.InvoiceStatusOverdue:   {invoicedomain.InvoiceStatusPaid},
		invoicedomain.InvoiceStatusPaid:      nil,
		invoicedomain.InvoiceStatusCancelled: nil,
	}

	for _, from := range invoicedomain.Statuses {
		for _, to := range invoicedomain.Statuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionRequiresMatchingTrigger(t *testing.T) {
	require.NoError(t, Transition(invoicedomain.InvoiceStatusDraft, invoicedomain.InvoiceStatusSent, TriggerUser))
	require.NoError(t, Transition(invoicedomain.InvoiceStatusSent, invoicedomain.InvoiceStatusViewed, TriggerClientView))
	require.NoError(t, Transition(invoicedomain.InvoiceStatusOverdue, invoicedomain.InvoiceStatusPaid, TriggerMarkPaid))
	require.NoError(t, Transition(invoicedomain.InvoiceStatusViewed, invoicedomain.InvoiceStatusOverdue, TriggerTime))

	err := Transition(invoicedomain.InvoiceStatusSent, invoicedomain.InvoiceStatusOverdue, TriggerUser)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	err = Transition(invoicedomain.InvoiceStatusPaid, invoicedomain.InvoiceStatusCancelled, TriggerUser)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	err = Transition(invoicedomain.InvoiceStatusDraft, invoicedomain.InvoiceStatusPaid, TriggerMarkPaid)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)
}

func TestGuardsRejectEveryNonDraftStatus(t *testing.T) {
	for _, s := range invoicedomain.Statuses {
		if s == invoicedomain.InvoiceStatusDraft {
			assert.NoError(t, GuardEdit(s))
			assert.NoError(t, GuardDelete(s))
			continue
		}
		assert.ErrorIs(t, GuardEdit(s), invoicedomain.ErrInvalidStateTransition, string(s))
		assert.ErrorIs(t, GuardDelete(s), invoicedomain.ErrInvalidStateTransition, string(s))
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(invoicedomain.InvoiceStatusPaid))
	assert.True(t, IsTerminal(invoicedomain.InvoiceStatusCancelled))
	assert.False(t, IsTerminal(invoicedomain.InvoiceStatusOverdue))
}

func TestIsPastDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	paid := now.Add(-time.Hour)

	cases := []struct {
		name string
		inv  invoicedomain.Invoice
		want bool
	}{
		{"sent past due", invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusSent, DueDate: now.AddDate(0, 0, -1)}, true},
		{"viewed past due", invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusViewed, DueDate: now.AddDate(0, 0, -1)}, true},
		{"due exactly now", invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusSent, DueDate: now}, false},
		{"draft", invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusDraft, DueDate: now.AddDate(0, 0, -1)}, false},
		{"paid date set", invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusSent, DueDate: now.AddDate(0, 0, -1), PaidDate: &paid}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPastDue(tc.inv, now))
		})
	}
}
