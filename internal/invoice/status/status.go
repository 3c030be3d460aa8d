// Package status holds the invoice lifecycle state machine.
package status

import (
	"fmt"
	"time"

	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
)

// Trigger identifies what caused a transition.
type Trigger string

const (
	TriggerUser       Trigger = "user"
	TriggerClientView Trigger = "client_view"
	TriggerMarkPaid   Trigger = "mark_paid"
	TriggerTime       Trigger = "time"
)

var transitions = map[invoicedomain.InvoiceStatus][]invoicedomain.InvoiceStatus{
	invoicedomain.InvoiceStatusDraft: {
		invoicedomain.InvoiceStatusSent,
		invoicedomain.InvoiceStatusCancelled,
	},
	invoicedomain.InvoiceStatusSent: {
		invoicedomain.InvoiceStatusViewed,
		invoicedomain.InvoiceStatusPaid,
		invoicedomain.InvoiceStatusOverdue,
		invoicedomain.InvoiceStatusCancelled,
	},
	invoicedomain.InvoiceStatusViewed: {
		invoicedomain.InvoiceStatusPaid,
		invoicedomain.InvoiceStatusOverdue,
		invoicedomain.InvoiceStatusCancelled,
	},
	invoicedomain.InvoiceStatusOverdue: {
		invoicedomain.InvoiceStatusPaid,
	},
}

// Each target state is reachable through exactly one trigger.
var triggers = map[invoicedomain.InvoiceStatus]Trigger{
	invoicedomain.InvoiceStatusSent:      TriggerUser,
	invoicedomain.InvoiceStatusCancelled: TriggerUser,
	invoicedomain.InvoiceStatusViewed:    TriggerClientView,
	invoicedomain.InvoiceStatusPaid:      TriggerMarkPaid,
	invoicedomain.InvoiceStatusOverdue:   TriggerTime,
}

// Allowed returns the states reachable from s.
func Allowed(s invoicedomain.InvoiceStatus) []invoicedomain.InvoiceStatus {
	out := make([]invoicedomain.InvoiceStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to invoicedomain.InvoiceStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TriggerFor returns the trigger that owns transitions into to.
func TriggerFor(to invoicedomain.InvoiceStatus) (Trigger, bool) {
	t, ok := triggers[to]
	return t, ok
}

// Transition validates from -> to for the given trigger.
func Transition(from, to invoicedomain.InvoiceStatus, trigger Trigger) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", invoicedomain.ErrInvalidStateTransition, from, to)
	}
	if expected, ok := triggers[to]; !ok || expected != trigger {
		return fmt.Errorf("%w: %s -> %s is not a %s action", invoicedomain.ErrInvalidStateTransition, from, to, trigger)
	}
	return nil
}

// IsTerminal reports states with no outgoing transitions.
func IsTerminal(s invoicedomain.InvoiceStatus) bool {
	return len(transitions[s]) == 0
}

func CanEdit(s invoicedomain.InvoiceStatus) bool {
	return s == invoicedomain.InvoiceStatusDraft
}

func CanDelete(s invoicedomain.InvoiceStatus) bool {
	return s == invoicedomain.InvoiceStatusDraft
}

// GuardEdit fails with ErrInvalidStateTransition outside draft.
func GuardEdit(s invoicedomain.InvoiceStatus) error {
	if !CanEdit(s) {
		return fmt.Errorf("%w: invoice in status %s can no longer be edited", invoicedomain.ErrInvalidStateTransition, s)
	}
	return nil
}

// GuardDelete fails with ErrInvalidStateTransition outside draft.
func GuardDelete(s invoicedomain.InvoiceStatus) error {
	if !CanDelete(s) {
		return fmt.Errorf("%w: invoice in status %s can no longer be deleted", invoicedomain.ErrInvalidStateTransition, s)
	}
	return nil
}

// IsPastDue is the overdue sweep predicate: a sent or viewed invoice, unpaid,
// whose due date is strictly before now.
func IsPastDue(inv invoicedomain.Invoice, now time.Time) bool {
	if inv.Status != invoicedomain.InvoiceStatusSent && inv.Status != invoicedomain.InvoiceStatusViewed {
		return false
	}
	if inv.PaidDate != nil {
		return false
	}
	return inv.DueDate.Before(now)
}
