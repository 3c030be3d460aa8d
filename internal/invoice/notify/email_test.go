package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return m.Called(ctx, to, subject, htmlBody).Error(0)
}

func sentInvoice() invoicedomain.InvoiceFull {
	return invoicedomain.InvoiceFull{
		Invoice: invoicedomain.Invoice{InvoiceNumber: "INV-2024-00043", Currency: "USD", Total: 45000},
		Items:   []invoicedomain.InvoiceItem{{Description: "Design", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(45000), Amount: 45000}},
	}
}

func TestInvoiceSentEmailsClient(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Send", mock.Anything, []string{"ap@globex.test"}, "Invoice INV-2024-00043 from Acme", mock.MatchedBy(func(body string) bool {
		return assert.Contains(t, body, "450.00 USD")
	})).Return(nil).Once()

	n := NewEmailNotifier(Params{Log: zap.NewNop(), Provider: provider, Renderer: render.NewRenderer()})
	err := n.InvoiceSent(context.Background(), sentInvoice(),
		businessdomain.Business{Name: "Acme"},
		clientdomain.Client{Name: "Globex", Email: " ap@globex.test "},
	)
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestInvoiceSentSkipsClientWithoutEmail(t *testing.T) {
	provider := &mockProvider{}
	n := NewEmailNotifier(Params{Log: zap.NewNop(), Provider: provider, Renderer: render.NewRenderer()})

	require.NoError(t, n.InvoiceSent(context.Background(), sentInvoice(), businessdomain.Business{}, clientdomain.Client{}))
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceSentWrapsProviderError(t *testing.T) {
	boom := errors.New("smtp down")
	provider := &mockProvider{}
	provider.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)

	n := NewEmailNotifier(Params{Log: zap.NewNop(), Provider: provider, Renderer: render.NewRenderer()})
	err := n.InvoiceSent(context.Background(), sentInvoice(), businessdomain.Business{Name: "Acme"}, clientdomain.Client{Email: "ap@globex.test"})
	assert.ErrorIs(t, err, boom)
}
