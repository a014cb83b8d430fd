package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taimast/multi-merchant/internal/domain"
	"github.com/taimast/multi-merchant/internal/service"
)

type memStore struct {
	invoices []*domain.Invoice
}

func (s *memStore) Insert(_ context.Context, inv *domain.Invoice) error {
	inv.ID = int64(len(s.invoices) + 1)
	s.invoices = append(s.invoices, inv)
	return nil
}

func (s *memStore) Pending(_ context.Context) ([]*domain.Invoice, error) { return nil, nil }

func (s *memStore) LastPending(_ context.Context, _ int64, _ decimal.Decimal, _ domain.Currency, _ domain.MerchantID) (*domain.Invoice, error) {
	return nil, nil
}

func (s *memStore) ByInvoiceID(_ context.Context, merchantID domain.MerchantID, invoiceID string) (*domain.Invoice, error) {
	for _, inv := range s.invoices {
		if inv.Merchant == merchantID && inv.InvoiceID == invoiceID {
			return inv, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, status domain.Status) error {
	for _, inv := range s.invoices {
		if inv.ID == id {
			inv.Status = status
			return nil
		}
	}
	return domain.ErrInvoiceNotFound
}

func (s *memStore) MarkExpired(_ context.Context) (int64, error) { return 0, nil }

const succeededBody = `{
	"type": "notification",
	"event": "payment.succeeded",
	"object": {
		"id": "pay-1",
		"status": "succeeded",
		"paid": true,
		"amount": {"value": "250.00", "currency": "RUB"}
	}
}`

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(succeededBody))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, n.Event)
	assert.Equal(t, "pay-1", n.Object.ID)
	assert.True(t, n.Object.Paid)
	// Flags default false when the provider omits them.
	assert.False(t, n.Object.Test)
	assert.False(t, n.Object.Refundable)
}

func TestParseNotificationMissingID(t *testing.T) {
	_, err := ParseNotification([]byte(`{"event":"payment.succeeded","object":{}}`))
	var mapping *domain.MappingError
	require.ErrorAs(t, err, &mapping)
}

func webhookFixture(t *testing.T) (*memStore, http.Handler) {
	t.Helper()
	store := &memStore{}
	require.NoError(t, store.Insert(context.Background(), &domain.Invoice{
		UserID:    42,
		Amount:    decimal.NewFromInt(250),
		Currency:  domain.CurrencyRUB,
		InvoiceID: "pay-1",
		Status:    domain.StatusPending,
		Merchant:  domain.MerchantYooKassa,
		ExpireAt:  time.Now().Add(time.Hour),
	}))
	svc := service.NewPaymentService(store, nil)
	return store, Logging(Recover(YooKassaHandler(svc)))
}

func TestYooKassaHandlerConfirmsPayment(t *testing.T) {
	store, handler := webhookFixture(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(succeededBody)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusSuccess, store.invoices[0].Status)
}

func TestYooKassaHandlerDuplicateNotification(t *testing.T) {
	store, handler := webhookFixture(t)

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(succeededBody)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, domain.StatusSuccess, store.invoices[0].Status)
}

func TestYooKassaHandlerAcksTerminalInvoice(t *testing.T) {
	store, handler := webhookFixture(t)
	store.invoices[0].Status = domain.StatusExpired

	// Late notification for an already-swept invoice: acknowledge so the
	// sender stops redelivering, without reopening the terminal state.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(succeededBody)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusExpired, store.invoices[0].Status)
}

func TestYooKassaHandlerIgnoresOtherEvents(t *testing.T) {
	store, handler := webhookFixture(t)

	body := strings.Replace(succeededBody, EventPaymentSucceeded, EventPaymentCanceled, 1)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusPending, store.invoices[0].Status)
}

func TestYooKassaHandlerUnknownInvoice(t *testing.T) {
	_, handler := webhookFixture(t)

	body := strings.Replace(succeededBody, "pay-1", "pay-unknown", 1)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestYooKassaHandlerRejectsGet(t *testing.T) {
	_, handler := webhookFixture(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/yookassa", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
