package merchant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taimast/multi-merchant/internal/domain"
)

func newCryptoPayTest(t *testing.T, handler http.Handler) *CryptoPay {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m, err := newCryptoPay(Config{
		Merchant:  domain.MerchantCryptoPay,
		APIKey:    NewSecret("app-token"),
		CreateURL: server.URL + "/api/createInvoice",
		StatusURL: server.URL + "/api/getInvoices",
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m.(*CryptoPay)
}

func TestCryptoPayCreateInvoice(t *testing.T) {
	m := newCryptoPayTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/createInvoice", r.URL.Path)
		require.Equal(t, "app-token", r.Header.Get("Crypto-Pay-API-Token"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "USDT", req["asset"])
		assert.Equal(t, "0.5", req["amount"])

		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"invoice_id":      12345,
				"status":          "active",
				"bot_invoice_url": "https://t.me/CryptoBot?start=IV12345",
			},
		})
	}))

	inv, err := m.CreateInvoice(context.Background(), CreateRequest{
		UserID:   7,
		Amount:   decimal.RequireFromString("0.5"),
		Currency: domain.CurrencyUSDT,
	})
	require.NoError(t, err)

	assert.Equal(t, "12345", inv.InvoiceID)
	assert.Equal(t, "https://t.me/CryptoBot?start=IV12345", inv.PayURL)
	assert.Equal(t, domain.StatusPending, inv.Status)
	assert.Equal(t, domain.MerchantCryptoPay, inv.Merchant)
}

func TestCryptoPayCreateInvoiceFiatRejected(t *testing.T) {
	m := newCryptoPayTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for unsupported currency")
	}))

	_, err := m.CreateInvoice(context.Background(), CreateRequest{
		UserID:   7,
		Amount:   decimal.NewFromInt(10),
		Currency: domain.CurrencyUSD,
	})
	require.ErrorIs(t, err, domain.ErrUnsupportedCurrency)
}

func TestCryptoPayCreateInvoiceProviderError(t *testing.T) {
	m := newCryptoPayTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false,
			"error": map[string]any{
				"code": 400,
				"name": "AMOUNT_TOO_SMALL",
			},
		})
	}))

	_, err := m.CreateInvoice(context.Background(), CreateRequest{
		UserID:   7,
		Amount:   decimal.RequireFromString("0.0001"),
		Currency: domain.CurrencyTON,
	})

	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Contains(t, provider.Message, "AMOUNT_TOO_SMALL")
}

func TestCryptoPayIsPaid(t *testing.T) {
	paidItems := []any{}
	m := newCryptoPayTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/getInvoices", r.URL.Path)
		assert.Equal(t, "12345", r.URL.Query().Get("invoice_ids"))
		assert.Equal(t, "paid", r.URL.Query().Get("status"))

		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"items": paidItems},
		})
	}))

	// No invoice matches the id with status=paid.
	paid, err := m.IsPaid(context.Background(), "12345")
	require.NoError(t, err)
	assert.False(t, paid)

	paidItems = []any{map[string]any{"invoice_id": 12345, "status": "paid"}}
	paid, err = m.IsPaid(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestCryptoPayIsPaidTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	m, err := newCryptoPay(Config{
		Merchant:  domain.MerchantCryptoPay,
		APIKey:    NewSecret("app-token"),
		CreateURL: server.URL + "/api/createInvoice",
		StatusURL: server.URL + "/api/getInvoices",
	})
	require.NoError(t, err)
	server.Close()

	_, err = m.(*CryptoPay).IsPaid(context.Background(), "12345")
	var transport *domain.TransportError
	require.ErrorAs(t, err, &transport)
}
