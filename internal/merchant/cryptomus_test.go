package merchant

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taimast/multi-merchant/internal/domain"
)

func newCryptomusTest(t *testing.T, handler http.Handler) *Cryptomus {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m, err := newCryptomus(Config{
		Merchant:  domain.MerchantCryptomus,
		ShopID:    "merchant-uuid",
		APIKey:    NewSecret("payment-key"),
		CreateURL: server.URL + "/payment",
		StatusURL: server.URL + "/payment/info",
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m.(*Cryptomus)
}

func TestCryptomusCreateInvoice(t *testing.T) {
	var gotSign, gotMerchant string
	var gotBody []byte

	m := newCryptomusTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment", r.URL.Path)
		gotMerchant = r.Header.Get("merchant")
		gotSign = r.Header.Get("sign")
		gotBody, _ = io.ReadAll(r.Body)

		var req map[string]string
		require.NoError(t, json.Unmarshal(gotBody, &req))
		json.NewEncoder(w).Encode(map[string]any{
			"state": 0,
			"result": map[string]any{
				"uuid":     "8b03432e",
				"order_id": req["order_id"],
				"url":      "https://pay.cryptomus.com/pay/8b03432e",
			},
		})
	}))

	inv, err := m.CreateInvoice(context.Background(), CreateRequest{
		UserID:   42,
		Amount:   decimal.NewFromFloat(10.0),
		Currency: domain.CurrencyUSD,
	})
	require.NoError(t, err)

	assert.Equal(t, "merchant-uuid", gotMerchant)
	encoded := base64.StdEncoding.EncodeToString(gotBody)
	wantSign := md5.Sum([]byte(encoded + "payment-key"))
	assert.Equal(t, hex.EncodeToString(wantSign[:]), gotSign)

	assert.Equal(t, int64(42), inv.UserID)
	assert.Equal(t, domain.CurrencyUSD, inv.Currency)
	assert.Equal(t, domain.StatusPending, inv.Status)
	assert.Equal(t, domain.MerchantCryptomus, inv.Merchant)
	assert.Equal(t, "https://pay.cryptomus.com/pay/8b03432e", inv.PayURL)
	// The correlation uuid the adapter generated is the invoice reference.
	assert.Equal(t, inv.OrderID, inv.InvoiceID)
	assert.NotEmpty(t, inv.InvoiceID)
	assert.True(t, inv.ExpireAt.After(time.Now()))
}

func TestCryptomusCreateInvoiceKeepsCryptoPrecision(t *testing.T) {
	var gotAmount string
	m := newCryptomusTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotAmount = req["amount"]
		json.NewEncoder(w).Encode(map[string]any{
			"state": 0,
			"result": map[string]any{
				"order_id": req["order_id"],
				"url":      "https://pay.cryptomus.com/pay/8b03432e",
			},
		})
	}))

	_, err := m.CreateInvoice(context.Background(), CreateRequest{
		UserID:   42,
		Amount:   decimal.RequireFromString("0.0005"),
		Currency: domain.CurrencyBTC,
	})
	require.NoError(t, err)

	// Sub-cent crypto amounts must go over the wire unrounded.
	assert.Equal(t, "0.0005", gotAmount)
}

func TestCryptomusCreateInvoiceRejected(t *testing.T) {
	m := newCryptomusTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"state":   1,
			"message": "The amount is too small",
		})
	}))

	_, err := m.CreateInvoice(context.Background(), CreateRequest{
		UserID:   42,
		Amount:   decimal.NewFromFloat(0.001),
		Currency: domain.CurrencyUSD,
	})

	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.MerchantCryptomus, provider.Merchant)
	assert.Contains(t, provider.Message, "too small")
	assert.Contains(t, string(provider.Raw), "too small")
}

func TestCryptomusIsPaid(t *testing.T) {
	final := false
	m := newCryptomusTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/info", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"state": 0,
			"result": map[string]any{
				"order_id": "order-1",
				"is_final": final,
			},
		})
	}))

	paid, err := m.IsPaid(context.Background(), "order-1")
	require.NoError(t, err)
	assert.False(t, paid)

	final = true
	paid, err = m.IsPaid(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestCryptomusIsPaidTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	m, err := newCryptomus(Config{
		Merchant:  domain.MerchantCryptomus,
		ShopID:    "merchant-uuid",
		APIKey:    NewSecret("payment-key"),
		CreateURL: server.URL + "/payment",
		StatusURL: server.URL + "/payment/info",
	})
	require.NoError(t, err)
	server.Close()

	_, err = m.(*Cryptomus).IsPaid(context.Background(), "order-1")
	var transport *domain.TransportError
	require.ErrorAs(t, err, &transport, "network failure must not read as unpaid")
}
