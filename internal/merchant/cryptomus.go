package merchant

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/taimast/multi-merchant/internal/domain"
)

const (
	cryptomusCreateURL = "https://api.cryptomus.com/v1/payment"
	cryptomusStatusURL = "https://api.cryptomus.com/v1/payment/info"
)

// Cryptomus authenticates with a merchant UUID (shop_id) plus a payment API
// key. Every request body is signed: md5(base64(body) + api_key). The adapter
// supplies its own uuid order_id and that order_id is the invoice reference;
// a payment counts as paid once the provider marks it final.
type Cryptomus struct {
	cfg     Config
	session *session
}

func newCryptomus(cfg Config) (Merchant, error) {
	if err := cfg.requireAPIKey(); err != nil {
		return nil, err
	}
	if err := cfg.requireShopID(); err != nil {
		return nil, err
	}
	if cfg.CreateURL == "" {
		cfg.CreateURL = cryptomusCreateURL
	}
	if cfg.StatusURL == "" {
		cfg.StatusURL = cryptomusStatusURL
	}
	m := &Cryptomus{cfg: cfg}
	m.session = newSession(m.ID(), nil)
	return m, nil
}

func (m *Cryptomus) ID() domain.MerchantID {
	return domain.MerchantCryptomus
}

func (m *Cryptomus) Close() error {
	return m.session.close()
}

// sign computes the Cryptomus request signature for a serialized body.
func (m *Cryptomus) sign(payload []byte) string {
	encoded := base64.StdEncoding.EncodeToString(payload)
	hash := md5.Sum([]byte(encoded + m.cfg.APIKey.Reveal()))
	return hex.EncodeToString(hash[:])
}

func (m *Cryptomus) signedHeaders(payload []byte) http.Header {
	h := http.Header{}
	h.Set("merchant", m.cfg.ShopID)
	h.Set("sign", m.sign(payload))
	return h
}

type cryptomusResult struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	IsFinal       bool   `json:"is_final"`
}

type cryptomusResponse struct {
	State   int             `json:"state"`
	Result  cryptomusResult `json:"result"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

func (m *Cryptomus) call(ctx context.Context, url string, body any) (*cryptomusResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	status, raw, err := m.session.requestJSON(ctx, http.MethodPost, url, payload, m.signedHeaders(payload))
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("status %d", status)}
	}

	var resp cryptomusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.State != 0 || status >= http.StatusBadRequest {
		msg := resp.Message
		if msg == "" {
			msg = string(resp.Errors)
		}
		return nil, &domain.ProviderError{Merchant: m.ID(), Message: msg, Raw: raw}
	}
	return &resp.Result, nil
}

func (m *Cryptomus) CreateInvoice(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	orderID := uuid.New().String()

	result, err := m.call(ctx, m.cfg.CreateURL, map[string]string{
		"amount":   req.Amount.String(),
		"currency": req.Currency.String(),
		"order_id": orderID,
	})
	if err != nil {
		return nil, err
	}
	if result.URL == "" {
		return nil, &domain.MappingError{Merchant: m.ID(), Field: "result.url"}
	}

	if result.OrderID == "" {
		// Some responses omit the echo; the correlation id is ours anyway.
		result.OrderID = orderID
	}

	inv := newInvoice(m.ID(), req)
	inv.InvoiceID = result.OrderID
	inv.OrderID = result.OrderID
	inv.PayURL = result.URL
	inv.ExtraData = map[string]string{"uuid": result.UUID}
	return inv, nil
}

func (m *Cryptomus) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	result, err := m.call(ctx, m.cfg.StatusURL, map[string]string{"order_id": invoiceID})
	if err != nil {
		return false, err
	}
	return result.IsFinal, nil
}
