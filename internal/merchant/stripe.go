package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/taimast/multi-merchant/internal/domain"
)

const stripeCreateURL = "https://api.stripe.com/v1/checkout/sessions"

// Stripe creates hosted checkout sessions with a secret bearer key. The
// session id is the invoice reference and the session is paid once its
// payment_status reaches the "paid" terminal string. Amounts go over the wire
// in minor units (cents), form-encoded.
type Stripe struct {
	cfg        Config
	successURL string
	cancelURL  string
	session    *session
}

func newStripe(cfg Config) (Merchant, error) {
	if err := cfg.requireAPIKey(); err != nil {
		return nil, err
	}
	if cfg.CreateURL == "" {
		cfg.CreateURL = stripeCreateURL
	}
	successURL := cfg.ReturnURL
	if successURL == "" {
		successURL = "https://example.com/success"
	}
	cancelURL := cfg.CancelURL
	if cancelURL == "" {
		cancelURL = "https://example.com/cancel"
	}
	m := &Stripe{cfg: cfg, successURL: successURL, cancelURL: cancelURL}
	m.session = newSession(m.ID(), m.headers)
	return m, nil
}

func (m *Stripe) ID() domain.MerchantID {
	return domain.MerchantStripe
}

func (m *Stripe) Close() error {
	return m.session.close()
}

func (m *Stripe) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+m.cfg.APIKey.Reveal())
	return h
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Error         *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (m *Stripe) parseSession(raw []byte, status int) (*stripeSession, error) {
	if status >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("status %d", status)}
	}

	var sess stripeSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if sess.Error != nil || status >= http.StatusBadRequest {
		msg := "request rejected"
		if sess.Error != nil {
			msg = sess.Error.Message
		}
		return nil, &domain.ProviderError{Merchant: m.ID(), Message: msg, Raw: raw}
	}
	if sess.ID == "" {
		return nil, &domain.MappingError{Merchant: m.ID(), Field: "id"}
	}
	return &sess, nil
}

func (m *Stripe) CreateInvoice(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	if !req.Currency.Fiat() {
		return nil, fmt.Errorf("%w: %s does not accept %s", domain.ErrUnsupportedCurrency, m.ID(), req.Currency)
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency.String()))
	form.Set("line_items[0][price_data][product_data][name]", req.description())
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(minorUnits(req.Amount), 10))
	form.Set("success_url", m.successURL)
	form.Set("cancel_url", m.cancelURL)

	status, raw, err := m.session.requestForm(ctx, http.MethodPost, m.cfg.CreateURL, form, nil)
	if err != nil {
		return nil, err
	}

	sess, err := m.parseSession(raw, status)
	if err != nil {
		return nil, err
	}
	if sess.URL == "" {
		return nil, &domain.MappingError{Merchant: m.ID(), Field: "url"}
	}

	inv := newInvoice(m.ID(), req)
	inv.InvoiceID = sess.ID
	inv.PayURL = sess.URL
	return inv, nil
}

func (m *Stripe) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	statusURL := m.cfg.StatusURL
	if statusURL == "" {
		statusURL = m.cfg.CreateURL
	}

	status, raw, err := m.session.requestJSON(ctx, http.MethodGet, strings.TrimSuffix(statusURL, "/")+"/"+invoiceID, nil, nil)
	if err != nil {
		return false, err
	}

	sess, err := m.parseSession(raw, status)
	if err != nil {
		return false, err
	}
	return sess.PaymentStatus == "paid", nil
}

// minorUnits converts a decimal major-unit amount to the integer minor units
// the card processor expects.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
