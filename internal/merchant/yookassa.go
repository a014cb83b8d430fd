package merchant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/taimast/multi-merchant/internal/domain"
)

const (
	yooKassaCreateURL    = "https://api.yookassa.ru/v3/payments"
	yooKassaDefaultEmail = "some@gmail.com"
)

// YooKassa authenticates with HTTP Basic shop_id:secret_key and requires an
// Idempotence-Key header per create. The provider mandates a structured
// receipt payload with at least one line item. A payment is paid when its
// `paid` boolean is set; the field defaults to false when absent.
type YooKassa struct {
	cfg       Config
	returnURL string
	session   *session
}

func newYooKassa(cfg Config) (Merchant, error) {
	if err := cfg.requireAPIKey(); err != nil {
		return nil, err
	}
	if err := cfg.requireShopID(); err != nil {
		return nil, err
	}
	if cfg.CreateURL == "" {
		cfg.CreateURL = yooKassaCreateURL
	}
	if cfg.Email == "" {
		cfg.Email = yooKassaDefaultEmail
	}
	returnURL := cfg.ReturnURL
	if returnURL == "" {
		returnURL = "https://t.me/"
	}
	m := &YooKassa{cfg: cfg, returnURL: returnURL}
	m.session = newSession(m.ID(), m.headers)
	return m, nil
}

func (m *YooKassa) ID() domain.MerchantID {
	return domain.MerchantYooKassa
}

func (m *YooKassa) Close() error {
	return m.session.close()
}

func (m *YooKassa) headers() http.Header {
	credentials := base64.StdEncoding.EncodeToString(
		[]byte(m.cfg.ShopID + ":" + m.cfg.APIKey.Reveal()),
	)
	h := http.Header{}
	h.Set("Authorization", "Basic "+credentials)
	return h
}

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type yooItem struct {
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	Amount         yooAmount `json:"amount"`
	VatCode        int       `json:"vat_code"`
	PaymentSubject string    `json:"payment_subject"`
	PaymentMode    string    `json:"payment_mode"`
}

type yooReceipt struct {
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Items []yooItem `json:"items"`
}

type yooPaymentRequest struct {
	Amount       yooAmount        `json:"amount"`
	Description  string           `json:"description,omitempty"`
	Confirmation *yooConfirmation `json:"confirmation,omitempty"`
	Capture      bool             `json:"capture"`
	Receipt      *yooReceipt      `json:"receipt,omitempty"`
}

type yooPayment struct {
	ID           string           `json:"id"`
	Status       string           `json:"status"`
	Paid         bool             `json:"paid"` // absent means false
	Amount       yooAmount        `json:"amount"`
	Confirmation *yooConfirmation `json:"confirmation"`
	Type         string           `json:"type"`
	Description  string           `json:"description"`
}

func (m *YooKassa) buildRequest(req CreateRequest) yooPaymentRequest {
	amount := yooAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency.String()}

	receipt := &yooReceipt{}
	receipt.Customer.Email = m.cfg.Email
	receipt.Items = []yooItem{{
		Description:    req.description(),
		Quantity:       1,
		Amount:         amount,
		VatCode:        1,
		PaymentSubject: "commodity",
		PaymentMode:    "full_payment",
	}}

	return yooPaymentRequest{
		Amount:       amount,
		Description:  req.description(),
		Confirmation: &yooConfirmation{Type: "redirect", ReturnURL: m.returnURL},
		Capture:      true,
		Receipt:      receipt,
	}
}

func (m *YooKassa) parsePayment(raw []byte, status int) (*yooPayment, error) {
	if status >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("status %d", status)}
	}

	var payment yooPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode response: %w", err)}
	}
	// Business errors come back as {"type": "error", ...}.
	if payment.Type == "error" || status >= http.StatusBadRequest {
		return nil, &domain.ProviderError{Merchant: m.ID(), Message: payment.Description, Raw: raw}
	}
	if payment.ID == "" {
		return nil, &domain.MappingError{Merchant: m.ID(), Field: "id"}
	}
	return &payment, nil
}

func (m *YooKassa) CreateInvoice(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	if !req.Currency.Fiat() {
		return nil, fmt.Errorf("%w: %s does not accept %s", domain.ErrUnsupportedCurrency, m.ID(), req.Currency)
	}

	payload, err := json.Marshal(m.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	extra := http.Header{}
	extra.Set("Idempotence-Key", uuid.New().String())

	status, raw, err := m.session.requestJSON(ctx, http.MethodPost, m.cfg.CreateURL, payload, extra)
	if err != nil {
		return nil, err
	}

	payment, err := m.parsePayment(raw, status)
	if err != nil {
		return nil, err
	}
	if payment.Confirmation == nil || payment.Confirmation.ConfirmationURL == "" {
		return nil, &domain.MappingError{Merchant: m.ID(), Field: "confirmation.confirmation_url"}
	}

	inv := newInvoice(m.ID(), req)
	inv.InvoiceID = payment.ID
	inv.PayURL = payment.Confirmation.ConfirmationURL
	inv.Email = m.cfg.Email
	return inv, nil
}

func (m *YooKassa) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	payment, err := m.getPayment(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	return payment.Paid, nil
}

func (m *YooKassa) getPayment(ctx context.Context, invoiceID string) (*yooPayment, error) {
	status, raw, err := m.session.requestJSON(ctx, http.MethodGet, m.paymentURL(invoiceID), nil, nil)
	if err != nil {
		return nil, err
	}
	return m.parsePayment(raw, status)
}

// Cancel voids a pending payment on the provider side.
func (m *YooKassa) Cancel(ctx context.Context, invoiceID string) error {
	extra := http.Header{}
	extra.Set("Idempotence-Key", uuid.New().String())

	status, raw, err := m.session.requestJSON(ctx, http.MethodPost, m.paymentURL(invoiceID)+"/cancel", []byte("{}"), extra)
	if err != nil {
		return err
	}
	_, err = m.parsePayment(raw, status)
	return err
}

func (m *YooKassa) paymentURL(invoiceID string) string {
	return strings.TrimSuffix(m.cfg.CreateURL, "/") + "/" + invoiceID
}
