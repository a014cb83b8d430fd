package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/taimast/multi-merchant/internal/domain"
)

const cryptoPayBaseURL = "https://pay.crypt.bot/api"

// CryptoPay talks to the Crypto Bot invoice API with a bearer app token.
// Invoice ids are provider-issued; the paid check asks the provider for
// invoices matching the id with status=paid and treats a non-empty result as
// paid.
type CryptoPay struct {
	cfg     Config
	session *session
}

func newCryptoPay(cfg Config) (Merchant, error) {
	if err := cfg.requireAPIKey(); err != nil {
		return nil, err
	}
	if cfg.CreateURL == "" {
		cfg.CreateURL = cryptoPayBaseURL + "/createInvoice"
	}
	if cfg.StatusURL == "" {
		cfg.StatusURL = cryptoPayBaseURL + "/getInvoices"
	}
	m := &CryptoPay{cfg: cfg}
	m.session = newSession(m.ID(), m.headers)
	return m, nil
}

func (m *CryptoPay) ID() domain.MerchantID {
	return domain.MerchantCryptoPay
}

func (m *CryptoPay) Close() error {
	return m.session.close()
}

func (m *CryptoPay) headers() http.Header {
	h := http.Header{}
	h.Set("Crypto-Pay-API-Token", m.cfg.APIKey.Reveal())
	return h
}

type cryptoPayInvoice struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	PayURL    string `json:"pay_url"`
	BotURL    string `json:"bot_invoice_url"`
}

type cryptoPayError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

func (m *CryptoPay) decode(raw []byte, result any) error {
	envelope := struct {
		OK     bool            `json:"ok"`
		Error  *cryptoPayError `json:"error"`
		Result json.RawMessage `json:"result"`
	}{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if !envelope.OK {
		msg := "request rejected"
		if envelope.Error != nil {
			msg = fmt.Sprintf("%d %s", envelope.Error.Code, envelope.Error.Name)
		}
		return &domain.ProviderError{Merchant: m.ID(), Message: msg, Raw: raw}
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

func (m *CryptoPay) CreateInvoice(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	if !req.Currency.Crypto() {
		return nil, fmt.Errorf("%w: %s does not accept %s", domain.ErrUnsupportedCurrency, m.ID(), req.Currency)
	}

	payload, err := json.Marshal(map[string]string{
		"asset":       req.Currency.String(),
		"amount":      req.Amount.String(),
		"description": req.description(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	status, raw, err := m.session.requestJSON(ctx, http.MethodPost, m.cfg.CreateURL, payload, nil)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("status %d", status)}
	}

	var created cryptoPayInvoice
	if err := m.decode(raw, &created); err != nil {
		return nil, err
	}
	if created.InvoiceID == 0 {
		return nil, &domain.MappingError{Merchant: m.ID(), Field: "result.invoice_id"}
	}

	payURL := created.BotURL
	if payURL == "" {
		payURL = created.PayURL
	}

	inv := newInvoice(m.ID(), req)
	inv.InvoiceID = strconv.FormatInt(created.InvoiceID, 10)
	inv.PayURL = payURL
	return inv, nil
}

func (m *CryptoPay) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	query := url.Values{}
	query.Set("invoice_ids", invoiceID)
	query.Set("status", "paid")

	status, raw, err := m.session.requestJSON(ctx, http.MethodGet, m.cfg.StatusURL+"?"+query.Encode(), nil, nil)
	if err != nil {
		return false, err
	}
	if status >= http.StatusInternalServerError {
		return false, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("status %d", status)}
	}

	var result struct {
		Items []cryptoPayInvoice `json:"items"`
	}
	if err := m.decode(raw, &result); err != nil {
		return false, err
	}
	return len(result.Items) > 0, nil
}
