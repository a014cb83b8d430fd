package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/taimast/multi-merchant/internal/domain"
)

const yooMoneyBaseURL = "https://yoomoney.ru"

// YooMoney routes payments into a personal wallet through the quickpay form.
// There is no provider-side invoice entity: the adapter generates a uuid
// label, attaches it to the quickpay request and later searches the account's
// operation history by that label. The most recent operation with status
// "success" means paid.
type YooMoney struct {
	cfg     Config
	baseURL string
	session *session

	mu       sync.Mutex
	receiver string // wallet number, fetched once from account-info
}

func newYooMoney(cfg Config) (Merchant, error) {
	if err := cfg.requireAPIKey(); err != nil {
		return nil, err
	}
	baseURL := cfg.CreateURL
	if baseURL == "" {
		baseURL = yooMoneyBaseURL
	}
	m := &YooMoney{cfg: cfg, baseURL: baseURL, receiver: cfg.Receiver}
	m.session = newSession(m.ID(), m.headers)
	return m, nil
}

func (m *YooMoney) ID() domain.MerchantID {
	return domain.MerchantYooMoney
}

func (m *YooMoney) Close() error {
	return m.session.close()
}

func (m *YooMoney) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+m.cfg.APIKey.Reveal())
	return h
}

// getReceiver returns the wallet number payments are addressed to, asking the
// provider for the account number on first use.
func (m *YooMoney) getReceiver(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.receiver != "" {
		return m.receiver, nil
	}

	status, raw, err := m.session.requestForm(ctx, http.MethodPost, m.baseURL+"/api/account-info", url.Values{}, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("account-info status %d", status)}
	}

	var info struct {
		Account string `json:"account"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode account-info: %w", err)}
	}
	if info.Account == "" {
		return "", &domain.MappingError{Merchant: m.ID(), Field: "account"}
	}
	m.receiver = info.Account
	return m.receiver, nil
}

func (m *YooMoney) CreateInvoice(ctx context.Context, req CreateRequest) (*domain.Invoice, error) {
	if req.Currency != domain.CurrencyRUB {
		return nil, fmt.Errorf("%w: %s accepts only RUB", domain.ErrUnsupportedCurrency, m.ID())
	}

	receiver, err := m.getReceiver(ctx)
	if err != nil {
		return nil, err
	}

	label := uuid.New().String()
	form := url.Values{}
	form.Set("receiver", receiver)
	form.Set("quickpay-form", "shop")
	form.Set("targets", req.description())
	form.Set("paymentType", "SB")
	form.Set("sum", req.Amount.String())
	form.Set("label", label)
	form.Set("comment", req.description())

	payURL, err := m.quickpayURL(ctx, form)
	if err != nil {
		return nil, err
	}

	inv := newInvoice(m.ID(), req)
	inv.InvoiceID = label
	inv.PayURL = payURL
	return inv, nil
}

// quickpayURL posts the quickpay form without following redirects and pulls
// the payment page location from the response. Some responses carry no
// Location header and embed the link in an HTML stub instead.
func (m *YooMoney) quickpayURL(ctx context.Context, form url.Values) (string, error) {
	location, raw, err := m.session.postFormLocation(ctx, m.baseURL+"/quickpay/confirm.xml", form)
	if err != nil {
		return "", err
	}
	if location != "" {
		return location, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("parse quickpay response: %w", err)}
	}
	if href, ok := doc.Find("a[href]").First().Attr("href"); ok && href != "" {
		return href, nil
	}
	if action, ok := doc.Find("form[action]").First().Attr("action"); ok && action != "" {
		return action, nil
	}
	return "", &domain.MappingError{Merchant: m.ID(), Field: "redirect location"}
}

type yooMoneyOperation struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Label       string `json:"label"`
}

func (m *YooMoney) IsPaid(ctx context.Context, invoiceID string) (bool, error) {
	operations, err := m.operations(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	return len(operations) > 0 && operations[0].Status == "success", nil
}

// operations searches the account history for operations labeled with the
// invoice id, most recent first.
func (m *YooMoney) operations(ctx context.Context, label string) ([]yooMoneyOperation, error) {
	form := url.Values{}
	form.Set("label", label)

	status, raw, err := m.session.requestForm(ctx, http.MethodPost, m.baseURL+"/api/operation-history", form, nil)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("status %d", status)}
	}

	var history struct {
		Error      string              `json:"error"`
		Operations []yooMoneyOperation `json:"operations"`
	}
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, &domain.TransportError{Merchant: m.ID(), Err: fmt.Errorf("decode history: %w", err)}
	}
	if history.Error != "" {
		return nil, &domain.ProviderError{Merchant: m.ID(), Message: history.Error, Raw: raw}
	}
	return history.Operations, nil
}
