package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/taimast/multi-merchant/internal/domain"
	"github.com/taimast/multi-merchant/internal/merchant"
)

// InvoiceStore is the persistence collaborator the payment flow needs. The
// pgx-backed implementation lives in internal/repository.
type InvoiceStore interface {
	Insert(ctx context.Context, inv *domain.Invoice) error
	Pending(ctx context.Context) ([]*domain.Invoice, error)
	LastPending(ctx context.Context, userID int64, amount decimal.Decimal, currency domain.Currency, merchantID domain.MerchantID) (*domain.Invoice, error)
	ByInvoiceID(ctx context.Context, merchantID domain.MerchantID, invoiceID string) (*domain.Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error
	MarkExpired(ctx context.Context) (int64, error)
}

// Notifier receives invoice lifecycle events. Implementations must not block
// the payment flow; failures are theirs to log.
type Notifier interface {
	InvoicePaid(inv *domain.Invoice)
	InvoiceExpired(count int64)
}

// PaymentService drives the invoice lifecycle over any merchant adapter.
type PaymentService struct {
	store    InvoiceStore
	notifier Notifier
}

func NewPaymentService(store InvoiceStore, notifier Notifier) *PaymentService {
	return &PaymentService{store: store, notifier: notifier}
}

// CreateInvoice returns an invoice for the request, reusing an outstanding
// pending one for the same (user, amount, currency, merchant) before asking
// the provider for a new one. The dedup is best-effort: concurrent calls can
// still produce duplicate pending rows, which callers must tolerate.
func (s *PaymentService) CreateInvoice(ctx context.Context, m merchant.Merchant, req merchant.CreateRequest) (*domain.Invoice, error) {
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedCurrency, req.Currency)
	}

	existing, err := s.store.LastPending(ctx, req.UserID, req.Amount, req.Currency, m.ID())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.Debug("reusing pending invoice",
			"merchant", m.ID(), "user_id", req.UserID, "invoice_id", existing.InvoiceID)
		return existing, nil
	}

	inv, err := m.CreateInvoice(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, inv); err != nil {
		return nil, err
	}

	slog.Info("invoice created",
		"merchant", m.ID(), "user_id", req.UserID,
		"amount", req.Amount, "currency", req.Currency, "invoice_id", inv.InvoiceID)
	return inv, nil
}

// ConfirmPaid transitions a pending invoice to SUCCESS and notifies.
func (s *PaymentService) ConfirmPaid(ctx context.Context, inv *domain.Invoice) error {
	if err := inv.MarkPaid(); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, inv.ID, domain.StatusSuccess); err != nil {
		return err
	}

	slog.Info("invoice paid",
		"merchant", inv.Merchant, "user_id", inv.UserID,
		"amount", inv.Amount, "currency", inv.Currency, "invoice_id", inv.InvoiceID)
	if s.notifier != nil {
		s.notifier.InvoicePaid(inv)
	}
	return nil
}

// MarkFailed transitions a pending invoice to FAIL after an explicit failure
// signal from the provider side.
func (s *PaymentService) MarkFailed(ctx context.Context, inv *domain.Invoice) error {
	if err := inv.MarkFailed(); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, inv.ID, domain.StatusFail)
}

// ConfirmPaidByInvoiceID resolves a provider reference to a stored invoice
// and confirms it. Used by webhook receivers.
func (s *PaymentService) ConfirmPaidByInvoiceID(ctx context.Context, merchantID domain.MerchantID, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.store.ByInvoiceID(ctx, merchantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.StatusSuccess {
		// Duplicate notification, nothing to do.
		return inv, nil
	}
	if err := s.ConfirmPaid(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// SweepExpired moves pending invoices past their lifetime to EXPIRED.
func (s *PaymentService) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.store.MarkExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		slog.Info("invoices expired", "count", count)
		if s.notifier != nil {
			s.notifier.InvoiceExpired(count)
		}
	}
	return count, nil
}

// Pending returns the invoices still awaiting payment.
func (s *PaymentService) Pending(ctx context.Context) ([]*domain.Invoice, error) {
	return s.store.Pending(ctx)
}
