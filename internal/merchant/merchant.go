package merchant

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taimast/multi-merchant/internal/domain"
)

// PaymentLifetime is how long a created invoice stays payable when the
// provider gives no expiry of its own.
const PaymentLifetime = time.Hour

// CreateRequest carries the normalized inputs of an invoice creation.
type CreateRequest struct {
	UserID      int64
	Amount      decimal.Decimal
	Currency    domain.Currency
	Description string
}

// description returns the human-readable description, falling back to a
// generated one when the caller gave none.
func (r CreateRequest) description() string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("Product %s %s for user %d", r.Amount, r.Currency, r.UserID)
}

// Merchant is the capability contract every payment-provider adapter
// implements. CreateInvoice issues a create-payment call to the remote
// provider and maps the provider-native response into the common Invoice
// shape. IsPaid queries the provider and maps its own "paid" semantics into a
// single boolean; a transport failure propagates as an error, never as false.
//
// Adapters own a lazily-created HTTP session reused across calls; Close
// releases it. One adapter instance is safe for concurrent use.
type Merchant interface {
	ID() domain.MerchantID
	CreateInvoice(ctx context.Context, req CreateRequest) (*domain.Invoice, error)
	IsPaid(ctx context.Context, invoiceID string) (bool, error)
	Close() error
}

// newInvoice fills the fields every adapter sets the same way.
func newInvoice(id domain.MerchantID, req CreateRequest) *domain.Invoice {
	now := time.Now()
	return &domain.Invoice{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      domain.StatusPending,
		Merchant:    id,
		Description: req.description(),
		ExpireAt:    now.Add(PaymentLifetime),
		CreatedAt:   now,
	}
}
