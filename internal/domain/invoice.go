package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusExpired Status = "expired"
	StatusFail    Status = "fail"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusExpired || s == StatusFail
}

// Invoice is the normalized record of one payment attempt, regardless of
// which merchant created it.
type Invoice struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Currency  Currency
	InvoiceID string // provider-assigned external reference
	PayURL    string
	Status    Status
	Merchant  MerchantID
	ExpireAt  time.Time
	CreatedAt time.Time

	Description string
	ExtraData   map[string]string

	// Used only by certain merchants.
	OrderID string
	Email   string
}

func (i *Invoice) String() string {
	return fmt.Sprintf("[%s] user=%d %s %s (%s)", i.Merchant, i.UserID, i.Amount, i.Currency, i.Status)
}

// IsExpired reports whether the invoice lifetime has passed. Status is not
// consulted: the expiry sweep uses this on pending rows.
func (i *Invoice) IsExpired(now time.Time) bool {
	return now.After(i.ExpireAt)
}

// MarkPaid transitions the invoice to SUCCESS.
func (i *Invoice) MarkPaid() error {
	return i.transition(StatusSuccess)
}

// MarkFailed transitions the invoice to FAIL.
func (i *Invoice) MarkFailed() error {
	return i.transition(StatusFail)
}

// MarkExpired transitions the invoice to EXPIRED.
func (i *Invoice) MarkExpired() error {
	return i.transition(StatusExpired)
}

func (i *Invoice) transition(to Status) error {
	if i.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalStatus, i.Status, to)
	}
	i.Status = to
	return nil
}
