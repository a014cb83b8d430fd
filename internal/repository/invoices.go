package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/taimast/multi-merchant/internal/domain"
)

// InvoiceStore persists normalized invoices in Postgres. It implements the
// storage collaborator the payment service depends on; invoices are never
// deleted here, only transitioned.
type InvoiceStore struct {
	db *pgxpool.Pool
}

func NewInvoiceStore(db *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, user_id, amount, currency, invoice_id, merchant,
	status, pay_url, description, order_id, email, extra_data, expire_at, created_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.Amount, &inv.Currency, &inv.InvoiceID,
		&inv.Merchant, &inv.Status, &inv.PayURL, &inv.Description,
		&inv.OrderID, &inv.Email, &inv.ExtraData, &inv.ExpireAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Insert stores a freshly created invoice and fills in its assigned id.
func (s *InvoiceStore) Insert(ctx context.Context, inv *domain.Invoice) error {
	if inv.ExtraData == nil {
		inv.ExtraData = map[string]string{}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO invoices (user_id, amount, currency, invoice_id, merchant,
			status, pay_url, description, order_id, email, extra_data, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		inv.UserID, inv.Amount, inv.Currency, inv.InvoiceID, inv.Merchant,
		inv.Status, inv.PayURL, inv.Description, inv.OrderID, inv.Email,
		inv.ExtraData, inv.ExpireAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Pending returns all invoices still awaiting payment and not past expiry.
func (s *InvoiceStore) Pending(ctx context.Context) ([]*domain.Invoice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE status = $1 AND expire_at > now()
		ORDER BY id`,
		domain.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// LastPending returns the newest unexpired pending invoice for the dedup key
// (user, amount, currency, merchant), or nil when there is none.
func (s *InvoiceStore) LastPending(ctx context.Context, userID int64, amount decimal.Decimal, currency domain.Currency, merchant domain.MerchantID) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE user_id = $1 AND amount = $2 AND currency = $3 AND merchant = $4
			AND status = $5 AND expire_at > now()
		ORDER BY id DESC
		LIMIT 1`,
		userID, amount, currency, merchant, domain.StatusPending,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last pending invoice: %w", err)
	}
	return inv, nil
}

// ByInvoiceID looks up an invoice by its provider-assigned reference. Invoice
// ids are scoped per merchant.
func (s *InvoiceStore) ByInvoiceID(ctx context.Context, merchant domain.MerchantID, invoiceID string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE merchant = $1 AND invoice_id = $2`,
		merchant, invoiceID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice by id: %w", err)
	}
	return inv, nil
}

// UpdateStatus moves an invoice to a new lifecycle status.
func (s *InvoiceStore) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	tag, err := s.db.Exec(ctx, `UPDATE invoices SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// MarkExpired sweeps pending invoices past their lifetime into EXPIRED and
// returns how many rows moved.
func (s *InvoiceStore) MarkExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices SET status = $1
		WHERE status = $2 AND expire_at <= now()`,
		domain.StatusExpired, domain.StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("expire invoices: %w", err)
	}
	return tag.RowsAffected(), nil
}
