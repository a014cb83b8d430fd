package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taimast/multi-merchant/internal/domain"
	"github.com/taimast/multi-merchant/internal/merchant"
	"golang.org/x/sync/errgroup"
)

// Watcher periodically sweeps expired invoices and polls each pending one
// against its merchant. Poll calls are network round trips, so they fan out
// over a bounded worker pool instead of running one by one.
type Watcher struct {
	svc         *PaymentService
	merchants   map[domain.MerchantID]merchant.Merchant
	interval    time.Duration
	concurrency int
}

func NewWatcher(svc *PaymentService, merchants map[domain.MerchantID]merchant.Merchant, interval time.Duration, concurrency int) *Watcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Watcher{
		svc:         svc,
		merchants:   merchants,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run loops until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("watcher tick failed", "error", err)
			}
		}
	}
}

// Tick runs one sweep-and-poll round.
func (w *Watcher) Tick(ctx context.Context) error {
	if _, err := w.svc.SweepExpired(ctx); err != nil {
		return err
	}

	pending, err := w.svc.Pending(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, inv := range pending {
		g.Go(func() error {
			w.check(ctx, inv)
			return nil
		})
	}
	return g.Wait()
}

func (w *Watcher) check(ctx context.Context, inv *domain.Invoice) {
	m, ok := w.merchants[inv.Merchant]
	if !ok {
		slog.Warn("no adapter configured for pending invoice",
			"merchant", inv.Merchant, "invoice_id", inv.InvoiceID)
		return
	}

	paid, err := m.IsPaid(ctx, inv.InvoiceID)
	if err != nil {
		// Could not determine status. The invoice stays pending; the next
		// tick retries.
		slog.Warn("status check failed",
			"merchant", inv.Merchant, "invoice_id", inv.InvoiceID, "error", err)
		return
	}
	if !paid {
		return
	}

	if err := w.svc.ConfirmPaid(ctx, inv); err != nil {
		slog.Error("confirm paid failed",
			"merchant", inv.Merchant, "invoice_id", inv.InvoiceID, "error", err)
	}
}
