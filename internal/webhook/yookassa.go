package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/taimast/multi-merchant/internal/domain"
	"github.com/taimast/multi-merchant/internal/service"
)

// YooKassa notification event types.
const (
	EventPaymentSucceeded         = "payment.succeeded"
	EventPaymentWaitingForCapture = "payment.waiting_for_capture"
	EventPaymentCanceled          = "payment.canceled"
	EventPaymentRefunded          = "payment.refunded"
	EventPaymentPending           = "payment.pending"
)

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// PaymentObject is the payment snapshot inside a notification. Boolean
// flags default to false when the provider omits them.
type PaymentObject struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Amount      Amount            `json:"amount"`
	Description string            `json:"description"`
	CapturedAt  string            `json:"captured_at"`
	CreatedAt   string            `json:"created_at"`
	Test        bool              `json:"test"`
	Paid        bool              `json:"paid"`
	Refundable  bool              `json:"refundable"`
	Metadata    map[string]string `json:"metadata"`
}

// Notification is the push payload YooKassa delivers out-of-band.
type Notification struct {
	Type   string        `json:"type"`
	Event  string        `json:"event"`
	Object PaymentObject `json:"object"`
}

// ParseNotification decodes a notification body and checks it carries a
// payment reference.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if n.Object.ID == "" {
		return nil, &domain.MappingError{Merchant: domain.MerchantYooKassa, Field: "object.id"}
	}
	return &n, nil
}

// YooKassaHandler maps payment.succeeded notifications onto stored invoices
// and confirms them. Other events are acknowledged and ignored; delivery
// guarantees stay with the sender.
func YooKassaHandler(svc *service.PaymentService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		n, err := ParseNotification(readBody(r))
		if err != nil {
			slog.Warn("bad yookassa notification", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if n.Event != EventPaymentSucceeded {
			w.WriteHeader(http.StatusOK)
			return
		}

		_, err = svc.ConfirmPaidByInvoiceID(r.Context(), domain.MerchantYooKassa, n.Object.ID)
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			slog.Warn("notification for unknown invoice", "invoice_id", n.Object.ID)
			http.Error(w, "unknown invoice", http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrTerminalStatus) {
			// The invoice already reached a terminal state, e.g. expired by the
			// sweep before the notification arrived. Acknowledge so the sender
			// stops redelivering; the payment itself needs operator attention.
			slog.Warn("notification for terminal invoice", "invoice_id", n.Object.ID, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		if err != nil {
			slog.Error("confirm from webhook failed", "invoice_id", n.Object.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
