// Package worker contains the background consumers.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

// NotificationStore is the slice of storage the notify worker needs.
type NotificationStore interface {
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	CreateNotification(ctx context.Context, n core.Notification) error
}

// NotifyWorker turns transaction-created messages into notification rows
// so users see that a recurring cycle posted to their account.
type NotifyWorker struct {
	store NotificationStore
}

func NewNotifyWorker(store NotificationStore) *NotifyWorker {
	return &NotifyWorker{store: store}
}

// HandleTransactionCreated processes one message. Errors are returned to
// the consumer loop, which nacks and requeues the delivery.
func (w *NotifyWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	tx, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", msg.TransactionID, err)
	}

	message := fmt.Sprintf("%s of %s posted on %s", tx.Kind, tx.Amount.StringFixed(2), tx.Date)
	if tx.RecurringID != "" {
		message = fmt.Sprintf("Recurring %s", message)
	}

	n := core.Notification{
		ID:        uuid.NewString(),
		AccountID: tx.AccountID,
		Message:   fmt.Sprintf("%s: %s", tx.Description, message),
	}
	if err := w.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	slog.InfoContext(ctx, "Notification recorded",
		"notification_id", n.ID,
		"account_id", tx.AccountID,
		"transaction_id", tx.ID)

	return nil
}
