package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// RecurringProcessor materializes transactions from recurring definitions
// whose next due date has passed, advancing each definition's schedule by
// exactly one cycle per run. Definitions many cycles overdue catch up
// incrementally across successive runs.
//
// The processor assumes a single run at a time; the recurring-worker binary
// is the only invoker besides the manual API trigger, and both go through
// the same store.
type RecurringProcessor struct {
	definitions  DefinitionStore
	transactions TransactionStore
	publisher    TransactionPublisher
	clock        Clock
}

// NewRecurringProcessor creates a processor. publisher may be nil when no
// message broker is configured.
func NewRecurringProcessor(definitions DefinitionStore, transactions TransactionStore, publisher TransactionPublisher, clock Clock) *RecurringProcessor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RecurringProcessor{
		definitions:  definitions,
		transactions: transactions,
		publisher:    publisher,
		clock:        clock,
	}
}

// ProcessDue materializes one cycle for every due definition and returns
// the number of definitions processed. Per-definition failures (a deleted
// category, a store hiccup on one row) are logged and skipped without
// advancing that definition, so it is retried on the next run; a failure to
// list definitions fails the whole run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context) (int, error) {
	if p.definitions == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(p.clock.Now())

	due, err := p.definitions.ListActiveDueBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list due definitions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring definitions",
		"due", len(due),
		"processing_date", today.String())

	processed := 0

	for _, rd := range due {
		advanced, occ := core.Advance(rd, today)
		if occ == nil {
			// The store should only hand back due rows; skip quietly if a
			// row was advanced between listing and processing.
			continue
		}

		tx := core.Transaction{
			ID:          uuid.NewString(),
			AccountID:   rd.AccountID,
			CategoryID:  rd.CategoryID,
			Description: fmt.Sprintf("%s (recurring)", rd.Description),
			Amount:      rd.Amount,
			Kind:        rd.Kind,
			Date:        occ.Date,
			RecurringID: rd.ID,
		}

		txID, err := p.transactions.AppendTransaction(ctx, tx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize transaction",
				"recurring_id", rd.ID,
				"description", rd.Description,
				"error", err)
			// Schedule pointer left untouched: retried next run.
			continue
		}

		if err := p.definitions.AdvanceSchedule(ctx, rd.ID, advanced.LastExecution, advanced.NextDue); err != nil {
			slog.ErrorContext(ctx, "Failed to advance schedule",
				"recurring_id", rd.ID,
				"error", err)
			// The transaction exists; count it. The unadvanced pointer
			// means the next run may duplicate this cycle, which the
			// store's transactional mode is expected to prevent.
			processed++
			continue
		}

		p.publish(ctx, txID, rd.ID)

		processed++
		slog.InfoContext(ctx, "Materialized recurring transaction",
			"recurring_id", rd.ID,
			"transaction_id", txID,
			"occurrence_date", occ.Date.String(),
			"next_due", advanced.NextDue.String(),
			"frequency", rd.Frequency)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"due", len(due))

	return processed, nil
}

func (p *RecurringProcessor) publish(ctx context.Context, transactionID, recurringID string) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishTransactionCreated(ctx, transactionID, recurringID); err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction-created message",
			"transaction_id", transactionID,
			"error", err)
	}
}
