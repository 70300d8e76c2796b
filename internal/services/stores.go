// Package services provides business logic and orchestration over the
// storage and messaging layers.
package services

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// DefinitionStore is the persistence contract for recurring definitions.
// *storage.SQLiteRepository implements it; tests use in-memory fakes.
type DefinitionStore interface {
	CreateDefinition(ctx context.Context, rd core.RecurringDefinition) error
	GetDefinition(ctx context.Context, id string) (*core.RecurringDefinition, error)
	ListDefinitions(ctx context.Context, accountID string) ([]core.RecurringDefinition, error)
	UpdateDefinition(ctx context.Context, rd core.RecurringDefinition) error
	DeleteDefinition(ctx context.Context, id string) error

	// ListActiveDueBefore returns active definitions whose next due date is
	// on or before ref and whose end date, if any, has not passed.
	ListActiveDueBefore(ctx context.Context, ref core.Date) ([]core.RecurringDefinition, error)

	// AdvanceSchedule moves one definition's schedule pointers forward.
	AdvanceSchedule(ctx context.Context, id string, lastExecution, nextDue core.Date) error
}

// TransactionStore appends materialized ledger entries.
type TransactionStore interface {
	AppendTransaction(ctx context.Context, tx core.Transaction) (string, error)
}

// TransactionPublisher announces materialized transactions to interested
// consumers (the notify worker). Implementations may be nil-safe no-ops.
type TransactionPublisher interface {
	PublishTransactionCreated(ctx context.Context, transactionID, recurringID string) error
}

// Clock supplies "now"; injected so processing runs are deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
