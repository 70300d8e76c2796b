package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// DefinitionService manages recurring definitions and keeps their next due
// date consistent across edits.
type DefinitionService struct {
	store DefinitionStore
	clock Clock
}

func NewDefinitionService(store DefinitionStore, clock Clock) *DefinitionService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DefinitionService{store: store, clock: clock}
}

// Create validates and persists a new definition. The first due date is
// one cycle after the start date, so a monthly definition starting on the
// 15th first posts on the following month's anchor day.
func (s *DefinitionService) Create(ctx context.Context, rd core.RecurringDefinition) (core.RecurringDefinition, error) {
	rd.ID = uuid.NewString()
	rd.Active = true
	rd.LastExecution = core.Date{}
	now := s.clock.Now()
	rd.CreatedAt = now
	rd.UpdatedAt = now

	if err := rd.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}

	rd.NextDue = core.NextOccurrence(rd.StartDate, rd.Frequency, rd.AnchorDay)

	if err := s.store.CreateDefinition(ctx, rd); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("create definition: %w", err)
	}

	slog.InfoContext(ctx, "Recurring definition created",
		"id", rd.ID,
		"description", rd.Description,
		"frequency", rd.Frequency,
		"next_due", rd.NextDue.String())

	return rd, nil
}

// Update applies user edits to an existing definition. The next due date
// is recomputed from "now" only when the schedule is stale: it was never
// set, the definition is being reactivated, or frequency/anchor changed.
// Edits to description, amount or category leave a pending cycle alone.
func (s *DefinitionService) Update(ctx context.Context, rd core.RecurringDefinition) (core.RecurringDefinition, error) {
	existing, err := s.store.GetDefinition(ctx, rd.ID)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("get definition: %w", err)
	}

	updated := *existing
	updated.CategoryID = rd.CategoryID
	updated.Description = rd.Description
	updated.Amount = rd.Amount
	updated.Kind = rd.Kind
	updated.Frequency = rd.Frequency
	updated.AnchorDay = rd.AnchorDay
	updated.EndDate = rd.EndDate
	updated.Active = rd.Active
	updated.UpdatedAt = s.clock.Now()

	if err := updated.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}

	reactivated := !existing.Active && updated.Active
	scheduleChanged := existing.Frequency != updated.Frequency || existing.AnchorDay != updated.AnchorDay
	if updated.NextDue.IsZero() || reactivated || scheduleChanged {
		updated.NextDue = core.NextOccurrence(core.DateOf(s.clock.Now()), updated.Frequency, updated.AnchorDay)
	}

	if err := s.store.UpdateDefinition(ctx, updated); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("update definition: %w", err)
	}

	slog.InfoContext(ctx, "Recurring definition updated",
		"id", updated.ID,
		"active", updated.Active,
		"next_due", updated.NextDue.String())

	return updated, nil
}

// Get returns one definition by id.
func (s *DefinitionService) Get(ctx context.Context, id string) (*core.RecurringDefinition, error) {
	return s.store.GetDefinition(ctx, id)
}

// ListByAccount returns an account's definitions.
func (s *DefinitionService) ListByAccount(ctx context.Context, accountID string) ([]core.RecurringDefinition, error) {
	return s.store.ListDefinitions(ctx, accountID)
}

// Delete removes a definition. Transactions already materialized from it
// persist independently.
func (s *DefinitionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDefinition(ctx, id); err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	slog.InfoContext(ctx, "Recurring definition deleted", "id", id)
	return nil
}
