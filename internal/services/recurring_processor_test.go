package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func clockAt(year, month, day int) fixedClock {
	return fixedClock{t: time.Date(year, time.Month(month), day, 10, 30, 0, 0, time.UTC)}
}

// fakeDefinitionStore keeps definitions in memory and mirrors the SQL
// store's due filter.
type fakeDefinitionStore struct {
	defs       map[string]core.RecurringDefinition
	advanceErr error
}

func newFakeDefinitionStore(defs ...core.RecurringDefinition) *fakeDefinitionStore {
	s := &fakeDefinitionStore{defs: make(map[string]core.RecurringDefinition)}
	for _, rd := range defs {
		s.defs[rd.ID] = rd
	}
	return s
}

func (s *fakeDefinitionStore) CreateDefinition(_ context.Context, rd core.RecurringDefinition) error {
	s.defs[rd.ID] = rd
	return nil
}

func (s *fakeDefinitionStore) GetDefinition(_ context.Context, id string) (*core.RecurringDefinition, error) {
	rd, ok := s.defs[id]
	if !ok {
		return nil, fmt.Errorf("definition %s not found", id)
	}
	return &rd, nil
}

func (s *fakeDefinitionStore) ListDefinitions(_ context.Context, accountID string) ([]core.RecurringDefinition, error) {
	var out []core.RecurringDefinition
	for _, rd := range s.defs {
		if rd.AccountID == accountID {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeDefinitionStore) UpdateDefinition(_ context.Context, rd core.RecurringDefinition) error {
	if _, ok := s.defs[rd.ID]; !ok {
		return fmt.Errorf("definition %s not found", rd.ID)
	}
	s.defs[rd.ID] = rd
	return nil
}

func (s *fakeDefinitionStore) DeleteDefinition(_ context.Context, id string) error {
	delete(s.defs, id)
	return nil
}

func (s *fakeDefinitionStore) ListActiveDueBefore(_ context.Context, ref core.Date) ([]core.RecurringDefinition, error) {
	var out []core.RecurringDefinition
	for _, rd := range s.defs {
		if rd.IsDue(ref) {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeDefinitionStore) AdvanceSchedule(_ context.Context, id string, lastExecution, nextDue core.Date) error {
	if s.advanceErr != nil {
		return s.advanceErr
	}
	rd, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("definition %s not found", id)
	}
	rd.LastExecution = lastExecution
	rd.NextDue = nextDue
	s.defs[id] = rd
	return nil
}

// fakeTransactionStore records appended transactions; ids listed in
// failFor reject the append, simulating a broken category reference.
type fakeTransactionStore struct {
	appended []core.Transaction
	failFor  map[string]bool
}

func (s *fakeTransactionStore) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if s.failFor[tx.RecurringID] {
		return "", errors.New("FOREIGN KEY constraint failed")
	}
	s.appended = append(s.appended, tx)
	return tx.ID, nil
}

type recordingPublisher struct {
	published []string
}

func (p *recordingPublisher) PublishTransactionCreated(_ context.Context, transactionID, _ string) error {
	p.published = append(p.published, transactionID)
	return nil
}

func monthlyRent(id string) core.RecurringDefinition {
	return core.RecurringDefinition{
		ID:          id,
		AccountID:   "acc-1",
		CategoryID:  "cat-housing",
		Description: "Rent",
		Amount:      decimal.NewFromInt(1200),
		Kind:        core.Expense,
		Frequency:   core.Monthly,
		AnchorDay:   31,
		StartDate:   core.NewDate(2024, 1, 15),
		Active:      true,
		NextDue:     core.NewDate(2024, 1, 31),
	}
}

func TestProcessDue_EndToEnd(t *testing.T) {
	defs := newFakeDefinitionStore(monthlyRent("rd-1"))
	txs := &fakeTransactionStore{}
	pub := &recordingPublisher{}

	// 2024-02-05: the 2024-01-31 cycle is overdue.
	p := NewRecurringProcessor(defs, txs, pub, clockAt(2024, 2, 5))
	count, err := p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if len(txs.appended) != 1 {
		t.Fatalf("appended %d transactions, want 1", len(txs.appended))
	}

	tx := txs.appended[0]
	if !tx.Date.Equal(core.NewDate(2024, 1, 31).Time) {
		t.Errorf("transaction dated %s, want 2024-01-31 (occurrence date, not today)", tx.Date)
	}
	if tx.Description != "Rent (recurring)" {
		t.Errorf("description = %q", tx.Description)
	}
	if tx.RecurringID != "rd-1" || tx.AccountID != "acc-1" || tx.CategoryID != "cat-housing" {
		t.Errorf("provenance fields wrong: %+v", tx)
	}
	if len(pub.published) != 1 {
		t.Errorf("published %d messages, want 1", len(pub.published))
	}

	rd := defs.defs["rd-1"]
	if !rd.LastExecution.Equal(core.NewDate(2024, 1, 31).Time) {
		t.Errorf("LastExecution = %s, want 2024-01-31", rd.LastExecution)
	}
	if !rd.NextDue.Equal(core.NewDate(2024, 2, 29).Time) {
		t.Errorf("NextDue = %s, want 2024-02-29", rd.NextDue)
	}

	// Same day again: nothing further is due.
	count, err = p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("second ProcessDue: %v", err)
	}
	if count != 0 || len(txs.appended) != 1 {
		t.Fatalf("second run materialized %d (total %d transactions), want 0", count, len(txs.appended))
	}

	// 2024-03-01: the Feb 29 cycle posts and the schedule clamps forward.
	p = NewRecurringProcessor(defs, txs, pub, clockAt(2024, 3, 1))
	count, err = p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("third ProcessDue: %v", err)
	}
	if count != 1 {
		t.Fatalf("third run count = %d, want 1", count)
	}
	if got := txs.appended[1].Date; !got.Equal(core.NewDate(2024, 2, 29).Time) {
		t.Errorf("third run transaction dated %s, want 2024-02-29", got)
	}
	if rd := defs.defs["rd-1"]; !rd.NextDue.Equal(core.NewDate(2024, 3, 29).Time) {
		t.Errorf("NextDue after third run = %s, want 2024-03-29", rd.NextDue)
	}
}

func TestProcessDue_CatchUpOneCyclePerRun(t *testing.T) {
	rd := monthlyRent("rd-1")
	rd.NextDue = core.NewDate(2024, 1, 31) // 40 days before "today"
	defs := newFakeDefinitionStore(rd)
	txs := &fakeTransactionStore{}

	p := NewRecurringProcessor(defs, txs, nil, clockAt(2024, 3, 11))

	for run := 1; run <= 3; run++ {
		count, err := p.ProcessDue(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		switch run {
		case 1, 2:
			if count != 1 {
				t.Errorf("run %d count = %d, want 1", run, count)
			}
		case 3:
			if count != 0 {
				t.Errorf("run %d count = %d, want 0 (caught up)", run, count)
			}
		}
	}

	if len(txs.appended) != 2 {
		t.Fatalf("materialized %d, want 2 (Jan 31, Feb 29)", len(txs.appended))
	}
	if !txs.appended[0].Date.Equal(core.NewDate(2024, 1, 31).Time) ||
		!txs.appended[1].Date.Equal(core.NewDate(2024, 2, 29).Time) {
		t.Errorf("cycle dates %s, %s", txs.appended[0].Date, txs.appended[1].Date)
	}
}

func TestProcessDue_EndDateBoundary(t *testing.T) {
	ending := monthlyRent("rd-ends")
	ending.NextDue = core.NewDate(2024, 2, 5)
	ending.EndDate = core.NewDate(2024, 2, 5)

	expired := monthlyRent("rd-expired")
	expired.NextDue = core.NewDate(2024, 2, 4)
	expired.EndDate = core.NewDate(2024, 2, 4)

	defs := newFakeDefinitionStore(ending, expired)
	txs := &fakeTransactionStore{}

	p := NewRecurringProcessor(defs, txs, nil, clockAt(2024, 2, 5))
	count, err := p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (end date is inclusive)", count)
	}
	if txs.appended[0].RecurringID != "rd-ends" {
		t.Errorf("processed %s, want rd-ends", txs.appended[0].RecurringID)
	}
}

func TestProcessDue_InactiveSkipped(t *testing.T) {
	rd := monthlyRent("rd-off")
	rd.Active = false
	defs := newFakeDefinitionStore(rd)
	txs := &fakeTransactionStore{}

	p := NewRecurringProcessor(defs, txs, nil, clockAt(2024, 2, 5))
	count, err := p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if count != 0 || len(txs.appended) != 0 {
		t.Errorf("inactive definition processed: count=%d txs=%d", count, len(txs.appended))
	}
}

func TestProcessDue_ReferentialFailureDoesNotBlockOthers(t *testing.T) {
	broken := monthlyRent("rd-broken")
	healthy := monthlyRent("rd-healthy")
	defs := newFakeDefinitionStore(broken, healthy)
	txs := &fakeTransactionStore{failFor: map[string]bool{"rd-broken": true}}

	p := NewRecurringProcessor(defs, txs, nil, clockAt(2024, 2, 5))
	count, err := p.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if len(txs.appended) != 1 || txs.appended[0].RecurringID != "rd-healthy" {
		t.Fatalf("appended = %+v", txs.appended)
	}

	// The failed definition keeps its pointer for a retry next run.
	if rd := defs.defs["rd-broken"]; !rd.NextDue.Equal(core.NewDate(2024, 1, 31).Time) || !rd.LastExecution.IsZero() {
		t.Errorf("failed definition advanced: %+v", rd)
	}
	if rd := defs.defs["rd-healthy"]; !rd.NextDue.Equal(core.NewDate(2024, 2, 29).Time) {
		t.Errorf("healthy definition not advanced: NextDue=%s", rd.NextDue)
	}
}

func TestProcessDue_ListFailureFailsRun(t *testing.T) {
	p := NewRecurringProcessor(&failingDefinitionStore{}, &fakeTransactionStore{}, nil, clockAt(2024, 2, 5))
	if _, err := p.ProcessDue(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

type failingDefinitionStore struct{ fakeDefinitionStore }

func (failingDefinitionStore) ListActiveDueBefore(context.Context, core.Date) ([]core.RecurringDefinition, error) {
	return nil, errors.New("database is locked")
}
