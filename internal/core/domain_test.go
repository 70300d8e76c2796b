package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"monthly", Monthly, false},
		{"Monthly", Monthly, false},
		{" QUARTERLY ", Quarterly, false},
		{"biweekly", Biweekly, false},
		{"fortnightly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFrequency) {
					t.Fatalf("ParseFrequency(%q) err = %v, want ErrUnknownFrequency", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrequency(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTransactionKind(t *testing.T) {
	if k, err := ParseTransactionKind("Income"); err != nil || k != Income {
		t.Errorf("ParseTransactionKind(Income) = %s, %v", k, err)
	}
	if _, err := ParseTransactionKind("transfer"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRecurringDefinition_Validate(t *testing.T) {
	valid := func() RecurringDefinition {
		return RecurringDefinition{
			AccountID:   "acc-1",
			CategoryID:  "cat-1",
			Description: "Gym membership",
			Amount:      decimal.NewFromFloat(39.90),
			Kind:        Expense,
			Frequency:   Monthly,
			AnchorDay:   15,
			StartDate:   NewDate(2024, 1, 15),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RecurringDefinition)
		wantErr error
	}{
		{"valid", nil, nil},
		{"missing account", func(rd *RecurringDefinition) { rd.AccountID = " " }, ErrMissingAccount},
		{"missing category", func(rd *RecurringDefinition) { rd.CategoryID = "" }, ErrMissingCategory},
		{"empty description", func(rd *RecurringDefinition) { rd.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(rd *RecurringDefinition) { rd.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(rd *RecurringDefinition) { rd.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"bad frequency", func(rd *RecurringDefinition) { rd.Frequency = "sometimes" }, ErrUnknownFrequency},
		{"bad kind", func(rd *RecurringDefinition) { rd.Kind = "transfer" }, ErrUnknownKind},
		{"anchor day zero", func(rd *RecurringDefinition) { rd.AnchorDay = 0 }, ErrInvalidAnchorDay},
		{"anchor day 32", func(rd *RecurringDefinition) { rd.AnchorDay = 32 }, ErrInvalidAnchorDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := valid()
			if tt.mutate != nil {
				tt.mutate(&rd)
			}
			err := rd.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurringDefinition_Validate_EndBeforeStart(t *testing.T) {
	rd := RecurringDefinition{
		AccountID:   "acc-1",
		CategoryID:  "cat-1",
		Description: "Rent",
		Amount:      decimal.NewFromInt(900),
		Kind:        Expense,
		Frequency:   Monthly,
		AnchorDay:   1,
		StartDate:   NewDate(2024, 6, 1),
		EndDate:     NewDate(2024, 5, 1),
	}
	if rd.Validate() == nil {
		t.Error("expected error for end date before start date")
	}
}

func TestDateHelpers(t *testing.T) {
	d := NewDate(2024, 2, 29)
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Errorf("NewDate parts = %d-%d-%d", d.Year(), d.Month(), d.Day())
	}
	if d.String() != "2024-02-29" {
		t.Errorf("String() = %s", d.String())
	}

	parsed, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !parsed.Equal(d.Time) {
		t.Errorf("ParseDate = %s, want %s", parsed, d)
	}
	if _, err := ParseDate("29/02/2024"); err == nil {
		t.Error("expected error for non-ISO format")
	}

	if !d.BeforeOrEqual(d) || !d.AfterOrEqual(d) {
		t.Error("BeforeOrEqual/AfterOrEqual must be inclusive")
	}
}
