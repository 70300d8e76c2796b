package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

type (
	// Frequency is the closed set of recurrence cadences.
	Frequency string

	// TransactionKind distinguishes money coming in from money going out.
	TransactionKind string

	// Date is a day-granular calendar date. The embedded time.Time is
	// always UTC midnight.
	Date struct {
		time.Time
	}

	// Account groups transactions and recurring definitions.
	Account struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	// Category labels transactions within an account.
	Category struct {
		ID        string
		AccountID string
		Name      string
		Kind      TransactionKind
		CreatedAt time.Time
	}

	// Transaction is a concrete ledger entry. Entries materialized from a
	// recurring definition carry its id in RecurringID and are dated at the
	// occurrence date, not at the time the batch ran.
	Transaction struct {
		ID          string
		AccountID   string
		CategoryID  string
		Description string
		Amount      decimal.Decimal
		Kind        TransactionKind
		Date        Date
		RecurringID string // empty for one-off entries
		CreatedAt   time.Time
	}

	// RecurringDefinition is a template for periodically generated
	// transactions. NextDue and LastExecution are the schedule pointers
	// advanced by the due-processing driver; a zero Date means unset.
	RecurringDefinition struct {
		ID            string
		AccountID     string
		CategoryID    string
		Description   string
		Amount        decimal.Decimal
		Kind          TransactionKind
		Frequency     Frequency
		AnchorDay     int // day-of-month, meaningful for monthly and quarterly
		StartDate     Date
		EndDate       Date // optional, inclusive
		Active        bool
		LastExecution Date
		NextDue       Date
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Notification is a user-visible message recorded when something
	// happens on an account, e.g. a recurring cycle posting.
	Notification struct {
		ID        string
		AccountID string
		Message   string
		Read      bool
		CreatedAt time.Time
	}
)

var (
	ErrUnknownFrequency   = errors.New("unknown frequency")
	ErrUnknownKind        = errors.New("unknown transaction kind")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidAnchorDay   = errors.New("anchor day must be between 1 and 31")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrMissingAccount     = errors.New("missing account id")
	ErrMissingCategory    = errors.New("missing category id")
	ErrMissingDate        = errors.New("date cannot be zero")
	ErrInvalidDateRange   = errors.New("end date must not be before start date")
)

// ParseFrequency converts a free-text frequency into the closed enum.
// Matching is case-insensitive so API callers can send "Monthly".
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Biweekly:
		return Biweekly, nil
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Yearly:
		return Yearly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
	}
}

// ParseTransactionKind converts a free-text kind into the closed enum.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch TransactionKind(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as an int.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// BeforeOrEqual reports whether d is on or before other.
func (d Date) BeforeOrEqual(other Date) bool { return !d.Time.After(other.Time) }

// AfterOrEqual reports whether d is on or after other.
func (d Date) AfterOrEqual(other Date) bool { return !d.Time.Before(other.Time) }

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrMissingCategory
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseTransactionKind(string(t.Kind)); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (rd RecurringDefinition) Validate() error {
	if strings.TrimSpace(rd.AccountID) == "" {
		return ErrMissingAccount
	}
	if strings.TrimSpace(rd.CategoryID) == "" {
		return ErrMissingCategory
	}
	if len(strings.TrimSpace(rd.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rd.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if !rd.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseTransactionKind(string(rd.Kind)); err != nil {
		return err
	}
	if _, err := ParseFrequency(string(rd.Frequency)); err != nil {
		return err
	}
	if rd.AnchorDay < 1 || rd.AnchorDay > 31 {
		return ErrInvalidAnchorDay
	}
	if rd.StartDate.IsZero() {
		return ErrMissingDate
	}
	if !rd.EndDate.IsZero() && rd.EndDate.Before(rd.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}
