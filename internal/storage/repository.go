// Package storage persists the finance domain in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// FK enforcement is per-connection in sqlite; keep the pool at one
	// connection so the pragma holds for every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// nullDate maps between core.Date (zero = unset) and a nullable TEXT column.
func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func scanDate(ns sql.NullString) (core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(ns.String)
}

// Accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name) VALUES (?, ?)`, a.ID, a.Name)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, account_id, name, kind) VALUES (?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Name, string(c.Kind))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, name, kind, created_at FROM categories WHERE account_id = ? ORDER BY name`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &kind, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.TransactionKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return nil
}

// Transactions

// AppendTransaction inserts a ledger entry. A missing category surfaces as
// a foreign key error, which the recurring processor treats as a
// per-definition failure.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	var recurringID sql.NullString
	if t.RecurringID != "" {
		recurringID = sql.NullString{String: t.RecurringID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, category_id, description, amount, kind, tx_date, recurring_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.CategoryID, t.Description, t.Amount.String(),
		string(t.Kind), t.Date.String(), recurringID)
	if err != nil {
		return "", fmt.Errorf("append transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"description", t.Description,
		"amount", t.Amount.String(),
		"date", t.Date.String())

	return t.ID, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, category_id, description, amount, kind, tx_date, recurring_id, created_at
		 FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, category_id, description, amount, kind, tx_date, recurring_id, created_at
		 FROM transactions WHERE account_id = ? ORDER BY tx_date DESC, created_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t           core.Transaction
		amount      string
		kind        string
		txDate      string
		recurringID sql.NullString
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.CategoryID, &t.Description,
		&amount, &kind, &txDate, &recurringID, &t.CreatedAt); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Amount = d
	t.Kind = core.TransactionKind(kind)

	date, err := core.ParseDate(txDate)
	if err != nil {
		return nil, fmt.Errorf("parse tx_date %q: %w", txDate, err)
	}
	t.Date = date
	t.RecurringID = recurringID.String

	return &t, nil
}

// AccountSummary totals an account's transactions for one calendar month.
type AccountSummary struct {
	AccountID string
	Year      int
	Month     int
	Income    decimal.Decimal
	Expense   decimal.Decimal
}

func (s AccountSummary) Net() decimal.Decimal { return s.Income.Sub(s.Expense) }

// Summarize computes the month's income and expense totals. Amounts are
// summed in Go: sqlite SUM over the TEXT column would go through floats.
func (r *SQLiteRepository) Summarize(ctx context.Context, accountID string, year, month int) (AccountSummary, error) {
	summary := AccountSummary{AccountID: accountID, Year: year, Month: month}

	prefix := fmt.Sprintf("%04d-%02d", year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount, kind FROM transactions WHERE account_id = ? AND tx_date LIKE ? || '%'`,
		accountID, prefix)
	if err != nil {
		return summary, fmt.Errorf("summarize: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var amount, kind string
		if err := rows.Scan(&amount, &kind); err != nil {
			return summary, fmt.Errorf("scan summary row: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return summary, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if core.TransactionKind(kind) == core.Income {
			summary.Income = summary.Income.Add(d)
		} else {
			summary.Expense = summary.Expense.Add(d)
		}
	}
	return summary, rows.Err()
}

// Recurring definitions

const definitionColumns = `id, account_id, category_id, description, amount, kind, frequency,
	anchor_day, start_date, end_date, active, last_execution_date, next_due_date, created_at, updated_at`

func (r *SQLiteRepository) CreateDefinition(ctx context.Context, rd core.RecurringDefinition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_definitions
		 (id, account_id, category_id, description, amount, kind, frequency, anchor_day,
		  start_date, end_date, active, last_execution_date, next_due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rd.ID, rd.AccountID, rd.CategoryID, rd.Description, rd.Amount.String(),
		string(rd.Kind), string(rd.Frequency), rd.AnchorDay,
		rd.StartDate.String(), nullDate(rd.EndDate), boolToInt(rd.Active),
		nullDate(rd.LastExecution), nullDate(rd.NextDue))
	if err != nil {
		return fmt.Errorf("create definition: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetDefinition(ctx context.Context, id string) (*core.RecurringDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM recurring_definitions WHERE id = ?`, id)

	rd, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get definition: %w", err)
	}
	return rd, nil
}

func (r *SQLiteRepository) ListDefinitions(ctx context.Context, accountID string) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM recurring_definitions WHERE account_id = ? ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()
	return collectDefinitions(rows)
}

// ListActiveDueBefore returns active definitions due on or before ref,
// excluding those whose inclusive end date has passed.
func (r *SQLiteRepository) ListActiveDueBefore(ctx context.Context, ref core.Date) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM recurring_definitions
		 WHERE active = 1
		   AND next_due_date IS NOT NULL
		   AND next_due_date <= ?
		   AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY next_due_date`,
		ref.String(), ref.String())
	if err != nil {
		return nil, fmt.Errorf("list due definitions: %w", err)
	}
	defer rows.Close()
	return collectDefinitions(rows)
}

func (r *SQLiteRepository) UpdateDefinition(ctx context.Context, rd core.RecurringDefinition) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_definitions
		 SET category_id = ?, description = ?, amount = ?, kind = ?, frequency = ?,
		     anchor_day = ?, start_date = ?, end_date = ?, active = ?,
		     last_execution_date = ?, next_due_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		rd.CategoryID, rd.Description, rd.Amount.String(), string(rd.Kind),
		string(rd.Frequency), rd.AnchorDay, rd.StartDate.String(),
		nullDate(rd.EndDate), boolToInt(rd.Active),
		nullDate(rd.LastExecution), nullDate(rd.NextDue), rd.ID)
	if err != nil {
		return fmt.Errorf("update definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("definition %s: %w", rd.ID, ErrNotFound)
	}
	return nil
}

// AdvanceSchedule moves one definition's schedule pointers in a single
// statement, the per-definition unit of work of a processing run.
func (r *SQLiteRepository) AdvanceSchedule(ctx context.Context, id string, lastExecution, nextDue core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_definitions
		 SET last_execution_date = ?, next_due_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		nullDate(lastExecution), nullDate(nextDue), id)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDefinition(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	return nil
}

func collectDefinitions(rows *sql.Rows) ([]core.RecurringDefinition, error) {
	var out []core.RecurringDefinition
	for rows.Next() {
		rd, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}

func scanDefinition(row rowScanner) (*core.RecurringDefinition, error) {
	var (
		rd        core.RecurringDefinition
		amount    string
		kind      string
		frequency string
		startDate string
		endDate   sql.NullString
		active    int
		lastExec  sql.NullString
		nextDue   sql.NullString
	)
	if err := row.Scan(&rd.ID, &rd.AccountID, &rd.CategoryID, &rd.Description,
		&amount, &kind, &frequency, &rd.AnchorDay, &startDate, &endDate,
		&active, &lastExec, &nextDue, &rd.CreatedAt, &rd.UpdatedAt); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	rd.Amount = d
	rd.Kind = core.TransactionKind(kind)
	rd.Frequency = core.Frequency(frequency)
	rd.Active = active != 0

	if rd.StartDate, err = core.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse start_date %q: %w", startDate, err)
	}
	if rd.EndDate, err = scanDate(endDate); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if rd.LastExecution, err = scanDate(lastExec); err != nil {
		return nil, fmt.Errorf("parse last_execution_date: %w", err)
	}
	if rd.NextDue, err = scanDate(nextDue); err != nil {
		return nil, fmt.Errorf("parse next_due_date: %w", err)
	}

	return &rd, nil
}

// Notifications

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, account_id, message) VALUES (?, ?, ?)`,
		n.ID, n.AccountID, n.Message)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, accountID string) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, message, read, created_at
		 FROM notifications WHERE account_id = ? ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n    core.Notification
			read int
		)
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Message, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
