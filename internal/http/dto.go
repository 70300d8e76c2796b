package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeStoreError maps repository errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type definitionRequest struct {
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Frequency   string `json:"frequency"`
	AnchorDay   int    `json:"anchor_day"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

// toDefinition parses boundary strings into domain values. Unknown
// frequency and kind values stop here and never reach core logic.
func (req definitionRequest) toDefinition() (core.RecurringDefinition, error) {
	freq, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		return core.RecurringDefinition{}, err
	}
	kind, err := core.ParseTransactionKind(req.Kind)
	if err != nil {
		return core.RecurringDefinition{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.RecurringDefinition{}, err
	}
	startDate, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("invalid start_date: %w", err)
	}

	var endDate core.Date
	if req.EndDate != "" {
		if endDate, err = core.ParseDate(req.EndDate); err != nil {
			return core.RecurringDefinition{}, fmt.Errorf("invalid end_date: %w", err)
		}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return core.RecurringDefinition{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Amount:      amount,
		Kind:        kind,
		Frequency:   freq,
		AnchorDay:   req.AnchorDay,
		StartDate:   startDate,
		EndDate:     endDate,
		Active:      active,
	}, nil
}

type definitionResponse struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	CategoryID    string    `json:"category_id"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	Kind          string    `json:"kind"`
	Frequency     string    `json:"frequency"`
	AnchorDay     int       `json:"anchor_day"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date,omitempty"`
	Active        bool      `json:"active"`
	LastExecution string    `json:"last_execution_date,omitempty"`
	NextDue       string    `json:"next_due_date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toDefinitionResponse(rd core.RecurringDefinition) definitionResponse {
	resp := definitionResponse{
		ID:          rd.ID,
		AccountID:   rd.AccountID,
		CategoryID:  rd.CategoryID,
		Description: rd.Description,
		Amount:      rd.Amount.String(),
		Kind:        string(rd.Kind),
		Frequency:   string(rd.Frequency),
		AnchorDay:   rd.AnchorDay,
		StartDate:   rd.StartDate.String(),
		Active:      rd.Active,
		CreatedAt:   rd.CreatedAt,
		UpdatedAt:   rd.UpdatedAt,
	}
	if !rd.EndDate.IsZero() {
		resp.EndDate = rd.EndDate.String()
	}
	if !rd.LastExecution.IsZero() {
		resp.LastExecution = rd.LastExecution.String()
	}
	if !rd.NextDue.IsZero() {
		resp.NextDue = rd.NextDue.String()
	}
	return resp
}

func toDefinitionResponses(defs []core.RecurringDefinition) []definitionResponse {
	out := make([]definitionResponse, len(defs))
	for i, rd := range defs {
		out[i] = toDefinitionResponse(rd)
	}
	return out
}

type transactionResponse struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	CategoryID  string    `json:"category_id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Kind        string    `json:"kind"`
	Date        string    `json:"date"`
	RecurringID string    `json:"recurring_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Description: t.Description,
		Amount:      t.Amount.String(),
		Kind:        string(t.Kind),
		Date:        t.Date.String(),
		RecurringID: t.RecurringID,
		CreatedAt:   t.CreatedAt,
	}
}

type accountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, CreatedAt: a.CreatedAt}
}

type categoryResponse struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		AccountID: c.AccountID,
		Name:      c.Name,
		Kind:      string(c.Kind),
		CreatedAt: c.CreatedAt,
	}
}

type notificationResponse struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponse(n core.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		AccountID: n.AccountID,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

type summaryResponse struct {
	AccountID string `json:"account_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Income    string `json:"income"`
	Expense   string `json:"expense"`
	Net       string `json:"net"`
}

func toSummaryResponse(s storage.AccountSummary) summaryResponse {
	return summaryResponse{
		AccountID: s.AccountID,
		Year:      s.Year,
		Month:     s.Month,
		Income:    s.Income.StringFixed(2),
		Expense:   s.Expense.StringFixed(2),
		Net:       s.Net().StringFixed(2),
	}
}
