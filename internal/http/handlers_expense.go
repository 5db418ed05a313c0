package http

import (
	"net/http"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"

	"github.com/shopspring/decimal"
)

type expenseBody struct {
	Date     string          `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
}

// handleCreateExpense appends one expense. Accepts JSON or form bodies with
// date, amount and category.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := core.NewExpense(p.Get("date"), p.Get("amount"), p.Get("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.expenses.Add(r.Context(), userIDFrom(r.Context()), e); err != nil {
		s.writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense recorded",
		log.FieldYear, e.Date.Year(),
		log.FieldMonth, e.Date.MonthName(),
		log.FieldCategory, e.Category)

	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"message": "Expense added",
		"expense": expenseBody{Date: e.Date.String(), Amount: e.Amount, Category: e.Category},
	}).Write(w)
}

// handleListExpenses returns the complete rows of one month.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query(), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.expenses.Query(r.Context(), userIDFrom(r.Context()), period.Year, period.Month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []core.ExpenseRecord{}
	}
	NewResponse().JSON(records).Write(w)
}

// handleSummary returns the yearly summary; year defaults to the current one.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query(), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.expenses.Summary(r.Context(), userIDFrom(r.Context()), period.Year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(summary).Write(w)
}
