package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"

	"github.com/shopspring/decimal"
)

// SummarySync owns the Summary tab. Writes are whole-cell overwrites of
// formula text, so every call is idempotent.
type SummarySync struct {
	logger *slog.Logger
}

func NewSummarySync(logger *slog.Logger) *SummarySync {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummarySync{logger: logger}
}

// SyncAll re-asserts the whole formula block: title, yearly totals and all
// twelve month rows.
func (s *SummarySync) SyncAll(ctx context.Context, wb sheets.Workbook, spreadsheetID string, year int) error {
	if err := wb.UpdateValues(ctx, spreadsheetID, core.SummaryRange, core.SummaryGrid(year), sheets.UserEntered); err != nil {
		return fmt.Errorf("sync summary formulas: %w", err)
	}
	s.logger.DebugContext(ctx, "Summary formulas re-asserted", log.FieldSpreadsheetID, spreadsheetID, log.FieldYear, year)
	return nil
}

// SyncMonth re-asserts the three formula cells of one month row.
func (s *SummarySync) SyncMonth(ctx context.Context, wb sheets.Workbook, spreadsheetID string, year, month int) error {
	row, err := core.SummaryFormulaRow(month, year)
	if err != nil {
		return err
	}
	if err := wb.UpdateValues(ctx, spreadsheetID, core.SummaryFormulaRange(month), row, sheets.UserEntered); err != nil {
		return fmt.Errorf("sync summary row %d: %w", month, err)
	}
	return nil
}

// Read loads the computed totals. now selects "this month". A missing
// Summary tab reads as an empty year; a tab whose totals block is blank is
// re-asserted before reading.
func (s *SummarySync) Read(ctx context.Context, wb sheets.Workbook, spreadsheetID string, year int, now time.Time) (core.YearSummary, error) {
	stats, err := wb.GetValues(ctx, spreadsheetID, core.SummaryStatsRange)
	if errors.Is(err, sheets.ErrRangeNotFound) {
		s.logger.WarnContext(ctx, "Summary tab missing", log.FieldSpreadsheetID, spreadsheetID, log.FieldYear, year)
		return core.EmptySummary(year), nil
	}
	if err != nil {
		return core.YearSummary{}, fmt.Errorf("read summary totals: %w", err)
	}
	if core.CellString(stats.Cell(0, 1)) == "" {
		s.logger.WarnContext(ctx, "Summary totals missing, re-asserting formulas",
			log.FieldSpreadsheetID, spreadsheetID, log.FieldYear, year)
		if err := s.SyncAll(ctx, wb, spreadsheetID, year); err != nil {
			return core.YearSummary{}, err
		}
		if stats, err = wb.GetValues(ctx, spreadsheetID, core.SummaryStatsRange); err != nil {
			return core.YearSummary{}, fmt.Errorf("read summary totals: %w", err)
		}
	}
	months, err := wb.GetValues(ctx, spreadsheetID, core.SummaryMonthsRange)
	if err != nil {
		return core.YearSummary{}, fmt.Errorf("read summary months: %w", err)
	}

	out := core.EmptySummary(year)
	out.TotalExpenses = amountCell(stats.Cell(0, 1))
	out.TotalTransactions = core.ParseCellInt(stats.Cell(1, 1))
	out.AveragePerMonth = amountCell(stats.Cell(2, 1))

	rows := make([]core.MonthBreakdown, 0, len(months))
	for i := range months {
		rows = append(rows, core.MonthBreakdown{
			Month:        core.CellString(months.Cell(i, 0)),
			Total:        amountCell(months.Cell(i, 1)),
			Transactions: core.ParseCellInt(months.Cell(i, 2)),
			DailyAverage: amountCell(months.Cell(i, 3)),
		})
	}
	out.MonthlyBreakdown = core.ActiveMonths(rows)

	if cur, ok := core.FindMonth(out.MonthlyBreakdown, now.Month().String()); ok {
		out.ThisMonthTotal = cur.Total
		out.ThisMonthTransactions = cur.Transactions
		out.DailyAverage = cur.DailyAverage
	}
	return out, nil
}

func amountCell(v any) decimal.Decimal {
	d, _ := core.ParseCellAmount(v)
	return d.Round(2)
}
