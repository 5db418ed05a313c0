package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/storage"
)

// ExpenseService appends and reads expense rows. Reads consult the cache
// only and never provision.
type ExpenseService struct {
	runner  Runner
	cache   Cache
	prov    *Provisioner
	summary *SummarySync
	events  EventPublisher
	now     func() time.Time
	logger  *slog.Logger
}

func NewExpenseService(runner Runner, cache Cache, prov *Provisioner, summary *SummarySync, events EventPublisher, logger *slog.Logger) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{
		runner:  runner,
		cache:   cache,
		prov:    prov,
		summary: summary,
		events:  events,
		now:     time.Now,
		logger:  logger,
	}
}

// Add appends e to its month tab, provisioning the spreadsheet and tab as
// needed, then refreshes that month's Summary row.
func (s *ExpenseService) Add(ctx context.Context, userID int64, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	year := e.Date.Year()
	monthIdx := int(e.Date.Month())
	month := e.Date.MonthName()

	err := s.runner.Do(ctx, userID, func(ctx context.Context, wb sheets.Workbook) error {
		ss, err := s.prov.EnsureSpreadsheet(ctx, wb, userID, year)
		if err != nil {
			return err
		}
		if _, err := s.prov.EnsureMonthSheet(ctx, wb, ss, month); err != nil {
			return err
		}

		rng := core.Range(month, "A:C")
		row := sheets.Values{e.Row()}
		err = wb.AppendValues(ctx, ss.SpreadsheetID, rng, row, sheets.Raw)
		if errors.Is(err, sheets.ErrRangeNotFound) {
			// The cached tab was removed remotely.
			if ferr := s.prov.Forget(ctx, ss, month); ferr != nil {
				return fmt.Errorf("drop stale sheet: %w", ferr)
			}
			if _, perr := s.prov.EnsureMonthSheet(ctx, wb, ss, month); perr != nil {
				return perr
			}
			err = wb.AppendValues(ctx, ss.SpreadsheetID, rng, row, sheets.Raw)
		}
		if err != nil {
			return fmt.Errorf("append expense: %w", err)
		}

		if err := s.summary.SyncMonth(ctx, wb, ss.SpreadsheetID, year, monthIdx); err != nil {
			s.logger.WarnContext(ctx, "Summary row refresh failed", log.FieldYear, year, log.FieldMonth, month, log.FieldError, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Expense recorded",
		log.FieldUserID, userID,
		log.FieldDate, e.Date.String(),
		log.FieldAmount, e.Amount.String(),
		log.FieldCategory, e.Category)
	publish(ctx, s.events, s.logger, amqp.NewEvent(amqp.EventExpenseRecorded, userID, year, month))
	return nil
}

// Query returns the expense rows of one month. A period without a cached
// spreadsheet or without a month tab yields a *core.PeriodError.
func (s *ExpenseService) Query(ctx context.Context, userID int64, year, month int) ([]core.ExpenseRecord, error) {
	if err := core.ValidateYear(year); err != nil {
		return nil, err
	}
	monthName, err := core.MonthName(month)
	if err != nil {
		return nil, err
	}

	ss, err := s.cache.GetSpreadsheet(ctx, userID, year)
	if storage.IsNotFound(err) {
		return nil, &core.PeriodError{Err: core.ErrNoSpreadsheet, Year: year}
	}
	if err != nil {
		return nil, fmt.Errorf("look up spreadsheet: %w", err)
	}

	var records []core.ExpenseRecord
	err = s.runner.Do(ctx, userID, func(ctx context.Context, wb sheets.Workbook) error {
		rows, err := wb.GetValues(ctx, ss.SpreadsheetID, core.Range(monthName, "A:C"))
		if errors.Is(err, sheets.ErrRangeNotFound) {
			return &core.PeriodError{Err: core.ErrNoSheet, Year: year, Month: monthName}
		}
		if err != nil {
			return fmt.Errorf("read expenses: %w", err)
		}
		records = make([]core.ExpenseRecord, 0, len(rows))
		for i := 1; i < len(rows); i++ {
			if rec, ok := core.RecordFromRow(i, rows[i]); ok {
				records = append(records, rec)
			}
		}
		return nil
	})
	if errors.Is(err, sheets.ErrSpreadsheetNotFound) {
		s.forget(ctx, ss)
		return nil, &core.PeriodError{Err: core.ErrNoSpreadsheet, Year: year}
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Summary reads the computed totals for year, or the current year when
// year is zero. A year without a spreadsheet is all zeros.
func (s *ExpenseService) Summary(ctx context.Context, userID int64, year int) (core.YearSummary, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if err := core.ValidateYear(year); err != nil {
		return core.YearSummary{}, err
	}

	ss, err := s.cache.GetSpreadsheet(ctx, userID, year)
	if storage.IsNotFound(err) {
		return core.EmptySummary(year), nil
	}
	if err != nil {
		return core.YearSummary{}, fmt.Errorf("look up spreadsheet: %w", err)
	}

	var out core.YearSummary
	err = s.runner.Do(ctx, userID, func(ctx context.Context, wb sheets.Workbook) error {
		var err error
		out, err = s.summary.Read(ctx, wb, ss.SpreadsheetID, year, now)
		return err
	})
	if errors.Is(err, sheets.ErrSpreadsheetNotFound) {
		s.forget(ctx, ss)
		return core.EmptySummary(year), nil
	}
	if err != nil {
		return core.YearSummary{}, err
	}
	return out, nil
}

// forget drops a cached year whose spreadsheet was deleted remotely. Reads
// never provision, so the next write recreates it.
func (s *ExpenseService) forget(ctx context.Context, ss storage.UserSpreadsheet) {
	if err := s.prov.ForgetSpreadsheet(ctx, ss); err != nil {
		s.logger.WarnContext(ctx, "Failed to drop stale spreadsheet", log.FieldSpreadsheetID, ss.SpreadsheetID, log.FieldError, err)
	}
}
