package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/storage"
)

// Resyncer re-asserts Summary formulas outside a request, for the worker
// and the admin CLI.
type Resyncer struct {
	runner  Runner
	cache   Cache
	summary *SummarySync
	logger  *slog.Logger
}

func NewResyncer(runner Runner, cache Cache, summary *SummarySync, logger *slog.Logger) *Resyncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resyncer{runner: runner, cache: cache, summary: summary, logger: logger}
}

// Resync rewrites one month row, or all twelve when month is empty. Years
// without a cached spreadsheet are skipped.
func (r *Resyncer) Resync(ctx context.Context, userID int64, year int, month string) error {
	if err := core.ValidateYear(year); err != nil {
		return err
	}
	monthIdx := 0
	if month != "" {
		var err error
		if monthIdx, err = core.ParseMonth(month); err != nil {
			return err
		}
	}

	ss, err := r.cache.GetSpreadsheet(ctx, userID, year)
	if storage.IsNotFound(err) {
		r.logger.InfoContext(ctx, "No spreadsheet to resync", log.FieldUserID, userID, log.FieldYear, year)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up spreadsheet: %w", err)
	}

	err = r.runner.Do(ctx, userID, func(ctx context.Context, wb sheets.Workbook) error {
		if monthIdx > 0 {
			return r.summary.SyncMonth(ctx, wb, ss.SpreadsheetID, year, monthIdx)
		}
		return r.summary.SyncAll(ctx, wb, ss.SpreadsheetID, year)
	})
	if errors.Is(err, sheets.ErrSpreadsheetNotFound) {
		// Deleted remotely: nothing to resync until the next write recreates it.
		if derr := r.cache.DeleteSpreadsheet(ctx, userID, year, ss.SpreadsheetID); derr != nil {
			return fmt.Errorf("drop stale spreadsheet: %w", derr)
		}
		r.logger.WarnContext(ctx, "Dropped stale spreadsheet mapping",
			log.FieldUserID, userID,
			log.FieldYear, year,
			log.FieldSpreadsheetID, ss.SpreadsheetID)
		return nil
	}
	return err
}
