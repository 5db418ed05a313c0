package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/storage"
)

// Summary tab grid.
const (
	summaryGridRows = core.SummaryRows
	summaryGridCols = core.SummaryCols
)

// Provisioner lazily creates the yearly spreadsheet and its month tabs and
// keeps their identifiers in the cache. Races are tolerated: the cache's
// unique keys pick a winner and "tab already exists" counts as success.
type Provisioner struct {
	cache   Cache
	summary *SummarySync
	events  EventPublisher
	logger  *slog.Logger
}

func NewProvisioner(cache Cache, summary *SummarySync, events EventPublisher, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{cache: cache, summary: summary, events: events, logger: logger}
}

// EnsureSpreadsheet returns the user's spreadsheet for year, creating it on
// first use, and verifies its Summary and Categories tabs every time. A
// cached spreadsheet that was deleted remotely is forgotten and replaced
// once.
func (p *Provisioner) EnsureSpreadsheet(ctx context.Context, wb sheets.Workbook, userID int64, year int) (storage.UserSpreadsheet, error) {
	if err := core.ValidateYear(year); err != nil {
		return storage.UserSpreadsheet{}, err
	}

	ss, created, err := p.lookupOrCreate(ctx, wb, userID, year)
	if err != nil {
		return storage.UserSpreadsheet{}, err
	}
	err = p.ensureStructure(ctx, wb, ss, created)
	if errors.Is(err, sheets.ErrSpreadsheetNotFound) && !created {
		if ferr := p.ForgetSpreadsheet(ctx, ss); ferr != nil {
			return storage.UserSpreadsheet{}, ferr
		}
		if ss, created, err = p.lookupOrCreate(ctx, wb, userID, year); err != nil {
			return storage.UserSpreadsheet{}, err
		}
		err = p.ensureStructure(ctx, wb, ss, created)
	}
	if err != nil {
		return storage.UserSpreadsheet{}, err
	}
	return ss, nil
}

func (p *Provisioner) lookupOrCreate(ctx context.Context, wb sheets.Workbook, userID int64, year int) (storage.UserSpreadsheet, bool, error) {
	ss, err := p.cache.GetSpreadsheet(ctx, userID, year)
	switch {
	case err == nil:
		return ss, false, nil
	case storage.IsNotFound(err):
		return p.createSpreadsheet(ctx, wb, userID, year)
	default:
		return storage.UserSpreadsheet{}, false, fmt.Errorf("look up spreadsheet: %w", err)
	}
}

// createSpreadsheet reports whether this call's container won the race.
func (p *Provisioner) createSpreadsheet(ctx context.Context, wb sheets.Workbook, userID int64, year int) (storage.UserSpreadsheet, bool, error) {
	remoteID, err := wb.CreateSpreadsheet(ctx, core.SpreadsheetTitle(year))
	if err != nil {
		return storage.UserSpreadsheet{}, false, fmt.Errorf("create spreadsheet for %d: %w", year, err)
	}

	ss, err := p.cache.CreateSpreadsheet(ctx, userID, year, remoteID)
	if err == nil {
		p.logger.InfoContext(ctx, "Spreadsheet created",
			log.FieldUserID, userID,
			log.FieldYear, year,
			log.FieldSpreadsheetID, remoteID)
		return ss, true, nil
	}
	if !storage.IsConflict(err) {
		return storage.UserSpreadsheet{}, false, fmt.Errorf("cache spreadsheet: %w", err)
	}

	winner, ferr := p.cache.GetSpreadsheet(ctx, userID, year)
	if ferr != nil {
		return storage.UserSpreadsheet{}, false, fmt.Errorf("re-fetch spreadsheet after conflict: %w", ferr)
	}
	p.logger.InfoContext(ctx, "Concurrent spreadsheet creation, using existing",
		log.FieldUserID, userID,
		log.FieldYear, year,
		log.FieldSpreadsheetID, winner.SpreadsheetID,
		log.FieldOrphanID, remoteID)
	if derr := wb.DeleteSpreadsheet(ctx, remoteID); derr != nil {
		p.logger.WarnContext(ctx, "Failed to delete orphaned spreadsheet", log.FieldOrphanID, remoteID, log.FieldError, derr)
	}
	return winner, false, nil
}

// ForgetSpreadsheet drops the cached year and its month tabs after the
// remote spreadsheet vanished.
func (p *Provisioner) ForgetSpreadsheet(ctx context.Context, ss storage.UserSpreadsheet) error {
	if err := p.cache.DeleteSpreadsheet(ctx, ss.UserID, ss.Year, ss.SpreadsheetID); err != nil {
		return fmt.Errorf("drop stale spreadsheet: %w", err)
	}
	p.logger.WarnContext(ctx, "Dropped stale spreadsheet mapping",
		log.FieldUserID, ss.UserID,
		log.FieldYear, ss.Year,
		log.FieldSpreadsheetID, ss.SpreadsheetID)
	return nil
}

func (p *Provisioner) ensureStructure(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet, created bool) error {
	tabs, err := wb.ListSheets(ctx, ss.SpreadsheetID)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}

	if _, ok := sheets.FindSheet(tabs, core.SummarySheet); !ok {
		if err := p.addSummary(ctx, wb, ss); err != nil {
			return err
		}
	}
	if _, ok := sheets.FindSheet(tabs, core.CategoriesSheet); !ok {
		if err := p.addCategories(ctx, wb, ss.SpreadsheetID); err != nil {
			return err
		}
	}
	p.removeDefaultSheet(ctx, wb, ss.SpreadsheetID, tabs, created)
	return nil
}

func (p *Provisioner) addSummary(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet) error {
	_, err := wb.AddSheet(ctx, ss.SpreadsheetID, sheets.SheetInfo{
		Title: core.SummarySheet,
		Rows:  summaryGridRows,
		Cols:  summaryGridCols,
	})
	if errors.Is(err, sheets.ErrSheetExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	if err := p.summary.SyncAll(ctx, wb, ss.SpreadsheetID, ss.Year); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Summary sheet added", log.FieldSpreadsheetID, ss.SpreadsheetID)
	return nil
}

func (p *Provisioner) addCategories(ctx context.Context, wb sheets.Workbook, spreadsheetID string) error {
	_, err := wb.AddSheet(ctx, spreadsheetID, sheets.SheetInfo{Title: core.CategoriesSheet})
	if errors.Is(err, sheets.ErrSheetExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("add categories sheet: %w", err)
	}

	seed := make(sheets.Values, 0, len(core.DefaultCategories)+1)
	seed = append(seed, []any{core.CategoriesHeader})
	for _, name := range core.DefaultCategories {
		seed = append(seed, []any{name})
	}
	rng := core.Range(core.CategoriesSheet, fmt.Sprintf("A1:A%d", len(seed)))
	if err := wb.UpdateValues(ctx, spreadsheetID, rng, seed, sheets.Raw); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	p.logger.InfoContext(ctx, "Categories sheet added", log.FieldSpreadsheetID, spreadsheetID)
	return nil
}

// removeDefaultSheet drops the tab a new spreadsheet starts with when it is
// the only tab besides the structural and month tabs. It matches by title,
// or by the first sheet id on the call that created the spreadsheet, where
// a localized default title is still certain to be ours. Failure is logged
// only.
func (p *Provisioner) removeDefaultSheet(ctx context.Context, wb sheets.Workbook, spreadsheetID string, tabs []sheets.SheetInfo, created bool) {
	var extra []sheets.SheetInfo
	for _, t := range tabs {
		if t.Title == core.SummarySheet || t.Title == core.CategoriesSheet || core.MonthIndex(t.Title) > 0 {
			continue
		}
		extra = append(extra, t)
	}
	if len(extra) != 1 {
		return
	}
	t := extra[0]
	if t.Title != core.DefaultSheet && !(created && t.ID == 0) {
		return
	}
	if err := wb.DeleteSheet(ctx, spreadsheetID, t.ID); err != nil {
		p.logger.WarnContext(ctx, "Failed to remove default sheet",
			log.FieldSpreadsheetID, spreadsheetID,
			log.FieldSheetTitle, t.Title,
			log.FieldError, err)
	}
}

// EnsureMonthSheet returns the tab for month, creating it on a cache miss.
// A cache hit makes no remote call.
func (p *Provisioner) EnsureMonthSheet(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet, month string) (storage.UserSheet, error) {
	idx := core.MonthIndex(month)
	if idx == 0 {
		return storage.UserSheet{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, month)
	}
	month, _ = core.MonthName(idx)

	sh, err := p.cache.GetSheet(ctx, ss.ID, month)
	if err == nil {
		return sh, nil
	}
	if !storage.IsNotFound(err) {
		return storage.UserSheet{}, fmt.Errorf("look up sheet: %w", err)
	}

	sheetID, err := p.addMonthSheet(ctx, wb, ss.SpreadsheetID, month)
	if err != nil {
		return storage.UserSheet{}, err
	}

	sh, err = p.cache.CreateSheet(ctx, ss.ID, month, sheetID)
	if storage.IsConflict(err) {
		sh, err = p.cache.GetSheet(ctx, ss.ID, month)
	}
	if err != nil {
		return storage.UserSheet{}, fmt.Errorf("cache sheet: %w", err)
	}

	p.logger.InfoContext(ctx, "Month sheet provisioned",
		log.FieldSpreadsheetID, ss.SpreadsheetID,
		log.FieldMonth, month,
		log.FieldSheetID, sheetID)

	// A new tab changes which formula ranges resolve.
	if err := p.summary.SyncAll(ctx, wb, ss.SpreadsheetID, ss.Year); err != nil {
		p.logger.WarnContext(ctx, "Summary re-assert failed after new sheet", log.FieldMonth, month, log.FieldError, err)
	}
	publish(ctx, p.events, p.logger, amqp.NewEvent(amqp.EventSheetProvisioned, ss.UserID, ss.Year, month))
	return sh, nil
}

func (p *Provisioner) addMonthSheet(ctx context.Context, wb sheets.Workbook, spreadsheetID, month string) (int64, error) {
	sheetID, err := wb.AddSheet(ctx, spreadsheetID, sheets.SheetInfo{Title: month})
	if errors.Is(err, sheets.ErrSheetExists) {
		tabs, lerr := wb.ListSheets(ctx, spreadsheetID)
		if lerr != nil {
			return 0, fmt.Errorf("list sheets: %w", lerr)
		}
		info, ok := sheets.FindSheet(tabs, month)
		if !ok {
			return 0, fmt.Errorf("sheet %s reported as existing but not listed: %w", month, err)
		}
		sheetID, err = info.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", month, err)
	}

	header := make([]any, len(core.MonthHeader))
	for i, h := range core.MonthHeader {
		header[i] = h
	}
	if err := wb.UpdateValues(ctx, spreadsheetID, core.Range(month, "A1:C1"), sheets.Values{header}, sheets.Raw); err != nil {
		return 0, fmt.Errorf("write header for %s: %w", month, err)
	}
	return sheetID, nil
}

// Forget drops a cached tab mapping after the remote tab vanished.
func (p *Provisioner) Forget(ctx context.Context, ss storage.UserSpreadsheet, month string) error {
	if err := p.cache.DeleteSheet(ctx, ss.ID, month); err != nil {
		return err
	}
	p.logger.WarnContext(ctx, "Dropped stale sheet mapping", log.FieldSpreadsheetID, ss.SpreadsheetID, log.FieldMonth, month)
	return nil
}
