package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Resyncer re-asserts Summary formulas for one user and year.
type Resyncer interface {
	Resync(ctx context.Context, userID int64, year int, month string) error
}

// Catalog lists what the worker sweeps at startup.
type Catalog interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListSpreadsheets(ctx context.Context, userID int64) ([]storage.UserSpreadsheet, error)
}

// ResyncWorker keeps Summary tabs consistent after structural events
type ResyncWorker struct {
	resync      Resyncer
	catalog     Catalog
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

func NewResyncWorker(resync Resyncer, catalog Catalog, timeout time.Duration, logger *slog.Logger) *ResyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResyncWorker{
		resync:      resync,
		catalog:     catalog,
		timeout:     timeout,
		concurrency: 4,
		logger:      logger,
	}
}

// HandleEvent processes a single event from AMQP
func (w *ResyncWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	switch ev.Type {
	case amqp.EventSheetProvisioned, amqp.EventExpenseRecorded, amqp.EventResyncRequested:
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", log.FieldEventID, ev.ID, log.FieldEventType, ev.Type)
		return fmt.Errorf("%w: unknown event type %q", amqp.ErrDiscard, ev.Type)
	}

	w.logger.InfoContext(ctx, "Processing event",
		log.FieldEventID, ev.ID,
		log.FieldEventType, ev.Type,
		log.FieldUserID, ev.UserID,
		log.FieldYear, ev.Year,
		log.FieldMonth, ev.Month)

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.resync.Resync(ctx, ev.UserID, ev.Year, ev.Month)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrNotFound):
		// The user has to act first; redelivery would fail the same way.
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	default:
		return fmt.Errorf("resync user %d year %d: %w", ev.UserID, ev.Year, err)
	}
}

// StartupResync re-asserts every cached spreadsheet's Summary. It recovers
// rows left stale while the worker was down; individual failures are logged
// and counted, never fatal.
func (w *ResyncWorker) StartupResync(ctx context.Context) error {
	userIDs, err := w.catalog.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(userIDs) == 0 {
		w.logger.InfoContext(ctx, "No users to resync on startup")
		return nil
	}

	var synced, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			books, err := w.catalog.ListSpreadsheets(gctx, userID)
			if err != nil {
				w.logger.ErrorContext(gctx, "Failed to list spreadsheets", log.FieldUserID, userID, log.FieldError, err)
				failed.Add(1)
				return nil
			}
			for _, b := range books {
				rctx, cancel := context.WithTimeout(gctx, w.timeout)
				err := w.resync.Resync(rctx, userID, b.Year, "")
				cancel()
				if err != nil {
					w.logger.ErrorContext(gctx, "Startup resync failed", log.FieldUserID, userID, log.FieldYear, b.Year, log.FieldError, err)
					failed.Add(1)
					continue
				}
				synced.Add(1)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Startup resync completed",
		log.FieldUserCount, len(userIDs),
		log.FieldSynced, synced.Load(),
		log.FieldFailed, failed.Load())
	return nil
}
