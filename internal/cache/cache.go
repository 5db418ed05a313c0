// Package cache keeps recently used spreadsheet and sheet identifiers in
// process memory in front of the database.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/storage"
)

// Store is the identifier persistence being fronted.
type Store interface {
	GetSpreadsheet(ctx context.Context, userID int64, year int) (storage.UserSpreadsheet, error)
	CreateSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) (storage.UserSpreadsheet, error)
	GetSheet(ctx context.Context, spreadsheetRowID int64, month string) (storage.UserSheet, error)
	CreateSheet(ctx context.Context, spreadsheetRowID int64, month string, sheetID int64) (storage.UserSheet, error)
	DeleteSheet(ctx context.Context, spreadsheetRowID int64, month string) error
	DeleteSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) error
}

// Identifiers memoizes successful lookups. Misses always reach the store,
// so a freshly provisioned year or month is never hidden.
type Identifiers struct {
	store        Store
	spreadsheets *LRU[storage.UserSpreadsheet]
	sheets       *LRU[storage.UserSheet]
	hits, misses atomic.Int64

	stopCleanup  chan struct{}
	cleanupDone  chan struct{}
	shutdownOnce sync.Once
}

// Stats reports lookup outcomes.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

func NewIdentifiers(store Store, maxSize int, ttl time.Duration) *Identifiers {
	return &Identifiers{
		store:        store,
		spreadsheets: NewLRU[storage.UserSpreadsheet](maxSize, ttl),
		sheets:       NewLRU[storage.UserSheet](maxSize, ttl),
	}
}

func spreadsheetKey(userID int64, year int) string { return fmt.Sprintf("%d/%d", userID, year) }

func sheetKey(spreadsheetRowID int64, month string) string {
	return fmt.Sprintf("%d/%s", spreadsheetRowID, month)
}

func (c *Identifiers) GetSpreadsheet(ctx context.Context, userID int64, year int) (storage.UserSpreadsheet, error) {
	key := spreadsheetKey(userID, year)
	if ss, ok := c.spreadsheets.Get(key); ok {
		c.hits.Add(1)
		return ss, nil
	}
	c.misses.Add(1)
	ss, err := c.store.GetSpreadsheet(ctx, userID, year)
	if err != nil {
		return ss, err
	}
	c.spreadsheets.Set(key, ss)
	return ss, nil
}

func (c *Identifiers) CreateSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) (storage.UserSpreadsheet, error) {
	ss, err := c.store.CreateSpreadsheet(ctx, userID, year, spreadsheetID)
	if err != nil {
		return ss, err
	}
	c.spreadsheets.Set(spreadsheetKey(userID, year), ss)
	return ss, nil
}

func (c *Identifiers) GetSheet(ctx context.Context, spreadsheetRowID int64, month string) (storage.UserSheet, error) {
	key := sheetKey(spreadsheetRowID, month)
	if sh, ok := c.sheets.Get(key); ok {
		c.hits.Add(1)
		return sh, nil
	}
	c.misses.Add(1)
	sh, err := c.store.GetSheet(ctx, spreadsheetRowID, month)
	if err != nil {
		return sh, err
	}
	c.sheets.Set(key, sh)
	return sh, nil
}

func (c *Identifiers) CreateSheet(ctx context.Context, spreadsheetRowID int64, month string, sheetID int64) (storage.UserSheet, error) {
	sh, err := c.store.CreateSheet(ctx, spreadsheetRowID, month, sheetID)
	if err != nil {
		return sh, err
	}
	c.sheets.Set(sheetKey(spreadsheetRowID, month), sh)
	return sh, nil
}

func (c *Identifiers) DeleteSheet(ctx context.Context, spreadsheetRowID int64, month string) error {
	c.sheets.Delete(sheetKey(spreadsheetRowID, month))
	return c.store.DeleteSheet(ctx, spreadsheetRowID, month)
}

// DeleteSpreadsheet evicts the year and every month cached under it, when
// they still point at spreadsheetID, then deletes them from the store.
func (c *Identifiers) DeleteSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) error {
	key := spreadsheetKey(userID, year)
	ss, ok := c.spreadsheets.Get(key)
	if !ok {
		var err error
		if ss, err = c.store.GetSpreadsheet(ctx, userID, year); err != nil && !storage.IsNotFound(err) {
			return err
		}
	}
	if ss.SpreadsheetID == spreadsheetID {
		c.spreadsheets.Delete(key)
		for i := 1; i <= 12; i++ {
			month, _ := core.MonthName(i)
			c.sheets.Delete(sheetKey(ss.ID, month))
		}
	}
	return c.store.DeleteSpreadsheet(ctx, userID, year, spreadsheetID)
}

func (c *Identifiers) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.spreadsheets.Len() + c.sheets.Len(),
	}
}

// StartCleanup prunes expired entries every interval until Stop.
func (c *Identifiers) StartCleanup(interval time.Duration, logger *slog.Logger) {
	c.stopCleanup = make(chan struct{})
	c.cleanupDone = make(chan struct{})
	go func() {
		defer close(c.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.spreadsheets.CleanExpired() + c.sheets.CleanExpired(); n > 0 && logger != nil {
					logger.Debug("Pruned identifier cache", log.FieldRemoved, n)
				}
			case <-c.stopCleanup:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine, if any.
func (c *Identifiers) Stop() {
	c.shutdownOnce.Do(func() {
		if c.stopCleanup != nil {
			close(c.stopCleanup)
			<-c.cleanupDone
		}
	})
}
