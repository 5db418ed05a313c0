package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sheetexpense/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[string](10, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "w")
	now = now.Add(30 * time.Second)
	c.Set("other", "w2")

	now = now.Add(45 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.CleanExpired(), "Get already dropped k and other is fresh")

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Len())
}

type countingStore struct {
	Store
	spreadsheetReads, sheetReads int
}

func (s *countingStore) GetSpreadsheet(ctx context.Context, userID int64, year int) (storage.UserSpreadsheet, error) {
	s.spreadsheetReads++
	return s.Store.GetSpreadsheet(ctx, userID, year)
}

func (s *countingStore) GetSheet(ctx context.Context, id int64, month string) (storage.UserSheet, error) {
	s.sheetReads++
	return s.Store.GetSheet(ctx, id, month)
}

func TestIdentifiers(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.Open(ctx, filepath.Join(t.TempDir(), "ids.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	u, err := repo.UpsertUser(ctx, "g-1", "a@example.com", "a", "r")
	require.NoError(t, err)

	store := &countingStore{Store: repo}
	ids := NewIdentifiers(store, 16, time.Hour)

	_, err = ids.GetSpreadsheet(ctx, u.ID, 2024)
	require.True(t, storage.IsNotFound(err), "misses are not cached")

	ss, err := ids.CreateSpreadsheet(ctx, u.ID, 2024, "sheet-2024")
	require.NoError(t, err)
	got, err := ids.GetSpreadsheet(ctx, u.ID, 2024)
	require.NoError(t, err)
	assert.Equal(t, ss, got)
	assert.Equal(t, 1, store.spreadsheetReads, "created rows are served from memory")

	sh, err := ids.CreateSheet(ctx, ss.ID, "March", 77)
	require.NoError(t, err)
	got2, err := ids.GetSheet(ctx, ss.ID, "March")
	require.NoError(t, err)
	assert.Equal(t, sh.SheetID, got2.SheetID)
	assert.Equal(t, 0, store.sheetReads)

	require.NoError(t, ids.DeleteSheet(ctx, ss.ID, "March"))
	_, err = ids.GetSheet(ctx, ss.ID, "March")
	assert.True(t, storage.IsNotFound(err))
	assert.Equal(t, 1, store.sheetReads)

	stats := ids.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestIdentifiersDeleteSpreadsheetEvictsMonths(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.Open(ctx, filepath.Join(t.TempDir(), "ids.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	u, err := repo.UpsertUser(ctx, "g-1", "a@example.com", "a", "r")
	require.NoError(t, err)

	store := &countingStore{Store: repo}
	ids := NewIdentifiers(store, 16, time.Hour)
	ss, err := ids.CreateSpreadsheet(ctx, u.ID, 2024, "trashed")
	require.NoError(t, err)
	_, err = ids.CreateSheet(ctx, ss.ID, "April", 4)
	require.NoError(t, err)

	require.NoError(t, ids.DeleteSpreadsheet(ctx, u.ID, 2024, "trashed"))

	_, err = ids.GetSpreadsheet(ctx, u.ID, 2024)
	assert.True(t, storage.IsNotFound(err))
	_, err = ids.GetSheet(ctx, ss.ID, "April")
	assert.True(t, storage.IsNotFound(err))
	assert.Equal(t, 1, store.sheetReads, "evicted month went to the store")

	require.NoError(t, ids.DeleteSpreadsheet(ctx, u.ID, 2024, "trashed"), "deleting twice is harmless")
}

func TestIdentifiersCleanupStops(t *testing.T) {
	ids := NewIdentifiers(nil, 4, time.Millisecond)
	ids.StartCleanup(time.Millisecond, nil)
	ids.Stop()
	ids.Stop()
}
