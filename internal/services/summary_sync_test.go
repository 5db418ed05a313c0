package services

import (
	"testing"

	"sheetexpense/internal/core"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/sheets/memory"
	"sheetexpense/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMonthTouchesOneRow(t *testing.T) {
	f := newFixture(t)
	ss := f.spreadsheet(t, 2024)
	require.NoError(t, f.wb.UpdateValues(f.ctx, ss.SpreadsheetID, core.SummaryMonthsRange, sheets.Values{
		{"January", "stale", "stale", "stale"},
		{"February", "stale", "stale", "stale"},
	}, sheets.Raw))

	require.NoError(t, f.summary.SyncMonth(f.ctx, f.wb, ss.SpreadsheetID, 2024, 2))

	cells := f.mem.Cells(ss.SpreadsheetID, core.SummarySheet)
	assert.Equal(t, "stale", cells[core.SummaryRow(1)-1][1])
	assert.Equal(t, "=IFERROR(SUM('February'!B2:B),0)", cells[core.SummaryRow(2)-1][1])

	assert.Error(t, f.summary.SyncMonth(f.ctx, f.wb, ss.SpreadsheetID, 2024, 13))
}

func TestSyncAllIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ss := f.spreadsheet(t, 2024)
	before := f.mem.Cells(ss.SpreadsheetID, core.SummarySheet)

	require.NoError(t, f.summary.SyncAll(f.ctx, f.wb, ss.SpreadsheetID, 2024))
	require.NoError(t, f.summary.SyncAll(f.ctx, f.wb, ss.SpreadsheetID, 2024))
	assert.Equal(t, before, f.mem.Cells(ss.SpreadsheetID, core.SummarySheet))
}

func TestReadWithoutSummaryTab(t *testing.T) {
	f := newFixture(t)
	ss := f.spreadsheet(t, 2024)
	f.mem.RemoveSheet(ss.SpreadsheetID, core.SummarySheet)

	got, err := f.summary.Read(f.ctx, f.wb, ss.SpreadsheetID, 2024, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, core.EmptySummary(2024), got)
}

func TestResync(t *testing.T) {
	f := newFixture(t)

	t.Run("skips years without a spreadsheet", func(t *testing.T) {
		require.NoError(t, f.resync.Resync(f.ctx, f.userID, 2022, ""))
		assert.Zero(t, f.totalCalls())
	})

	ss := f.spreadsheet(t, 2024)
	require.NoError(t, f.wb.UpdateValues(f.ctx, ss.SpreadsheetID, core.SummaryMonthsRange, sheets.Values{
		{"January", 1.0, 1.0, 1.0},
		{"February", 1.0, 1.0, 1.0},
		{"March", 1.0, 1.0, 1.0},
	}, sheets.Raw))

	t.Run("single month", func(t *testing.T) {
		updates := f.mem.Calls(memory.OpUpdateValues)
		require.NoError(t, f.resync.Resync(f.ctx, f.userID, 2024, "march"))
		assert.Equal(t, updates+1, f.mem.Calls(memory.OpUpdateValues))

		cells := f.mem.Cells(ss.SpreadsheetID, core.SummarySheet)
		assert.Equal(t, 1.0, cells[core.SummaryRow(1)-1][1])
		assert.Equal(t, "=IFERROR(SUM('March'!B2:B),0)", cells[core.SummaryRow(3)-1][1])
	})

	t.Run("whole year", func(t *testing.T) {
		require.NoError(t, f.resync.Resync(f.ctx, f.userID, 2024, ""))
		cells := f.mem.Cells(ss.SpreadsheetID, core.SummarySheet)
		assert.Equal(t, "=IFERROR(SUM('January'!B2:B),0)", cells[core.SummaryRow(1)-1][1])
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.ErrorIs(t, f.resync.Resync(f.ctx, f.userID, 2024, "Smarch"), core.ErrInvalidMonth)
		assert.ErrorIs(t, f.resync.Resync(f.ctx, f.userID, 3000, ""), core.ErrInvalidYear)
	})
}

func TestReadRestoresBlankTotals(t *testing.T) {
	f := newFixture(t)
	ss := f.spreadsheet(t, 2024)
	require.NoError(t, f.wb.UpdateValues(f.ctx, ss.SpreadsheetID, core.SummaryStatsRange, sheets.Values{
		{"", ""}, {"", ""}, {"", ""},
	}, sheets.Raw))

	_, err := f.summary.Read(f.ctx, f.wb, ss.SpreadsheetID, 2024, fixedNow)
	require.NoError(t, err)

	cells := f.mem.Cells(ss.SpreadsheetID, core.SummarySheet)
	assert.Equal(t, "=SUM(B13:B24)", cells[2][1])
	assert.Equal(t, "=SUM(C13:C24)", cells[3][1])
	assert.Equal(t, "Total Expenses", cells[2][0])
}

func TestResyncAfterSpreadsheetDeletedRemotely(t *testing.T) {
	f := newFixture(t)
	ss := f.spreadsheet(t, 2024)
	require.NoError(t, f.wb.DeleteSpreadsheet(f.ctx, ss.SpreadsheetID))

	assert.NoError(t, f.resync.Resync(f.ctx, f.userID, 2024, ""))
	_, err := f.repo.GetSpreadsheet(f.ctx, f.userID, 2024)
	assert.True(t, storage.IsNotFound(err))

	assert.NoError(t, f.resync.Resync(f.ctx, f.userID, 2024, "March"), "nothing left to resync")
}
