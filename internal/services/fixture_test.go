package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/sheets/memory"
	"sheetexpense/internal/storage"

	"github.com/stretchr/testify/require"
)

var allOps = []string{
	memory.OpCreateSpreadsheet, memory.OpDeleteSpreadsheet, memory.OpListSheets,
	memory.OpAddSheet, memory.OpDeleteSheet, memory.OpGetValues,
	memory.OpUpdateValues, memory.OpAppendValues, memory.OpDeleteRows,
}

// tokenRunner hands every call the same workbook.
type tokenRunner struct {
	wb sheets.Workbook
}

func (r tokenRunner) Do(ctx context.Context, _ int64, fn func(context.Context, sheets.Workbook) error) error {
	return fn(ctx, r.wb)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []*amqp.Event
}

func (r *recordedEvents) Publish(_ context.Context, ev *amqp.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordedEvents) types() []amqp.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]amqp.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	ctx        context.Context
	repo       *storage.Repository
	mem        *memory.Service
	wb         *memory.Client
	userID     int64
	events     *recordedEvents
	summary    *SummarySync
	prov       *Provisioner
	expenses   *ExpenseService
	categories *CategoryService
	resync     *Resyncer
}

var fixedNow = time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	u, err := repo.UpsertUser(ctx, "g-1", "ada@example.com", "tok", "refresh")
	require.NoError(t, err)

	mem := memory.New()
	wb := mem.Workbook("tok")
	logger := log.Discard().Logger
	events := &recordedEvents{}
	runner := tokenRunner{wb: wb}

	summary := NewSummarySync(logger)
	prov := NewProvisioner(repo, summary, events, logger)
	expenses := NewExpenseService(runner, repo, prov, summary, events, logger)
	expenses.now = func() time.Time { return fixedNow }
	categories := NewCategoryService(runner, prov, logger)
	categories.now = func() time.Time { return fixedNow }

	return &fixture{
		ctx:        ctx,
		repo:       repo,
		mem:        mem,
		wb:         wb,
		userID:     u.ID,
		events:     events,
		summary:    summary,
		prov:       prov,
		expenses:   expenses,
		categories: categories,
		resync:     NewResyncer(runner, repo, summary, logger),
	}
}

func (f *fixture) totalCalls() int {
	n := 0
	for _, op := range allOps {
		n += f.mem.Calls(op)
	}
	return n
}

func (f *fixture) spreadsheet(t *testing.T, year int) storage.UserSpreadsheet {
	t.Helper()
	ss, err := f.prov.EnsureSpreadsheet(f.ctx, f.wb, f.userID, year)
	require.NoError(t, err)
	return ss
}
