// Package memory is an in-process spreadsheet service used by the memory
// backend and by tests. It keeps the same error contract as the Google
// adapter: unknown tabs yield sheets.ErrRangeNotFound, duplicate tab titles
// yield sheets.ErrSheetExists and revoked tokens yield sheets.ErrUnauthorized.
package memory

import (
	"context"
	"fmt"
	"sync"

	"sheetexpense/internal/sheets"
)

// Operation names used for call counting and error injection.
const (
	OpCreateSpreadsheet = "create_spreadsheet"
	OpDeleteSpreadsheet = "delete_spreadsheet"
	OpListSheets        = "list_sheets"
	OpAddSheet          = "add_sheet"
	OpDeleteSheet       = "delete_sheet"
	OpGetValues         = "get_values"
	OpUpdateValues      = "update_values"
	OpAppendValues      = "append_values"
	OpDeleteRows        = "delete_rows"
)

type tab struct {
	id    int64
	title string
	rows  int64
	cols  int64
	cells [][]any
}

type book struct {
	id    string
	title string
	tabs  []*tab
}

func (b *book) find(title string) *tab {
	for _, t := range b.tabs {
		if t.title == title {
			return t
		}
	}
	return nil
}

// Service holds every spreadsheet of every user.
type Service struct {
	mu        sync.Mutex
	books     map[string]*book
	nextBook  int
	nextSheet int64
	revoked   map[string]struct{}
	calls     map[string]int
	failures  map[string][]error
}

func New() *Service {
	return &Service{
		books:     make(map[string]*book),
		nextSheet: 1,
		revoked:   make(map[string]struct{}),
		calls:     make(map[string]int),
		failures:  make(map[string][]error),
	}
}

// Client is a Workbook bound to one access token.
type Client struct {
	svc   *Service
	token string
}

var _ sheets.Workbook = (*Client)(nil)

// Workbook returns a client authenticated with accessToken.
func (s *Service) Workbook(accessToken string) *Client {
	return &Client{svc: s, token: accessToken}
}

// Revoke makes every later call with token fail with ErrUnauthorized.
func (s *Service) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = struct{}{}
}

// InjectError queues a one-shot failure for the next call of op.
func (s *Service) InjectError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls reports how many times op was attempted.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// SpreadsheetCount reports how many spreadsheets exist.
func (s *Service) SpreadsheetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books)
}

// Title returns a spreadsheet's title.
func (s *Service) Title(spreadsheetID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[spreadsheetID]; ok {
		return b.title
	}
	return ""
}

// SheetTitles lists the tab titles of a spreadsheet in order.
func (s *Service) SheetTitles(spreadsheetID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[spreadsheetID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(b.tabs))
	for _, t := range b.tabs {
		out = append(out, t.title)
	}
	return out
}

// Cells returns a copy of every stored row of a tab.
func (s *Service) Cells(spreadsheetID, title string) sheets.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[spreadsheetID]
	if !ok {
		return nil
	}
	t := b.find(title)
	if t == nil {
		return nil
	}
	out := make(sheets.Values, len(t.cells))
	for i, row := range t.cells {
		out[i] = append([]any(nil), row...)
	}
	return out
}

// RemoveSheet deletes a tab out of band, as a user would in the UI.
func (s *Service) RemoveSheet(spreadsheetID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[spreadsheetID]
	if !ok {
		return
	}
	for i, t := range b.tabs {
		if t.title == title {
			b.tabs = append(b.tabs[:i], b.tabs[i+1:]...)
			return
		}
	}
}

// begin must be called with s.mu held.
func (s *Service) begin(op, token string) error {
	s.calls[op]++
	if q := s.failures[op]; len(q) > 0 {
		s.failures[op] = q[1:]
		return q[0]
	}
	if _, ok := s.revoked[token]; ok {
		return fmt.Errorf("%s: %w", op, sheets.ErrUnauthorized)
	}
	return nil
}

func (s *Service) book(id string) (*book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("spreadsheet %s: %w", id, sheets.ErrSpreadsheetNotFound)
	}
	return b, nil
}

func (c *Client) CreateSpreadsheet(_ context.Context, title string) (string, error) {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCreateSpreadsheet, c.token); err != nil {
		return "", err
	}
	s.nextBook++
	id := fmt.Sprintf("mem-%d", s.nextBook)
	s.books[id] = &book{
		id:    id,
		title: title,
		tabs:  []*tab{{id: 0, title: "Sheet1", rows: 1000, cols: 26}},
	}
	return id, nil
}

func (c *Client) DeleteSpreadsheet(_ context.Context, spreadsheetID string) error {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDeleteSpreadsheet, c.token); err != nil {
		return err
	}
	if _, err := s.book(spreadsheetID); err != nil {
		return err
	}
	delete(s.books, spreadsheetID)
	return nil
}

func (c *Client) ListSheets(_ context.Context, spreadsheetID string) ([]sheets.SheetInfo, error) {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpListSheets, c.token); err != nil {
		return nil, err
	}
	b, err := s.book(spreadsheetID)
	if err != nil {
		return nil, err
	}
	out := make([]sheets.SheetInfo, 0, len(b.tabs))
	for _, t := range b.tabs {
		out = append(out, sheets.SheetInfo{ID: t.id, Title: t.title, Rows: t.rows, Cols: t.cols})
	}
	return out, nil
}

func (c *Client) AddSheet(_ context.Context, spreadsheetID string, info sheets.SheetInfo) (int64, error) {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpAddSheet, c.token); err != nil {
		return 0, err
	}
	b, err := s.book(spreadsheetID)
	if err != nil {
		return 0, err
	}
	if b.find(info.Title) != nil {
		return 0, fmt.Errorf("a sheet with the name %q: %w", info.Title, sheets.ErrSheetExists)
	}
	t := &tab{id: s.nextSheet, title: info.Title, rows: info.Rows, cols: info.Cols}
	if t.rows == 0 {
		t.rows = 1000
	}
	if t.cols == 0 {
		t.cols = 26
	}
	s.nextSheet++
	b.tabs = append(b.tabs, t)
	return t.id, nil
}

func (c *Client) DeleteSheet(_ context.Context, spreadsheetID string, sheetID int64) error {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDeleteSheet, c.token); err != nil {
		return err
	}
	b, err := s.book(spreadsheetID)
	if err != nil {
		return err
	}
	for i, t := range b.tabs {
		if t.id != sheetID {
			continue
		}
		if len(b.tabs) == 1 {
			return fmt.Errorf("cannot remove the only sheet of %s", spreadsheetID)
		}
		b.tabs = append(b.tabs[:i], b.tabs[i+1:]...)
		return nil
	}
	return fmt.Errorf("no sheet with id %d", sheetID)
}

func (s *Service) resolve(spreadsheetID, rng string) (*tab, a1Range, error) {
	b, err := s.book(spreadsheetID)
	if err != nil {
		return nil, a1Range{}, err
	}
	r, err := parseA1(rng)
	if err != nil {
		return nil, a1Range{}, fmt.Errorf("%s: %w", err.Error(), sheets.ErrRangeNotFound)
	}
	t := b.find(r.sheet)
	if t == nil {
		return nil, a1Range{}, fmt.Errorf("unable to parse range %s: %w", rng, sheets.ErrRangeNotFound)
	}
	return t, r, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func (c *Client) GetValues(_ context.Context, spreadsheetID, rng string) (sheets.Values, error) {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpGetValues, c.token); err != nil {
		return nil, err
	}
	t, r, err := s.resolve(spreadsheetID, rng)
	if err != nil {
		return nil, err
	}

	last := len(t.cells) - 1
	if r.endRow >= 0 && r.endRow < last {
		last = r.endRow
	}
	var out sheets.Values
	for i := r.startRow; i <= last; i++ {
		row := t.cells[i]
		var cells []any
		for j := r.startCol; j <= r.endCol && j < len(row); j++ {
			cells = append(cells, row[j])
		}
		for len(cells) > 0 && isBlank(cells[len(cells)-1]) {
			cells = cells[:len(cells)-1]
		}
		if cells == nil {
			cells = []any{}
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (t *tab) set(row, col int, v any) {
	for len(t.cells) <= row {
		t.cells = append(t.cells, nil)
	}
	for len(t.cells[row]) <= col {
		t.cells[row] = append(t.cells[row], nil)
	}
	t.cells[row][col] = v
}

func (c *Client) UpdateValues(_ context.Context, spreadsheetID, rng string, values sheets.Values, _ sheets.InputOption) error {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpdateValues, c.token); err != nil {
		return err
	}
	t, r, err := s.resolve(spreadsheetID, rng)
	if err != nil {
		return err
	}
	for i, row := range values {
		for j, v := range row {
			t.set(r.startRow+i, r.startCol+j, v)
		}
	}
	return nil
}

func (c *Client) AppendValues(_ context.Context, spreadsheetID, rng string, values sheets.Values, _ sheets.InputOption) error {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpAppendValues, c.token); err != nil {
		return err
	}
	t, r, err := s.resolve(spreadsheetID, rng)
	if err != nil {
		return err
	}
	next := 0
	for i, row := range t.cells {
		for j := r.startCol; j <= r.endCol && j < len(row); j++ {
			if !isBlank(row[j]) {
				next = i + 1
				break
			}
		}
	}
	for i, row := range values {
		for j, v := range row {
			t.set(next+i, r.startCol+j, v)
		}
	}
	return nil
}

func (c *Client) DeleteRows(_ context.Context, spreadsheetID string, sheetID int64, start, end int64) error {
	s := c.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDeleteRows, c.token); err != nil {
		return err
	}
	b, err := s.book(spreadsheetID)
	if err != nil {
		return err
	}
	if start < 0 || end <= start {
		return fmt.Errorf("invalid row span [%d, %d)", start, end)
	}
	for _, t := range b.tabs {
		if t.id != sheetID {
			continue
		}
		n := int64(len(t.cells))
		if start >= n {
			return nil
		}
		if end > n {
			end = n
		}
		t.cells = append(t.cells[:start], t.cells[end:]...)
		return nil
	}
	return fmt.Errorf("no sheet with id %d", sheetID)
}
