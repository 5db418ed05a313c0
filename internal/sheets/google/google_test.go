package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ports "sheetexpense/internal/sheets"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", &googleapi.Error{Code: 401, Message: "Request had invalid authentication credentials."}, ports.ErrUnauthorized},
		{"missing tab", &googleapi.Error{Code: 400, Message: "Unable to parse range: 'April'!A:C"}, ports.ErrRangeNotFound},
		{"duplicate tab", &googleapi.Error{Code: 400, Message: `A sheet with the name "March" already exists. Please enter another name.`}, ports.ErrSheetExists},
		{"gone", &googleapi.Error{Code: 404, Message: "Requested entity was not found."}, ports.ErrSpreadsheetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(fmt.Errorf("wrapped: %w", tt.err))
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapError = %v, want %v", got, tt.want)
			}
			var gerr *googleapi.Error
			if !errors.As(got, &gerr) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}

	other := &googleapi.Error{Code: 500, Message: "backend error"}
	if got := mapError(other); got != error(other) {
		t.Fatalf("unmapped errors must pass through, got %v", got)
	}
	plain := errors.New("dial tcp: refused")
	if got := mapError(plain); got != plain {
		t.Fatalf("non-API errors must pass through, got %v", got)
	}
	if mapError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeAPI emulates the subset of the Sheets and Drive endpoints the client uses.
type fakeAPI struct {
	mu         sync.Mutex
	lastAuth   string
	lastQuery  map[string]string
	lastBody   map[string]any
	deletedIDs []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")
	f.lastQuery = map[string]string{}
	for k := range r.URL.Query() {
		f.lastQuery[k] = r.URL.Query().Get(k)
	}
	f.lastBody = nil
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
	}
	path := r.URL.Path

	switch {
	case strings.Contains(path, "expired"):
		writeAPIError(w, http.StatusUnauthorized, "Request had invalid authentication credentials.")
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/v4/spreadsheets"):
		writeJSON(w, map[string]any{"spreadsheetId": "abc"})
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/files/"):
		f.deletedIDs = append(f.deletedIDs, strings.TrimPrefix(path, "/files/"))
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		reqs, _ := f.lastBody["requests"].([]any)
		if len(reqs) == 1 {
			req, _ := reqs[0].(map[string]any)
			if add, ok := req["addSheet"].(map[string]any); ok {
				props, _ := add["properties"].(map[string]any)
				if props["title"] == "Dup" {
					writeAPIError(w, http.StatusBadRequest, `Invalid requests[0].addSheet: A sheet with the name "Dup" already exists.`)
					return
				}
				writeJSON(w, map[string]any{"replies": []any{
					map[string]any{"addSheet": map[string]any{"properties": map[string]any{"sheetId": 7, "title": props["title"]}}},
				}})
				return
			}
		}
		writeJSON(w, map[string]any{"replies": []any{map[string]any{}}})
	case strings.Contains(path, "/values/") && strings.Contains(path, "Missing"):
		writeAPIError(w, http.StatusBadRequest, "Unable to parse range: 'Missing'!A:C")
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		writeJSON(w, map[string]any{
			"range":  "'March'!A1:C3",
			"values": []any{[]any{"Date", "Amount", "Category"}, []any{}, []any{"2024-03-01", 12.5, "Food"}},
		})
	case strings.Contains(path, "/values/"):
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodGet && strings.Contains(path, "/v4/spreadsheets/"):
		writeJSON(w, map[string]any{"sheets": []any{
			map[string]any{"properties": map[string]any{"sheetId": 0, "title": "Sheet1", "gridProperties": map[string]any{"rowCount": 1000, "columnCount": 26}}},
			map[string]any{"properties": map[string]any{"sheetId": 3, "title": "Summary"}},
		}})
	default:
		writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
	}
}

func (f *fakeAPI) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeAPI) query(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery[key]
}

func (f *fakeAPI) auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *fakeAPI) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletedIDs...)
}

func newFakeClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, api
}

func TestClientSpreadsheetLifecycle(t *testing.T) {
	c, api := newFakeClient(t)
	ctx := context.Background()

	id, err := c.CreateSpreadsheet(ctx, "Expenses-2024")
	if err != nil || id != "abc" {
		t.Fatalf("create: id=%q err=%v", id, err)
	}
	props, _ := api.body()["properties"].(map[string]any)
	if props["title"] != "Expenses-2024" {
		t.Fatalf("unexpected create body %v", api.body())
	}

	list, err := c.ListSheets(ctx, "abc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Sheet1" || list[0].Rows != 1000 || list[1].ID != 3 {
		t.Fatalf("unexpected sheets %+v", list)
	}

	sid, err := c.AddSheet(ctx, "abc", ports.SheetInfo{Title: "March", Rows: 30, Cols: 4})
	if err != nil || sid != 7 {
		t.Fatalf("add: id=%d err=%v", sid, err)
	}
	if _, err := c.AddSheet(ctx, "abc", ports.SheetInfo{Title: "Dup"}); !errors.Is(err, ports.ErrSheetExists) {
		t.Fatalf("expected ErrSheetExists, got %v", err)
	}

	if err := c.DeleteSheet(ctx, "abc", 0); err != nil {
		t.Fatalf("delete sheet: %v", err)
	}
	reqs, _ := api.body()["requests"].([]any)
	del, _ := reqs[0].(map[string]any)["deleteSheet"].(map[string]any)
	if v, ok := del["sheetId"]; !ok || v.(float64) != 0 {
		t.Fatalf("sheet id 0 must be sent explicitly, got %v", api.body())
	}

	if err := c.DeleteRows(ctx, "abc", 3, 0, 1); err != nil {
		t.Fatalf("delete rows: %v", err)
	}

	if err := c.DeleteSpreadsheet(ctx, "abc"); err != nil {
		t.Fatalf("delete spreadsheet: %v", err)
	}
	if d := api.deleted(); len(d) != 1 || d[0] != "abc" {
		t.Fatalf("unexpected drive deletes %v", d)
	}
}

func TestClientValues(t *testing.T) {
	c, api := newFakeClient(t)
	ctx := context.Background()

	got, err := c.GetValues(ctx, "abc", "'March'!A:C")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 || len(got[1]) != 0 || got.Cell(2, 1) != 12.5 {
		t.Fatalf("unexpected values %v", got)
	}
	if api.query("valueRenderOption") != "UNFORMATTED_VALUE" {
		t.Fatal("expected unformatted values")
	}

	if _, err := c.GetValues(ctx, "abc", "'Missing'!A:C"); !errors.Is(err, ports.ErrRangeNotFound) {
		t.Fatalf("expected ErrRangeNotFound, got %v", err)
	}

	row := ports.Values{{"2024-03-02", 4.2, "Bills"}}
	if err := c.AppendValues(ctx, "abc", "'March'!A:C", row, ports.Raw); err != nil {
		t.Fatalf("append: %v", err)
	}
	if api.query("valueInputOption") != "RAW" || api.query("insertDataOption") != "INSERT_ROWS" {
		t.Fatal("append must insert raw rows")
	}

	if err := c.UpdateValues(ctx, "abc", "'Summary'!A1:D12", ports.Values{{"Expense Summary"}}, ports.UserEntered); err != nil {
		t.Fatalf("update: %v", err)
	}
	if api.query("valueInputOption") != "USER_ENTERED" {
		t.Fatal("update must use USER_ENTERED")
	}
}

func TestClientUnauthorized(t *testing.T) {
	c, _ := newFakeClient(t)
	if _, err := c.ListSheets(context.Background(), "expired"); !errors.Is(err, ports.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestConnectorSendsBearerToken(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	conn := NewConnector(goption.WithEndpoint(srv.URL + "/"))
	wb, err := conn.Connect(context.Background(), &oauth2.Token{AccessToken: "tok-1", TokenType: "Bearer"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := wb.ListSheets(context.Background(), "abc"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := api.auth(); got != "Bearer tok-1" {
		t.Fatalf("unexpected Authorization header %q", got)
	}

	if _, err := conn.Connect(context.Background(), &oauth2.Token{}); !errors.Is(err, ports.ErrUnauthorized) {
		t.Fatalf("empty token must be rejected, got %v", err)
	}
}
