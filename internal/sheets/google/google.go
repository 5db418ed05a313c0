// Package google implements the spreadsheet port on top of the Google
// Sheets and Drive APIs, authenticated with one user's OAuth token.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"sheetexpense/internal/log"
	ports "sheetexpense/internal/sheets"

	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc   *gsheet.Service
	drive *gdrive.Service
}

// Ensure interface conformance
var _ ports.Workbook = (*Client)(nil)

// New creates a client from explicit API options. Production callers go
// through a Connector; tests point the options at a fake endpoint.
func New(ctx context.Context, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	drv, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{svc: svc, drive: drv}, nil
}

// Connector builds per-user clients sharing one pooled transport.
type Connector struct {
	base *http.Client
	opts []goption.ClientOption
}

// NewConnector returns a Connector. Extra options are appended to every
// client, which lets tests redirect traffic with goption.WithEndpoint.
func NewConnector(opts ...goption.ClientOption) *Connector {
	return &Connector{base: newHTTPClientWithPooling(), opts: opts}
}

// Connect returns a Workbook that sends tok as its bearer credential. The
// token is used as-is; refreshing is the caller's concern.
func (c *Connector) Connect(ctx context.Context, tok *oauth2.Token) (ports.Workbook, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("connect: %w", ports.ErrUnauthorized)
	}
	hc := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   c.base.Transport,
		},
		Timeout: c.base.Timeout,
	}
	opts := append([]goption.ClientOption{goption.WithHTTPClient(hc)}, c.opts...)
	return New(ctx, opts...)
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google APIs
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		// Connection pooling settings
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// mapError translates Google API failures into the port's sentinel errors,
// keeping the original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	msg := strings.ToLower(gerr.Message)
	switch {
	case gerr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ports.ErrUnauthorized, err)
	case gerr.Code == http.StatusBadRequest && strings.Contains(msg, "unable to parse range"):
		return fmt.Errorf("%w: %w", ports.ErrRangeNotFound, err)
	case gerr.Code == http.StatusBadRequest && strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %w", ports.ErrSheetExists, err)
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ports.ErrSpreadsheetNotFound, err)
	}
	return err
}

func (c *Client) CreateSpreadsheet(ctx context.Context, title string) (string, error) {
	created, err := c.svc.Spreadsheets.Create(&gsheet.Spreadsheet{
		Properties: &gsheet.SpreadsheetProperties{Title: title},
	}).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet %q: %w", title, mapError(err))
	}
	slog.DebugContext(ctx, "Created spreadsheet", log.FieldTitle, title, log.FieldSpreadsheetID, created.SpreadsheetId)
	return created.SpreadsheetId, nil
}

// DeleteSpreadsheet goes through Drive because the Sheets API cannot
// remove files.
func (c *Client) DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error {
	if err := c.drive.Files.Delete(spreadsheetID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete spreadsheet %s: %w", spreadsheetID, mapError(err))
	}
	return nil
}

func (c *Client) ListSheets(ctx context.Context, spreadsheetID string) ([]ports.SheetInfo, error) {
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list sheets of %s: %w", spreadsheetID, mapError(err))
	}
	return toSheetInfos(ss.Sheets), nil
}

func (c *Client) AddSheet(ctx context.Context, spreadsheetID string, info ports.SheetInfo) (int64, error) {
	props := &gsheet.SheetProperties{Title: info.Title}
	if info.Rows > 0 || info.Cols > 0 {
		props.GridProperties = &gsheet.GridProperties{RowCount: info.Rows, ColumnCount: info.Cols}
	}
	resp, err := c.batchUpdate(ctx, spreadsheetID, &gsheet.Request{
		AddSheet: &gsheet.AddSheetRequest{Properties: props},
	})
	if err != nil {
		return 0, fmt.Errorf("add sheet %q: %w", info.Title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %q: empty reply", info.Title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (c *Client) DeleteSheet(ctx context.Context, spreadsheetID string, sheetID int64) error {
	_, err := c.batchUpdate(ctx, spreadsheetID, &gsheet.Request{
		DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: sheetID, ForceSendFields: []string{"SheetId"}},
	})
	if err != nil {
		return fmt.Errorf("delete sheet %d: %w", sheetID, err)
	}
	return nil
}

func (c *Client) DeleteRows(ctx context.Context, spreadsheetID string, sheetID int64, start, end int64) error {
	_, err := c.batchUpdate(ctx, spreadsheetID, &gsheet.Request{
		DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:         sheetID,
				Dimension:       "ROWS",
				StartIndex:      start,
				EndIndex:        end,
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete rows [%d, %d) of sheet %d: %w", start, end, sheetID, err)
	}
	return nil
}

func (c *Client) batchUpdate(ctx context.Context, spreadsheetID string, reqs ...*gsheet.Request) (*gsheet.BatchUpdateSpreadsheetResponse, error) {
	resp, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (c *Client) GetValues(ctx context.Context, spreadsheetID, rng string) (ports.Values, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, mapError(err))
	}
	return fromValueRange(resp), nil
}

func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, rng string, values ports.Values, opt ports.InputOption) error {
	_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, rng, toValueRange(values)).
		ValueInputOption(string(opt)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, mapError(err))
	}
	return nil
}

func (c *Client) AppendValues(ctx context.Context, spreadsheetID, rng string, values ports.Values, opt ports.InputOption) error {
	_, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, rng, toValueRange(values)).
		ValueInputOption(string(opt)).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, mapError(err))
	}
	return nil
}
