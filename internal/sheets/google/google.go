package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"financas/internal/core"
	ports "financas/internal/sheets"
)

// Config selects the spreadsheet and the service account.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// sheetAPI is the subset of the Sheets API the mirror uses.
type sheetAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	Append(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	DeleteRow(ctx context.Context, spreadsheetID, sheet string, row int) error
}

// Client mirrors transactions into one sheet, one row per transaction.
type Client struct {
	api           sheetAPI
	spreadsheetID string
	sheet         string
	catalog       *core.Catalog
	logger        *slog.Logger

	// Serializes lookups and writes so two events never target the same row.
	mu sync.Mutex
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// NewClient creates a Sheets client authenticated with a service account.
func NewClient(ctx context.Context, cfg Config, catalog *core.Catalog, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing GOOGLE_SHEET_NAME")
	}

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc}, cfg, catalog, logger), nil
}

func newClient(api sheetAPI, cfg Config, catalog *core.Catalog, logger *slog.Logger) *Client {
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:           api,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheet:         strings.TrimSpace(cfg.SheetName),
		catalog:       catalog,
		logger:        logger,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config, logger *slog.Logger) (*gsheet.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		logger.InfoContext(ctx, "Using inline JSON credentials")
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Read credentials file", "path", file, "size", len(credentialsJSON))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// UpsertTransaction rewrites the row holding tx.ID, or appends one.
func (c *Client) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.api.Get(ctx, c.spreadsheetID, idColumnRange(c.sheet))
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}

	row := [][]any{transactionRow(tx, c.catalog)}
	if n := rowNumber(values, tx.ID); n > 0 {
		if err := c.api.Update(ctx, c.spreadsheetID, rowRange(c.sheet, n), row); err != nil {
			return fmt.Errorf("update row %d in %s: %w", n, c.sheet, err)
		}
		c.logger.DebugContext(ctx, "Updated mirror row", "transaction_id", tx.ID, "row", n)
		return nil
	}

	if len(values) == 0 {
		if err := c.api.Update(ctx, c.spreadsheetID, rowRange(c.sheet, 1), [][]any{header}); err != nil {
			return fmt.Errorf("write header in %s: %w", c.sheet, err)
		}
	}
	if err := c.api.Append(ctx, c.spreadsheetID, tableRange(c.sheet), row); err != nil {
		return fmt.Errorf("append row to %s: %w", c.sheet, err)
	}
	c.logger.DebugContext(ctx, "Appended mirror row", "transaction_id", tx.ID)
	return nil
}

// DeleteTransaction removes the row holding id. A missing row is not an
// error.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.api.Get(ctx, c.spreadsheetID, idColumnRange(c.sheet))
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	n := rowNumber(values, id)
	if n == 0 {
		return nil
	}
	if err := c.api.DeleteRow(ctx, c.spreadsheetID, c.sheet, n); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", n, c.sheet, err)
	}
	c.logger.DebugContext(ctx, "Deleted mirror row", "transaction_id", id, "row", n)
	return nil
}

// ListTransactionIDs returns the ids in column A.
func (c *Client) ListTransactionIDs(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.api.Get(ctx, c.spreadsheetID, idColumnRange(c.sheet))
	if err != nil {
		return nil, fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	return parseIDs(values), nil
}

// serviceAPI adapts *gsheet.Service to sheetAPI.
type serviceAPI struct {
	svc *gsheet.Service

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func (a *serviceAPI) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *serviceAPI) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := a.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (a *serviceAPI) Append(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := a.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (a *serviceAPI) DeleteRow(ctx context.Context, spreadsheetID, sheet string, row int) error {
	sheetID, err := a.sheetID(ctx, spreadsheetID, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	_, err = a.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

// sheetID resolves and caches the numeric id of a sheet tab.
func (a *serviceAPI) sheetID(ctx context.Context, spreadsheetID, sheet string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.sheetIDs[sheet]; ok {
		return id, nil
	}

	resp, err := a.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	if a.sheetIDs == nil {
		a.sheetIDs = make(map[string]int64)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			a.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	id, ok := a.sheetIDs[sheet]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", sheet)
	}
	return id, nil
}
