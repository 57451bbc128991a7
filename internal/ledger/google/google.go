// Package google reads the expense ledger from a Google Sheets spreadsheet.
//
// The sheet has one expense per row: fecha (YYYY-MM-DD), categoria,
// descripcion, monto_ars. A header row is optional.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"resoluciones/internal/core"
	"resoluciones/internal/ledger"
	"resoluciones/internal/log"
)

var (
	_ ledger.ExpenseLister  = (*Client)(nil)
	_ ledger.CategoryLister = (*Client)(nil)
)

// DefaultSheetName is the expenses sheet used when none is configured.
const DefaultSheetName = "Gastos"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// Config selects the spreadsheet and the credentials used to read it.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON or CredentialsFile hold a service account key. When
	// both are empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a read-only Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        log.OrNop(logger).WithComponent(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.CredentialsJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	// #nosec G304 -- credentials path is operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) rows(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:D", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// ListExpenses lists the expenses dated in the given month.
func (c *Client) ListExpenses(ctx context.Context, year int, month int) ([]core.Expense, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	values, err := c.rows(ctx)
	if err != nil {
		return nil, err
	}
	all, skipped := parseExpenses(values)
	if skipped > 0 {
		c.logger.Warn("skipped unreadable ledger rows", "count", skipped, "sheet", c.sheet)
	}
	var out []core.Expense
	for _, e := range all {
		if e.Date.Year() == year && int(e.Date.Month()) == month {
			out = append(out, e)
		}
	}
	return out, nil
}

// Categories returns the distinct categories used in the sheet.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	values, err := c.rows(ctx)
	if err != nil {
		return nil, err
	}
	all, _ := parseExpenses(values)
	cats := make([]string, 0, len(all))
	for _, e := range all {
		cats = append(cats, e.Category)
	}
	return ledger.Dedupe(cats), nil
}
