package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	applog "tuition/internal/log"
	ports "tuition/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// Ensure interface conformance
var (
	_ ports.ReportWriter = (*Client)(nil)
	_ ports.ReportReader = (*Client)(nil)
)

// Options configures the defaulter report sheet.
type Options struct {
	SpreadsheetID   string
	Sheet           string // tab name, e.g. "Defaulters"
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(opts.Sheet)
	if sheet == "" {
		sheet = "Defaulters"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// loadCredentials prefers inline JSON over the file path.
func loadCredentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// WriteReport clears the report tab and rewrites it from A1.
func (c *Client) WriteReport(ctx context.Context, r ports.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:G", c.sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear report: %w", err)
	}

	rows := reportRows(r)
	target := fmt.Sprintf("%s!A1", c.sheet)
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Defaulter report written",
		applog.FieldComponent, applog.ComponentSheets,
		"sheet", c.sheet,
		"rows", len(rows),
		"defaulters", len(r.Summary.Defaulters))

	if resp != nil && resp.UpdatedRange != "" {
		return resp.UpdatedRange, nil
	}
	return target, nil
}

// LastReport reads the report tab back.
func (c *Client) LastReport(ctx context.Context) (ports.Report, bool, error) {
	if c.svc == nil {
		return ports.Report{}, false, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:G", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return ports.Report{}, false, fmt.Errorf("read report: %w", err)
	}
	if len(resp.Values) == 0 {
		return ports.Report{}, false, nil
	}
	r, err := parseReport(resp.Values)
	if err != nil {
		return ports.Report{}, false, err
	}
	return r, true, nil
}
