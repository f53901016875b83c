package google

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneymanager/internal/core"
	ports "moneymanager/internal/sheets"
)

// Client backs up the ledger to a Google spreadsheet with a "Transactions"
// and a "Balances" tab.
type Client struct {
	// svc is the service account service; nil when only per-request
	// access tokens are accepted.
	svc           *gsheet.Service
	spreadsheetID string
	opts          []goption.ClientOption
	newID         func() string
}

// Ensure interface conformance
var _ ports.Target = (*Client)(nil)

// New returns a client that authenticates with the access token carried by
// each request. opts are applied to every service it builds.
func New(spreadsheetID string, opts ...goption.ClientOption) *Client {
	return &Client{spreadsheetID: strings.TrimSpace(spreadsheetID), opts: opts, newID: uuid.NewString}
}

// NewFromEnv creates a client from environment variables.
// Optional: GOOGLE_SPREADSHEET_ID as the default spreadsheet.
// Optional: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, used when a request carries no token.
func NewFromEnv(ctx context.Context) (*Client, error) {
	c := New(os.Getenv("GOOGLE_SPREADSHEET_ID"))

	credentialsJSON, err := serviceAccountJSON(ctx)
	if err != nil {
		return nil, err
	}
	if credentialsJSON == nil {
		slog.InfoContext(ctx, "No service account configured, exports require an access token")
		return c, nil
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	c.svc = svc
	slog.InfoContext(ctx, "Google Sheets service created with service account")
	return c, nil
}

// serviceAccountJSON reads service account credentials from the environment.
// It returns nil when none are configured.
func serviceAccountJSON(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

// service picks the per-request token when present, else the service account.
func (c *Client) service(ctx context.Context, creds ports.Credentials) (*gsheet.Service, string, error) {
	id := strings.TrimSpace(creds.SpreadsheetID)
	if id == "" {
		id = c.spreadsheetID
	}
	if id == "" {
		return nil, "", ports.ErrMissingCredentials
	}

	if tok := strings.TrimSpace(creds.AccessToken); tok != "" {
		opts := append([]goption.ClientOption{
			goption.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok})),
		}, c.opts...)
		svc, err := gsheet.NewService(ctx, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("create sheets service: %w", err)
		}
		return svc, id, nil
	}
	if c.svc == nil {
		return nil, "", ports.ErrMissingCredentials
	}
	return c.svc, id, nil
}

// Export clears both tabs and writes the full history. A failed balances
// write leaves the already written transactions in place.
func (c *Client) Export(ctx context.Context, creds ports.Credentials, h core.MonthHistory) (ports.ExportStats, error) {
	svc, id, err := c.service(ctx, creds)
	if err != nil {
		return ports.ExportStats{}, err
	}

	txRows := ports.TransactionRows(h)
	balRows := ports.BalanceRows(h)

	if err := c.replace(ctx, svc, id, ports.TransactionsSheet, "G", txRows); err != nil {
		return ports.ExportStats{}, err
	}
	if err := c.replace(ctx, svc, id, ports.BalancesSheet, "D", balRows); err != nil {
		return ports.ExportStats{}, err
	}
	return ports.Stats(txRows, balRows), nil
}

func (c *Client) replace(ctx context.Context, svc *gsheet.Service, id, sheet, lastCol string, rows [][]any) error {
	clearRng := fmt.Sprintf("%s!A:%s", sheet, lastCol)
	if _, err := svc.Spreadsheets.Values.Clear(id, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w: %w", clearRng, ports.ErrTargetUnavailable, err)
	}

	rng := fmt.Sprintf("%s!A1:%s%d", sheet, lastCol, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := svc.Spreadsheets.Values.Update(id, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update %s: %w: %w", rng, ports.ErrTargetUnavailable, err)
	}
	return nil
}

// Import reads both tabs below their header rows.
func (c *Client) Import(ctx context.Context, creds ports.Credentials) (core.MonthHistory, error) {
	svc, id, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	txRows, err := readRows(ctx, svc, id, ports.TransactionsSheet+"!A2:G")
	if err != nil {
		return nil, err
	}
	balRows, err := readRows(ctx, svc, id, ports.BalancesSheet+"!A2:D")
	if err != nil {
		return nil, err
	}
	return ports.ParseHistory(txRows, balRows, c.newID), nil
}

func readRows(ctx context.Context, svc *gsheet.Service, id, rng string) ([][]string, error) {
	resp, err := svc.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", rng, ports.ErrTargetUnavailable, err)
	}
	return ports.ToStrings(resp.Values), nil
}

