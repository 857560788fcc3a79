// Package sheets stores the remote collections in a Google spreadsheet, one
// sheet per collection with a header row and a user_id column.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pocket/internal/core"
	"pocket/internal/remote"
)

var _ remote.Backend = (*Client)(nil)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	TxsSheet        string
	AccountsSheet   string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	txsSheet      string
	accountsSheet string
}

// New creates a client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		txsSheet:      orDefault(cfg.TxsSheet, "txs"),
		accountsSheet: orDefault(cfg.AccountsSheet, "accounts"),
	}, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// newSheetsService initializes a Sheets Service from inline JSON, a key file,
// or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credsFile := strings.TrimSpace(cfg.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var data []byte
	switch {
	case credsJSON != "":
		data = []byte(credsJSON)
	case credsFile != "":
		var err error
		data, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(data),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(data))
	return svc, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}

func (c *Client) read(ctx context.Context, rng string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) append(ctx context.Context, sheet string, values [][]any) error {
	if len(values) == 0 {
		return nil
	}
	rng := fmt.Sprintf("%s!A:A", sheet)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

// deleteRows removes the given zero-based row indexes, bottom first so earlier
// indexes stay valid.
func (c *Client) deleteRows(ctx context.Context, sheet string, indexes []int) error {
	if len(indexes) == 0 {
		return nil
	}
	id, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indexes)))
	reqs := make([]*gsheet.Request, 0, len(indexes))
	for _, i := range indexes {
		reqs = append(reqs, &gsheet.Request{DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{SheetId: id, Dimension: "ROWS", StartIndex: int64(i), EndIndex: int64(i + 1)},
		}})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows from %s: %w", sheet, err)
	}
	return nil
}

func (c *Client) txRange() string { return fmt.Sprintf("%s!A:K", c.txsSheet) }

func (c *Client) ListRows(ctx context.Context, userID string) ([]remote.Row, error) {
	values, err := c.read(ctx, c.txRange())
	if err != nil {
		return nil, err
	}
	var out []remote.Row
	for _, p := range parseTxRows(values) {
		if p.row.UserID == userID {
			out = append(out, p.row)
		}
	}
	return out, nil
}

func (c *Client) InsertRow(ctx context.Context, r remote.Row) error {
	return c.append(ctx, c.txsSheet, [][]any{txValues(r)})
}

func (c *Client) DeleteRow(ctx context.Context, userID, id string) error {
	values, err := c.read(ctx, c.txRange())
	if err != nil {
		return err
	}
	var idx []int
	for _, p := range parseTxRows(values) {
		if p.row.UserID == userID && p.row.ID == id {
			idx = append(idx, p.index)
		}
	}
	return c.deleteRows(ctx, c.txsSheet, idx)
}

// UpsertRows rewrites the owner's rows whose id already exists in place and
// appends the rest. Rows owned by another user are never rewritten.
func (c *Client) UpsertRows(ctx context.Context, rows []remote.Row) error {
	values, err := c.read(ctx, c.txRange())
	if err != nil {
		return err
	}
	planned, added := planUpsert(parseTxRows(values), rows)

	var updates []*gsheet.ValueRange
	for _, u := range planned {
		updates = append(updates, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A%d:K%d", c.txsSheet, u.index+1, u.index+1),
			Values: [][]any{txValues(u.row)},
		})
	}
	appends := make([][]any, 0, len(added))
	for _, r := range added {
		appends = append(appends, txValues(r))
	}
	if len(updates) > 0 {
		_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             updates,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update rows in %s: %w", c.txsSheet, err)
		}
	}
	return c.append(ctx, c.txsSheet, appends)
}

func (c *Client) accountRange() string { return fmt.Sprintf("%s!A:D", c.accountsSheet) }

func (c *Client) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	values, err := c.read(ctx, c.accountRange())
	if err != nil {
		return nil, err
	}
	var out []core.Account
	for _, p := range parseAccountRows(values) {
		if p.userID == userID {
			out = append(out, p.account)
		}
	}
	return out, nil
}

// ReplaceAccounts drops the user's account rows and appends the new list.
func (c *Client) ReplaceAccounts(ctx context.Context, userID string, accounts []core.Account) error {
	values, err := c.read(ctx, c.accountRange())
	if err != nil {
		return err
	}
	var idx []int
	for _, p := range parseAccountRows(values) {
		if p.userID == userID {
			idx = append(idx, p.index)
		}
	}
	if err := c.deleteRows(ctx, c.accountsSheet, idx); err != nil {
		return err
	}
	rows := make([][]any, len(accounts))
	for i, a := range accounts {
		rows[i] = accountValues(userID, a)
	}
	return c.append(ctx, c.accountsSheet, rows)
}
