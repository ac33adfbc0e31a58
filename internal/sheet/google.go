package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	logx "remindbot/pkg/logx"
)

// valuesAPI is the slice of spreadsheets.values the driver needs.
type valuesAPI interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, values [][]any) error
	append(ctx context.Context, rng string, values [][]any) error
}

type sheetsValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (v *sheetsValues) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(v.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v *sheetsValues) update(ctx context.Context, rng string, values [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Update(v.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (v *sheetsValues) append(ctx context.Context, rng string, values [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Append(v.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func openGoogle(ctx context.Context, cfg Config, log logx.Logger) (*Book, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("sheets.spreadsheet_id is required for google driver")
	}
	data := cfg.CredentialsJSON
	if len(data) == 0 {
		path := strings.TrimSpace(cfg.CredentialsFile)
		if path == "" {
			return nil, errors.New("sheets.credentials_file is required for google driver")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		data = b
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	log.Info("google sheets client ready", logx.String("spreadsheet_id", id))
	return newGoogleBook(&sheetsValues{svc: svc, spreadsheetID: id}, cfg.Timeout), nil
}

func newGoogleBook(api valuesAPI, timeout time.Duration) *Book {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Book{
		driver: "google",
		open: func(name string) Table {
			return &googleTable{api: api, name: name, timeout: timeout}
		},
	}
}

type googleTable struct {
	api     valuesAPI
	name    string
	timeout time.Duration
}

func (t *googleTable) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := fn(cctx); err != nil {
		return fmt.Errorf("sheet %q: %w", t.name, err)
	}
	return nil
}

func (t *googleTable) Rows(ctx context.Context) ([][]string, error) {
	var raw [][]any
	err := t.call(ctx, func(c context.Context) error {
		var err error
		raw, err = t.api.get(c, quoteSheet(t.name))
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(raw))
	for i, r := range raw {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = cellString(v)
		}
		out[i] = row
	}
	return out, nil
}

func (t *googleTable) UpdateCell(ctx context.Context, row, col int, value string) error {
	ref, err := cellRef(row, col)
	if err != nil {
		return err
	}
	return t.call(ctx, func(c context.Context) error {
		return t.api.update(c, quoteSheet(t.name)+"!"+ref, [][]any{{value}})
	})
}

func (t *googleTable) AppendRow(ctx context.Context, values []string) error {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return t.call(ctx, func(c context.Context) error {
		return t.api.append(c, quoteSheet(t.name)+"!A1", [][]any{row})
	})
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// cellRef renders a 1-based (row, col) as an A1 reference.
func cellRef(row, col int) (string, error) {
	if row < 1 || col < 1 {
		return "", fmt.Errorf("%w: row=%d col=%d", ErrOutOfRange, row, col)
	}
	return columnName(col) + strconv.Itoa(row), nil
}

func columnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
