package sheet

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown sheets driver")
	ErrOutOfRange    = errors.New("cell out of range")
)

// Table is one worksheet.
type Table interface {
	// Rows returns every row including the header. Trailing empty cells may be omitted.
	Rows(ctx context.Context) ([][]string, error)
	// UpdateCell overwrites a single cell. row and col are 1-based.
	UpdateCell(ctx context.Context, row, col int, value string) error
	// AppendRow adds a row after the last non-empty row.
	AppendRow(ctx context.Context, values []string) error
}

// Config selects and configures a driver.
type Config struct {
	Driver string

	// google
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON []byte
	Timeout         time.Duration

	// sqlite
	Path        string
	BusyTimeout time.Duration
}

// Book resolves worksheets by name.
type Book struct {
	driver string
	open   func(name string) Table
	close  func() error
}

func (b *Book) Driver() string { return b.driver }

func (b *Book) Worksheet(name string) Table { return b.open(name) }

func (b *Book) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// EnsureHeader writes header as row 1 when the table is empty.
func EnsureHeader(ctx context.Context, t Table, header []string) error {
	rows, err := t.Rows(ctx)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}
	return t.AppendRow(ctx, header)
}

// Cell returns row[col-1], or "" when the row is short.
func Cell(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return row[col-1]
}
