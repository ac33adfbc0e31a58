package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/sheet"
)

// Repository maps reminder records onto a sheet.Table.
type Repository struct {
	table sheet.Table
	loc   *time.Location
}

func NewRepository(table sheet.Table, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{table: table, loc: loc}
}

// Init writes the header row into an empty table.
func (r *Repository) Init(ctx context.Context) error {
	return sheet.EnsureHeader(ctx, r.table, Header)
}

// All returns every data row in table order. Rows with an unreadable datetime
// are returned with ParseErr set.
func (r *Repository) All(ctx context.Context) ([]Record, error) {
	rows, err := r.table.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := Record{
			Row:       i + 2,
			Message:   sheet.Cell(row, colMessage),
			ChannelID: sheet.Cell(row, colChannel),
			Sent:      parseSent(sheet.Cell(row, colSent)),
		}
		rec.ScheduledAt, rec.ParseErr = parseStoredTime(sheet.Cell(row, colDatetime), r.loc)
		out = append(out, rec)
	}
	return out, nil
}

// Add appends rec as a new unsent row.
func (r *Repository) Add(ctx context.Context, rec Record) error {
	rec.Sent = false
	rec.ScheduledAt = rec.ScheduledAt.In(r.loc)
	if err := r.table.AppendRow(ctx, rec.cells()); err != nil {
		return fmt.Errorf("append reminder: %w", err)
	}
	return nil
}

// MarkSent flips the sent flag of the given row.
func (r *Repository) MarkSent(ctx context.Context, row int) error {
	return r.table.UpdateCell(ctx, row, colSent, flag(true))
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
