package sheet

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

func openSQLite(cfg Config, log logx.Logger) (*Book, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sheets.path is required for sqlite driver")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; it also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("sqlite sheets ready", logx.String("path", path))
	return &Book{
		driver: "sqlite",
		open:   func(name string) Table { return &sqliteTable{db: db, sheet: name} },
		close:  db.Close,
	}, nil
}

type sqliteTable struct {
	db    *sql.DB
	sheet string
}

func (t *sqliteTable) Rows(ctx context.Context) ([][]string, error) {
	rs, err := t.db.QueryContext(ctx,
		`SELECT row, col, value FROM cells WHERE sheet = ? ORDER BY row, col`, t.sheet)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out [][]string
	for rs.Next() {
		var (
			row, col int
			value    string
		)
		if err := rs.Scan(&row, &col, &value); err != nil {
			return nil, err
		}
		for len(out) < row {
			out = append(out, nil)
		}
		r := out[row-1]
		for len(r) < col {
			r = append(r, "")
		}
		r[col-1] = value
		out[row-1] = r
	}
	return out, rs.Err()
}

func (t *sqliteTable) UpdateCell(ctx context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row=%d col=%d", ErrOutOfRange, row, col)
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO cells(sheet, row, col, value) VALUES(?,?,?,?)
		 ON CONFLICT(sheet, row, col) DO UPDATE SET value = excluded.value`,
		t.sheet, row, col, value,
	)
	return err
}

func (t *sqliteTable) AppendRow(ctx context.Context, values []string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row), 0) FROM cells WHERE sheet = ?`, t.sheet).Scan(&last); err != nil {
		return err
	}
	next := last + 1
	for i, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cells(sheet, row, col, value) VALUES(?,?,?,?)`,
			t.sheet, next, i+1, v,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
