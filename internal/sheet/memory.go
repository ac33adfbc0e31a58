package sheet

import (
	"context"
	"fmt"
	"sync"
)

type memoryBook struct {
	mu     sync.Mutex
	tables map[string]*MemoryTable
}

// NewMemoryBook returns a Book backed by process memory.
func NewMemoryBook() *Book {
	mb := &memoryBook{tables: map[string]*MemoryTable{}}
	return &Book{
		driver: "memory",
		open: func(name string) Table {
			mb.mu.Lock()
			defer mb.mu.Unlock()
			t, ok := mb.tables[name]
			if !ok {
				t = NewMemoryTable()
				mb.tables[name] = t
			}
			return t
		},
	}
}

// MemoryTable is a Table kept in memory.
type MemoryTable struct {
	mu   sync.Mutex
	rows [][]string
}

func NewMemoryTable(rows ...[]string) *MemoryTable {
	t := &MemoryTable{}
	for _, r := range rows {
		t.rows = append(t.rows, append([]string(nil), r...))
	}
	return t
}

func (t *MemoryTable) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (t *MemoryTable) UpdateCell(ctx context.Context, row, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row=%d col=%d", ErrOutOfRange, row, col)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.rows) < row {
		t.rows = append(t.rows, nil)
	}
	r := t.rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	t.rows[row-1] = r
	return nil
}

func (t *MemoryTable) AppendRow(ctx context.Context, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	t.rows = append(t.rows, append([]string(nil), values...))
	t.mu.Unlock()
	return nil
}
