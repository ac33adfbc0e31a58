// Package prompt draws random writing prompts from a three-column table.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"remindbot/internal/sheet"
	"remindbot/internal/transport/telegram/router"
)

// Columns is how many cells one draw returns.
const Columns = 3

var ErrEmptyColumn = errors.New("prompt column has no entries")

type Generator struct {
	table sheet.Table
	intn  func(n int) int
}

func NewGenerator(table sheet.Table) *Generator {
	return &Generator{table: table, intn: rand.IntN}
}

// Draw picks one non-empty cell from each of the first three columns,
// ignoring the header row.
func (g *Generator) Draw(ctx context.Context) ([Columns]string, error) {
	var out [Columns]string
	rows, err := g.table.Rows(ctx)
	if err != nil {
		return out, fmt.Errorf("read prompts: %w", err)
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	for col := 1; col <= Columns; col++ {
		var pool []string
		for _, r := range rows {
			if v := strings.TrimSpace(sheet.Cell(r, col)); v != "" {
				pool = append(pool, v)
			}
		}
		if len(pool) == 0 {
			return out, fmt.Errorf("%w: column %d", ErrEmptyColumn, col)
		}
		out[col-1] = pool[g.intn(len(pool))]
	}
	return out, nil
}

func Format(p [Columns]string) string {
	var b strings.Builder
	b.WriteString("Random prompt:")
	for i, v := range p {
		fmt.Fprintf(&b, "\n%d: %s", i+1, v)
	}
	return b.String()
}

func (g *Generator) Command() router.Command {
	return router.Command{
		Name:        "prompt",
		Aliases:     []string{"theme"},
		Description: "draw a random prompt",
		Usage:       "/prompt",
		Handle: func(ctx context.Context, req *router.Request) error {
			p, err := g.Draw(ctx)
			if err != nil {
				_ = req.Reply(ctx, "⚠️ Could not draw a prompt: "+err.Error())
				return err
			}
			return req.Reply(ctx, Format(p))
		},
	}
}
