package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"remindbot/internal/sheet"
	kit "remindbot/internal/transport"
)

var testLoc = time.UTC

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(s string) *fakeClock {
	t, err := time.ParseInLocation(StoreLayout, s, testLoc)
	if err != nil {
		panic(err)
	}
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMsg struct {
	to   kit.ChatTarget
	text string
}

// fakeSender implements Sender and kit.Adapter.
type fakeSender struct {
	mu       sync.Mutex
	missing  map[string]bool
	failSend bool
	sent     []sentMsg
}

func (f *fakeSender) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeSender) Stop(ctx context.Context) error                          { return nil }
func (f *fakeSender) BotName() string                                         { return "Remi" }

func (f *fakeSender) ResolveChat(ctx context.Context, id string) (kit.ChatTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[id] {
		return kit.ChatTarget{}, fmt.Errorf("%w: %s", kit.ErrChatNotFound, id)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return kit.ChatTarget{}, fmt.Errorf("%w: %q", kit.ErrChatNotFound, id)
	}
	return kit.ChatTarget{ChatID: n}, nil
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return kit.MessageRef{}, errors.New("network down")
	}
	f.sent = append(f.sent, sentMsg{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) setMissing(id string, v bool) {
	f.mu.Lock()
	if f.missing == nil {
		f.missing = map[string]bool{}
	}
	f.missing[id] = v
	f.mu.Unlock()
}

func (f *fakeSender) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

// faultyTable fails selected operations of an underlying table.
type faultyTable struct {
	sheet.Table
	rowsErr   error
	updateErr error
}

func (t *faultyTable) Rows(ctx context.Context) ([][]string, error) {
	if t.rowsErr != nil {
		return nil, t.rowsErr
	}
	return t.Table.Rows(ctx)
}

func (t *faultyTable) UpdateCell(ctx context.Context, row, col int, value string) error {
	if t.updateErr != nil {
		return t.updateErr
	}
	return t.Table.UpdateCell(ctx, row, col, value)
}

func reminderTable(rows ...[]string) *sheet.MemoryTable {
	return sheet.NewMemoryTable(append([][]string{Header}, rows...)...)
}

func sentFlags(t sheet.Table) []string {
	rows, _ := t.Rows(context.Background())
	var out []string
	for _, r := range rows[1:] {
		out = append(out, sheet.Cell(r, colSent))
	}
	return out
}
