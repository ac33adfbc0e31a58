package router

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) BotName() string                                        { return "test" }
func (f *fakeAdapter) ResolveChat(ctx context.Context, id string) (kit.ChatTarget, error) {
	return kit.ChatTarget{}, kit.ErrChatNotFound
}
func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in, word, rest string
		ok             bool
	}{
		{"/remind 2026/01/02 10:00 hi", "remind", "2026/01/02 10:00 hi", true},
		{"/Prompt@my_bot", "prompt", "", true},
		{"  /help  ", "help", "", true},
		{"hello", "", "", false},
		{"/", "", "", false},
	}
	for _, tt := range tests {
		word, rest, ok := splitCommand(tt.in)
		if word != tt.word || rest != tt.rest || ok != tt.ok {
			t.Fatalf("splitCommand(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, word, rest, ok, tt.word, tt.rest, tt.ok)
		}
	}
}

func TestTokenizeCommandLine(t *testing.T) {
	got := tokenizeCommandLine(`"2026/04/01 10:00" stand\ up 'team sync'`)
	want := []string{"2026/04/01 10:00", "stand up", "team sync"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenizeCommandLine = %q, want %q", got, want)
	}
}

func TestRouterDispatch(t *testing.T) {
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, time.Second)

	got := make(chan *Request, 1)
	r.Register(Command{
		Name:    "echo",
		Aliases: []string{"e"},
		Handle: func(ctx context.Context, req *Request) error {
			got <- req
			return nil
		},
	}, Command{
		Name: "fail",
		Handle: func(ctx context.Context, req *Request) error {
			return errors.New("nope")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan kit.Update, 4)
	done := make(chan struct{})
	go func() {
		_ = r.DispatchLoop(ctx, updates)
		close(done)
	}()

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 7, FromID: 9, Text: "/e a \"b c\""}}
	select {
	case req := <-got:
		if req.Command != "echo" || req.Chat.ChatID != 7 || req.FromID != 9 {
			t.Fatalf("unexpected request: %+v", req)
		}
		if req.Text != `a "b c"` || !reflect.DeepEqual(req.Args, []string{"a", "b c"}) {
			t.Fatalf("args = %q / %q", req.Text, req.Args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 7, Text: "/nothing"}}
	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 7, Text: "/help"}}

	deadline := time.Now().Add(2 * time.Second)
	for len(ad.messages()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	msgs := strings.Join(ad.messages(), "\n")
	if !strings.Contains(msgs, "unknown command") {
		t.Fatalf("missing unknown command reply: %q", msgs)
	}
	if !strings.Contains(msgs, "/echo") || !strings.Contains(msgs, "/help") {
		t.Fatalf("help text incomplete: %q", msgs)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch loop did not stop")
	}
}

func TestMenuCommandsSorted(t *testing.T) {
	r := New(logx.Nop(), &fakeAdapter{}, 0)
	noop := func(ctx context.Context, req *Request) error { return nil }
	r.Register(Command{Name: "remind", Description: "r", Handle: noop}, Command{Name: "prompt", Description: "p", Handle: noop})

	var names []string
	for _, c := range r.MenuCommands() {
		names = append(names, c.Command)
	}
	want := []string{"help", "prompt", "remind"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("menu = %v, want %v", names, want)
	}
}
