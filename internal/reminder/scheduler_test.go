package reminder

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"remindbot/internal/eventbus"
	"remindbot/internal/sheet"
	logx "remindbot/pkg/logx"
)

func newTestScheduler(tbl sheet.Table, send *fakeSender, clock *fakeClock, opts Options, so ...SchedulerOption) *Scheduler {
	if opts.Lead == 0 {
		opts.Lead = DefaultLead
	}
	so = append([]SchedulerOption{WithClock(clock.Now)}, so...)
	return NewScheduler(NewRepository(tbl, testLoc), send, logx.Nop(), opts, so...)
}

func TestDue(t *testing.T) {
	sched := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	notify := sched.Add(-DefaultLead)
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly at notify time", notify, true},
		{"60s after", notify.Add(60 * time.Second), true},
		{"61s after", notify.Add(61 * time.Second), false},
		{"60s before", notify.Add(-60 * time.Second), true},
		{"61s before", notify.Add(-61 * time.Second), false},
		{"at scheduled time", sched, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Due(sched, c.now, DefaultLead, DefaultTolerance); got != c.want {
				t.Fatalf("Due() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestTickDispatchesOnceAndMarksSent(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "stand-up", "42", "FALSE"})
	send := &fakeSender{}
	clock := newClock("2026-04-01 09:55:10")
	s := newTestScheduler(tbl, send, clock, Options{})

	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if rep.Dispatched != 1 || rep.Scanned != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if got := sentFlags(tbl); !reflect.DeepEqual(got, []string{"TRUE"}) {
		t.Fatalf("flags = %v", got)
	}

	clock.Advance(30 * time.Second)
	rep, err = s.Tick(context.Background())
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if rep.Dispatched != 0 {
		t.Fatalf("second tick dispatched %d", rep.Dispatched)
	}

	msgs := send.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	want := "🔔 Reminder from Remi!\n📝 \"stand-up\" (2026-04-01 10:00:00)"
	if msgs[0].text != want || msgs[0].to.ChatID != 42 {
		t.Fatalf("message = %+v, want text %q to 42", msgs[0], want)
	}
}

func TestTickNeverResendsSentRows(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "done", "42", " true "})
	send := &fakeSender{}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(send.messages()); n != 0 {
		t.Fatalf("sent %d messages for an already sent row", n)
	}
}

func TestTickMissedWindowIsNeverDispatched(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "late", "42", "FALSE"})
	send := &fakeSender{}
	clock := newClock("2026-04-01 09:56:01")
	s := newTestScheduler(tbl, send, clock, Options{})

	for i := 0; i < 3; i++ {
		rep, err := s.Tick(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if rep.Missed != 1 || rep.Dispatched != 0 {
			t.Fatalf("tick %d report = %+v", i, rep)
		}
		clock.Advance(time.Minute)
	}
	if n := len(send.messages()); n != 0 {
		t.Fatalf("sent %d messages", n)
	}
	if got := sentFlags(tbl); got[0] != "FALSE" {
		t.Fatalf("flag = %q, want FALSE", got[0])
	}
}

func TestTickMissedLatePolicy(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "late", "42", "FALSE"})
	send := &fakeSender{}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 11:00:00"), Options{MissedPolicy: "LATE"})

	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Dispatched != 1 || rep.Missed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if got := sentFlags(tbl); got[0] != "TRUE" {
		t.Fatalf("flag = %q", got[0])
	}
}

func TestTickFutureRowsWait(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 12:00:00", "later", "42", "FALSE"})
	s := newTestScheduler(tbl, &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{})
	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Waiting != 1 || rep.Dispatched != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestTickSkipsMalformedRows(t *testing.T) {
	tbl := reminderTable(
		[]string{"tomorrow-ish", "bad", "42", "FALSE"},
		[]string{"", "no date", "42", "FALSE"},
		[]string{"2026-04-01 10:00", "good", "42", "FALSE"},
	)
	send := &fakeSender{}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Malformed != 2 || rep.Dispatched != 1 || rep.Skipped() != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if got := sentFlags(tbl); !reflect.DeepEqual(got, []string{"FALSE", "FALSE", "TRUE"}) {
		t.Fatalf("flags = %v", got)
	}
}

func TestTickDuplicateRowsAreIndependent(t *testing.T) {
	row := []string{"2026-04-01 10:00:00", "twice", "42", "FALSE"}
	tbl := reminderTable(row, row)
	send := &fakeSender{}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Dispatched != 2 || len(send.messages()) != 2 {
		t.Fatalf("report = %+v, sent = %d", rep, len(send.messages()))
	}
	if got := sentFlags(tbl); !reflect.DeepEqual(got, []string{"TRUE", "TRUE"}) {
		t.Fatalf("flags = %v", got)
	}
}

func TestTickRetriesUnreachableChannelInsideWindow(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "hello", "42", "FALSE"})
	send := &fakeSender{}
	send.setMissing("42", true)
	clock := newClock("2026-04-01 09:54:10")
	s := newTestScheduler(tbl, send, clock, Options{})

	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Unreachable != 1 || sentFlags(tbl)[0] != "FALSE" {
		t.Fatalf("report = %+v flags = %v", rep, sentFlags(tbl))
	}

	send.setMissing("42", false)
	clock.Advance(time.Minute)
	rep, err = s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Dispatched != 1 || sentFlags(tbl)[0] != "TRUE" {
		t.Fatalf("report = %+v flags = %v", rep, sentFlags(tbl))
	}
}

func TestTickSendFailureLeavesRowUnsent(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "hello", "42", "FALSE"})
	send := &fakeSender{failSend: true}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 1 || sentFlags(tbl)[0] != "FALSE" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestTickReadFailureSendsNothing(t *testing.T) {
	boom := errors.New("quota exceeded")
	tbl := &faultyTable{
		Table:   reminderTable([]string{"2026-04-01 10:00:00", "hello", "42", "FALSE"}),
		rowsErr: boom,
	}
	send := &fakeSender{}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	if _, err := s.Tick(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := len(send.messages()); n != 0 {
		t.Fatalf("sent %d messages", n)
	}
}

func TestTickWriteFailureStopsTick(t *testing.T) {
	boom := errors.New("permission denied")
	row := []string{"2026-04-01 10:00:00", "hello", "42", "FALSE"}
	tbl := &faultyTable{Table: reminderTable(row, row), updateErr: boom}
	send := &fakeSender{}
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	rep, err := s.Tick(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := len(send.messages()); n != 1 {
		t.Fatalf("sent %d messages, want 1 before the failed write", n)
	}
	if rep.Dispatched != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestTickPublishesEvents(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	tbl := reminderTable([]string{"2026-04-01 10:00:00", "hello", "42", "FALSE"})
	s := newTestScheduler(tbl, &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{}, WithBus(bus))
	rep, err := s.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	want := []string{eventbus.TypeReminderSent, eventbus.TypeTickFinished}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	if rep.ID == "" {
		t.Fatal("tick id is empty")
	}
}

func TestStrandedRowsDoNotFloodBus(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	defer unsub()

	var rows [][]string
	for i := 0; i < 100; i++ {
		rows = append(rows, []string{"2026-04-01 08:00:00", "old", "42", "FALSE"})
	}
	tbl := reminderTable(rows...)
	clock := newClock("2026-04-01 09:55:00")
	s := newTestScheduler(tbl, &fakeSender{}, clock, Options{}, WithBus(bus))

	for i := 0; i < 3; i++ {
		rep, err := s.Tick(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if rep.Missed != 100 {
			t.Fatalf("tick %d missed = %d, want 100", i, rep.Missed)
		}
		clock.Advance(time.Minute)
	}

	var finished int
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.TypeTickFinished {
			finished++
		} else {
			t.Fatalf("unexpected event %q", e.Type)
		}
	}
	if finished != 3 || bus.Dropped() != 0 {
		t.Fatalf("tick_finished = %d, dropped = %d", finished, bus.Dropped())
	}
}

func TestNotificationFitsOneMessage(t *testing.T) {
	send := &fakeSender{}
	long := strings.Repeat("ß", 5000)
	tbl := reminderTable([]string{"2026-04-01 10:00:00", long, "42", "FALSE"})
	s := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})

	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	msgs := send.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages", len(msgs))
	}
	text := msgs[0].text
	if n := utf8.RuneCountInString(text); n > maxNotificationRunes {
		t.Fatalf("notification has %d runes, limit %d", n, maxNotificationRunes)
	}
	if !strings.HasPrefix(text, "🔔 Reminder from Remi!") || !strings.HasSuffix(text, "…\" (2026-04-01 10:00:00)") {
		t.Fatalf("notification = %q...%q", text[:40], text[len(text)-40:])
	}
}

func TestNotificationKeepsShortMessage(t *testing.T) {
	s := newTestScheduler(reminderTable(), &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{})
	rec := Record{Message: "stand-up", ScheduledAt: time.Date(2026, 4, 1, 10, 0, 0, 0, testLoc)}
	want := "🔔 Reminder from Remi!\n📝 \"stand-up\" (2026-04-01 10:00:00)"
	if got := s.notification(rec); got != want {
		t.Fatalf("notification = %q, want %q", got, want)
	}
}
