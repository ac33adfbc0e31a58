package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func TestServiceRunNowIgnoresCanceledParent(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "hello", "42", "FALSE"})
	send := &fakeSender{}
	sched := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})
	svc := NewService(Config{Enabled: true, Options: Options{Lead: DefaultLead}}, sched, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := svc.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if rep.Dispatched != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestServiceRunNowBusy(t *testing.T) {
	sched := newTestScheduler(reminderTable(), &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{})
	svc := NewService(Config{Enabled: true}, sched, logx.Nop())

	svc.busy <- struct{}{}
	if _, err := svc.RunNow(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop while busy = %v, want deadline exceeded", err)
	}
	<-svc.busy
}

func TestServiceTicksOnInterval(t *testing.T) {
	tbl := reminderTable([]string{"2026-04-01 10:00:00", "hello", "42", "FALSE"})
	send := &fakeSender{}
	sched := newTestScheduler(tbl, send, newClock("2026-04-01 09:55:00"), Options{})
	svc := NewService(Config{Enabled: true, PollInterval: time.Second, Options: Options{Lead: DefaultLead}}, sched, logx.Nop())

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(send.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(send.messages()); n != 1 {
		t.Fatalf("sent %d messages, want 1", n)
	}
}

func TestServiceDisabledDoesNotStart(t *testing.T) {
	sched := newTestScheduler(reminderTable(), &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{})
	svc := NewService(Config{Enabled: false}, sched, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if svc.c != nil {
		t.Fatal("cron started while disabled")
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestServiceApplyEnablesAfterDisabledStart(t *testing.T) {
	sched := newTestScheduler(reminderTable(), &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{})
	svc := NewService(Config{Enabled: false}, sched, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop(context.Background())

	if err := svc.Apply(Config{Enabled: true, PollInterval: time.Minute}); err != nil {
		t.Fatal(err)
	}
	if svc.c == nil {
		t.Fatal("cron not started after enabling")
	}
}

func TestServiceApply(t *testing.T) {
	sched := newTestScheduler(reminderTable(), &fakeSender{}, newClock("2026-04-01 09:55:00"), Options{})
	svc := NewService(Config{Enabled: true, PollInterval: time.Minute}, sched, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop(context.Background())

	if err := svc.Apply(Config{Enabled: true, PollInterval: 2 * time.Minute, Options: Options{Lead: 10 * time.Minute, MissedPolicy: MissedLate}}); err != nil {
		t.Fatal(err)
	}
	if svc.c == nil {
		t.Fatal("cron not restarted")
	}
	if o := sched.Options(); o.Lead != 10*time.Minute || o.MissedPolicy != MissedLate {
		t.Fatalf("options = %+v", o)
	}

	if err := svc.Apply(Config{Enabled: false}); err != nil {
		t.Fatal(err)
	}
	if svc.c != nil {
		t.Fatal("cron still running after disable")
	}
}
