package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
)

func TestObserveEvents(t *testing.T) {
	m := New()
	m.Observe(eventbus.Event{Type: eventbus.TypeTickFinished, Time: time.Unix(1700000000, 0), Data: reminder.TickReport{Duration: time.Second, Missed: 3, Waiting: 2, Unreachable: 1}})
	m.Observe(eventbus.Event{Type: eventbus.TypeTickFinished, Time: time.Unix(1700000060, 0), Data: reminder.TickReport{Error: "boom", Unreachable: 1}})
	m.Observe(eventbus.Event{Type: eventbus.TypeReminderSent})
	m.Observe(eventbus.Event{Type: eventbus.TypeReminderSent})
	m.Observe(eventbus.Event{Type: "unrelated"})

	if got := testutil.ToFloat64(m.Ticks.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok ticks = %v", got)
	}
	if got := testutil.ToFloat64(m.Ticks.WithLabelValues("error")); got != 1 {
		t.Fatalf("error ticks = %v", got)
	}
	if got := testutil.ToFloat64(m.Reminders.WithLabelValues("sent")); got != 2 {
		t.Fatalf("sent = %v", got)
	}
	if got := testutil.ToFloat64(m.SendFailures.WithLabelValues("unreachable")); got != 2 {
		t.Fatalf("unreachable = %v", got)
	}
	if got := testutil.ToFloat64(m.LastTick); got != 1700000060 {
		t.Fatalf("last tick = %v", got)
	}
}

func TestUnsentGaugeTracksLastCompleteTick(t *testing.T) {
	m := New()
	for i := 0; i < 3; i++ {
		m.Observe(eventbus.Event{Type: eventbus.TypeTickFinished, Time: time.Unix(1700000000, 0), Data: reminder.TickReport{Missed: 100}})
	}
	if got := testutil.ToFloat64(m.Unsent.WithLabelValues("missed")); got != 100 {
		t.Fatalf("missed gauge = %v, want 100 after repeated scans", got)
	}

	m.Observe(eventbus.Event{Type: eventbus.TypeTickFinished, Time: time.Unix(1700000060, 0), Data: reminder.TickReport{Missed: 4, Error: "read failed"}})
	if got := testutil.ToFloat64(m.Unsent.WithLabelValues("missed")); got != 100 {
		t.Fatalf("missed gauge = %v, a failed scan should not overwrite it", got)
	}
	if got := testutil.ToFloat64(m.Ticks.WithLabelValues("ok")); got != 3 {
		t.Fatalf("ok ticks = %v", got)
	}
}

func TestHandlerExposesSeries(t *testing.T) {
	m := New()
	m.Observe(eventbus.Event{Type: eventbus.TypeReminderAdded})

	h := m.Middleware(m.Handler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `remindbot_reminders_total{outcome="added"} 1`) {
		t.Fatalf("body missing reminder series:\n%s", body)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/metrics", "GET", "200")); got != 1 {
		t.Fatalf("http requests = %v", got)
	}
}
