// Package metrics exposes reminder and HTTP counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
)

type Metrics struct {
	reg *prometheus.Registry

	Ticks           *prometheus.CounterVec
	TickDuration    prometheus.Histogram
	LastTick        prometheus.Gauge
	Reminders       *prometheus.CounterVec
	Unsent          *prometheus.GaugeVec
	SendFailures    *prometheus.CounterVec
	ConfigReloads   prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New builds a private registry with Go runtime collectors and the bot's
// own series.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remindbot_ticks_total",
				Help: "Reminder table scans by result",
			},
			[]string{"result"},
		),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "remindbot_tick_duration_seconds",
			Help:    "Time spent in one reminder scan",
			Buckets: prometheus.DefBuckets,
		}),
		LastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "remindbot_last_tick_timestamp_seconds",
			Help: "Unix time of the last finished scan",
		}),
		Reminders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remindbot_reminders_total",
				Help: "Reminder outcomes",
			},
			[]string{"outcome"},
		),
		Unsent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "remindbot_reminders_unsent",
				Help: "Unsent reminders seen by the last complete scan, by state",
			},
			[]string{"state"},
		),
		SendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remindbot_delivery_failures_total",
				Help: "Failed delivery attempts by reason",
			},
			[]string{"reason"},
		),
		ConfigReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remindbot_config_reloads_total",
			Help: "Applied configuration reloads",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remindbot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remindbot_http_request_duration_seconds",
				Help:    "Histogram of response durations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Ticks, m.TickDuration, m.LastTick, m.Reminders, m.Unsent, m.SendFailures, m.ConfigReloads,
		m.HTTPRequests, m.RequestDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Observe updates counters from one bus event.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeTickFinished:
		rep, ok := e.Data.(reminder.TickReport)
		if !ok {
			return
		}
		result := "ok"
		if rep.Error != "" {
			result = "error"
		}
		m.Ticks.WithLabelValues(result).Inc()
		m.TickDuration.Observe(rep.Duration.Seconds())
		m.LastTick.Set(float64(e.Time.Unix()))
		m.SendFailures.WithLabelValues("unreachable").Add(float64(rep.Unreachable))
		m.SendFailures.WithLabelValues("send").Add(float64(rep.Failed))
		// A tick that ended early saw only part of the table.
		if rep.Error == "" {
			m.Unsent.WithLabelValues("waiting").Set(float64(rep.Waiting))
			m.Unsent.WithLabelValues("missed").Set(float64(rep.Missed))
			m.Unsent.WithLabelValues("malformed").Set(float64(rep.Malformed))
		}
	case eventbus.TypeReminderSent:
		m.Reminders.WithLabelValues("sent").Inc()
	case eventbus.TypeReminderAdded:
		m.Reminders.WithLabelValues("added").Inc()
	case eventbus.TypeConfigReloaded:
		m.ConfigReloads.Inc()
	}
}

// Run feeds bus events into Observe until ctx is done.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}

// Middleware records request counts and latency. Paths are taken from the
// chi route pattern when available to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chiRoutePattern(r); rc != "" {
			path = rc
		}
		m.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).Inc()
		m.RequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
