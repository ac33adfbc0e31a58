package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"remindbot/internal/eventbus"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const (
	DefaultLead      = 5 * time.Minute
	DefaultTolerance = 60 * time.Second
)

// Missed window handling.
const (
	// MissedSkip leaves a reminder unsent once its window has passed.
	MissedSkip = "skip"
	// MissedLate delivers it on the next tick instead.
	MissedLate = "late"
)

// Sender is the part of the messaging transport the scheduler needs.
type Sender interface {
	ResolveChat(ctx context.Context, id string) (kit.ChatTarget, error)
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	BotName() string
}

type Options struct {
	Lead         time.Duration
	Tolerance    time.Duration
	MissedPolicy string
}

func (o Options) normalized() Options {
	if o.Lead < 0 {
		o.Lead = 0
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	o.MissedPolicy = strings.ToLower(strings.TrimSpace(o.MissedPolicy))
	if o.MissedPolicy != MissedLate {
		o.MissedPolicy = MissedSkip
	}
	return o
}

// TickReport summarizes one scan of the table. Per-row outcomes other than
// a successful send are only reported here, once per tick, so rows that stay
// unsent do not flood the bus.
type TickReport struct {
	ID       string
	Started  time.Time
	Duration time.Duration

	Scanned     int // data rows read
	Dispatched  int
	Waiting     int // unsent, window not reached yet
	Missed      int // unsent, window already passed
	Malformed   int
	Unreachable int // channel lookup failed
	Failed      int // send failed

	// Error is set when the tick ended early.
	Error string
}

// Skipped counts rows that were due but could not be delivered this tick.
func (r TickReport) Skipped() int { return r.Malformed + r.Unreachable + r.Failed }

// Due reports whether now lies within tolerance of scheduled-lead. The
// window is symmetric: notify time ± tolerance.
func Due(scheduled, now time.Time, lead, tolerance time.Duration) bool {
	d := now.Sub(scheduled.Add(-lead))
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func missed(scheduled, now time.Time, lead, tolerance time.Duration) bool {
	return now.Sub(scheduled.Add(-lead)) > tolerance
}

// Scheduler performs ticks. It holds no timer; Service drives it.
type Scheduler struct {
	repo *Repository
	send Sender
	bus  eventbus.Bus
	log  logx.Logger
	now  func() time.Time

	mu   sync.RWMutex
	opts Options
}

type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func WithBus(b eventbus.Bus) SchedulerOption {
	return func(s *Scheduler) { s.bus = b }
}

func NewScheduler(repo *Repository, send Sender, log logx.Logger, opts Options, so ...SchedulerOption) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		repo: repo,
		send: send,
		log:  log,
		now:  time.Now,
		opts: opts.normalized(),
	}
	for _, o := range so {
		o(s)
	}
	return s
}

func (s *Scheduler) SetOptions(o Options) {
	s.mu.Lock()
	s.opts = o.normalized()
	s.mu.Unlock()
}

func (s *Scheduler) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Tick reads the whole table once and delivers every due, unsent reminder.
// A read failure or a failure to mark a row sent ends the tick with an error.
func (s *Scheduler) Tick(ctx context.Context) (rep TickReport, err error) {
	opts := s.Options()
	rep = TickReport{ID: uuid.NewString(), Started: s.now()}
	log := s.log.With(logx.String("tick", rep.ID))
	defer func() {
		rep.Duration = s.now().Sub(rep.Started)
		if err != nil {
			rep.Error = err.Error()
		}
		s.publish(eventbus.TypeTickFinished, rep)
	}()

	records, rerr := s.repo.All(ctx)
	if rerr != nil {
		return rep, fmt.Errorf("read reminders: %w", rerr)
	}
	rep.Scanned = len(records)

	for _, rec := range records {
		if rec.Sent {
			continue
		}
		if cerr := ctx.Err(); cerr != nil {
			return rep, cerr
		}
		if rec.ParseErr != nil {
			rep.Malformed++
			log.Warn("skipping reminder with bad datetime", logx.Int("row", rec.Row), logx.Err(rec.ParseErr))
			continue
		}

		now := s.now()
		switch {
		case Due(rec.ScheduledAt, now, opts.Lead, opts.Tolerance):
		case missed(rec.ScheduledAt, now, opts.Lead, opts.Tolerance):
			if opts.MissedPolicy != MissedLate {
				rep.Missed++
				log.Debug("reminder window passed", logx.Int("row", rec.Row), logx.Time("scheduled", rec.ScheduledAt))
				continue
			}
			log.Info("delivering late reminder", logx.Int("row", rec.Row), logx.Time("scheduled", rec.ScheduledAt))
		default:
			rep.Waiting++
			continue
		}

		ok, derr := s.dispatch(ctx, log, rec, &rep)
		if derr != nil {
			return rep, derr
		}
		if ok {
			rep.Dispatched++
		}
	}
	return rep, nil
}

// dispatch sends one reminder and marks it sent. ok is false when delivery was
// skipped; err is non-nil only when the sent flag could not be written.
func (s *Scheduler) dispatch(ctx context.Context, log logx.Logger, rec Record, rep *TickReport) (ok bool, err error) {
	log = log.With(logx.Int("row", rec.Row), logx.String("channel_id", rec.ChannelID))

	to, err := s.send.ResolveChat(ctx, rec.ChannelID)
	if err != nil {
		rep.Unreachable++
		log.Warn("reminder channel not found", logx.Err(err))
		return false, nil
	}
	if _, err := s.send.SendText(ctx, to, s.notification(rec), &kit.SendOptions{DisablePreview: true}); err != nil {
		rep.Failed++
		log.Warn("reminder send failed", logx.Err(err))
		return false, nil
	}
	if err := s.repo.MarkSent(ctx, rec.Row); err != nil {
		// The message is out but the flag is not; the next tick may send it again.
		return false, fmt.Errorf("mark row %d sent: %w", rec.Row, err)
	}
	rec.Sent = true
	log.Info("reminder sent", logx.Time("scheduled", rec.ScheduledAt))
	s.publish(eventbus.TypeReminderSent, rec)
	return true, nil
}

// maxNotificationRunes keeps a reminder inside one Telegram message, so a
// failed send never leaves part of it delivered.
const maxNotificationRunes = 4000

func (s *Scheduler) notification(rec Record) string {
	head := fmt.Sprintf("🔔 Reminder from %s!\n📝 \"", s.send.BotName())
	tail := fmt.Sprintf("\" (%s)", rec.ScheduledAt.Format(StoreLayout))
	budget := maxNotificationRunes - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	return head + clipRunes(rec.Message, budget) + tail
}

// clipRunes shortens s to at most n runes, marking the cut with an ellipsis.
func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
