package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

const remindUsage = "/remind YYYY/MM/DD HH:MM message"

// Schedule tells the Registrar when stored reminders get announced.
// *Service implements it.
type Schedule interface {
	Lead() time.Duration
	MinNotice() time.Duration
}

// Registrar handles /remind.
type Registrar struct {
	repo  *Repository
	loc   *time.Location
	sched Schedule
	bus   eventbus.Bus
	now   func() time.Time
}

func NewRegistrar(repo *Repository, loc *time.Location, sched Schedule, bus eventbus.Bus) *Registrar {
	if loc == nil {
		loc = time.Local
	}
	return &Registrar{repo: repo, loc: loc, sched: sched, bus: bus, now: time.Now}
}

func (r *Registrar) Command() router.Command {
	return router.Command{
		Name:        "remind",
		Aliases:     []string{"r"},
		Description: "schedule a reminder",
		Usage:       remindUsage,
		Handle:      r.handle,
	}
}

func (r *Registrar) handle(ctx context.Context, req *router.Request) error {
	when, msg, ok := splitRemindArgs(req.Text, req.Args)
	if !ok {
		return req.Reply(ctx, "usage: "+remindUsage)
	}

	now := r.now().In(r.loc)
	at, err := ParseRequestTime(when, now, r.loc)
	switch {
	case errors.Is(err, ErrBadFormat):
		return req.Reply(ctx, "❌ Invalid date format. Use YYYY/MM/DD HH:MM, e.g. 2026/04/01 09:30")
	case errors.Is(err, ErrInPast):
		return req.Reply(ctx, "❌ That time is already in the past.")
	case err != nil:
		return err
	}
	lead := r.sched.Lead()
	// A window that closes before the next tick would strand the row unsent.
	if notice := r.sched.MinNotice(); at.Sub(now) < notice {
		return req.Reply(ctx, fmt.Sprintf("❌ Too soon: reminders are announced %s ahead. Pick a time at least %s from now.",
			humanDuration(lead), humanDuration(notice)))
	}

	rec := Record{
		ScheduledAt: at,
		Message:     msg,
		ChannelID:   strconv.FormatInt(req.Chat.ChatID, 10),
	}
	if err := r.repo.Add(ctx, rec); err != nil {
		req.Logger.Error("store reminder failed", logx.Err(err))
		_ = req.Reply(ctx, "⚠️ Could not save the reminder, try again later.")
		return err
	}
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderAdded, Data: rec})
	}
	req.Logger.Info("reminder stored", logx.Time("scheduled", at))

	reply := fmt.Sprintf("✅ Reminder set for %s: \"%s\"", at.Format(RequestLayout), msg)
	switch {
	case lead > 0 && at.Add(-lead).Before(now):
		reply += "\nThat is inside the announce window, so I'll post it at the next check."
	case lead > 0:
		reply += fmt.Sprintf("\nI'll post it %s before.", humanDuration(lead))
	}
	return req.Reply(ctx, reply)
}

// splitRemindArgs accepts `2026/04/01 09:30 text...` and `"2026/04/01 09:30" text...`.
func splitRemindArgs(text string, args []string) (when, msg string, ok bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, `"`) || strings.HasPrefix(text, `'`) {
		if len(args) < 2 {
			return "", "", false
		}
		end := strings.IndexByte(text[1:], text[0])
		if end < 0 {
			return "", "", false
		}
		msg = strings.TrimSpace(text[end+2:])
		return args[0], msg, msg != ""
	}

	fields := strings.Fields(text)
	if len(fields) < 3 {
		return "", "", false
	}
	when = fields[0] + " " + fields[1]
	rest := text
	for i := 0; i < 2; i++ {
		rest = strings.TrimSpace(rest)
		rest = rest[len(fields[i]):]
	}
	return when, strings.TrimSpace(rest), true
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " h"
	case d%time.Minute == 0:
		return strconv.Itoa(int(d/time.Minute)) + " min"
	default:
		return d.String()
	}
}
