package config

import (
	"strings"

	logx "remindbot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log fields describing the new values. Secrets are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.PollTimeout != n.PollTimeout || o.RatePerSec != n.RatePerSec || o.LogChatID != n.LogChatID ||
		o.CommandTimeout != n.CommandTimeout || o.Token != n.Token {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.String("telegram.poll_timeout", n.PollTimeout),
			logx.Int("telegram.rate_per_sec", n.RatePerSec),
			logx.Bool("telegram.token_changed", o.Token != n.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		l := newCfg.Logging
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file", l.File.Enabled),
			logx.Bool("logging.telegram", l.Telegram.Enabled),
		)
	}

	if oldCfg.Reminders != newCfg.Reminders {
		r := newCfg.Reminders
		changed = append(changed, "reminders")
		fields = append(fields,
			logx.Bool("reminders.enabled", r.Enabled),
			logx.String("reminders.poll_interval", r.PollInterval),
			logx.String("reminders.lead", r.Lead),
			logx.String("reminders.tolerance", r.Tolerance),
			logx.String("reminders.timezone", r.Timezone),
			logx.String("reminders.missed_policy", r.MissedPolicy),
		)
	}

	if oldCfg.Sheets != newCfg.Sheets {
		s := newCfg.Sheets
		changed = append(changed, "sheets")
		fields = append(fields,
			logx.String("sheets.driver", s.Driver),
			logx.String("sheets.reminder_sheet", s.ReminderSheetName()),
			logx.String("sheets.prompt_sheet", s.PromptSheetName()),
		)
	}

	if oldCfg.Health != newCfg.Health {
		h := newCfg.Health
		changed = append(changed, "health")
		fields = append(fields,
			logx.Bool("health.enabled", h.Enabled),
			logx.String("health.addr", h.ListenAddr()),
			logx.Bool("health.metrics", h.Metrics),
			logx.Bool("health.pprof", h.Pprof),
		)
	}

	fields = append(fields, logx.String("changed", strings.Join(changed, ",")))
	return changed, fields
}

// RequiresRestart reports changes that are only read at startup.
func RequiresRestart(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token {
		out = append(out, "telegram.token")
	}
	if oldCfg.Sheets != newCfg.Sheets {
		out = append(out, "sheets")
	}
	if oldCfg.Reminders.Timezone != newCfg.Reminders.Timezone {
		out = append(out, "reminders.timezone")
	}
	return out
}
