package app

import (
	"time"

	"remindbot/internal/config"
	"remindbot/internal/observability/health"
	"remindbot/internal/reminder"
	"remindbot/internal/sheet"
	"remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

// The mappers below assume cfg passed config.Validate, so duration
// fields fall back to defaults instead of failing.

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func telegramConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    config.DurationOr(cfg.Telegram.PollTimeout, 10*time.Second),
		SendRatePerSec: cfg.Telegram.RatePerSec,
	}
}

func commandTimeout(cfg *config.Config) time.Duration {
	return config.DurationOr(cfg.Telegram.CommandTimeout, 30*time.Second)
}

func sheetConfig(cfg *config.Config) sheet.Config {
	return sheet.Config{
		Driver:          cfg.Sheets.Driver,
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		Timeout:         config.DurationOr(cfg.Sheets.Timeout, 20*time.Second),
		Path:            cfg.Sheets.Path,
		BusyTimeout:     config.DurationOr(cfg.Sheets.BusyTimeout, 5*time.Second),
	}
}

func reminderConfig(cfg *config.Config) reminder.Config {
	r := cfg.Reminders
	return reminder.Config{
		Enabled:      r.Enabled,
		PollInterval: config.DurationOr(r.PollInterval, reminder.DefaultPollInterval),
		TickTimeout:  config.DurationOr(r.TickTimeout, reminder.DefaultTickTimeout),
		Options: reminder.Options{
			Lead:         config.DurationOr(r.Lead, reminder.DefaultLead),
			Tolerance:    config.DurationOr(r.Tolerance, reminder.DefaultTolerance),
			MissedPolicy: r.MissedPolicy,
		},
	}
}

func healthConfig(cfg *config.Config) health.Config {
	h := cfg.Health
	return health.Config{
		Enabled:      h.Enabled,
		Addr:         h.ListenAddr(),
		Metrics:      h.Metrics,
		Pprof:        h.Pprof,
		ReadTimeout:  config.DurationOr(h.ReadTimeout, 10*time.Second),
		WriteTimeout: config.DurationOr(h.WriteTimeout, 0),
		IdleTimeout:  config.DurationOr(h.IdleTimeout, 60*time.Second),
	}
}
