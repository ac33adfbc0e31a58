package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("telegram.token is empty (set it or %s)", EnvTelegramToken))
	}

	durations := []struct{ key, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"telegram.command_timeout", c.Telegram.CommandTimeout},
		{"reminders.poll_interval", c.Reminders.PollInterval},
		{"reminders.lead", c.Reminders.Lead},
		{"reminders.tolerance", c.Reminders.Tolerance},
		{"reminders.tick_timeout", c.Reminders.TickTimeout},
		{"sheets.timeout", c.Sheets.Timeout},
		{"sheets.busy_timeout", c.Sheets.BusyTimeout},
		{"health.read_timeout", c.Health.ReadTimeout},
		{"health.write_timeout", c.Health.WriteTimeout},
		{"health.idle_timeout", c.Health.IdleTimeout},
	}
	for _, d := range durations {
		if _, err := Duration(d.key, d.raw, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if iv := DurationOr(c.Reminders.PollInterval, time.Minute); iv > 0 && iv < time.Second {
		errs = append(errs, errors.New("reminders.poll_interval must be at least 1s"))
	}

	if tz := strings.TrimSpace(c.Reminders.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("reminders.timezone: %w", err))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Reminders.MissedPolicy)) {
	case "", "skip", "late":
	default:
		errs = append(errs, fmt.Errorf("reminders.missed_policy: want skip or late, got %q", c.Reminders.MissedPolicy))
	}

	switch strings.ToLower(strings.TrimSpace(c.Sheets.Driver)) {
	case "", "google":
		if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
			errs = append(errs, fmt.Errorf("sheets.spreadsheet_id is empty (set it or %s)", EnvSpreadsheetID))
		}
		if strings.TrimSpace(c.Sheets.CredentialsFile) == "" {
			errs = append(errs, fmt.Errorf("sheets.credentials_file is empty (set it or %s)", EnvSheetsCredentials))
		}
	case "sqlite":
		if strings.TrimSpace(c.Sheets.Path) == "" {
			errs = append(errs, errors.New("sheets.path is required for sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("sheets.driver: unknown driver %q", c.Sheets.Driver))
	}

	return errors.Join(errs...)
}

// Location returns the reminder time zone, defaulting to time.Local.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Reminders.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
