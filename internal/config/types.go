package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("45s", "1m"). JSON and YAML files share the same keys.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`
	Sheets    SheetsConfig    `json:"sheets"`
	Health    HealthConfig    `json:"health"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via TELEGRAM_TOKEN.
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outbound messages (default 20).
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// LogChatID receives log lines when logging.telegram.enabled is set.
	LogChatID int64 `json:"log_chat_id,omitempty"`
	// CommandTimeout bounds one command handler (default 30s).
	CommandTimeout string `json:"command_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RemindersConfig drives the polling loop.
//
// Defaults: poll_interval 1m, lead 5m, tolerance 60s, tick_timeout 45s,
// missed_policy "skip", timezone = process local zone.
type RemindersConfig struct {
	Enabled      bool   `json:"enabled"`
	PollInterval string `json:"poll_interval,omitempty"`
	Lead         string `json:"lead,omitempty"`
	Tolerance    string `json:"tolerance,omitempty"`
	TickTimeout  string `json:"tick_timeout,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	// MissedPolicy is "skip" (default) or "late".
	MissedPolicy string `json:"missed_policy,omitempty"`
	// RunOnStart triggers one tick right after startup.
	RunOnStart bool `json:"run_on_start,omitempty"`
}

// SheetsConfig selects the table backend.
//
// Example:
//
//	"sheets": { "driver": "google", "spreadsheet_id": "1AbC...", "credentials_file": "./sa.json" }
type SheetsConfig struct {
	Driver          string `json:"driver"`
	SpreadsheetID   string `json:"spreadsheet_id,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	Timeout         string `json:"timeout,omitempty"`

	Path        string `json:"path,omitempty"`         // sqlite
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite

	ReminderSheet string `json:"reminder_sheet,omitempty"`
	PromptSheet   string `json:"prompt_sheet,omitempty"`
}

// HealthConfig controls the HTTP liveness server.
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8000"
	Metrics bool   `json:"metrics,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

const (
	DefaultReminderSheet = "Reminder"
	DefaultPromptSheet   = "Theme"
	DefaultHealthAddr    = ":8000"
)

func (s SheetsConfig) ReminderSheetName() string {
	if s.ReminderSheet == "" {
		return DefaultReminderSheet
	}
	return s.ReminderSheet
}

func (s SheetsConfig) PromptSheetName() string {
	if s.PromptSheet == "" {
		return DefaultPromptSheet
	}
	return s.PromptSheet
}

func (h HealthConfig) ListenAddr() string {
	if h.Addr == "" {
		return DefaultHealthAddr
	}
	return h.Addr
}
