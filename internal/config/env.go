package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvTelegramToken     = "TELEGRAM_TOKEN"
	EnvSpreadsheetID     = "SHEETS_SPREADSHEET_ID"
	EnvSheetsCredentials = "SHEETS_CREDENTIALS_FILE"
	EnvHealthAddr        = "HEALTH_ADDR"
)

// LoadDotenv reads .env style files into the process environment without
// overwriting variables that are already set. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// applyEnv copies secrets and deployment specific values from the environment.
func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Sheets.SpreadsheetID, EnvSpreadsheetID)
	set(&cfg.Sheets.CredentialsFile, EnvSheetsCredentials)
	set(&cfg.Health.Addr, EnvHealthAddr)
}
