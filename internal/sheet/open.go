package sheet

import (
	"context"
	"fmt"
	"strings"

	logx "remindbot/pkg/logx"
)

// Open builds the Book selected by cfg.Driver ("google", "sqlite" or "memory").
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Book, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "sheets"))

	switch d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d {
	case "", "google":
		return openGoogle(ctx, cfg, log)
	case "sqlite":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemoryBook(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
