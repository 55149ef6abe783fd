package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arloliu/leadflow/types"
)

// Log formats accepted by New.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// SyncLogger is a types.Logger that may buffer entries until Sync.
type SyncLogger interface {
	types.Logger
	Sync() error
}

var (
	_ SyncLogger = (*ZapLogger)(nil)
	_ SyncLogger = (*SlogLogger)(nil)
	_ SyncLogger = NopLogger{}
)

// New builds a stderr logger for the command line.
//
// Parameters:
//   - format: FormatJSON for zap JSON entries, FormatText for slog key=value lines
//   - level: "debug", "info", "warn" or "error"
//
// Returns:
//   - SyncLogger: The logger
//   - error: Unknown format or level
func New(format, level string) (SyncLogger, error) {
	switch format {
	case FormatJSON, "":
		logger, err := NewZap(level)
		if err != nil {
			return nil, err
		}

		return logger, nil
	case FormatText:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})

		return NewSlog(slog.New(handler)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatJSON, FormatText)
	}
}
