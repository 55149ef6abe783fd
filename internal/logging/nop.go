package logging

import "github.com/arloliu/leadflow/types"

// NopLogger discards every message. It is the default logger of every component.
type NopLogger struct{}

var _ types.Logger = NopLogger{}

// NewNop returns a logger that discards all messages.
func NewNop() NopLogger {
	return NopLogger{}
}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Sync does nothing.
func (NopLogger) Sync() error { return nil }

// Fatal discards the message and does not exit.
func (NopLogger) Fatal(string, ...any) {}
