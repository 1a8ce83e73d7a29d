// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the slog loggers used by the worker and the CLI.
// Verbosity is held in a slog.LevelVar so it can be flipped at runtime by
// the worker's debug message.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w and the level variable that
// controls it. debug selects the Debug level; otherwise Info.
func New(w io.Writer, debug bool) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	SetDebug(level, debug)
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), level
}

// SetDebug switches level between Debug and Info.
func SetDebug(level *slog.LevelVar, on bool) {
	if on {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// Discard returns a logger that drops everything, with its own level.
func Discard() (*slog.Logger, *slog.LevelVar) {
	return slog.New(slog.DiscardHandler), new(slog.LevelVar)
}
