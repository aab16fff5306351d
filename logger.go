package trafficlight

import (
	"context"
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)
var logger *slog.Logger

func init() {
	opts := slog.HandlerOptions{
		Level: logLevel,
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &opts))
	slog.SetDefault(logger)
}

func newLoggerFromContext(ctx context.Context) *slog.Logger {
	l := logger
	if p := phaseFromContext(ctx); p != PhaseNone {
		l = l.With("phase", p)
	}
	if name := crossingFromContext(ctx); name != "" {
		l = l.With("crossing", name)
	}
	return l
}
