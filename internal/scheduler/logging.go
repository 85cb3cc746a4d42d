package scheduler

import (
	"context"
	"log/slog"

	"github.com/festival-platform/program-scheduler/internal/logging"
)

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContextOr(ctx, base)

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// logFailure records err at warn level for expected domain outcomes and at
// error level for everything else.
func logFailure(logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	if kind == "unexpected" {
		logger.Error(msg, "error_kind", kind, "error", err)
		return
	}
	logger.Warn(msg, "error_kind", kind, "error", err)
}
