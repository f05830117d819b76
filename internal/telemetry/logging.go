package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel преобразует строковое значение уровня в slog.Level.
// Возможные значения: DEBUG, INFO, WARN, ERROR (регистр не важен).
// Неизвестные значения дают INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создаёт логгер с указанным уровнем и форматом.
//
// format:
//   - "json" (по умолчанию) — для production и сбора логов
//   - "text" — человекочитаемый, для CLI и разработки
//
// На уровне DEBUG к записям добавляется source.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupLogger создаёт логгер сервиса из LOG_LEVEL и LOG_FORMAT
// и делает его глобальным.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)
	return logger
}

type ctxKey struct{}

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгера нет, возвращает fallback, а без него — глобальный.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// WithTask возвращает логгер с идентификацией загрузки: task_id и task_name.
func WithTask(logger *slog.Logger, taskID, name string) *slog.Logger {
	return logger.With("task_id", taskID, "task_name", name)
}
