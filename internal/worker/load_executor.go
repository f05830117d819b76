package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/engine"
	"github.com/shaiso/gcs2bq/internal/telemetry"
	"github.com/shaiso/gcs2bq/internal/transfer"
)

// LoadExecutor выполняет задачи типа gcs_to_bigquery.
//
// Перед каждой попыткой рендерит шаблоны конфигурации
// с контекстом задачи (Inputs, LogicalDate, попытка).
type LoadExecutor struct {
	hooks  transfer.HookFactory
	logger *slog.Logger
}

// NewLoadExecutor создаёт LoadExecutor.
func NewLoadExecutor(hooks transfer.HookFactory, logger *slog.Logger) *LoadExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadExecutor{hooks: hooks, logger: logger}
}

// Execute рендерит конфигурацию и выполняет загрузку.
func (e *LoadExecutor) Execute(ctx context.Context, task *domain.LoadTask) (any, error) {
	cfg, err := engine.RenderLoadConfig(task.Config, engine.ContextFromTask(task))
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}

	logger := telemetry.FromContext(ctx, telemetry.WithTask(e.logger, task.ID.String(), task.Name)).
		With("attempt", task.Attempt)
	op, err := transfer.New(cfg, e.hooks, transfer.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	mode := telemetry.LoadMode(cfg.ExternalTable)
	start := time.Now()

	value, err := op.Execute(ctx)

	telemetry.LoadDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	telemetry.LoadsTotal.WithLabelValues(mode, status).Inc()

	return value, err
}

// DefaultRegistry создаёт реестр с LoadExecutor для gcs_to_bigquery.
func DefaultRegistry(hooks transfer.HookFactory, logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.Register(domain.TaskTypeGCSToBigQuery, NewLoadExecutor(hooks, logger))
	return r
}
