package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/engine"
	"github.com/shaiso/gcs2bq/internal/gcpauth"
	"github.com/shaiso/gcs2bq/internal/mq"
	"github.com/shaiso/gcs2bq/internal/repo"
	"github.com/shaiso/gcs2bq/internal/telemetry"
	"github.com/shaiso/gcs2bq/internal/transfer"
	"github.com/shaiso/gcs2bq/internal/warehouse"
)

// handleLoadReady обрабатывает событие из очереди loads.ready.
func (w *Worker) handleLoadReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.LoadReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse load.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received load.ready event", "task_id", payload.TaskID)

	if err := w.processTask(ctx, payload.TaskID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotQueued) {
			w.logger.Debug("load not processed", "task_id", payload.TaskID, "reason", err)
			return nil
		}
		return err
	}

	return nil
}

// processTask забирает загрузку, выполняет её и сохраняет результат.
func (w *Worker) processTask(ctx context.Context, taskID uuid.UUID) error {
	task, err := w.loads.Claim(ctx, taskID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	case errors.Is(err, repo.ErrInvalidState):
		return ErrTaskNotQueued
	case err != nil:
		return fmt.Errorf("claim task: %w", err)
	}

	logger := telemetry.WithTask(w.logger, task.ID.String(), task.Name)
	ctx = telemetry.WithLogger(ctx, logger)
	logger.Info("load started", "type", task.Type, "attempt", task.Attempt)

	value, execErr := w.executeWithRetry(ctx, task)

	// Worker остановлен посреди попытки — возвращаем загрузку в очередь
	if execErr != nil && ctx.Err() != nil {
		task.ResetForRetry()
		if err := w.loads.Update(context.WithoutCancel(ctx), task); err != nil {
			return fmt.Errorf("requeue interrupted task: %w", err)
		}
		logger.Warn("load interrupted, returned to queue", "error", execErr)
		return ctx.Err()
	}

	if execErr == nil {
		task.MarkSucceeded(value)
		if err := w.loads.Update(ctx, task); err != nil {
			return fmt.Errorf("update task to succeeded: %w", err)
		}
		logger.Info("load succeeded",
			"attempt", task.Attempt,
			"return_value", value,
			"duration", task.Duration(),
		)
		return w.publishCompletion(ctx, task)
	}

	task.MarkFailed(execErr.Error())
	if err := w.loads.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to failed: %w", err)
	}
	logger.Warn("load failed", "attempt", task.Attempt, "error", execErr)

	return w.publishCompletion(ctx, task)
}

// publishCompletion публикует событие load.completed.
func (w *Worker) publishCompletion(ctx context.Context, task *domain.LoadTask) error {
	if w.publisher == nil {
		return nil
	}

	payload := mq.LoadCompletedPayload{
		TaskID:      task.ID,
		Name:        task.Name,
		Status:      string(task.Status),
		Attempt:     task.Attempt,
		ReturnValue: task.ReturnValue,
		Error:       task.Error,
	}

	if err := w.publisher.PublishLoadCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку — результат уже в БД
		w.logger.Warn("failed to publish load.completed",
			"task_id", task.ID,
			"error", err,
		)
	}

	return nil
}

// executeWithRetry выполняет загрузку с retry согласно task.Retry.
func (w *Worker) executeWithRetry(ctx context.Context, task *domain.LoadTask) (any, error) {
	executor, err := w.registry.Get(task.Type)
	if err != nil {
		return nil, err
	}

	for {
		value, execErr := executor.Execute(ctx, task)
		if execErr == nil {
			return value, nil
		}

		if ctx.Err() != nil || !task.CanRetry() || !shouldRetry(execErr) {
			return nil, execErr
		}

		delay := calculateBackoff(task.Attempt, task.Retry)
		telemetry.TaskRetries.Inc()

		w.logger.Info("retrying load",
			"task_id", task.ID,
			"attempt", task.Attempt,
			"delay", delay,
			"error", execErr,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, execErr
		}

		task.ResetForRetry()
		task.MarkRunning()
		if err := w.loads.Update(ctx, task); err != nil {
			return nil, fmt.Errorf("update task for retry: %w", err)
		}
	}
}

// shouldRetry отделяет ошибки конфигурации от временных сбоев.
// Ошибки конфигурации при повторе дают тот же результат.
func shouldRetry(err error) bool {
	permanent := []error{
		ErrUnknownTaskType,
		engine.ErrTemplateParse,
		engine.ErrTemplateRender,
		transfer.ErrInvalidConfig,
		transfer.ErrSchemaNotUTF8,
		warehouse.ErrInvalidTableRef,
		warehouse.ErrInvalidSourceFormat,
		warehouse.ErrInvalidSrcFmtConfig,
		warehouse.ErrInvalidSchemaUpdate,
		warehouse.ErrSchemaRequired,
		warehouse.ErrSchemaNotAllowed,
		gcpauth.ErrConnectionNotFound,
		gcpauth.ErrDelegationRequiresKey,
	}
	for _, target := range permanent {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy domain.RetryPolicy) time.Duration {
	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	return min(delay, maxDelay)
}
