package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/gcs2bq/internal/domain"
)

const loadColumns = `
	id, name, type, config, inputs, logical_date, retry, attempt, status,
	return_value, started_at, finished_at, error, created_at
`

// LoadFilter — параметры выборки загрузок.
type LoadFilter struct {
	Status domain.TaskStatus
	Limit  int
	Offset int
}

// LoadRepo — репозиторий для работы с load tasks.
type LoadRepo struct {
	pool *pgxpool.Pool
}

// NewLoadRepo создаёт новый LoadRepo.
func NewLoadRepo(pool *pgxpool.Pool) *LoadRepo {
	return &LoadRepo{pool: pool}
}

// Create создаёт новую загрузку.
func (r *LoadRepo) Create(ctx context.Context, task *domain.LoadTask) error {
	configJSON, err := json.Marshal(task.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	inputsJSON, err := json.Marshal(task.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	retryJSON, err := json.Marshal(task.Retry)
	if err != nil {
		return fmt.Errorf("marshal retry: %w", err)
	}

	query := `
		INSERT INTO load_tasks (id, name, type, config, inputs, logical_date, retry, attempt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Name,
		task.Type,
		configJSON,
		inputsJSON,
		task.LogicalDate,
		retryJSON,
		task.Attempt,
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert load task: %w", err)
	}
	return nil
}

// GetByID возвращает загрузку по ID.
func (r *LoadRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoadTask, error) {
	query := `SELECT ` + loadColumns + ` FROM load_tasks WHERE id = $1`
	return scanLoad(r.pool.QueryRow(ctx, query, id))
}

// List возвращает загрузки, новые первыми.
func (r *LoadRepo) List(ctx context.Context, filter LoadFilter) ([]domain.LoadTask, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT ` + loadColumns + `
		FROM load_tasks
		WHERE ($1::text IS NULL OR status = $1::task_status)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list load tasks: %w", err)
	}
	return collectLoads(rows)
}

// ListQueued возвращает загрузки в статусе QUEUED, старые первыми.
func (r *LoadRepo) ListQueued(ctx context.Context, limit int) ([]domain.LoadTask, error) {
	query := `SELECT ` + loadColumns + `
		FROM load_tasks
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued load tasks: %w", err)
	}
	return collectLoads(rows)
}

// Claim атомарно переводит загрузку из QUEUED в RUNNING и увеличивает attempt.
//
// Если загрузку уже забрал другой Worker, возвращает ErrInvalidState.
func (r *LoadRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.LoadTask, error) {
	query := `
		UPDATE load_tasks
		SET status = 'RUNNING', attempt = attempt + 1, started_at = now(),
		    finished_at = NULL, error = NULL, return_value = NULL
		WHERE id = $1 AND status = 'QUEUED'
		RETURNING ` + loadColumns
	task, err := scanLoad(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return task, err
}

// Update сохраняет состояние выполнения загрузки.
func (r *LoadRepo) Update(ctx context.Context, task *domain.LoadTask) error {
	var returnJSON []byte
	if task.ReturnValue != nil {
		var err error
		returnJSON, err = json.Marshal(task.ReturnValue)
		if err != nil {
			return fmt.Errorf("marshal return value: %w", err)
		}
	}

	query := `
		UPDATE load_tasks
		SET attempt = $2, status = $3, return_value = $4,
		    started_at = $5, finished_at = $6, error = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Attempt,
		task.Status,
		returnJSON,
		task.StartedAt,
		task.FinishedAt,
		nullString(task.Error),
	)
	if err != nil {
		return fmt.Errorf("update load task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Requeue возвращает завершившуюся неудачей загрузку в очередь.
// Счётчик попыток сбрасывается.
func (r *LoadRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE load_tasks
		SET status = 'QUEUED', attempt = 0, started_at = NULL, finished_at = NULL,
		    error = NULL, return_value = NULL
		WHERE id = $1 AND status = 'FAILED'
	`, id)
	if err != nil {
		return fmt.Errorf("requeue load task: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

func collectLoads(rows pgx.Rows) ([]domain.LoadTask, error) {
	defer rows.Close()

	var tasks []domain.LoadTask
	for rows.Next() {
		task, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// scanLoad читает одну строку load_tasks (pgx.Row и pgx.Rows оба подходят).
func scanLoad(row pgx.Row) (*domain.LoadTask, error) {
	var task domain.LoadTask
	var configJSON, inputsJSON, retryJSON, returnJSON []byte
	var taskError *string

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Type,
		&configJSON,
		&inputsJSON,
		&task.LogicalDate,
		&retryJSON,
		&task.Attempt,
		&task.Status,
		&returnJSON,
		&task.StartedAt,
		&task.FinishedAt,
		&taskError,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan load task: %w", err)
	}

	if err := json.Unmarshal(configJSON, &task.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &task.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if retryJSON != nil {
		if err := json.Unmarshal(retryJSON, &task.Retry); err != nil {
			return nil, fmt.Errorf("unmarshal retry: %w", err)
		}
	}
	if returnJSON != nil {
		value, err := decodeReturnValue(returnJSON)
		if err != nil {
			return nil, fmt.Errorf("unmarshal return value: %w", err)
		}
		task.ReturnValue = value
	}
	if taskError != nil {
		task.Error = *taskError
	}

	return &task, nil
}

// decodeReturnValue сохраняет числа как json.Number, чтобы большие
// идентификаторы не теряли точность при проходе через float64.
func decodeReturnValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
