package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoadTask — экземпляр загрузки, который выполняет Worker.
//
// LoadTask создаётся через API (или CLI) в статусе QUEUED.
// Config хранится в исходном виде, шаблоны рендерятся Worker'ом
// перед каждой попыткой.
type LoadTask struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя загрузки (например, "daily-orders").
	Name string `json:"name,omitempty"`

	// Type — тип задачи, определяет executor. Сейчас только "gcs_to_bigquery".
	Type string `json:"type"`

	// Config — конфигурация загрузки (до рендеринга шаблонов).
	Config LoadConfig `json:"config"`

	// Inputs — значения для шаблонов: {{ .Inputs.date }}.
	Inputs map[string]any `json:"inputs,omitempty"`

	// LogicalDate — дата, за которую выполняется загрузка.
	// Доступна в шаблонах как {{ .DS }} и {{ .TS }}.
	LogicalDate time.Time `json:"logical_date"`

	// Retry — политика повторных попыток.
	Retry RetryPolicy `json:"retry,omitempty"`

	// Attempt — номер попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// ReturnValue — результат выполнения (MAX по max_id_key) или nil.
	ReturnValue any `json:"return_value,omitempty"`

	// StartedAt — время начала последней попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// NewLoadTask создаёт task в статусе QUEUED.
func NewLoadTask(name string, cfg LoadConfig, inputs map[string]any, retry RetryPolicy) *LoadTask {
	now := time.Now().UTC()
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &LoadTask{
		ID:          uuid.New(),
		Name:        name,
		Type:        TaskTypeGCSToBigQuery,
		Config:      cfg,
		Inputs:      inputs,
		LogicalDate: now,
		Retry:       retry,
		Status:      TaskStatusQueued,
		CreatedAt:   now,
	}
}

// Duration возвращает продолжительность выполнения.
func (t *LoadTask) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *LoadTask) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING.
func (t *LoadTask) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.FinishedAt = nil
	t.Attempt++
}

// MarkSucceeded переводит task в статус SUCCEEDED с результатом.
func (t *LoadTask) MarkSucceeded(returnValue any) {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.ReturnValue = returnValue
	t.Error = ""
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *LoadTask) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// ResetForRetry подготавливает task для повторного запуска.
func (t *LoadTask) ResetForRetry() {
	t.Status = TaskStatusQueued
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Error = ""
	t.ReturnValue = nil
	// Attempt увеличится при следующем MarkRunning()
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (t *LoadTask) CanRetry() bool {
	return t.Attempt < t.Retry.Attempts()
}
