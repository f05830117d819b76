package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// Load DTOs

// CreateLoadRequest — запрос на постановку загрузки в очередь.
type CreateLoadRequest struct {
	Name   string            `json:"name,omitempty"`
	Config domain.LoadConfig `json:"config"`
	Inputs map[string]any    `json:"inputs,omitempty"`

	// LogicalDate — дата для шаблонов ({{ .DS }}). По умолчанию — время запроса.
	LogicalDate *time.Time `json:"logical_date,omitempty"`

	Retry domain.RetryPolicy `json:"retry,omitempty"`
}

// LoadResponse — ответ с загрузкой.
type LoadResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name,omitempty"`
	Type        string             `json:"type"`
	Status      string             `json:"status"`
	Attempt     int                `json:"attempt"`
	Config      domain.LoadConfig  `json:"config"`
	Inputs      map[string]any     `json:"inputs,omitempty"`
	LogicalDate time.Time          `json:"logical_date"`
	Retry       domain.RetryPolicy `json:"retry"`
	ReturnValue any                `json:"return_value,omitempty"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// LoadFromDomain конвертирует domain.LoadTask в LoadResponse.
func LoadFromDomain(t domain.LoadTask) LoadResponse {
	return LoadResponse{
		ID:          t.ID,
		Name:        t.Name,
		Type:        t.Type,
		Status:      string(t.Status),
		Attempt:     t.Attempt,
		Config:      t.Config,
		Inputs:      t.Inputs,
		LogicalDate: t.LogicalDate,
		Retry:       t.Retry,
		ReturnValue: t.ReturnValue,
		StartedAt:   t.StartedAt,
		FinishedAt:  t.FinishedAt,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
	}
}

// LoadResultResponse — результат завершённой загрузки.
//
// ReturnValue всегда присутствует: null, если max_id_key не задан.
type LoadResultResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	ReturnValue any       `json:"return_value"`
	Error       string    `json:"error,omitempty"`
}

// Connection DTOs

// ConnectionResponse — подключение без секретов.
type ConnectionResponse struct {
	domain.Connection
	HMAC bool `json:"uses_hmac"`
}

// ConnectionFromDomain конвертирует подключение, скрывая ключи.
func ConnectionFromDomain(c domain.Connection) ConnectionResponse {
	return ConnectionResponse{
		Connection: c.Redacted(),
		HMAC:       c.UsesHMAC(),
	}
}
