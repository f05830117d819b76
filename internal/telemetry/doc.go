// Package telemetry — логирование и метрики сервисов gcs2bq.
//
// NewLogger строит slog логгер (json или text), WithTask добавляет
// task_id и task_name, а WithLogger/FromContext передают логгер
// через context в исполнитель загрузки. Метрики Prometheus
// отдаются на /metrics API и Worker'а.
package telemetry
