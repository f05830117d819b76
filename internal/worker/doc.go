// Package worker выполняет загрузки GCS → BigQuery.
//
// # Обзор
//
// Worker — stateless компонент, который забирает загрузки в статусе QUEUED
// и выполняет их. Источники работы:
//
//   - очередь loads.ready в RabbitMQ (event-driven, если RabbitMQ доступен)
//   - периодический опрос БД (polling fallback)
//
// Загрузку забирает ровно один Worker: LoadStore.Claim атомарно переводит
// её в RUNNING и увеличивает attempt.
//
// # Executor
//
// Executor выполняет одну попытку задачи своего типа:
//
//	type Executor interface {
//	    Execute(ctx context.Context, task *domain.LoadTask) (any, error)
//	}
//
// LoadExecutor (тип gcs_to_bigquery) рендерит шаблоны конфигурации через
// engine и запускает transfer.GCSToBigQuery. Результат MAX(max_id_key)
// сохраняется как return_value.
//
// # Retry
//
// Retry выполняется в процессе согласно RetryPolicy задачи:
//   - "exponential": delay = initialDelay * 2^(attempt-1), не больше maxDelay
//   - "fixed": delay = initialDelay
//
// Ошибки конфигурации (шаблоны, валидация, неизвестное подключение)
// не повторяются. Если Worker остановлен посреди попытки,
// загрузка возвращается в QUEUED.
package worker
