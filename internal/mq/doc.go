// Package mq связывает API и Worker'ы через RabbitMQ.
//
// Файлы:
//   - connection.go — соединение с heartbeat и переподключением
//   - topology.go   — exchanges, очереди, привязки, DLQ
//   - messages.go   — конверт сообщения и payload'ы
//   - publisher.go  — публикация
//   - consumer.go   — потребление с выбором обработчика по типу
//
// Типы сообщений:
//   - load.ready     — загрузка поставлена в очередь (API → Worker)
//   - load.completed — загрузка завершена, содержит return_value
//
// Ошибка обработчика возвращает сообщение в очередь один раз, повторная
// уходит в dlq.loads. Очередь только будит Worker. Статус загрузки
// хранится в БД, и потерянное сообщение подберёт polling.
package mq
