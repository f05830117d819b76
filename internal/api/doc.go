// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (хранилища, publisher, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (recovery, metrics, logging)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - load_handler.go       — обработчики для /loads
//   - connection_handler.go — обработчики для /connections
//
// API ставит загрузки в очередь, отдаёт их статус и return_value
// и управляет подключениями Google Cloud. Выполняет загрузки Worker.
package api
