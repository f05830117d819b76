// Package cli реализует инструмент командной строки gcs2bq.
//
// # Обзор
//
// Команды load и connection работают через HTTP API и не обращаются
// к базе напрямую. Команда exec выполняет загрузку локально: рендерит
// шаблоны, получает учётные данные и запускает тот же LoadExecutor,
// что и Worker.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для gcs2bq API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	loads, err := client.ListLoads(cli.ListLoadsOpts{Status: "FAILED"})
//
// ## LoadFile
//
// Описание загрузки в YAML: name, config, inputs, logical_date, retry.
// Флаги --input KEY=VALUE и --ds дополняют файл.
//
// ## Output
//
// Форматирование вывода:
//   - Таблицы и карточки (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
//
//	gcs2bq load list --status FAILED --json | jq '.[].id'
//
// ## Commands
//
//   - load: list, submit, show, result, retry
//   - connection: list, show, set, delete
//   - exec: локальное выполнение файла загрузки
//
// Группы создаются фабричными функциями (NewLoadCmd и т.д.),
// принимающими clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
