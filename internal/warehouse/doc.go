// Package warehouse реализует операции BigQuery для загрузки из GCS.
//
// BigQuery проверяет аргументы до обращения к API:
//   - source_format из списка поддерживаемых
//   - ключи src_fmt_configs допустимы для формата
//   - schema_update_options только с WRITE_APPEND или WRITE_TRUNCATE
//   - имя таблицы в формате (<project>.|<project>:)<dataset>.<table>
//
// Опции верхнего уровня (skip_leading_rows, field_delimiter, quote_character и т.д.)
// попадают в src_fmt_configs, если там нет явного значения.
package warehouse
