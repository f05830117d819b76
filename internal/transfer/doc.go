// Package transfer реализует загрузку файлов из Google Cloud Storage в BigQuery.
//
// # Использование
//
//	op, err := transfer.New(cfg, hooks, transfer.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	maxID, err := op.Execute(ctx)
//
// # Режимы
//
// По умолчанию выполняется load job в таблицу назначения. При
// external_table=true создаётся external table поверх тех же URI, без
// параметров загрузки (write disposition, autodetect, партиционирование,
// кластеризация).
//
// # Схема
//
//   - schema_fields задан: используется как есть
//   - schema_object задан и формат не DATASTORE_BACKUP: JSON-файл читается из бакета
//   - иначе схема не передаётся, BigQuery определяет её сам (autodetect)
//
// # Результат
//
// Если задан max_id_key, после загрузки выполняется
//
//	SELECT MAX(<max_id_key>) FROM `<destination_project_dataset_table>`
//
// и первое значение первой строки становится результатом. NULL и нулевые
// значения возвращаются как int64(0). Пустой результат — ошибка ErrProbeNoRows.
//
// Повторов внутри пакета нет: ими управляет worker.
package transfer
