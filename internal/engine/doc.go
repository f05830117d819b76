// Package engine рендерит шаблоны в конфигурации загрузки.
//
// Шаблонными являются только поля, которые зависят от даты или окружения:
// bucket, source_objects, schema_object, destination_project_dataset_table,
// impersonation_chain. Рендеринг выполняется Worker'ом перед каждой
// попыткой, загрузка получает уже готовые строки.
package engine
