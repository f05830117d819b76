package domain

// SchemaField — описание колонки в формате JSON-схемы BigQuery.
//
// Тот же формат ожидается в файле schema_object.
type SchemaField struct {
	Name        string        `json:"name" yaml:"name"`
	Type        string        `json:"type" yaml:"type"`
	Mode        string        `json:"mode,omitempty" yaml:"mode,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []SchemaField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// SchemaSource — источник схемы целевой таблицы.
//
// Реализации: ExplicitSchema, ExternalSchema, AutodetectSchema.
type SchemaSource interface {
	schemaSource()
}

// ExplicitSchema — схема задана в конфигурации.
type ExplicitSchema struct {
	Fields []SchemaField
}

// ExternalSchema — схема лежит JSON-файлом в бакете источника.
type ExternalSchema struct {
	Object string
}

// AutodetectSchema — схема не задана, BigQuery определяет её сам.
type AutodetectSchema struct{}

func (ExplicitSchema) schemaSource()   {}
func (ExternalSchema) schemaSource()   {}
func (AutodetectSchema) schemaSource() {}

// SchemaSource определяет источник схемы.
//
// Явная схема имеет приоритет. Файл схемы игнорируется для DATASTORE_BACKUP.
func (c *LoadConfig) SchemaSource() SchemaSource {
	if len(c.SchemaFields) > 0 {
		return ExplicitSchema{Fields: c.SchemaFields}
	}
	if c.SchemaObject != "" && c.SourceFormat != SourceFormatDatastoreBackup {
		return ExternalSchema{Object: c.SchemaObject}
	}
	return AutodetectSchema{}
}
