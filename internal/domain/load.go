package domain

// TaskTypeGCSToBigQuery — тип задачи загрузки файлов из GCS в BigQuery.
const TaskTypeGCSToBigQuery = "gcs_to_bigquery"

// DefaultConnID — подключение, используемое если не задано ни одно другое.
const DefaultConnID = "google_cloud_default"

// SourceFormat — формат исходных файлов.
type SourceFormat string

const (
	SourceFormatCSV             SourceFormat = "CSV"
	SourceFormatJSON            SourceFormat = "NEWLINE_DELIMITED_JSON"
	SourceFormatAvro            SourceFormat = "AVRO"
	SourceFormatGoogleSheets    SourceFormat = "GOOGLE_SHEETS"
	SourceFormatDatastoreBackup SourceFormat = "DATASTORE_BACKUP"
	SourceFormatParquet         SourceFormat = "PARQUET"
)

// Compression — сжатие исходных файлов (учитывается только для external table).
type Compression string

const (
	CompressionNone Compression = "NONE"
	CompressionGzip Compression = "GZIP"
)

// CreateDisposition — поведение, если целевой таблицы нет.
type CreateDisposition string

const (
	CreateIfNeeded CreateDisposition = "CREATE_IF_NEEDED"
	CreateNever    CreateDisposition = "CREATE_NEVER"
)

// WriteDisposition — поведение, если целевая таблица уже содержит данные.
type WriteDisposition string

const (
	WriteEmpty    WriteDisposition = "WRITE_EMPTY"
	WriteAppend   WriteDisposition = "WRITE_APPEND"
	WriteTruncate WriteDisposition = "WRITE_TRUNCATE"
)

// Encoding — кодировка CSV файлов.
type Encoding string

const (
	EncodingUTF8   Encoding = "UTF-8"
	EncodingLatin1 Encoding = "ISO-8859-1"
)

// TimePartitioning — настройки партиционирования по времени.
//
// Формат совпадает с timePartitioning из BigQuery REST API.
type TimePartitioning struct {
	// Type — гранулярность: DAY, HOUR, MONTH, YEAR.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Field — колонка партиционирования. Пусто — псевдоколонка _PARTITIONTIME.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// ExpirationMs — время жизни партиции в миллисекундах.
	ExpirationMs int64 `json:"expirationMs,omitempty" yaml:"expirationMs,omitempty"`

	RequirePartitionFilter bool `json:"requirePartitionFilter,omitempty" yaml:"requirePartitionFilter,omitempty"`
}

// IsZero возвращает true, если партиционирование не задано.
func (p TimePartitioning) IsZero() bool {
	return p == TimePartitioning{}
}

// EncryptionConfiguration — ключ KMS для шифрования целевой таблицы.
type EncryptionConfiguration struct {
	KMSKeyName string `json:"kmsKeyName,omitempty" yaml:"kmsKeyName,omitempty"`
}

// IsZero возвращает true, если шифрование не задано.
func (e EncryptionConfiguration) IsZero() bool {
	return e.KMSKeyName == ""
}

// LoadConfig — декларативная конфигурация загрузки GCS → BigQuery.
//
// Имена полей в JSON/YAML совпадают с параметрами исходного оператора,
// поэтому существующие описания загрузок переносятся без изменений.
// Поля Bucket, SourceObjects, SchemaObject, DestinationProjectDatasetTable
// и ImpersonationChain поддерживают шаблоны (см. engine.RenderLoadConfig).
type LoadConfig struct {
	// --- Источник ---

	// Bucket — бакет с исходными файлами (и с файлом схемы).
	Bucket string `json:"bucket" yaml:"bucket"`

	// SourceObjects — один путь или список путей (допускаются wildcard).
	// Порядок сохраняется и определяет порядок URI.
	SourceObjects StringOrSlice `json:"source_objects" yaml:"source_objects"`

	// --- Назначение ---

	// DestinationProjectDatasetTable — "(<project>.|<project>:)<dataset>.<table>".
	DestinationProjectDatasetTable string `json:"destination_project_dataset_table" yaml:"destination_project_dataset_table"`

	// --- Схема ---

	// SchemaFields — явная схема.
	SchemaFields []SchemaField `json:"schema_fields,omitempty" yaml:"schema_fields,omitempty"`

	// SchemaObject — путь к JSON-файлу со схемой в том же бакете.
	SchemaObject string `json:"schema_object,omitempty" yaml:"schema_object,omitempty"`

	// Autodetect — автоопределение схемы. Nil означает true.
	Autodetect *bool `json:"autodetect,omitempty" yaml:"autodetect,omitempty"`

	// --- Формат ---

	SourceFormat        SourceFormat   `json:"source_format,omitempty" yaml:"source_format,omitempty"`
	Compression         Compression    `json:"compression,omitempty" yaml:"compression,omitempty"`
	SkipLeadingRows     int            `json:"skip_leading_rows,omitempty" yaml:"skip_leading_rows,omitempty"`
	FieldDelimiter      string         `json:"field_delimiter,omitempty" yaml:"field_delimiter,omitempty"`
	MaxBadRecords       int            `json:"max_bad_records,omitempty" yaml:"max_bad_records,omitempty"`
	QuoteCharacter      *string        `json:"quote_character,omitempty" yaml:"quote_character,omitempty"`
	IgnoreUnknownValues bool           `json:"ignore_unknown_values,omitempty" yaml:"ignore_unknown_values,omitempty"`
	AllowQuotedNewlines bool           `json:"allow_quoted_newlines,omitempty" yaml:"allow_quoted_newlines,omitempty"`
	AllowJaggedRows     bool           `json:"allow_jagged_rows,omitempty" yaml:"allow_jagged_rows,omitempty"`
	Encoding            Encoding       `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SrcFmtConfigs       map[string]any `json:"src_fmt_configs,omitempty" yaml:"src_fmt_configs,omitempty"`

	// --- Семантика загрузки ---

	CreateDisposition   CreateDisposition       `json:"create_disposition,omitempty" yaml:"create_disposition,omitempty"`
	WriteDisposition    WriteDisposition        `json:"write_disposition,omitempty" yaml:"write_disposition,omitempty"`
	SchemaUpdateOptions []string                `json:"schema_update_options,omitempty" yaml:"schema_update_options,omitempty"`
	TimePartitioning    TimePartitioning        `json:"time_partitioning,omitempty" yaml:"time_partitioning,omitempty"`
	ClusterFields       []string                `json:"cluster_fields,omitempty" yaml:"cluster_fields,omitempty"`
	Encryption          EncryptionConfiguration `json:"encryption_configuration,omitempty" yaml:"encryption_configuration,omitempty"`
	Labels              map[string]string       `json:"labels,omitempty" yaml:"labels,omitempty"`
	Description         string                  `json:"description,omitempty" yaml:"description,omitempty"`

	// ExternalTable — создать external table вместо загрузки.
	ExternalTable bool `json:"external_table,omitempty" yaml:"external_table,omitempty"`

	// MaxIDKey — колонка для MAX() после загрузки. Пусто — запрос не выполняется.
	MaxIDKey string `json:"max_id_key,omitempty" yaml:"max_id_key,omitempty"`

	// --- Идентичность ---

	GCPConnID          string        `json:"gcp_conn_id,omitempty" yaml:"gcp_conn_id,omitempty"`
	DelegateTo         string        `json:"delegate_to,omitempty" yaml:"delegate_to,omitempty"`
	ImpersonationChain StringOrSlice `json:"impersonation_chain,omitempty" yaml:"impersonation_chain,omitempty"`
	Location           string        `json:"location,omitempty" yaml:"location,omitempty"`

	// Deprecated: используйте GCPConnID.
	BigQueryConnID string `json:"bigquery_conn_id,omitempty" yaml:"bigquery_conn_id,omitempty"`

	// Deprecated: используйте GCPConnID.
	GoogleCloudStorageConnID string `json:"google_cloud_storage_conn_id,omitempty" yaml:"google_cloud_storage_conn_id,omitempty"`
}

// AutodetectEnabled возвращает значение autodetect с учётом умолчания.
func (c *LoadConfig) AutodetectEnabled() bool {
	return c.Autodetect == nil || *c.Autodetect
}

// HasLegacyConnIDs возвращает true, если задан хотя бы один устаревший параметр подключения.
func (c *LoadConfig) HasLegacyConnIDs() bool {
	return c.BigQueryConnID != "" || c.GoogleCloudStorageConnID != ""
}

// ResolveConnID возвращает итоговое подключение.
//
// Приоритет: gcp_conn_id, bigquery_conn_id, google_cloud_storage_conn_id,
// затем DefaultConnID.
func (c *LoadConfig) ResolveConnID() string {
	for _, id := range []string{c.GCPConnID, c.BigQueryConnID, c.GoogleCloudStorageConnID} {
		if id != "" {
			return id
		}
	}
	return DefaultConnID
}

// WithDefaults возвращает копию конфигурации с заполненными умолчаниями.
//
// Пустые коллекции заменяются пустыми (не nil) значениями. Устаревшие
// параметры подключения сворачиваются в GCPConnID и очищаются.
func (c LoadConfig) WithDefaults() LoadConfig {
	if c.SourceFormat == "" {
		c.SourceFormat = SourceFormatCSV
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.CreateDisposition == "" {
		c.CreateDisposition = CreateIfNeeded
	}
	if c.WriteDisposition == "" {
		c.WriteDisposition = WriteEmpty
	}
	if c.FieldDelimiter == "" {
		c.FieldDelimiter = ","
	}
	if c.Encoding == "" {
		c.Encoding = EncodingUTF8
	}
	if c.Autodetect == nil {
		t := true
		c.Autodetect = &t
	}

	c.GCPConnID = c.ResolveConnID()
	c.BigQueryConnID = ""
	c.GoogleCloudStorageConnID = ""

	c.SourceObjects = append(StringOrSlice{}, c.SourceObjects...)
	c.ImpersonationChain = append(StringOrSlice{}, c.ImpersonationChain...)
	c.SchemaFields = append([]SchemaField{}, c.SchemaFields...)
	c.SchemaUpdateOptions = append([]string{}, c.SchemaUpdateOptions...)
	c.ClusterFields = append([]string{}, c.ClusterFields...)

	srcFmt := make(map[string]any, len(c.SrcFmtConfigs))
	for k, v := range c.SrcFmtConfigs {
		srcFmt[k] = v
	}
	c.SrcFmtConfigs = srcFmt

	labels := make(map[string]string, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v
	}
	c.Labels = labels

	return c
}
