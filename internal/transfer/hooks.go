package transfer

import (
	"context"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// Warehouse — операции BigQuery, которые использует загрузка.
//
// Реализация: warehouse.BigQuery. Проверка сочетаний опций — задача
// реализации, GCSToBigQuery передаёт их как есть.
type Warehouse interface {
	// RunLoad запускает load job и ждёт его завершения.
	RunLoad(ctx context.Context, req LoadRequest) error

	// CreateExternalTable создаёт external table поверх файлов в GCS.
	CreateExternalTable(ctx context.Context, req ExternalTableRequest) error

	// RunQuery отправляет запрос и возвращает ID job без ожидания.
	RunQuery(ctx context.Context, sql string, useLegacySQL bool) (string, error)

	// GetJob возвращает job по ID.
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Job — запущенный запрос BigQuery.
type Job interface {
	// Result ждёт завершения job и возвращает все строки результата.
	Result(ctx context.Context) ([][]any, error)
}

// Storage — чтение объектов GCS.
type Storage interface {
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// HookFactory создаёт клиентов для заданной идентичности.
//
// Если возвращённый клиент реализует io.Closer, GCSToBigQuery закрывает
// его после выполнения.
type HookFactory interface {
	Warehouse(ctx context.Context, id domain.Identity) (Warehouse, error)
	Storage(ctx context.Context, id domain.Identity) (Storage, error)
}

// FormatOptions — опции чтения исходных файлов.
type FormatOptions struct {
	SourceFormat        domain.SourceFormat
	SkipLeadingRows     int
	FieldDelimiter      string
	MaxBadRecords       int
	QuoteCharacter      *string
	IgnoreUnknownValues bool
	AllowQuotedNewlines bool
	AllowJaggedRows     bool
	Encoding            domain.Encoding
	SrcFmtConfigs       map[string]any
}

// LoadRequest — аргументы load job.
type LoadRequest struct {
	FormatOptions

	// Destination — "(<project>.|<project>:)<dataset>.<table>".
	Destination string

	// Schema — nil означает, что схема не задана.
	Schema     []domain.SchemaField
	SourceURIs []string
	Autodetect bool

	CreateDisposition   domain.CreateDisposition
	WriteDisposition    domain.WriteDisposition
	SchemaUpdateOptions []string
	TimePartitioning    domain.TimePartitioning
	ClusterFields       []string
	Encryption          domain.EncryptionConfiguration
	Labels              map[string]string
	Description         string
}

// ExternalTableRequest — аргументы создания external table.
//
// Параметров загрузки (write disposition, autodetect, партиционирование,
// кластеризация, schema update options) здесь нет.
type ExternalTableRequest struct {
	FormatOptions

	Destination string
	Schema      []domain.SchemaField
	SourceURIs  []string
	Compression domain.Compression
	Encryption  domain.EncryptionConfiguration
	Labels      map[string]string
	Description string
}

// FormatOptionsFromConfig выделяет из конфигурации параметры формата файлов.
func FormatOptionsFromConfig(cfg domain.LoadConfig) FormatOptions {
	return FormatOptions{
		SourceFormat:        cfg.SourceFormat,
		SkipLeadingRows:     cfg.SkipLeadingRows,
		FieldDelimiter:      cfg.FieldDelimiter,
		MaxBadRecords:       cfg.MaxBadRecords,
		QuoteCharacter:      cfg.QuoteCharacter,
		IgnoreUnknownValues: cfg.IgnoreUnknownValues,
		AllowQuotedNewlines: cfg.AllowQuotedNewlines,
		AllowJaggedRows:     cfg.AllowJaggedRows,
		Encoding:            cfg.Encoding,
		SrcFmtConfigs:       cfg.SrcFmtConfigs,
	}
}
