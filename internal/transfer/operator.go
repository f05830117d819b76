package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"unicode/utf8"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// GCSToBigQuery загружает файлы из GCS в таблицу BigQuery.
//
// Один вызов Execute:
//  1. определяет схему (явная, из файла в бакете или автоопределение)
//  2. строит gs:// URI для каждого source object
//  3. выполняет load job или создаёт external table
//  4. если задан max_id_key, выполняет SELECT MAX(key) и возвращает значение
//
// Ошибки клиентов возвращаются без обёртки и без повторов.
type GCSToBigQuery struct {
	cfg      domain.LoadConfig
	identity domain.Identity
	hooks    HookFactory
	logger   *slog.Logger
}

// Option — функциональная опция GCSToBigQuery.
type Option func(*GCSToBigQuery)

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(o *GCSToBigQuery) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New создаёт загрузку.
//
// Умолчания применяются здесь же, устаревшие bigquery_conn_id и
// google_cloud_storage_conn_id сворачиваются в gcp_conn_id с предупреждением.
func New(cfg domain.LoadConfig, hooks HookFactory, opts ...Option) (*GCSToBigQuery, error) {
	o := &GCSToBigQuery{
		hooks:  hooks,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if hooks == nil {
		return nil, fmt.Errorf("%w: hook factory is required", ErrInvalidConfig)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}
	if len(cfg.SourceObjects) == 0 {
		return nil, fmt.Errorf("%w: source_objects is required", ErrInvalidConfig)
	}
	if cfg.DestinationProjectDatasetTable == "" {
		return nil, fmt.Errorf("%w: destination_project_dataset_table is required", ErrInvalidConfig)
	}

	if cfg.HasLegacyConnIDs() {
		o.logger.Warn("bigquery_conn_id and google_cloud_storage_conn_id are deprecated, use gcp_conn_id",
			"bigquery_conn_id", cfg.BigQueryConnID,
			"google_cloud_storage_conn_id", cfg.GoogleCloudStorageConnID,
		)
	}

	o.cfg = cfg.WithDefaults()
	o.identity = o.cfg.Identity()

	return o, nil
}

// Config возвращает итоговую конфигурацию (с умолчаниями).
func (o *GCSToBigQuery) Config() domain.LoadConfig {
	return o.cfg
}

// Identity возвращает итоговую идентичность.
func (o *GCSToBigQuery) Identity() domain.Identity {
	return o.identity
}

// Execute выполняет загрузку.
//
// Возвращает значение MAX(max_id_key) или nil, если max_id_key не задан.
func (o *GCSToBigQuery) Execute(ctx context.Context) (any, error) {
	wh, err := o.hooks.Warehouse(ctx, o.identity)
	if err != nil {
		return nil, err
	}
	defer closeHook(wh)

	schema, err := o.resolveSchema(ctx)
	if err != nil {
		return nil, err
	}

	uris := SourceURIs(o.cfg.Bucket, o.cfg.SourceObjects)

	if o.cfg.ExternalTable {
		err = wh.CreateExternalTable(ctx, o.externalTableRequest(schema, uris))
	} else {
		err = wh.RunLoad(ctx, o.loadRequest(schema, uris))
	}
	if err != nil {
		return nil, err
	}

	if o.cfg.MaxIDKey == "" {
		return nil, nil
	}
	return o.probeMax(ctx, wh)
}

// resolveSchema возвращает схему или nil, если её определит BigQuery.
func (o *GCSToBigQuery) resolveSchema(ctx context.Context) ([]domain.SchemaField, error) {
	switch src := o.cfg.SchemaSource().(type) {
	case domain.ExplicitSchema:
		return src.Fields, nil

	case domain.ExternalSchema:
		st, err := o.hooks.Storage(ctx, o.identity)
		if err != nil {
			return nil, err
		}
		defer closeHook(st)

		data, err := st.Download(ctx, o.cfg.Bucket, src.Object)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrSchemaNotUTF8, o.cfg.Bucket, src.Object)
		}

		var fields []domain.SchemaField
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		return fields, nil

	default:
		return nil, nil
	}
}

func (o *GCSToBigQuery) formatOptions() FormatOptions {
	return FormatOptionsFromConfig(o.cfg)
}

func (o *GCSToBigQuery) loadRequest(schema []domain.SchemaField, uris []string) LoadRequest {
	return LoadRequest{
		FormatOptions:       o.formatOptions(),
		Destination:         o.cfg.DestinationProjectDatasetTable,
		Schema:              schema,
		SourceURIs:          uris,
		Autodetect:          o.cfg.AutodetectEnabled(),
		CreateDisposition:   o.cfg.CreateDisposition,
		WriteDisposition:    o.cfg.WriteDisposition,
		SchemaUpdateOptions: o.cfg.SchemaUpdateOptions,
		TimePartitioning:    o.cfg.TimePartitioning,
		ClusterFields:       o.cfg.ClusterFields,
		Encryption:          o.cfg.Encryption,
		Labels:              o.cfg.Labels,
		Description:         o.cfg.Description,
	}
}

func (o *GCSToBigQuery) externalTableRequest(schema []domain.SchemaField, uris []string) ExternalTableRequest {
	return ExternalTableRequest{
		FormatOptions: o.formatOptions(),
		Destination:   o.cfg.DestinationProjectDatasetTable,
		Schema:        schema,
		SourceURIs:    uris,
		Compression:   o.cfg.Compression,
		Encryption:    o.cfg.Encryption,
		Labels:        o.cfg.Labels,
		Description:   o.cfg.Description,
	}
}

// probeMax выполняет SELECT MAX(max_id_key) по целевой таблице.
func (o *GCSToBigQuery) probeMax(ctx context.Context, wh Warehouse) (any, error) {
	query := ProbeQuery(o.cfg.MaxIDKey, o.cfg.DestinationProjectDatasetTable)

	jobID, err := wh.RunQuery(ctx, query, false)
	if err != nil {
		return nil, err
	}
	job, err := wh.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rows, err := job.Result(ctx)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, &NoRowsError{Query: query}
	}
	if len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProbeNoColumns, query)
	}

	// Пустая таблица (NULL) и настоящий ноль дают одинаковый результат: 0.
	maxID := rows[0][0]
	if isFalsy(maxID) {
		maxID = int64(0)
	}

	o.logger.Info("loaded BQ data with max",
		"table", o.cfg.DestinationProjectDatasetTable,
		"column", o.cfg.MaxIDKey,
		"max", maxID,
	)
	return maxID, nil
}

// ProbeQuery возвращает текст запроса MAX() по таблице.
func ProbeQuery(column, table string) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM `%s`", column, table)
}

// isFalsy сообщает, является ли значение "пустым": nil, false, ноль, пустая строка.
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	case int:
		return x == 0
	case int32:
		return x == 0
	case int64:
		return x == 0
	case uint64:
		return x == 0
	case float32:
		return x == 0
	case float64:
		return x == 0
	case *big.Rat:
		return x == nil || x.Sign() == 0
	case []any:
		return len(x) == 0
	default:
		return false
	}
}

func closeHook(h any) {
	if c, ok := h.(io.Closer); ok {
		_ = c.Close()
	}
}
