package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/transfer"
)

// Config — настройки клиента BigQuery.
type Config struct {
	// Project — проект для jobs и для таблиц без явного проекта.
	// Пусто — проект определяется из учётных данных.
	Project string

	// Location — регион jobs. Пусто — определяет BigQuery.
	Location string

	// Options — опции клиента (учётные данные, impersonation).
	Options []option.ClientOption

	Logger *slog.Logger
}

// BigQuery — реализация transfer.Warehouse поверх cloud.google.com/go/bigquery.
type BigQuery struct {
	client *bigquery.Client
	logger *slog.Logger

	// jobLocations — регион запущенных запросов. Без явного location
	// BigQuery выбирает его сам, и jobs.get должен получить тот же.
	mu           sync.Mutex
	jobLocations map[string]string
}

// New создаёт клиента BigQuery.
func New(ctx context.Context, cfg Config) (*BigQuery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	project := cfg.Project
	if project == "" {
		project = bigquery.DetectProjectID
	}

	client, err := bigquery.NewClient(ctx, project, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	client.Location = cfg.Location

	return &BigQuery{
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Close закрывает клиента.
func (b *BigQuery) Close() error {
	return b.client.Close()
}

func (b *BigQuery) table(ref string) (*bigquery.Table, TableRef, error) {
	tr, err := ParseTableRef(ref, b.client.Project())
	if err != nil {
		return nil, TableRef{}, err
	}
	return b.client.DatasetInProject(tr.Project, tr.Dataset).Table(tr.Table), tr, nil
}

// RunLoad запускает load job и ждёт его завершения.
//
// Description применяется отдельным обновлением метаданных таблицы,
// так как load job не умеет его задавать.
func (b *BigQuery) RunLoad(ctx context.Context, req transfer.LoadRequest) error {
	if err := validateSourceFormat(req.SourceFormat); err != nil {
		return err
	}
	if err := checkSchema(req.Schema, req.SourceFormat, req.Autodetect); err != nil {
		return err
	}
	if err := validateSchemaUpdateOptions(req.SchemaUpdateOptions, req.WriteDisposition); err != nil {
		return err
	}
	merged, err := mergeSrcFmtConfigs(req.FormatOptions)
	if err != nil {
		return err
	}

	table, tr, err := b.table(req.Destination)
	if err != nil {
		return err
	}
	schema, err := toSchema(req.Schema)
	if err != nil {
		return fmt.Errorf("convert schema: %w", err)
	}

	loader := table.LoaderFrom(gcsReference(req, merged, schema))
	applyLoadConfig(&loader.LoadConfig, req, merged)

	job, err := loader.Run(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("load job started",
		"job_id", job.ID(),
		"table", tr.String(),
		"uris", len(req.SourceURIs),
	)

	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	if err := status.Err(); err != nil {
		return err
	}

	if req.Description != "" {
		if _, err := table.Update(ctx, bigquery.TableMetadataToUpdate{Description: req.Description}, ""); err != nil {
			return fmt.Errorf("update table description: %w", err)
		}
	}

	b.logger.Info("load job completed", "job_id", job.ID(), "table", tr.String())
	return nil
}

// CreateExternalTable создаёт external table.
func (b *BigQuery) CreateExternalTable(ctx context.Context, req transfer.ExternalTableRequest) error {
	if err := validateSourceFormat(req.SourceFormat); err != nil {
		return err
	}
	if req.SourceFormat == domain.SourceFormatDatastoreBackup && req.Schema != nil {
		return ErrSchemaNotAllowed
	}
	merged, err := mergeSrcFmtConfigs(req.FormatOptions)
	if err != nil {
		return err
	}

	table, tr, err := b.table(req.Destination)
	if err != nil {
		return err
	}
	schema, err := toSchema(req.Schema)
	if err != nil {
		return fmt.Errorf("convert schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Description:        req.Description,
		ExternalDataConfig: externalDataConfig(req, merged, schema),
		EncryptionConfig:   encryptionConfig(req.Encryption),
	}
	if len(req.Labels) > 0 {
		meta.Labels = req.Labels
	}

	if err := table.Create(ctx, meta); err != nil {
		return err
	}

	b.logger.Info("external table created", "table", tr.String(), "uris", len(req.SourceURIs))
	return nil
}

// RunQuery отправляет запрос и возвращает ID job.
func (b *BigQuery) RunQuery(ctx context.Context, sql string, useLegacySQL bool) (string, error) {
	q := b.client.Query(sql)
	q.UseLegacySQL = useLegacySQL

	job, err := q.Run(ctx)
	if err != nil {
		return "", err
	}
	b.rememberLocation(job.ID(), job.Location())
	b.logger.Debug("query job started", "job_id", job.ID(), "location", job.Location())
	return job.ID(), nil
}

// GetJob возвращает job по ID.
func (b *BigQuery) GetJob(ctx context.Context, jobID string) (transfer.Job, error) {
	job, err := b.client.JobFromIDLocation(ctx, jobID, b.jobLocation(jobID))
	if err != nil {
		return nil, err
	}
	return &queryJob{job: job}, nil
}

func (b *BigQuery) rememberLocation(jobID, location string) {
	if location == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jobLocations == nil {
		b.jobLocations = make(map[string]string)
	}
	b.jobLocations[jobID] = location
}

// jobLocation возвращает регион, о котором сообщил запущенный job,
// иначе location клиента.
func (b *BigQuery) jobLocation(jobID string) string {
	b.mu.Lock()
	loc, ok := b.jobLocations[jobID]
	b.mu.Unlock()
	if ok {
		return loc
	}
	if b.client == nil {
		return ""
	}
	return b.client.Location
}

// queryJob — transfer.Job поверх bigquery.Job.
type queryJob struct {
	job *bigquery.Job
}

// Result ждёт завершения запроса и читает все строки.
func (j *queryJob) Result(ctx context.Context) ([][]any, error) {
	it, err := j.job.Read(ctx)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}

		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		rows = append(rows, values)
	}
	return rows, nil
}

func checkSchema(schema []domain.SchemaField, format domain.SourceFormat, autodetect bool) error {
	if format == domain.SourceFormatDatastoreBackup {
		if schema != nil {
			return ErrSchemaNotAllowed
		}
		return nil
	}
	if schema == nil && !autodetect {
		return ErrSchemaRequired
	}
	return nil
}

var _ transfer.Warehouse = (*BigQuery)(nil)
