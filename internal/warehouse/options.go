package warehouse

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/transfer"
)

// srcFmtKeys — допустимые ключи src_fmt_configs для каждого формата.
var srcFmtKeys = map[domain.SourceFormat][]string{
	domain.SourceFormatCSV: {
		"allowJaggedRows", "allowQuotedNewlines", "autodetect", "fieldDelimiter",
		"skipLeadingRows", "ignoreUnknownValues", "nullMarker", "quote", "encoding",
	},
	domain.SourceFormatJSON:            {"autodetect", "ignoreUnknownValues"},
	domain.SourceFormatParquet:         {"autodetect", "ignoreUnknownValues"},
	domain.SourceFormatAvro:            {"useAvroLogicalTypes"},
	domain.SourceFormatDatastoreBackup: {"projectionFields"},
	domain.SourceFormatGoogleSheets:    {"skipLeadingRows", "range"},
}

// schemaUpdateOptions — допустимые значения schema_update_options.
var schemaUpdateOptions = map[string]bool{
	"ALLOW_FIELD_ADDITION":   true,
	"ALLOW_FIELD_RELAXATION": true,
}

func validateSourceFormat(f domain.SourceFormat) error {
	if _, ok := srcFmtKeys[f]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSourceFormat, f)
	}
	return nil
}

func validateSchemaUpdateOptions(opts []string, wd domain.WriteDisposition) error {
	if len(opts) == 0 {
		return nil
	}
	for _, opt := range opts {
		if !schemaUpdateOptions[opt] {
			return fmt.Errorf("%w: %q, allowed ALLOW_FIELD_ADDITION, ALLOW_FIELD_RELAXATION", ErrInvalidSchemaUpdate, opt)
		}
	}
	if wd != domain.WriteAppend && wd != domain.WriteTruncate {
		return fmt.Errorf("%w: only allowed with WRITE_APPEND or WRITE_TRUNCATE, got %s", ErrInvalidSchemaUpdate, wd)
	}
	return nil
}

// mergeSrcFmtConfigs дополняет src_fmt_configs опциями верхнего уровня
// и проверяет ключи.
//
// Явные значения в src_fmt_configs имеют приоритет. Опция верхнего уровня
// добавляется, только если она допустима для формата.
func mergeSrcFmtConfigs(opts transfer.FormatOptions) (map[string]any, error) {
	valid := make(map[string]bool)
	for _, k := range srcFmtKeys[opts.SourceFormat] {
		valid[k] = true
	}

	merged := make(map[string]any, len(opts.SrcFmtConfigs))
	for k, v := range opts.SrcFmtConfigs {
		merged[k] = v
	}

	compat := map[string]any{
		"skipLeadingRows":     int64(opts.SkipLeadingRows),
		"fieldDelimiter":      opts.FieldDelimiter,
		"ignoreUnknownValues": opts.IgnoreUnknownValues,
		"allowQuotedNewlines": opts.AllowQuotedNewlines,
		"allowJaggedRows":     opts.AllowJaggedRows,
		"encoding":            string(opts.Encoding),
	}
	if opts.QuoteCharacter != nil {
		compat["quote"] = *opts.QuoteCharacter
	}
	for k, v := range compat {
		if _, set := merged[k]; !set && valid[k] {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !valid[k] {
			return nil, fmt.Errorf("%w: %s is not a valid src_fmt_configs for type %s", ErrInvalidSrcFmtConfig, k, opts.SourceFormat)
		}
	}
	return merged, nil
}

// toSchema переводит схему в bigquery.Schema. Nil остаётся nil.
func toSchema(fields []domain.SchemaField) (bigquery.Schema, error) {
	if fields == nil {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return bigquery.SchemaFromJSON(data)
}

// fileConfig собирает общие опции чтения файлов.
func fileConfig(opts transfer.FormatOptions, merged map[string]any, schema bigquery.Schema, autodetect bool) bigquery.FileConfig {
	fc := bigquery.FileConfig{
		SourceFormat:        bigquery.DataFormat(opts.SourceFormat),
		AutoDetect:          cfgBool(merged, "autodetect", autodetect),
		MaxBadRecords:       int64(opts.MaxBadRecords),
		IgnoreUnknownValues: cfgBool(merged, "ignoreUnknownValues", false),
		Schema:              schema,
	}
	if opts.SourceFormat == domain.SourceFormatCSV {
		fc.CSVOptions = csvOptions(merged)
	}
	return fc
}

func csvOptions(merged map[string]any) bigquery.CSVOptions {
	csv := bigquery.CSVOptions{
		AllowJaggedRows:     cfgBool(merged, "allowJaggedRows", false),
		AllowQuotedNewlines: cfgBool(merged, "allowQuotedNewlines", false),
		Encoding:            bigquery.Encoding(cfgString(merged, "encoding")),
		FieldDelimiter:      cfgString(merged, "fieldDelimiter"),
		SkipLeadingRows:     cfgInt64(merged, "skipLeadingRows"),
		NullMarker:          cfgString(merged, "nullMarker"),
	}
	if q, ok := merged["quote"]; ok {
		if s, _ := q.(string); s == "" {
			csv.ForceZeroQuote = true
		} else {
			csv.Quote = s
		}
	}
	return csv
}

// gcsReference собирает источник load job.
func gcsReference(req transfer.LoadRequest, merged map[string]any, schema bigquery.Schema) *bigquery.GCSReference {
	ref := bigquery.NewGCSReference(req.SourceURIs...)
	ref.FileConfig = fileConfig(req.FormatOptions, merged, schema, req.Autodetect)
	return ref
}

// applyLoadConfig переносит семантику загрузки в bigquery.LoadConfig.
func applyLoadConfig(lc *bigquery.LoadConfig, req transfer.LoadRequest, merged map[string]any) {
	lc.CreateDisposition = bigquery.TableCreateDisposition(req.CreateDisposition)
	lc.WriteDisposition = bigquery.TableWriteDisposition(req.WriteDisposition)
	lc.SchemaUpdateOptions = req.SchemaUpdateOptions
	lc.TimePartitioning = timePartitioning(req.TimePartitioning)
	lc.DestinationEncryptionConfig = encryptionConfig(req.Encryption)
	if len(req.ClusterFields) > 0 {
		lc.Clustering = &bigquery.Clustering{Fields: req.ClusterFields}
	}
	if len(req.Labels) > 0 {
		lc.Labels = req.Labels
	}

	switch req.SourceFormat {
	case domain.SourceFormatAvro:
		lc.UseAvroLogicalTypes = cfgBool(merged, "useAvroLogicalTypes", false)
	case domain.SourceFormatDatastoreBackup:
		lc.ProjectionFields = cfgStrings(merged, "projectionFields")
	}
}

// externalDataConfig собирает описание external table.
func externalDataConfig(req transfer.ExternalTableRequest, merged map[string]any, schema bigquery.Schema) *bigquery.ExternalDataConfig {
	edc := &bigquery.ExternalDataConfig{
		SourceFormat:        bigquery.DataFormat(req.SourceFormat),
		SourceURIs:          req.SourceURIs,
		Schema:              schema,
		Compression:         bigquery.Compression(req.Compression),
		IgnoreUnknownValues: cfgBool(merged, "ignoreUnknownValues", false),
		MaxBadRecords:       int64(req.MaxBadRecords),
	}

	switch req.SourceFormat {
	case domain.SourceFormatCSV:
		csv := csvOptions(merged)
		edc.Options = &csv
	case domain.SourceFormatGoogleSheets:
		edc.Options = &bigquery.GoogleSheetsOptions{
			SkipLeadingRows: cfgInt64(merged, "skipLeadingRows"),
			Range:           cfgString(merged, "range"),
		}
	}
	return edc
}

func timePartitioning(p domain.TimePartitioning) *bigquery.TimePartitioning {
	if p.IsZero() {
		return nil
	}
	tp := &bigquery.TimePartitioning{
		Type:                   bigquery.TimePartitioningType(p.Type),
		Field:                  p.Field,
		Expiration:             time.Duration(p.ExpirationMs) * time.Millisecond,
		RequirePartitionFilter: p.RequirePartitionFilter,
	}
	if tp.Type == "" {
		tp.Type = bigquery.DayPartitioningType
	}
	return tp
}

func encryptionConfig(e domain.EncryptionConfiguration) *bigquery.EncryptionConfig {
	if e.IsZero() {
		return nil
	}
	return &bigquery.EncryptionConfig{KMSKeyName: e.KMSKeyName}
}

// --- значения src_fmt_configs ---
//
// Значения приходят из JSON (float64) или YAML (int), поэтому числа
// приводятся явно.

func cfgString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func cfgInt64(config map[string]any, key string) int64 {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
	}
	return 0
}

func cfgBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func cfgStrings(config map[string]any, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
