package warehouse

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/transfer"
)

// --- ParseTableRef Tests ---

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		ref  string
		want TableRef
	}{
		{"test-project.dataset.table", TableRef{"test-project", "dataset", "table"}},
		{"test-project:dataset.table", TableRef{"test-project", "dataset", "table"}},
		{"dataset.table", TableRef{"default-project", "dataset", "table"}},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseTableRef(tt.ref, "default-project")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseTableRef_Invalid(t *testing.T) {
	for _, ref := range []string{
		"table",
		"a.b.c.d",
		"p:q:d.t",
		"p:d.t.x",
		"p.d.",
		"dataset.table",
	} {
		t.Run(ref, func(t *testing.T) {
			if _, err := ParseTableRef(ref, ""); !errors.Is(err, ErrInvalidTableRef) {
				t.Errorf("expected ErrInvalidTableRef, got %v", err)
			}
		})
	}
}

func TestTableRef_String(t *testing.T) {
	if got := (TableRef{"p", "d", "t"}).String(); got != "p.d.t" {
		t.Errorf("expected p.d.t, got %s", got)
	}
}

// --- Validation Tests ---

func TestValidateSourceFormat(t *testing.T) {
	if err := validateSourceFormat(domain.SourceFormatParquet); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateSourceFormat("ORC"); !errors.Is(err, ErrInvalidSourceFormat) {
		t.Errorf("expected ErrInvalidSourceFormat, got %v", err)
	}
}

func TestValidateSchemaUpdateOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    []string
		wd      domain.WriteDisposition
		wantErr bool
	}{
		{"empty", nil, domain.WriteEmpty, false},
		{"append", []string{"ALLOW_FIELD_ADDITION"}, domain.WriteAppend, false},
		{"truncate", []string{"ALLOW_FIELD_RELAXATION"}, domain.WriteTruncate, false},
		{"write empty", []string{"ALLOW_FIELD_ADDITION"}, domain.WriteEmpty, true},
		{"unknown option", []string{"ALLOW_EVERYTHING"}, domain.WriteAppend, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSchemaUpdateOptions(tt.opts, tt.wd)
			if tt.wantErr && !errors.Is(err, ErrInvalidSchemaUpdate) {
				t.Errorf("expected ErrInvalidSchemaUpdate, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckSchema(t *testing.T) {
	fields := []domain.SchemaField{{Name: "id", Type: "INTEGER"}}

	if err := checkSchema(nil, domain.SourceFormatCSV, true); err != nil {
		t.Errorf("autodetect without schema should pass: %v", err)
	}
	if err := checkSchema(nil, domain.SourceFormatCSV, false); !errors.Is(err, ErrSchemaRequired) {
		t.Errorf("expected ErrSchemaRequired, got %v", err)
	}
	if err := checkSchema(fields, domain.SourceFormatCSV, false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := checkSchema(fields, domain.SourceFormatDatastoreBackup, true); !errors.Is(err, ErrSchemaNotAllowed) {
		t.Errorf("expected ErrSchemaNotAllowed, got %v", err)
	}
	if err := checkSchema(nil, domain.SourceFormatDatastoreBackup, false); err != nil {
		t.Errorf("backup without schema should pass: %v", err)
	}
}

// --- src_fmt_configs Tests ---

func csvOptionsFixture() transfer.FormatOptions {
	return transfer.FormatOptions{
		SourceFormat:   domain.SourceFormatCSV,
		FieldDelimiter: ",",
		Encoding:       domain.EncodingUTF8,
		SrcFmtConfigs:  map[string]any{},
	}
}

func TestMergeSrcFmtConfigs_CSVCompat(t *testing.T) {
	opts := csvOptionsFixture()
	quote := "'"
	opts.QuoteCharacter = &quote
	opts.SkipLeadingRows = 2
	opts.AllowQuotedNewlines = true

	merged, err := mergeSrcFmtConfigs(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if merged["skipLeadingRows"] != int64(2) {
		t.Errorf("expected skipLeadingRows=2, got %v", merged["skipLeadingRows"])
	}
	if merged["fieldDelimiter"] != "," || merged["quote"] != "'" || merged["encoding"] != "UTF-8" {
		t.Errorf("unexpected merged configs: %v", merged)
	}
	if merged["allowQuotedNewlines"] != true {
		t.Error("allowQuotedNewlines should be merged")
	}
}

func TestMergeSrcFmtConfigs_ExplicitWins(t *testing.T) {
	opts := csvOptionsFixture()
	opts.SrcFmtConfigs = map[string]any{"fieldDelimiter": "|"}

	merged, err := mergeSrcFmtConfigs(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged["fieldDelimiter"] != "|" {
		t.Errorf("explicit src_fmt_configs should win, got %v", merged["fieldDelimiter"])
	}
	if opts.SrcFmtConfigs["encoding"] != nil {
		t.Error("input map should not be modified")
	}
}

func TestMergeSrcFmtConfigs_NoQuoteWhenUnset(t *testing.T) {
	merged, err := mergeSrcFmtConfigs(csvOptionsFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := merged["quote"]; ok {
		t.Error("quote should not be set when quote_character is absent")
	}
}

func TestMergeSrcFmtConfigs_CompatOnlyForValidKeys(t *testing.T) {
	opts := transfer.FormatOptions{
		SourceFormat:   domain.SourceFormatJSON,
		FieldDelimiter: ",",
		Encoding:       domain.EncodingUTF8,
	}

	merged, err := mergeSrcFmtConfigs(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := merged["fieldDelimiter"]; ok {
		t.Error("fieldDelimiter is not valid for JSON and should not be merged")
	}
	if _, ok := merged["ignoreUnknownValues"]; !ok {
		t.Error("ignoreUnknownValues is valid for JSON and should be merged")
	}
}

func TestMergeSrcFmtConfigs_InvalidKey(t *testing.T) {
	opts := transfer.FormatOptions{
		SourceFormat:  domain.SourceFormatAvro,
		SrcFmtConfigs: map[string]any{"fieldDelimiter": ";"},
	}

	_, err := mergeSrcFmtConfigs(opts)
	if !errors.Is(err, ErrInvalidSrcFmtConfig) {
		t.Fatalf("expected ErrInvalidSrcFmtConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "fieldDelimiter is not a valid src_fmt_configs for type AVRO") {
		t.Errorf("unexpected message: %v", err)
	}
}

// --- Mapping Tests ---

func TestToSchema(t *testing.T) {
	schema, err := toSchema(nil)
	if err != nil || schema != nil {
		t.Errorf("nil schema should stay nil, got %v %v", schema, err)
	}

	schema, err = toSchema([]domain.SchemaField{
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
		{Name: "tags", Type: "STRING", Mode: "REPEATED"},
		{Name: "address", Type: "RECORD", Fields: []domain.SchemaField{
			{Name: "city", Type: "STRING"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(schema))
	}
	if schema[0].Name != "id" || !schema[0].Required {
		t.Errorf("unexpected field %+v", schema[0])
	}
	if !schema[1].Repeated {
		t.Error("tags should be repeated")
	}
	if len(schema[2].Schema) != 1 || schema[2].Schema[0].Name != "city" {
		t.Errorf("nested schema not converted: %+v", schema[2])
	}
}

func TestCSVOptions(t *testing.T) {
	csv := csvOptions(map[string]any{
		"allowJaggedRows": true,
		"fieldDelimiter":  ";",
		"skipLeadingRows": float64(1),
		"nullMarker":      "\\N",
		"quote":           "",
		"encoding":        "ISO-8859-1",
	})

	if !csv.AllowJaggedRows || csv.FieldDelimiter != ";" || csv.SkipLeadingRows != 1 {
		t.Errorf("unexpected csv options %+v", csv)
	}
	if csv.NullMarker != "\\N" {
		t.Errorf("unexpected null marker %q", csv.NullMarker)
	}
	if !csv.ForceZeroQuote {
		t.Error("empty quote should force zero quote")
	}
	if csv.Encoding != bigquery.ISO_8859_1 {
		t.Errorf("unexpected encoding %s", csv.Encoding)
	}
}

func TestGCSReference(t *testing.T) {
	req := transfer.LoadRequest{
		FormatOptions: transfer.FormatOptions{SourceFormat: domain.SourceFormatCSV, MaxBadRecords: 3},
		SourceURIs:    []string{"gs://b/a.csv", "gs://b/b.csv"},
		Autodetect:    true,
	}
	merged := map[string]any{"fieldDelimiter": ","}

	ref := gcsReference(req, merged, nil)
	if len(ref.URIs) != 2 || ref.URIs[1] != "gs://b/b.csv" {
		t.Errorf("unexpected uris %v", ref.URIs)
	}
	if !ref.AutoDetect || ref.MaxBadRecords != 3 || ref.SourceFormat != bigquery.CSV {
		t.Errorf("unexpected file config %+v", ref.FileConfig)
	}

	merged["autodetect"] = false
	if gcsReference(req, merged, nil).AutoDetect {
		t.Error("src_fmt_configs autodetect should override")
	}
}

func TestApplyLoadConfig(t *testing.T) {
	req := transfer.LoadRequest{
		FormatOptions:       transfer.FormatOptions{SourceFormat: domain.SourceFormatAvro},
		CreateDisposition:   domain.CreateNever,
		WriteDisposition:    domain.WriteTruncate,
		SchemaUpdateOptions: []string{"ALLOW_FIELD_ADDITION"},
		TimePartitioning:    domain.TimePartitioning{Field: "ts", ExpirationMs: 60000},
		ClusterFields:       []string{"a", "b"},
		Encryption:          domain.EncryptionConfiguration{KMSKeyName: "key"},
		Labels:              map[string]string{"k1": "v1"},
	}

	var lc bigquery.LoadConfig
	applyLoadConfig(&lc, req, map[string]any{"useAvroLogicalTypes": true})

	if lc.CreateDisposition != bigquery.CreateNever || lc.WriteDisposition != bigquery.WriteTruncate {
		t.Errorf("unexpected dispositions %s %s", lc.CreateDisposition, lc.WriteDisposition)
	}
	if lc.TimePartitioning == nil || lc.TimePartitioning.Type != bigquery.DayPartitioningType ||
		lc.TimePartitioning.Expiration != time.Minute || lc.TimePartitioning.Field != "ts" {
		t.Errorf("unexpected partitioning %+v", lc.TimePartitioning)
	}
	if lc.Clustering == nil || len(lc.Clustering.Fields) != 2 {
		t.Errorf("unexpected clustering %+v", lc.Clustering)
	}
	if lc.DestinationEncryptionConfig == nil || lc.DestinationEncryptionConfig.KMSKeyName != "key" {
		t.Error("encryption not applied")
	}
	if lc.Labels["k1"] != "v1" {
		t.Error("labels not applied")
	}
	if !lc.UseAvroLogicalTypes {
		t.Error("useAvroLogicalTypes not applied")
	}
}

func TestApplyLoadConfig_Empty(t *testing.T) {
	var lc bigquery.LoadConfig
	applyLoadConfig(&lc, transfer.LoadRequest{
		FormatOptions:     transfer.FormatOptions{SourceFormat: domain.SourceFormatDatastoreBackup},
		Labels:            map[string]string{},
		CreateDisposition: domain.CreateIfNeeded,
		WriteDisposition:  domain.WriteEmpty,
	}, map[string]any{"projectionFields": []any{"a", "b"}})

	if lc.TimePartitioning != nil || lc.Clustering != nil || lc.DestinationEncryptionConfig != nil {
		t.Error("empty options should stay nil")
	}
	if lc.Labels != nil {
		t.Error("empty labels should not be set")
	}
	if len(lc.ProjectionFields) != 2 {
		t.Errorf("expected projection fields, got %v", lc.ProjectionFields)
	}
}

func TestExternalDataConfig(t *testing.T) {
	req := transfer.ExternalTableRequest{
		FormatOptions: transfer.FormatOptions{SourceFormat: domain.SourceFormatCSV, MaxBadRecords: 1},
		SourceURIs:    []string{"gs://b/x.csv"},
		Compression:   domain.CompressionGzip,
	}

	edc := externalDataConfig(req, map[string]any{"skipLeadingRows": int64(1), "ignoreUnknownValues": true}, nil)
	if edc.Compression != bigquery.Gzip || edc.MaxBadRecords != 1 || !edc.IgnoreUnknownValues {
		t.Errorf("unexpected config %+v", edc)
	}
	if edc.AutoDetect {
		t.Error("autodetect should not be set for external tables")
	}
	csv, ok := edc.Options.(*bigquery.CSVOptions)
	if !ok {
		t.Fatalf("expected CSV options, got %T", edc.Options)
	}
	if csv.SkipLeadingRows != 1 {
		t.Errorf("expected skipLeadingRows=1, got %d", csv.SkipLeadingRows)
	}

	req.SourceFormat = domain.SourceFormatGoogleSheets
	edc = externalDataConfig(req, map[string]any{"range": "Sheet1!A1:B10"}, nil)
	sheets, ok := edc.Options.(*bigquery.GoogleSheetsOptions)
	if !ok || sheets.Range != "Sheet1!A1:B10" {
		t.Errorf("unexpected sheets options %+v", edc.Options)
	}
}

func TestCfgHelpers(t *testing.T) {
	cfg := map[string]any{
		"i":   7,
		"f":   float64(3),
		"s":   "x",
		"b":   true,
		"ss":  []string{"a"},
		"bad": struct{}{},
	}
	if cfgInt64(cfg, "i") != 7 || cfgInt64(cfg, "f") != 3 || cfgInt64(cfg, "bad") != 0 {
		t.Error("cfgInt64 conversions failed")
	}
	if cfgString(cfg, "s") != "x" || cfgString(cfg, "i") != "" {
		t.Error("cfgString failed")
	}
	if !cfgBool(cfg, "b", false) || !cfgBool(cfg, "missing", true) {
		t.Error("cfgBool failed")
	}
	if len(cfgStrings(cfg, "ss")) != 1 || cfgStrings(cfg, "missing") != nil {
		t.Error("cfgStrings failed")
	}
}

// --- ValidateLoadConfig Tests ---

func TestValidateLoadConfig(t *testing.T) {
	base := func() domain.LoadConfig {
		return domain.LoadConfig{
			Bucket:                         "bucket",
			SourceObjects:                  domain.StringOrSlice{"a.csv"},
			DestinationProjectDatasetTable: "dataset.table",
		}
	}
	off := false

	tests := []struct {
		name   string
		modify func(*domain.LoadConfig)
		want   error
	}{
		{"defaults", func(*domain.LoadConfig) {}, nil},
		{"templated destination", func(c *domain.LoadConfig) {
			c.DestinationProjectDatasetTable = "{{ .Env.PROJECT }}"
		}, nil},
		{"bad destination", func(c *domain.LoadConfig) {
			c.DestinationProjectDatasetTable = "table"
		}, ErrInvalidTableRef},
		{"bad format", func(c *domain.LoadConfig) {
			c.SourceFormat = "XML"
		}, ErrInvalidSourceFormat},
		{"bad src_fmt_configs", func(c *domain.LoadConfig) {
			c.SourceFormat = domain.SourceFormatAvro
			c.SrcFmtConfigs = map[string]any{"fieldDelimiter": ";"}
		}, ErrInvalidSrcFmtConfig},
		{"schema update with WRITE_EMPTY", func(c *domain.LoadConfig) {
			c.SchemaUpdateOptions = []string{"ALLOW_FIELD_ADDITION"}
		}, ErrInvalidSchemaUpdate},
		{"schema update ignored for external", func(c *domain.LoadConfig) {
			c.ExternalTable = true
			c.SchemaUpdateOptions = []string{"ALLOW_FIELD_ADDITION"}
		}, nil},
		{"no schema without autodetect", func(c *domain.LoadConfig) {
			c.Autodetect = &off
		}, ErrSchemaRequired},
		{"schema object without autodetect", func(c *domain.LoadConfig) {
			c.Autodetect = &off
			c.SchemaObject = "schema.json"
		}, nil},
		{"schema with datastore backup", func(c *domain.LoadConfig) {
			c.SourceFormat = domain.SourceFormatDatastoreBackup
			c.SchemaFields = []domain.SchemaField{{Name: "id", Type: "STRING"}}
		}, ErrSchemaNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(&cfg)
			err := ValidateLoadConfig(cfg)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// --- Job Location Tests ---

func TestJobLocation(t *testing.T) {
	b := &BigQuery{client: &bigquery.Client{Location: "EU"}}

	// Неизвестный job — location клиента
	if got := b.jobLocation("job-1"); got != "EU" {
		t.Errorf("expected client location EU, got %q", got)
	}

	// Регион, выбранный BigQuery для запроса, имеет приоритет
	b.rememberLocation("job-1", "asia-northeast1")
	if got := b.jobLocation("job-1"); got != "asia-northeast1" {
		t.Errorf("expected asia-northeast1, got %q", got)
	}

	// Пустой регион не запоминается
	b.rememberLocation("job-2", "")
	if got := b.jobLocation("job-2"); got != "EU" {
		t.Errorf("expected client location EU, got %q", got)
	}

	if got := (&BigQuery{}).jobLocation("job-3"); got != "" {
		t.Errorf("expected empty location without client, got %q", got)
	}
}
