package warehouse

import (
	"strings"

	"github.com/shaiso/gcs2bq/internal/domain"
	"github.com/shaiso/gcs2bq/internal/transfer"
)

// ValidateLoadConfig проверяет конфигурацию до постановки загрузки в очередь,
// теми же правилами, что и RunLoad/CreateExternalTable.
//
// Поля с шаблонами ({{ ... }}) проверяются только после рендеринга.
func ValidateLoadConfig(cfg domain.LoadConfig) error {
	cfg = cfg.WithDefaults()

	if err := validateSourceFormat(cfg.SourceFormat); err != nil {
		return err
	}
	if !cfg.ExternalTable {
		if err := validateSchemaUpdateOptions(cfg.SchemaUpdateOptions, cfg.WriteDisposition); err != nil {
			return err
		}
	}
	if _, err := mergeSrcFmtConfigs(transfer.FormatOptionsFromConfig(cfg)); err != nil {
		return err
	}

	switch cfg.SchemaSource().(type) {
	case domain.ExplicitSchema:
		if err := checkSchema(cfg.SchemaFields, cfg.SourceFormat, cfg.AutodetectEnabled()); err != nil {
			return err
		}
	case domain.AutodetectSchema:
		if err := checkSchema(nil, cfg.SourceFormat, cfg.AutodetectEnabled()); err != nil {
			return err
		}
	}

	dest := cfg.DestinationProjectDatasetTable
	if !strings.Contains(dest, "{{") {
		// Проект по умолчанию известен только Worker'у
		if _, err := ParseTableRef(dest, "default-project"); err != nil {
			return err
		}
	}
	return nil
}
