package warehouse

import "errors"

var (
	// ErrInvalidTableRef — имя таблицы не в формате (<project>.|<project>:)<dataset>.<table>.
	ErrInvalidTableRef = errors.New("invalid table reference")

	// ErrInvalidSourceFormat — неподдерживаемый source_format.
	ErrInvalidSourceFormat = errors.New("invalid source format")

	// ErrInvalidSrcFmtConfig — ключ src_fmt_configs недопустим для формата.
	ErrInvalidSrcFmtConfig = errors.New("invalid src_fmt_configs")

	// ErrInvalidSchemaUpdate — недопустимые schema_update_options.
	ErrInvalidSchemaUpdate = errors.New("invalid schema_update_options")

	// ErrSchemaRequired — схема не задана и autodetect выключен.
	ErrSchemaRequired = errors.New("schema is required when autodetect is disabled")

	// ErrSchemaNotAllowed — схема передана для DATASTORE_BACKUP.
	ErrSchemaNotAllowed = errors.New("schema is not allowed for DATASTORE_BACKUP")
)
