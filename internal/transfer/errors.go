package transfer

import "errors"

var (
	// ErrInvalidConfig — в конфигурации нет обязательного поля.
	ErrInvalidConfig = errors.New("invalid load config")

	// ErrSchemaNotUTF8 — файл схемы не является текстом UTF-8.
	ErrSchemaNotUTF8 = errors.New("schema object is not valid UTF-8")

	// ErrProbeNoRows — запрос MAX() не вернул строк.
	ErrProbeNoRows = errors.New("probe query returned no rows")

	// ErrProbeNoColumns — запрос MAX() вернул строку без колонок.
	ErrProbeNoColumns = errors.New("probe query returned a row without columns")
)

// NoRowsError — запрос MAX() не вернул ни одной строки.
type NoRowsError struct {
	Query string
}

func (e *NoRowsError) Error() string {
	return "The " + e.Query + " returned no rows!"
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrProbeNoRows).
func (e *NoRowsError) Unwrap() error {
	return ErrProbeNoRows
}
