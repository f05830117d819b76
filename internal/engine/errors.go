package engine

import "errors"

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// FieldError — ошибка рендеринга конкретного поля конфигурации.
type FieldError struct {
	Field string // поле, вызвавшее ошибку
	Err   error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *FieldError) Error() string {
	return "field " + e.Field + ": " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *FieldError) Unwrap() error {
	return e.Err
}
