package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// EnvPrefix — префикс переменных окружения, доступных в шаблонах.
//
// GCS2BQ_VAR_REGION=eu → {{ .Env.REGION }}
const EnvPrefix = "GCS2BQ_VAR_"

// Context — контекст для рендеринга шаблонов.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Inputs.param_name }}
//   - {{ .DS }}, {{ .DSNoDash }}, {{ .TS }}
//   - {{ .Task.Name }}, {{ .Task.Attempt }}
//   - {{ .Env.VAR_NAME }}
type Context struct {
	// Inputs — входные параметры загрузки.
	Inputs map[string]any `json:"inputs"`

	// Task — сведения о выполняемой задаче.
	Task TaskContext `json:"task"`

	// LogicalDate — дата, за которую выполняется загрузка.
	LogicalDate time.Time `json:"logical_date"`

	// DS — LogicalDate в формате 2006-01-02.
	DS string `json:"ds"`

	// DSNoDash — LogicalDate в формате 20060102.
	DSNoDash string `json:"ds_nodash"`

	// TS — LogicalDate в RFC 3339.
	TS string `json:"ts"`

	// Env — переменные окружения.
	Env map[string]string `json:"env"`
}

// TaskContext — данные задачи для шаблонов.
type TaskContext struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Attempt int    `json:"attempt"`
}

// NewContext создаёт новый контекст с входными параметрами.
func NewContext(inputs map[string]any, logicalDate time.Time) *Context {
	if inputs == nil {
		inputs = make(map[string]any)
	}
	logicalDate = logicalDate.UTC()
	return &Context{
		Inputs:      inputs,
		LogicalDate: logicalDate,
		DS:          logicalDate.Format("2006-01-02"),
		DSNoDash:    logicalDate.Format("20060102"),
		TS:          logicalDate.Format(time.RFC3339),
		Env:         make(map[string]string),
	}
}

// ContextFromTask создаёт контекст для задачи.
// Env заполняется переменными окружения с префиксом EnvPrefix.
func ContextFromTask(task *domain.LoadTask) *Context {
	ctx := NewContext(task.Inputs, task.LogicalDate)
	ctx.Task = TaskContext{
		ID:      task.ID.String(),
		Name:    task.Name,
		Attempt: task.Attempt,
	}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, EnvPrefix) {
			ctx.SetEnv(strings.TrimPrefix(key, EnvPrefix), value)
		}
	}
	return ctx
}

// SetEnv устанавливает переменную окружения.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// dsAdd — сдвигает дату YYYY-MM-DD на N дней
	"dsAdd": func(ds string, days int) (string, error) {
		t, err := time.Parse("2006-01-02", ds)
		if err != nil {
			return "", err
		}
		return t.AddDate(0, 0, days).Format("2006-01-02"), nil
	},

	// dsFormat — переформатирует дату из одного layout в другой
	"dsFormat": func(ds, from, to string) (string, error) {
		t, err := time.Parse(from, ds)
		if err != nil {
			return "", err
		}
		return t.Format(to), nil
	},

	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Inputs.param }}
//	data/{{ .DS }}/*.csv
//	{{ .Env.PROJECT }}.staging.orders_{{ .DSNoDash }}
func Render(tmpl string, ctx *Context) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	// Отсутствующий ключ в Inputs или Env — ошибка, а не "<no value>"
	t, err := template.New("").Option("missingkey=error").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderStrings рендерит каждый элемент списка, сохраняя порядок.
func RenderStrings(items []string, ctx *Context) ([]string, error) {
	if items == nil {
		return nil, nil
	}
	result := make([]string, len(items))
	for i, item := range items {
		rendered, err := Render(item, ctx)
		if err != nil {
			return nil, err
		}
		result[i] = rendered
	}
	return result, nil
}

// RenderLoadConfig рендерит шаблонные поля конфигурации загрузки:
// bucket, source_objects, schema_object, destination_project_dataset_table,
// impersonation_chain. Остальные поля возвращаются без изменений.
func RenderLoadConfig(cfg domain.LoadConfig, ctx *Context) (domain.LoadConfig, error) {
	var err error

	if cfg.Bucket, err = Render(cfg.Bucket, ctx); err != nil {
		return cfg, &FieldError{Field: "bucket", Err: err}
	}
	if cfg.SourceObjects, err = RenderStrings(cfg.SourceObjects, ctx); err != nil {
		return cfg, &FieldError{Field: "source_objects", Err: err}
	}
	if cfg.SchemaObject, err = Render(cfg.SchemaObject, ctx); err != nil {
		return cfg, &FieldError{Field: "schema_object", Err: err}
	}
	if cfg.DestinationProjectDatasetTable, err = Render(cfg.DestinationProjectDatasetTable, ctx); err != nil {
		return cfg, &FieldError{Field: "destination_project_dataset_table", Err: err}
	}
	if cfg.ImpersonationChain, err = RenderStrings(cfg.ImpersonationChain, ctx); err != nil {
		return cfg, &FieldError{Field: "impersonation_chain", Err: err}
	}

	return cfg, nil
}
