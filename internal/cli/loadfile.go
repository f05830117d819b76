package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// LoadFile — описание загрузки в YAML (JSON тоже подходит).
//
//	name: orders
//	logical_date: 2024-01-15
//	inputs:
//	  region: eu
//	config:
//	  bucket: landing
//	  source_objects: orders/{{ .DS }}/*.csv
//	  destination_project_dataset_table: acme.raw.orders
//	retry:
//	  max_attempts: 3
type LoadFile struct {
	Name        string             `yaml:"name"`
	Config      domain.LoadConfig  `yaml:"config"`
	Inputs      map[string]any     `yaml:"inputs"`
	LogicalDate string             `yaml:"logical_date"`
	Retry       domain.RetryPolicy `yaml:"retry"`
}

// ParseLoadFile разбирает описание загрузки.
func ParseLoadFile(data []byte) (*LoadFile, error) {
	var lf LoadFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse load file: %w", err)
	}
	if lf.LogicalDate != "" {
		if _, err := ParseLogicalDate(lf.LogicalDate); err != nil {
			return nil, fmt.Errorf("parse load file: %w", err)
		}
	}
	return &lf, nil
}

// ReadLoadFile читает описание загрузки из файла. "-" означает stdin.
func ReadLoadFile(path string) (*LoadFile, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return ParseLoadFile(data)
}

// Apply добавляет inputs и logical date из флагов командной строки.
func (lf *LoadFile) Apply(inputs map[string]any, logicalDate string) {
	if len(inputs) > 0 && lf.Inputs == nil {
		lf.Inputs = make(map[string]any, len(inputs))
	}
	for k, v := range inputs {
		lf.Inputs[k] = v
	}
	if logicalDate != "" {
		lf.LogicalDate = logicalDate
	}
}

// Request формирует запрос к API.
func (lf *LoadFile) Request() (CreateLoadRequest, error) {
	req := CreateLoadRequest{
		Name:   lf.Name,
		Config: lf.Config,
		Inputs: lf.Inputs,
		Retry:  lf.Retry,
	}
	if lf.LogicalDate != "" {
		t, err := ParseLogicalDate(lf.LogicalDate)
		if err != nil {
			return req, err
		}
		req.LogicalDate = &t
	}
	return req, nil
}

// Task создаёт задачу для локального выполнения.
func (lf *LoadFile) Task() (*domain.LoadTask, error) {
	task := domain.NewLoadTask(lf.Name, lf.Config, lf.Inputs, lf.Retry)
	if lf.LogicalDate != "" {
		t, err := ParseLogicalDate(lf.LogicalDate)
		if err != nil {
			return nil, err
		}
		task.LogicalDate = t
	}
	return task, nil
}

// ParseLogicalDate принимает YYYY-MM-DD или RFC 3339.
func ParseLogicalDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid logical date %q, expected YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

// ParseInputs разбирает значения флага --input KEY=VALUE.
func ParseInputs(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		inputs[key] = value
	}
	return inputs, nil
}
