package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringOrSlice — список строк, который в JSON/YAML может быть задан одной строкой.
//
//	"source_objects": "data/*.csv"          → ["data/*.csv"]
//	"source_objects": ["a.csv", "b.csv"]    → ["a.csv", "b.csv"]
type StringOrSlice []string

// UnmarshalJSON реализует json.Unmarshaler.
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = list
	return nil
}

// UnmarshalYAML реализует yaml.Unmarshaler.
func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = StringOrSlice{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", value.Line)
	}
}
