package warehouse

import (
	"fmt"
	"strings"
)

// TableRef — полное имя таблицы BigQuery.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// String возвращает имя в формате project.dataset.table.
func (r TableRef) String() string {
	return r.Project + "." + r.Dataset + "." + r.Table
}

// ParseTableRef разбирает имя таблицы.
//
// Допустимые формы:
//
//	project.dataset.table
//	project:dataset.table
//	dataset.table            (проект — defaultProject)
func ParseTableRef(ref, defaultProject string) (TableRef, error) {
	if !strings.Contains(ref, ".") {
		return TableRef{}, fmt.Errorf("%w: expected <dataset>.<table>, got %q", ErrInvalidTableRef, ref)
	}

	var project string
	rest := ref
	if strings.Contains(ref, ":") {
		parts := strings.Split(ref, ":")
		if len(parts) != 2 {
			return TableRef{}, fmt.Errorf("%w: use either : or . to specify project, got %q", ErrInvalidTableRef, ref)
		}
		project, rest = parts[0], parts[1]
	}

	var out TableRef
	cmpt := strings.Split(rest, ".")
	switch {
	case len(cmpt) == 3 && project == "":
		out = TableRef{Project: cmpt[0], Dataset: cmpt[1], Table: cmpt[2]}
	case len(cmpt) == 2:
		out = TableRef{Project: project, Dataset: cmpt[0], Table: cmpt[1]}
	default:
		return TableRef{}, fmt.Errorf("%w: expected (<project>.|<project>:)<dataset>.<table>, got %q", ErrInvalidTableRef, ref)
	}

	if out.Project == "" {
		out.Project = defaultProject
	}
	if out.Project == "" || out.Dataset == "" || out.Table == "" {
		return TableRef{}, fmt.Errorf("%w: empty component in %q", ErrInvalidTableRef, ref)
	}
	return out, nil
}
