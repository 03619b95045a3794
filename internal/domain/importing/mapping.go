package importing

import (
	"fmt"
	"sort"
)

// ColumnMapping pairs a target field with the spreadsheet column feeding it.
type ColumnMapping struct {
	TargetField  string `json:"target_field"`
	SourceColumn string `json:"source_column"`
}

// Mapping is the confirmed target field key -> source column assignment.
type Mapping map[string]string

// NewMapping builds a Mapping from the submitted pairs and checks it against
// the schema and the session columns. Every problem is reported at once.
func NewMapping(schema Schema, columns []string, pairs []ColumnMapping) (Mapping, error) {
	known := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		known[column] = struct{}{}
	}

	var problems []string
	mapping := make(Mapping, len(pairs))
	for _, pair := range pairs {
		if pair.SourceColumn == "" {
			continue
		}
		if _, ok := schema.Field(pair.TargetField); !ok {
			problems = append(problems, fmt.Sprintf("unknown target field %q", pair.TargetField))
			continue
		}
		if _, dup := mapping[pair.TargetField]; dup {
			problems = append(problems, fmt.Sprintf("target field %q is mapped more than once", pair.TargetField))
			continue
		}
		if _, ok := known[pair.SourceColumn]; !ok {
			problems = append(problems, fmt.Sprintf("column %q is not in the uploaded file", pair.SourceColumn))
			continue
		}
		mapping[pair.TargetField] = pair.SourceColumn
	}

	for _, key := range schema.RequiredKeys() {
		if _, ok := mapping[key]; !ok {
			problems = append(problems, fmt.Sprintf("required field %q is not mapped", key))
		}
	}

	if len(problems) > 0 {
		return nil, &InvalidMappingError{Problems: problems}
	}
	return mapping, nil
}

// Pairs returns the mapping in target field order.
func (m Mapping) Pairs() []ColumnMapping {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]ColumnMapping, 0, len(keys))
	for _, key := range keys {
		out = append(out, ColumnMapping{TargetField: key, SourceColumn: m[key]})
	}
	return out
}

func (m Mapping) clone() Mapping {
	if m == nil {
		return nil
	}
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
