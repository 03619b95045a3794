package main

import (
	"sort"
	"strings"

	"github.com/go-faster/errors"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

// parseAssignments reads repeated key=value flags. Later flags win.
func parseAssignments(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, value := range values {
		key, v, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("expected key=value, got %q", value)
		}
		out[key] = strings.TrimSpace(v)
	}
	return out, nil
}

// parseMatches reads field:raw=id flags. The raw value may itself contain
// "=", so the id is taken after the last one.
func parseMatches(values []string) (domain.ManualMatches, error) {
	out := domain.ManualMatches{}
	for _, value := range values {
		field, rest, ok := strings.Cut(value, ":")
		idx := strings.LastIndex(rest, "=")
		if !ok || idx <= 0 || strings.TrimSpace(field) == "" {
			return nil, errors.Errorf("expected field:raw=id, got %q", value)
		}
		field = strings.TrimSpace(field)
		id := strings.TrimSpace(rest[idx+1:])
		if id == "" {
			return nil, errors.Errorf("missing id in %q", value)
		}
		if out[field] == nil {
			out[field] = map[string]string{}
		}
		out[field][rest[:idx]] = id
	}
	return out, nil
}

// mergeMappings starts from the suggestions and applies explicit overrides;
// an override with an empty column unmaps the field.
func mergeMappings(suggested []app.SuggestedMapping, overrides map[string]string) []domain.ColumnMapping {
	pairs := make([]domain.ColumnMapping, 0, len(suggested)+len(overrides))
	seen := make(map[string]bool, len(suggested))
	for _, s := range suggested {
		seen[s.TargetField] = true
		column, overridden := overrides[s.TargetField]
		if !overridden {
			column = s.SourceColumn
		}
		if column != "" {
			pairs = append(pairs, domain.ColumnMapping{TargetField: s.TargetField, SourceColumn: column})
		}
	}

	extra := make([]string, 0, len(overrides))
	for field, column := range overrides {
		if !seen[field] && column != "" {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	for _, field := range extra {
		pairs = append(pairs, domain.ColumnMapping{TargetField: field, SourceColumn: overrides[field]})
	}
	return pairs
}
