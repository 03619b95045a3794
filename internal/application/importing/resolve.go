package importing

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

// ResolveReferences resolves every reference slot of rows in two passes:
// distinct raw values are collected per field first, then each one is looked
// up once and the result is written back into every row that carries it.
// A lookup error aborts the whole resolution.
func ResolveReferences(ctx context.Context, schema domain.Schema, resolver domain.EntityResolver, rows []domain.ResolvedRow) (domain.UnmatchedReferences, error) {
	refFields := schema.ReferenceFields()
	if len(refFields) == 0 {
		return domain.NewUnmatchedBuilder().Build(), nil
	}

	type distinct struct {
		order []string
		raw   map[string]string
	}
	collected := make(map[string]*distinct, len(refFields))
	for _, field := range refFields {
		d := &distinct{raw: make(map[string]string)}
		collected[field.Key] = d
		for i := range rows {
			raw, ok := rows[i].References[field.Key]
			if !ok {
				continue
			}
			norm := domain.NormalizeRaw(raw)
			if _, seen := d.raw[norm]; seen {
				continue
			}
			d.raw[norm] = raw
			d.order = append(d.order, norm)
		}
	}

	unmatched := domain.NewUnmatchedBuilder()
	resolved := make(map[string]map[string]string, len(refFields))
	for _, field := range refFields {
		d := collected[field.Key]
		ids := make(map[string]string, len(d.order))
		for _, norm := range d.order {
			if err := ctx.Err(); err != nil {
				return domain.UnmatchedReferences{}, err
			}
			raw := d.raw[norm]
			id, ok, err := resolver.ResolveReference(ctx, field, raw)
			if err != nil {
				return domain.UnmatchedReferences{}, fmt.Errorf("%w: %s %q: %v", ErrLookupFailed, field.Key, raw, err)
			}
			if !ok {
				unmatched.Add(field.Key, raw)
				continue
			}
			ids[norm] = id
		}
		resolved[field.Key] = ids
	}

	for i := range rows {
		row := &rows[i]
		for field, raw := range row.References {
			if id, ok := resolved[field][domain.NormalizeRaw(raw)]; ok {
				row.Values[field] = id
				continue
			}
			if row.Unresolved == nil {
				row.Unresolved = make(map[string]string)
			}
			row.Unresolved[field] = raw
		}
	}
	return unmatched.Build(), nil
}

// ApplyManualMatches fills still-unresolved reference slots from operator
// overrides. A slot filled this way is indistinguishable from one resolved
// automatically.
func ApplyManualMatches(rows []domain.ResolvedRow, matches domain.ManualMatches) {
	if len(matches) == 0 {
		return
	}
	for i := range rows {
		row := &rows[i]
		for field, raw := range row.Unresolved {
			id, ok := matches.Lookup(field, raw)
			if !ok {
				continue
			}
			row.Values[field] = id
			delete(row.Unresolved, field)
		}
	}
}

// CollectUnmatched rebuilds the unmatched set from the rows' remaining
// unresolved slots, in schema field order then file order.
func CollectUnmatched(schema domain.Schema, rows []domain.ResolvedRow) domain.UnmatchedReferences {
	builder := domain.NewUnmatchedBuilder()
	for _, field := range schema.ReferenceFields() {
		for i := range rows {
			if raw, ok := rows[i].Unresolved[field.Key]; ok {
				builder.Add(field.Key, raw)
			}
		}
	}
	return builder.Build()
}

// unresolvedProblem names the first unresolved reference of a row in schema
// order, or returns "" when every reference is resolved.
func unresolvedProblem(schema domain.Schema, row *domain.ResolvedRow) string {
	for _, field := range schema.ReferenceFields() {
		if raw, ok := row.Unresolved[field.Key]; ok {
			return fmt.Sprintf("%s: no %s matches %q", field.Key, field.References, raw)
		}
	}
	return ""
}

// rowGroup is the set of rows sharing one natural key, in file order.
type rowGroup struct {
	key     domain.Record
	indexes []int
}

// groupRows buckets executable rows by natural key. Rows that are invalid,
// still carry unresolved references or lack a complete key are returned as
// standalone failures.
func groupRows(schema domain.Schema, rows []domain.ResolvedRow) (groups []*rowGroup, failures map[int]string) {
	failures = make(map[int]string)
	byKey := make(map[string]*rowGroup)
	for i := range rows {
		row := &rows[i]
		if !row.Valid() {
			failures[i] = row.Problem
			continue
		}
		if problem := unresolvedProblem(schema, row); problem != "" {
			failures[i] = problem
			continue
		}
		key, ok := row.NaturalKey(schema)
		if !ok {
			failures[i] = "natural key is incomplete"
			continue
		}
		groupKey := domain.GroupKey(schema, key)
		g, exists := byKey[groupKey]
		if !exists {
			g = &rowGroup{key: key}
			byKey[groupKey] = g
			groups = append(groups, g)
		}
		g.indexes = append(g.indexes, i)
	}
	return groups, failures
}
