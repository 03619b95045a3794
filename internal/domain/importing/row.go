package importing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record holds typed field values: string, float64, bool or time.Time.
// Reference fields hold the resolved entity id as a string.
type Record map[string]any

// ResolvedRow is one materialized row on its way to execution.
// Number is the 1-based data row number in the uploaded file. Defaulted
// names the fields whose value came from the schema default rather than
// the file or the request.
type ResolvedRow struct {
	Number     int
	Values     Record
	References map[string]string
	Unresolved map[string]string
	Defaulted  map[string]struct{}
	ExistingID string
	Problem    string
}

func (r *ResolvedRow) Valid() bool {
	return r.Problem == ""
}

// UpdateValues is Values without the schema-defaulted fields, so updating
// an existing entity never resets a column the file did not supply.
func (r *ResolvedRow) UpdateValues() Record {
	if len(r.Defaulted) == 0 {
		return r.Values
	}
	out := make(Record, len(r.Values))
	for key, value := range r.Values {
		if _, skip := r.Defaulted[key]; !skip {
			out[key] = value
		}
	}
	return out
}

// NaturalKey returns the row's natural-key values and whether every one of
// them is known. Reference components only count once resolved.
func (r *ResolvedRow) NaturalKey(schema Schema) (Record, bool) {
	key := make(Record, len(schema.NaturalKey))
	for _, field := range schema.NaturalKey {
		if _, pending := r.Unresolved[field]; pending {
			return nil, false
		}
		value, ok := r.Values[field]
		if !ok {
			return nil, false
		}
		key[field] = value
	}
	return key, true
}

// GroupKey flattens a natural key into a comparable string. Only e-mail
// components fold case; every other component compares exactly.
func GroupKey(schema Schema, key Record) string {
	parts := make([]string, 0, len(schema.NaturalKey))
	for _, field := range schema.NaturalKey {
		part := fmt.Sprint(key[field])
		if def, ok := schema.Field(field); ok && def.Type == FieldEmail {
			part = strings.ToLower(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\x1f")
}

// NormalizeRaw is the comparison form of a raw reference value.
func NormalizeRaw(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// UnmatchedReferences is the immutable set of distinct raw reference values
// per field that found no automatic match.
type UnmatchedReferences struct {
	fields []string
	values map[string][]string
}

// UnmatchedBuilder accumulates unmatched values, de-duplicating them
// case-insensitively and keeping the first spelling seen.
type UnmatchedBuilder struct {
	fields []string
	values map[string][]string
	seen   map[string]map[string]struct{}
}

func NewUnmatchedBuilder() *UnmatchedBuilder {
	return &UnmatchedBuilder{
		values: make(map[string][]string),
		seen:   make(map[string]map[string]struct{}),
	}
}

func (b *UnmatchedBuilder) Add(field, raw string) {
	seen, ok := b.seen[field]
	if !ok {
		seen = make(map[string]struct{})
		b.seen[field] = seen
		b.fields = append(b.fields, field)
	}
	norm := NormalizeRaw(raw)
	if _, dup := seen[norm]; dup {
		return
	}
	seen[norm] = struct{}{}
	b.values[field] = append(b.values[field], strings.TrimSpace(raw))
}

func (b *UnmatchedBuilder) Build() UnmatchedReferences {
	out := UnmatchedReferences{
		fields: append([]string(nil), b.fields...),
		values: make(map[string][]string, len(b.values)),
	}
	for field, values := range b.values {
		out.values[field] = append([]string(nil), values...)
	}
	return out
}

func (u UnmatchedReferences) Fields() []string {
	return append([]string(nil), u.fields...)
}

func (u UnmatchedReferences) Values(field string) []string {
	return append([]string(nil), u.values[field]...)
}

func (u UnmatchedReferences) Len() int {
	n := 0
	for _, values := range u.values {
		n += len(values)
	}
	return n
}

func (u UnmatchedReferences) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(u.values))
	for field, values := range u.values {
		out[field] = values
	}
	return json.Marshal(out)
}

// ManualMatches maps reference field -> raw value -> operator chosen id.
type ManualMatches map[string]map[string]string

// Lookup finds an override for a raw value, ignoring case and surrounding
// whitespace.
func (m ManualMatches) Lookup(field, raw string) (string, bool) {
	byRaw, ok := m[field]
	if !ok {
		return "", false
	}
	if id, ok := byRaw[raw]; ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id), true
	}
	norm := NormalizeRaw(raw)
	for candidate, id := range byRaw {
		if NormalizeRaw(candidate) == norm && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id), true
		}
	}
	return "", false
}

// Merge returns a new set containing m overlaid with other.
func (m ManualMatches) Merge(other ManualMatches) ManualMatches {
	if len(m) == 0 && len(other) == 0 {
		return nil
	}
	out := make(ManualMatches, len(m)+len(other))
	for _, src := range []ManualMatches{m, other} {
		for field, byRaw := range src {
			dst, ok := out[field]
			if !ok {
				dst = make(map[string]string, len(byRaw))
				out[field] = dst
			}
			for raw, id := range byRaw {
				dst[raw] = id
			}
		}
	}
	return out
}

// Validate checks every override names a reference field of the schema.
func (m ManualMatches) Validate(schema Schema) error {
	var problems []string
	for field := range m {
		def, ok := schema.Field(field)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown field %q", field))
			continue
		}
		if !def.IsReference() {
			problems = append(problems, fmt.Sprintf("field %q is not a reference", field))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidManualMatch, strings.Join(problems, "; "))
	}
	return nil
}
