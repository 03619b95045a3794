package importing

import (
	"fmt"
	"strings"
)

type EntityType string

type FieldType string

const (
	FieldString    FieldType = "string"
	FieldEmail     FieldType = "email"
	FieldDate      FieldType = "date"
	FieldEnum      FieldType = "enum"
	FieldNumber    FieldType = "number"
	FieldBoolean   FieldType = "boolean"
	FieldReference FieldType = "reference"
)

// FieldDefinition describes one importable field of an entity type.
type FieldDefinition struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Required    bool       `json:"required"`
	Type        FieldType  `json:"type"`
	Options     []string   `json:"options,omitempty"`
	Default     string     `json:"default,omitempty"`
	References  EntityType `json:"references,omitempty"`
}

func (f FieldDefinition) IsReference() bool {
	return f.Type == FieldReference
}

// Schema is the ordered list of importable fields for one entity type.
// NaturalKey names the fields whose values identify an existing record.
type Schema struct {
	EntityType EntityType
	Fields     []FieldDefinition
	NaturalKey []string
}

func (s Schema) Field(key string) (FieldDefinition, bool) {
	for _, field := range s.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

func (s Schema) RequiredKeys() []string {
	keys := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		if field.Required {
			keys = append(keys, field.Key)
		}
	}
	return keys
}

func (s Schema) ReferenceFields() []FieldDefinition {
	refs := make([]FieldDefinition, 0)
	for _, field := range s.Fields {
		if field.IsReference() {
			refs = append(refs, field)
		}
	}
	return refs
}

func (s Schema) validate() error {
	if strings.TrimSpace(string(s.EntityType)) == "" {
		return fmt.Errorf("%w: entity type is empty", ErrInvalidSchema)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidSchema, s.EntityType)
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for _, field := range s.Fields {
		if field.Key == "" {
			return fmt.Errorf("%w: %s has a field without key", ErrInvalidSchema, s.EntityType)
		}
		if _, dup := seen[field.Key]; dup {
			return fmt.Errorf("%w: %s.%s is declared twice", ErrInvalidSchema, s.EntityType, field.Key)
		}
		seen[field.Key] = struct{}{}

		switch field.Type {
		case FieldString, FieldEmail, FieldDate, FieldNumber, FieldBoolean:
		case FieldEnum:
			if len(field.Options) == 0 {
				return fmt.Errorf("%w: %s.%s enum has no options", ErrInvalidSchema, s.EntityType, field.Key)
			}
			if field.Default != "" && !containsFold(field.Options, field.Default) {
				return fmt.Errorf("%w: %s.%s default %q is not an option", ErrInvalidSchema, s.EntityType, field.Key, field.Default)
			}
		case FieldReference:
			if field.References == "" {
				return fmt.Errorf("%w: %s.%s references no entity type", ErrInvalidSchema, s.EntityType, field.Key)
			}
		default:
			return fmt.Errorf("%w: %s.%s has unknown type %q", ErrInvalidSchema, s.EntityType, field.Key, field.Type)
		}
	}

	if len(s.NaturalKey) == 0 {
		return fmt.Errorf("%w: %s has no natural key", ErrInvalidSchema, s.EntityType)
	}
	for _, key := range s.NaturalKey {
		field, ok := s.Field(key)
		if !ok {
			return fmt.Errorf("%w: %s natural key %q is not a field", ErrInvalidSchema, s.EntityType, key)
		}
		if !field.Required {
			return fmt.Errorf("%w: %s natural key %q must be required", ErrInvalidSchema, s.EntityType, key)
		}
	}
	return nil
}

func containsFold(options []string, value string) bool {
	for _, option := range options {
		if strings.EqualFold(option, value) {
			return true
		}
	}
	return false
}

// Registry holds the schemas of every importable entity type, plus the
// lookup-only entity types (users, customers, positions) that reference
// fields may point at without being importable themselves.
type Registry struct {
	schemas map[EntityType]Schema
	order   []EntityType
	lookups map[EntityType]struct{}
}

func NewRegistry(schemas []Schema, lookups ...EntityType) (*Registry, error) {
	r := &Registry{
		schemas: make(map[EntityType]Schema, len(schemas)),
		lookups: make(map[EntityType]struct{}, len(lookups)),
	}
	for _, t := range lookups {
		r.lookups[t] = struct{}{}
	}
	for _, schema := range schemas {
		if err := schema.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.schemas[schema.EntityType]; dup {
			return nil, fmt.Errorf("%w: entity type %s registered twice", ErrInvalidSchema, schema.EntityType)
		}
		r.schemas[schema.EntityType] = schema
		r.order = append(r.order, schema.EntityType)
	}

	for _, schema := range schemas {
		for _, field := range schema.ReferenceFields() {
			_, importable := r.schemas[field.References]
			_, lookup := r.lookups[field.References]
			if !importable && !lookup {
				return nil, fmt.Errorf("%w: %s.%s references unknown entity type %s", ErrInvalidSchema, schema.EntityType, field.Key, field.References)
			}
		}
	}
	return r, nil
}

func (r *Registry) Schema(entityType EntityType) (Schema, error) {
	schema, ok := r.schemas[entityType]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return schema, nil
}

func (r *Registry) EntityTypes() []EntityType {
	out := make([]EntityType, len(r.order))
	copy(out, r.order)
	return out
}
