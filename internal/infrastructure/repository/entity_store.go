package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

var (
	ErrNoTable             = errors.New("entity type has no table")
	ErrAmbiguousNaturalKey = errors.New("natural key matches more than one record")
	ErrInvalidReferenceID  = errors.New("invalid reference id")
)

// EntityStore reads and writes one importable entity type. Every write runs
// in its own transaction so a row is either fully persisted or not at all.
type EntityStore struct {
	pool   *pgxpool.Pool
	schema domain.Schema
	spec   tableSpec
}

func NewEntityStore(pool *pgxpool.Pool, schema domain.Schema) (*EntityStore, error) {
	spec, ok := tableSpecs[schema.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, schema.EntityType)
	}
	for _, field := range schema.Fields {
		if _, ok := spec.columns[field.Key]; !ok {
			return nil, fmt.Errorf("%w: %s.%s has no column", ErrNoTable, schema.EntityType, field.Key)
		}
		if field.IsReference() {
			if _, ok := tableSpecs[field.References]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrNoTable, field.References)
			}
		}
	}
	return &EntityStore{pool: pool, schema: schema, spec: spec}, nil
}

// NewEntityStores builds a store for every importable entity type of the
// registry.
func NewEntityStores(pool *pgxpool.Pool, registry *domain.Registry) (map[domain.EntityType]domain.EntityStore, error) {
	stores := make(map[domain.EntityType]domain.EntityStore)
	for _, entityType := range registry.EntityTypes() {
		schema, err := registry.Schema(entityType)
		if err != nil {
			return nil, err
		}
		store, err := NewEntityStore(pool, schema)
		if err != nil {
			return nil, err
		}
		stores[entityType] = store
	}
	return stores, nil
}

func (s *EntityStore) FindExisting(ctx context.Context, key domain.Record) (string, bool, error) {
	conds := make([]string, 0, len(s.schema.NaturalKey))
	args := make([]any, 0, len(s.schema.NaturalKey))
	for _, fieldKey := range s.schema.NaturalKey {
		field, _ := s.schema.Field(fieldKey)
		value, err := columnValue(field, key[fieldKey])
		if err != nil {
			return "", false, err
		}
		args = append(args, value)
		conds = append(conds, matchCondition(field, s.spec.columns[fieldKey], len(args)))
	}

	query := fmt.Sprintf("SELECT id::text FROM %s WHERE %s LIMIT 2", quote(s.spec.table), strings.Join(conds, " AND "))
	ids, err := s.queryIDs(ctx, query, args...)
	if err != nil {
		return "", false, errors.Wrapf(err, "find existing %s", s.schema.EntityType)
	}
	switch len(ids) {
	case 0:
		return "", false, nil
	case 1:
		return ids[0], true, nil
	default:
		return "", false, ErrAmbiguousNaturalKey
	}
}

// ResolveReference tries the referenced entity's id first, then each of its
// lookup columns case-insensitively. A value matching several records is
// reported as unmatched so the operator picks one.
func (s *EntityStore) ResolveReference(ctx context.Context, field domain.FieldDefinition, raw string) (string, bool, error) {
	target, ok := tableSpecs[field.References]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrNoTable, field.References)
	}
	raw = strings.TrimSpace(raw)

	if id, err := uuid.Parse(raw); err == nil {
		ids, err := s.queryIDs(ctx, fmt.Sprintf("SELECT id::text FROM %s WHERE id = $1", quote(target.table)), id)
		if err != nil {
			return "", false, errors.Wrapf(err, "resolve %s by id", field.References)
		}
		if len(ids) == 1 {
			return ids[0], true, nil
		}
	}

	for _, column := range target.lookupColumns {
		query := fmt.Sprintf("SELECT id::text FROM %s WHERE lower(%s) = lower($1) LIMIT 2", quote(target.table), quote(column))
		ids, err := s.queryIDs(ctx, query, raw)
		if err != nil {
			return "", false, errors.Wrapf(err, "resolve %s by %s", field.References, column)
		}
		switch len(ids) {
		case 0:
			continue
		case 1:
			return ids[0], true, nil
		default:
			return "", false, nil
		}
	}
	return "", false, nil
}

func (s *EntityStore) Create(ctx context.Context, values domain.Record) (string, error) {
	columns, args, err := s.columnValues(values)
	if err != nil {
		return "", err
	}
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id::text",
		quote(s.spec.table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	var id string
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(&id)
	})
	if err != nil {
		return "", errors.Wrapf(err, "insert %s", s.schema.EntityType)
	}
	return id, nil
}

// Update writes only the columns present in values; other columns keep
// their stored value.
func (s *EntityStore) Update(ctx context.Context, id string, values domain.Record) error {
	entityID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidReferenceID, id)
	}
	columns, args, err := s.columnValues(values)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	sets := make([]string, 0, len(columns)+1)
	for i, column := range columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, i+1))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, entityID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", quote(s.spec.table), strings.Join(sets, ", "), len(args))

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrEntityNotFound
		}
		return nil
	})
	if errors.Is(err, domain.ErrEntityNotFound) {
		return err
	}
	if err != nil {
		return errors.Wrapf(err, "update %s", s.schema.EntityType)
	}
	return nil
}

// columnValues returns quoted column names and driver values in schema
// field order, skipping fields absent from values.
func (s *EntityStore) columnValues(values domain.Record) ([]string, []any, error) {
	columns := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, field := range s.schema.Fields {
		value, ok := values[field.Key]
		if !ok {
			continue
		}
		converted, err := columnValue(field, value)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, quote(s.spec.columns[field.Key]))
		args = append(args, converted)
	}
	return columns, args, nil
}

func (s *EntityStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func columnValue(field domain.FieldDefinition, value any) (any, error) {
	if !field.IsReference() {
		return value, nil
	}
	id, err := uuid.Parse(fmt.Sprint(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidReferenceID, field.Key, value)
	}
	return id, nil
}

// matchCondition compares one natural-key column. E-mail columns compare
// case-insensitively; everything else matches exactly.
func matchCondition(field domain.FieldDefinition, column string, n int) string {
	if field.Type == domain.FieldEmail {
		return fmt.Sprintf("lower(%s) = lower($%d)", quote(column), n)
	}
	return fmt.Sprintf("%s = $%d", quote(column), n)
}

func quote(identifier string) string {
	return pgx.Identifier{identifier}.Sanitize()
}
