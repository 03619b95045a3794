package importing

import "context"

// SessionStore keeps sessions across operator-paced requests.
// Load returns terminal sessions too; callers decide what they may do.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
}

// EntityResolver answers lookups for one entity type.
type EntityResolver interface {
	// FindExisting looks a record up by natural key. Exact match, case
	// insensitive for e-mail keys.
	FindExisting(ctx context.Context, key Record) (id string, found bool, err error)
	// ResolveReference finds the id of the record a reference field points at.
	// Ambiguous values report found == false.
	ResolveReference(ctx context.Context, field FieldDefinition, raw string) (id string, found bool, err error)
}

// EntityWriter persists one row atomically.
type EntityWriter interface {
	Create(ctx context.Context, values Record) (string, error)
	Update(ctx context.Context, id string, values Record) error
}

type EntityStore interface {
	EntityResolver
	EntityWriter
}

type RunRepository interface {
	Save(ctx context.Context, summary Summary) error
	Get(ctx context.Context, importID string) (Summary, error)
}
