package importing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

const (
	defaultSampleRows       = 5
	defaultSuggestThreshold = 0.75
	defaultMaxErrors        = 100
	defaultWorkers          = 4
	maxWorkers              = 10
	defaultRowTimeout       = 10 * time.Second
)

var defaultDateFormats = []string{"2006-01-02", "2006/01/02", "02.01.2006", time.RFC3339}

type Config struct {
	SampleRows          int
	SuggestThreshold    float64
	MaxErrors           int
	Workers             int
	RowTimeout          time.Duration
	RetainManualMatches bool
	DateFormats         []string
}

func (c Config) withDefaults() Config {
	if c.SampleRows <= 0 {
		c.SampleRows = defaultSampleRows
	}
	if c.SuggestThreshold <= 0 || c.SuggestThreshold > 1 {
		c.SuggestThreshold = defaultSuggestThreshold
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = defaultMaxErrors
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Workers > maxWorkers {
		c.Workers = maxWorkers
	}
	if c.RowTimeout <= 0 {
		c.RowTimeout = defaultRowTimeout
	}
	if len(c.DateFormats) == 0 {
		c.DateFormats = defaultDateFormats
	}
	return c
}

type TableParser interface {
	Parse(ctx context.Context, filename, contentType string, r io.Reader) (domain.Table, error)
}

type ImportSource interface {
	Open(ctx context.Context, sourcePath string) (io.ReadCloser, error)
}

// Pipeline carries the collaborators shared by every import use case.
type Pipeline struct {
	registry *domain.Registry
	stores   map[domain.EntityType]domain.EntityStore
	sessions domain.SessionStore
	runs     domain.RunRepository
	logger   logrus.FieldLogger
	cfg      Config

	materializer *Materializer
	engine       *Engine
	now          func() time.Time
}

type PipelineOption func(*Pipeline)

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func WithRunRepository(runs domain.RunRepository) PipelineOption {
	return func(p *Pipeline) { p.runs = runs }
}

// NewPipeline fails when an importable entity type has no store, since no
// import of that type could ever start.
func NewPipeline(
	registry *domain.Registry,
	stores map[domain.EntityType]domain.EntityStore,
	sessions domain.SessionStore,
	logger logrus.FieldLogger,
	cfg Config,
	opts ...PipelineOption,
) (*Pipeline, error) {
	for _, entityType := range registry.EntityTypes() {
		if _, ok := stores[entityType]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingEntityStore, entityType)
		}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cfg = cfg.withDefaults()
	p := &Pipeline{
		registry:     registry,
		stores:       stores,
		sessions:     sessions,
		logger:       logger,
		cfg:          cfg,
		materializer: NewMaterializer(cfg.DateFormats),
		now:          func() time.Time { return time.Now().UTC() },
	}
	p.engine = NewEngine(cfg.Workers, cfg.RowTimeout, logger)
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) target(entityType domain.EntityType) (domain.Schema, domain.EntityStore, error) {
	schema, err := p.registry.Schema(entityType)
	if err != nil {
		return domain.Schema{}, nil, err
	}
	return schema, p.stores[entityType], nil
}

// loadSession returns the session whatever its status, after the owner check.
func (p *Pipeline) loadSession(ctx context.Context, id, operator string) (*domain.Session, error) {
	session, err := p.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.CheckOwner(operator); err != nil {
		return nil, err
	}
	return session, nil
}

// activeSession hides executed and discarded sessions: they are single use.
func (p *Pipeline) activeSession(ctx context.Context, id, operator string) (*domain.Session, error) {
	session, err := p.loadSession(ctx, id, operator)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (p *Pipeline) manualMatches(session *domain.Session, supplied domain.ManualMatches) domain.ManualMatches {
	if !p.cfg.RetainManualMatches {
		return supplied
	}
	return session.ManualMatches.Merge(supplied)
}

func (p *Pipeline) sessionLogger(session *domain.Session, operator string) logrus.FieldLogger {
	return p.logger.WithFields(logrus.Fields{
		"import_id":   session.ID,
		"entity_type": session.EntityType,
		"operator":    operator,
	})
}

// prepareRows runs materialization, automatic reference resolution and the
// manual match merge. Errors are structural: no row has been written yet.
func (p *Pipeline) prepareRows(
	ctx context.Context,
	session *domain.Session,
	schema domain.Schema,
	store domain.EntityStore,
	defaults map[string]string,
	supplied domain.ManualMatches,
) ([]domain.ResolvedRow, domain.UnmatchedReferences, error) {
	if err := checkDefaults(schema, defaults); err != nil {
		return nil, domain.UnmatchedReferences{}, err
	}
	if err := supplied.Validate(schema); err != nil {
		return nil, domain.UnmatchedReferences{}, err
	}

	rows := p.materializer.Materialize(schema, session.Mapping, session.Rows, defaults)
	for i := range rows {
		rows[i].Number = session.RowNumber(i)
	}
	automatic, err := ResolveReferences(ctx, schema, store, rows)
	if err != nil {
		return nil, domain.UnmatchedReferences{}, err
	}

	matches := p.manualMatches(session, supplied)
	ApplyManualMatches(rows, matches)
	if len(matches) > 0 {
		return rows, CollectUnmatched(schema, rows), nil
	}
	return rows, automatic, nil
}

func checkDefaults(schema domain.Schema, defaults map[string]string) error {
	var problems []string
	for key := range defaults {
		if _, ok := schema.Field(key); !ok {
			problems = append(problems, fmt.Sprintf("default for unknown field %q", key))
		}
	}
	if len(problems) > 0 {
		return &domain.InvalidMappingError{Problems: problems}
	}
	return nil
}
