package importing_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/session"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/tabular"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func contactSchema() domain.Schema {
	return domain.Schema{
		EntityType: "contact",
		NaturalKey: []string{"email"},
		Fields: []domain.FieldDefinition{
			{Key: "email", Label: "Email", Required: true, Type: domain.FieldEmail},
			{Key: "name", Label: "Full name", Required: true, Type: domain.FieldString},
			{Key: "owner", Label: "Owner", Type: domain.FieldReference, References: "user"},
			{Key: "birthday", Label: "Birthday", Type: domain.FieldDate},
			{Key: "status", Label: "Status", Type: domain.FieldEnum, Options: []string{"lead", "customer"}, Default: "lead"},
		},
	}
}

// fakeStore is an in-memory entity store keyed by lower-cased e-mail.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]domain.Record
	byKey   map[string]string
	refs    map[string]map[string]string
	nextID  int

	resolveErr error
	findErr    error
	createErr  map[string]error
	block      map[string]chan struct{}
	onCreate   func(values domain.Record)
	beforeFind func(call int)

	createCalls int
	updateCalls int
	findCalls   int
	resolves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:   make(map[string]domain.Record),
		byKey:     make(map[string]string),
		refs:      map[string]map[string]string{"owner": {"boss@example.com": "u-1"}},
		createErr: make(map[string]error),
		block:     make(map[string]chan struct{}),
	}
}

func keyOf(values domain.Record) string {
	return strings.ToLower(fmt.Sprint(values["email"]))
}

func (f *fakeStore) seed(email string, values domain.Record) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("c-%d", f.nextID)
	values["email"] = email
	f.records[id] = values
	f.byKey[strings.ToLower(email)] = id
	return id
}

func (f *fakeStore) FindExisting(ctx context.Context, key domain.Record) (string, bool, error) {
	f.mu.Lock()
	f.findCalls++
	call, hook := f.findCalls, f.beforeFind
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return "", false, f.findErr
	}
	id, ok := f.byKey[keyOf(key)]
	return id, ok, nil
}

func (f *fakeStore) ResolveReference(ctx context.Context, field domain.FieldDefinition, raw string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	if f.resolveErr != nil {
		return "", false, f.resolveErr
	}
	id, ok := f.refs[field.Key][domain.NormalizeRaw(raw)]
	return id, ok, nil
}

func (f *fakeStore) Create(ctx context.Context, values domain.Record) (string, error) {
	key := keyOf(values)
	f.mu.Lock()
	ch := f.block[key]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}

	f.mu.Lock()
	f.createCalls++
	if err := f.createErr[key]; err != nil {
		f.mu.Unlock()
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("c-%d", f.nextID)
	copied := make(domain.Record, len(values))
	for k, v := range values {
		copied[k] = v
	}
	f.records[id] = copied
	f.byKey[key] = id
	onCreate := f.onCreate
	f.mu.Unlock()

	if onCreate != nil {
		onCreate(values)
	}
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, values domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	record, ok := f.records[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	for k, v := range values {
		record[k] = v
	}
	return nil
}

func (f *fakeStore) record(email string) domain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[f.byKey[strings.ToLower(email)]]
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]domain.Summary
}

func (f *fakeRuns) Save(ctx context.Context, summary domain.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = make(map[string]domain.Summary)
	}
	f.runs[summary.ImportID] = summary
	return nil
}

func (f *fakeRuns) Get(ctx context.Context, importID string) (domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary, ok := f.runs[importID]
	if !ok {
		return domain.Summary{}, domain.ErrRunNotFound
	}
	return summary, nil
}

type harness struct {
	store    *fakeStore
	runs     *fakeRuns
	sessions *session.MemoryStore
	pipeline *app.Pipeline
	logs     *test.Hook

	upload   app.UploadImport
	mapping  app.SaveImportMapping
	validate app.ValidateImport
	matches  app.SaveManualMatches
	execute  app.ExecuteImport
	discard  app.DiscardImport
	get      app.GetImport
	summary  app.GetImportSummary
}

func newHarness(t *testing.T, cfg app.Config) *harness {
	t.Helper()
	return newHarnessFor(t, contactSchema(), cfg)
}

// newHarnessFor wires the pipeline around schema, which must describe the
// "contact" entity keyed by e-mail.
func newHarnessFor(t *testing.T, schema domain.Schema, cfg app.Config) *harness {
	t.Helper()

	registry, err := domain.NewRegistry([]domain.Schema{schema}, "user")
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		store:    newFakeStore(),
		runs:     &fakeRuns{},
		sessions: session.NewMemoryStore(time.Hour),
		logs:     hook,
	}
	h.pipeline, err = app.NewPipeline(
		registry,
		map[domain.EntityType]domain.EntityStore{"contact": h.store},
		h.sessions,
		logger,
		cfg,
		app.WithClock(func() time.Time { return testNow }),
		app.WithRunRepository(h.runs),
	)
	require.NoError(t, err)

	h.upload = app.NewUploadImport(h.pipeline, tabular.NewParser(1000), nil)
	h.mapping = app.NewSaveImportMapping(h.pipeline)
	h.validate = app.NewValidateImport(h.pipeline)
	h.matches = app.NewSaveManualMatches(h.pipeline)
	h.execute = app.NewExecuteImport(h.pipeline)
	h.discard = app.NewDiscardImport(h.pipeline)
	h.get = app.NewGetImport(h.pipeline)
	h.summary = app.NewGetImportSummary(h.runs)
	return h
}

// uploadAndMap uploads csv as operator "alice" and confirms the mapping
// of every contact field to the same-named column.
func (h *harness) uploadAndMap(t *testing.T, csv string) string {
	t.Helper()

	out, err := h.upload.Execute(context.Background(), app.UploadImportInput{
		Operator:    "alice",
		EntityType:  "contact",
		Filename:    "contacts.csv",
		ContentType: "text/csv",
		Content:     strings.NewReader(csv),
	})
	require.NoError(t, err)

	pairs := make([]domain.ColumnMapping, 0, len(out.Columns))
	for _, column := range out.Columns {
		pairs = append(pairs, domain.ColumnMapping{TargetField: strings.ToLower(column), SourceColumn: column})
	}
	_, err = h.mapping.Execute(context.Background(), app.SaveImportMappingInput{
		Operator: "alice",
		ImportID: out.ImportID,
		Mappings: pairs,
	})
	require.NoError(t, err)
	return out.ImportID
}

func requireCountsConsistent(t *testing.T, s domain.Summary) {
	t.Helper()
	require.Equal(t, s.ProcessedRows, s.CreatedCount+s.UpdatedCount+s.SkippedCount+s.FailedCount)
	require.LessOrEqual(t, s.ProcessedRows, s.TotalRows)
}

var errStoreDown = errors.New("store unavailable")
