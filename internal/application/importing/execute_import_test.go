package importing_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

const cleanCSV = "Email,Name,Owner\n" +
	"a@example.com,Ann,boss@example.com\n" +
	"b@example.com,Bob,\n" +
	"c@example.com,Cid,BOSS@example.com\n"

func TestExecuteImportCreatesEveryCleanRow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, cleanCSV)

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 3, summary.CreatedCount)
	assert.Empty(t, summary.Errors)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, "u-1", h.store.record("a@example.com")["owner"])
	assert.Equal(t, "lead", h.store.record("b@example.com")["status"])
	assert.Equal(t, 1, h.store.resolves)

	_, err = h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	assert.ErrorIs(t, err, domain.ErrSessionAlreadyExecuted)

	_, err = h.get.Execute(context.Background(), app.GetImportInput{Operator: "alice", ImportID: id})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	stored, err := h.summary.Execute(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, summary.CreatedCount, stored.CreatedCount)
}

func TestExecuteImportExistingRowsSkipOrUpdate(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name           string
		updateExisting bool
		wantUpdated    int
		wantSkipped    int
		wantName       string
	}{
		{name: "skip", updateExisting: false, wantSkipped: 1, wantName: "Old"},
		{name: "update", updateExisting: true, wantUpdated: 1, wantName: "Ann"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, app.Config{})
			h.store.seed("A@Example.com", domain.Record{"name": "Old"})
			id := h.uploadAndMap(t, cleanCSV)

			summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{
				Operator:       "alice",
				ImportID:       id,
				UpdateExisting: tc.updateExisting,
			})
			require.NoError(t, err)
			requireCountsConsistent(t, summary)

			assert.Equal(t, 2, summary.CreatedCount)
			assert.Equal(t, tc.wantUpdated, summary.UpdatedCount)
			assert.Equal(t, tc.wantSkipped, summary.SkippedCount)
			assert.Equal(t, tc.wantName, h.store.record("a@example.com")["name"])
			assert.Equal(t, 3, h.store.count())
		})
	}
}

func TestExecuteImportPartialFailureKeepsGoing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, "Email,Name,Birthday\n"+
		"a@example.com,Ann,1990-01-02\n"+
		"b@example.com,Bob,\n"+
		"c@example.com,Cid,not-a-date\n"+
		"d@example.com,Dan,1985-07-30\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 4, summary.ProcessedRows)
	assert.Equal(t, 3, summary.CreatedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].RowNumber)
	assert.Contains(t, summary.Errors[0].Message, "birthday")
	assert.Equal(t, time.Date(1985, 7, 30, 0, 0, 0, 0, time.UTC), h.store.record("d@example.com")["birthday"])
}

func TestExecuteImportUnresolvedReferenceFailsOnlyThatRow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, "Email,Name,Owner\n"+
		"a@example.com,Ann,ghost@example.com\n"+
		"b@example.com,Bob,boss@example.com\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 1, summary.CreatedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 1, summary.Errors[0].RowNumber)
	assert.Contains(t, summary.Errors[0].Message, "ghost@example.com")
}

func TestExecuteImportManualMatchOverridesUnmatchedValue(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, "Email,Name,Owner\n"+
		"a@example.com,Ann,Manager@Corp.com\n"+
		"b@example.com,Bob,manager@corp.com\n")

	preview, err := h.validate.Execute(context.Background(), app.ValidateImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	assert.Equal(t, []string{"Manager@Corp.com"}, preview.Unmatched.Values("owner"))
	assert.Equal(t, 2, preview.InvalidRows)

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{
		Operator:      "alice",
		ImportID:      id,
		ManualMatches: domain.ManualMatches{"owner": {"manager@corp.com": "u-42"}},
	})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, "u-42", h.store.record("a@example.com")["owner"])
	assert.Equal(t, "u-42", h.store.record("b@example.com")["owner"])
}

func TestExecuteImportRejectsManualMatchOnUnknownField(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, cleanCSV)

	_, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{
		Operator:      "alice",
		ImportID:      id,
		ManualMatches: domain.ManualMatches{"name": {"Ann": "x"}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidManualMatch)

	got, err := h.get.Execute(context.Background(), app.GetImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMapped, got.Status)
	assert.Zero(t, h.store.count())
}

func TestExecuteImportRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	first := h.uploadAndMap(t, cleanCSV)
	_, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: first, UpdateExisting: true})
	require.NoError(t, err)

	second := h.uploadAndMap(t, cleanCSV)
	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: second, UpdateExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.UpdatedCount)
	assert.Zero(t, summary.CreatedCount)
	assert.Equal(t, 3, h.store.count())
}

func TestExecuteImportDuplicateKeysInsideFileDoNotDuplicate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{Workers: 4})
	id := h.uploadAndMap(t, "Email,Name\n"+
		"a@example.com,First\n"+
		"b@example.com,Bob\n"+
		"A@EXAMPLE.COM,Second\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id, UpdateExisting: true})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, 1, summary.UpdatedCount)
	assert.Equal(t, 2, h.store.count())
	assert.Equal(t, "Second", h.store.record("a@example.com")["name"])
}

func TestExecuteImportRowTimeoutFailsRow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{RowTimeout: 20 * time.Millisecond})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h.store.block["b@example.com"] = release

	id := h.uploadAndMap(t, cleanCSV)
	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, domain.RowError{RowNumber: 2, Message: "create timed out"}, summary.Errors[0])
}

func TestExecuteImportPersistenceErrorIsRowScoped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	h.store.createErr["a@example.com"] = errStoreDown
	id := h.uploadAndMap(t, cleanCSV)

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, []domain.RowError{{RowNumber: 1, Message: "create: store unavailable"}}, summary.Errors)
}

func TestExecuteImportLookupFailureIsStructural(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	h.store.resolveErr = errStoreDown
	id := h.uploadAndMap(t, cleanCSV)

	_, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.ErrorIs(t, err, app.ErrLookupFailed)
	assert.Zero(t, h.store.count())

	h.store.resolveErr = nil
	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.CreatedCount)
}

func TestExecuteImportCancellationReturnsPartialSummary(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.onCreate = func(domain.Record) { cancel() }

	id := h.uploadAndMap(t, "Email,Name\n"+
		"a@example.com,Ann\n"+
		"b@example.com,Bob\n"+
		"c@example.com,Cid\n")

	summary, err := h.execute.Execute(ctx, app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.ErrorIs(t, err, app.ErrExecutionCancelled)
	requireCountsConsistent(t, summary)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.ProcessedRows)
	assert.Equal(t, 1, summary.CreatedCount)
	assert.Contains(t, summary.Note, "cancelled after 1 of 3 rows")
	assert.Equal(t, 1, h.store.count())
}

func TestExecuteImportTruncatesErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{MaxErrors: 2})
	id := h.uploadAndMap(t, "Email,Name\n"+
		"bad-1,A\n"+
		"bad-2,B\n"+
		"bad-3,C\n"+
		"ok@example.com,D\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 3, summary.FailedCount)
	assert.Len(t, summary.Errors, 2)
	assert.True(t, summary.ErrorsTruncated)
	assert.Equal(t, "showing the first 2 of 3 row errors", summary.Note)
}

func TestExecuteImportStateChecks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	ctx := context.Background()

	out, err := h.upload.Execute(ctx, app.UploadImportInput{
		Operator:   "alice",
		EntityType: "contact",
		Filename:   "contacts.csv",
		Content:    strings.NewReader(cleanCSV),
	})
	require.NoError(t, err)

	_, err = h.execute.Execute(ctx, app.ExecuteImportInput{Operator: "alice", ImportID: out.ImportID})
	assert.ErrorIs(t, err, domain.ErrSessionNotMapped)

	_, err = h.execute.Execute(ctx, app.ExecuteImportInput{Operator: "alice", ImportID: "missing"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = h.execute.Execute(ctx, app.ExecuteImportInput{Operator: "mallory", ImportID: out.ImportID})
	assert.ErrorIs(t, err, domain.ErrSessionForbidden)

	_, err = h.discard.Execute(ctx, app.DiscardImportInput{Operator: "alice", ImportID: out.ImportID})
	require.NoError(t, err)
	_, err = h.execute.Execute(ctx, app.ExecuteImportInput{Operator: "alice", ImportID: out.ImportID})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExecuteImportDefaultsFillEmptyCells(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, "Email,Name,Status\n"+
		"a@example.com,Ann,\n"+
		"b@example.com,Bob,Customer\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{
		Operator: "alice",
		ImportID: id,
		Defaults: map[string]string{"status": "customer", "owner": "boss@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CreatedCount)
	assert.Equal(t, "customer", h.store.record("a@example.com")["status"])
	assert.Equal(t, "u-1", h.store.record("a@example.com")["owner"])

	other := h.uploadAndMap(t, cleanCSV)
	_, err = h.execute.Execute(context.Background(), app.ExecuteImportInput{
		Operator: "alice",
		ImportID: other,
		Defaults: map[string]string{"nickname": "x"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMapping)
}

func TestExecuteImportUpdateKeepsUnmappedColumns(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	h.store.seed("a@example.com", domain.Record{"name": "Old", "status": "customer"})
	id := h.uploadAndMap(t, "Email,Name\n"+
		"a@example.com,Ann\n"+
		"b@example.com,Bob\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{
		Operator:       "alice",
		ImportID:       id,
		UpdateExisting: true,
	})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 1, summary.UpdatedCount)
	assert.Equal(t, 1, summary.CreatedCount)
	assert.Equal(t, "Ann", h.store.record("a@example.com")["name"])
	assert.Equal(t, "customer", h.store.record("a@example.com")["status"])
	assert.Equal(t, "lead", h.store.record("b@example.com")["status"])
}

func TestExecuteImportRequiredDateFailsOnlyBadRow(t *testing.T) {
	t.Parallel()

	schema := contactSchema()
	schema.Fields = append(schema.Fields, domain.FieldDefinition{Key: "joined", Label: "Joined", Required: true, Type: domain.FieldDate})
	h := newHarnessFor(t, schema, app.Config{})
	id := h.uploadAndMap(t, "Email,Name,Joined\n"+
		"a@example.com,Ann,2024-01-02\n"+
		"b@example.com,Bob,2024-02-03\n"+
		"c@example.com,Cid,someday\n"+
		"d@example.com,Dan,2024-04-05\n"+
		"e@example.com,Eve,2024-05-06\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 5, summary.TotalRows)
	assert.Equal(t, 4, summary.CreatedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].RowNumber)
	assert.Contains(t, summary.Errors[0].Message, "joined")
	assert.Nil(t, h.store.record("c@example.com"))
}

func TestExecuteImportLooksUpAgainAfterCreateTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{RowTimeout: 100 * time.Millisecond})
	release := make(chan struct{})
	landed := make(chan struct{})
	h.store.block["a@example.com"] = release
	h.store.onCreate = func(domain.Record) { close(landed) }
	h.store.beforeFind = func(call int) {
		if call == 2 {
			close(release)
			<-landed
		}
	}

	id := h.uploadAndMap(t, "Email,Name\n"+
		"a@example.com,First\n"+
		"A@EXAMPLE.COM,Second\n")
	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id, UpdateExisting: true})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, []domain.RowError{{RowNumber: 1, Message: "create timed out"}}, summary.Errors)
	assert.Equal(t, 1, summary.UpdatedCount)
	assert.Zero(t, summary.CreatedCount)
	assert.Equal(t, 1, h.store.count())
	assert.Equal(t, "Second", h.store.record("a@example.com")["name"])
}

func TestExecuteImportRowNumbersCountBlankLines(t *testing.T) {
	t.Parallel()

	h := newHarness(t, app.Config{})
	id := h.uploadAndMap(t, "Email,Name\n"+
		"a@example.com,Ann\n"+
		",\n"+
		"not-an-email,Bob\n")

	summary, err := h.execute.Execute(context.Background(), app.ExecuteImportInput{Operator: "alice", ImportID: id})
	require.NoError(t, err)
	requireCountsConsistent(t, summary)

	assert.Equal(t, 2, summary.TotalRows)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].RowNumber)
}
