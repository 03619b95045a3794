package importing_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

func TestUnmatchedBuilderDeduplicatesCaseInsensitively(t *testing.T) {
	t.Parallel()

	b := domain.NewUnmatchedBuilder()
	b.Add("manager", "Boss@Example.com")
	b.Add("manager", " boss@example.com ")
	b.Add("manager", "other@example.com")
	b.Add("position", "Engineer")

	set := b.Build()
	b.Add("position", "Designer")

	assert.Equal(t, []string{"manager", "position"}, set.Fields())
	assert.Equal(t, []string{"Boss@Example.com", "other@example.com"}, set.Values("manager"))
	assert.Equal(t, []string{"Engineer"}, set.Values("position"))
	assert.Equal(t, 3, set.Len())

	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"manager":["Boss@Example.com","other@example.com"],"position":["Engineer"]}`, string(raw))
}

func TestManualMatchesLookupAndMerge(t *testing.T) {
	t.Parallel()

	retained := domain.ManualMatches{"manager": {"boss@example.com": "e-1", "old@example.com": "e-9"}}
	request := domain.ManualMatches{"manager": {"old@example.com": "e-2"}}
	merged := retained.Merge(request)

	id, ok := merged.Lookup("manager", "BOSS@example.com")
	require.True(t, ok)
	assert.Equal(t, "e-1", id)

	id, ok = merged.Lookup("manager", "old@example.com")
	require.True(t, ok)
	assert.Equal(t, "e-2", id)

	_, ok = merged.Lookup("position", "Engineer")
	assert.False(t, ok)

	assert.Equal(t, "e-9", retained["manager"]["old@example.com"])
	assert.Nil(t, domain.ManualMatches(nil).Merge(nil))
}

func TestManualMatchesValidate(t *testing.T) {
	t.Parallel()

	schema := contactSchema()
	assert.NoError(t, domain.ManualMatches{"owner": {"x": "1"}}.Validate(schema))
	assert.ErrorIs(t, domain.ManualMatches{"email": {"x": "1"}}.Validate(schema), domain.ErrInvalidManualMatch)
	assert.ErrorIs(t, domain.ManualMatches{"nope": {"x": "1"}}.Validate(schema), domain.ErrInvalidManualMatch)
}

func TestResolvedRowNaturalKey(t *testing.T) {
	t.Parallel()

	schema := domain.Schema{NaturalKey: []string{"employee", "date"}}
	row := domain.ResolvedRow{
		Values:     domain.Record{"date": "2026-01-01"},
		Unresolved: map[string]string{"employee": "ghost@example.com"},
	}
	_, ok := row.NaturalKey(schema)
	assert.False(t, ok)

	row.Values["employee"] = "E-1"
	row.Unresolved = nil
	key, ok := row.NaturalKey(schema)
	require.True(t, ok)
	assert.Equal(t, "E-1\x1f2026-01-01", domain.GroupKey(schema, key))
}

func TestGroupKeyFoldsOnlyEmail(t *testing.T) {
	t.Parallel()

	schema := domain.Schema{
		NaturalKey: []string{"email", "code"},
		Fields: []domain.FieldDefinition{
			{Key: "email", Type: domain.FieldEmail},
			{Key: "code", Type: domain.FieldString},
		},
	}
	lower := domain.GroupKey(schema, domain.Record{"email": "a@example.com", "code": "AB"})
	assert.Equal(t, lower, domain.GroupKey(schema, domain.Record{"email": "A@Example.COM", "code": "AB"}))
	assert.NotEqual(t, lower, domain.GroupKey(schema, domain.Record{"email": "a@example.com", "code": "ab"}))
}

func TestResolvedRowUpdateValuesDropsDefaulted(t *testing.T) {
	t.Parallel()

	row := domain.ResolvedRow{Values: domain.Record{"email": "a@example.com", "status": "lead"}}
	assert.Equal(t, row.Values, row.UpdateValues())

	row.Defaulted = map[string]struct{}{"status": {}}
	assert.Equal(t, domain.Record{"email": "a@example.com"}, row.UpdateValues())
	assert.Equal(t, "lead", row.Values["status"])
}

func TestNewRegistryRejectsBrokenSchemas(t *testing.T) {
	t.Parallel()

	_, err := domain.NewRegistry([]domain.Schema{contactSchema()}, "user")
	require.NoError(t, err)

	_, err = domain.NewRegistry([]domain.Schema{contactSchema()})
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)

	optionalKey := contactSchema()
	optionalKey.NaturalKey = []string{"owner"}
	_, err = domain.NewRegistry([]domain.Schema{optionalKey}, "user")
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)

	badEnum := contactSchema()
	badEnum.Fields = append(badEnum.Fields, domain.FieldDefinition{Key: "status", Type: domain.FieldEnum, Options: []string{"a"}, Default: "b"})
	_, err = domain.NewRegistry([]domain.Schema{badEnum}, "user")
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)

	registry, err := domain.NewRegistry([]domain.Schema{contactSchema()}, "user")
	require.NoError(t, err)
	_, err = registry.Schema("invoice")
	assert.ErrorIs(t, err, domain.ErrUnknownEntityType)
}
