package importing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

// Materializer turns raw rows into typed records according to a schema.
type Materializer struct {
	dateFormats []string
	validate    *validator.Validate
}

func NewMaterializer(dateFormats []string) *Materializer {
	if len(dateFormats) == 0 {
		dateFormats = defaultDateFormats
	}
	return &Materializer{
		dateFormats: dateFormats,
		validate:    validator.New(),
	}
}

// Materialize builds one ResolvedRow per raw row, in file order. Invalid
// rows are kept with Problem set so they are reported rather than dropped.
func (m *Materializer) Materialize(schema domain.Schema, mapping domain.Mapping, rows []domain.RawRow, defaults map[string]string) []domain.ResolvedRow {
	out := make([]domain.ResolvedRow, 0, len(rows))
	for i, raw := range rows {
		out = append(out, m.materializeRow(schema, mapping, raw, defaults, i+1))
	}
	return out
}

func (m *Materializer) materializeRow(schema domain.Schema, mapping domain.Mapping, raw domain.RawRow, defaults map[string]string, number int) domain.ResolvedRow {
	row := domain.ResolvedRow{
		Number:     number,
		Values:     make(domain.Record, len(schema.Fields)),
		References: make(map[string]string),
	}

	for _, field := range schema.Fields {
		value := ""
		if column, ok := mapping[field.Key]; ok {
			value = strings.TrimSpace(raw[column])
		}
		if value == "" {
			value = strings.TrimSpace(defaults[field.Key])
		}
		if value == "" && field.Default != "" {
			value = field.Default
			markDefaulted(&row, field.Key)
		}
		if value == "" {
			if field.Required {
				row.Problem = firstProblem(row.Problem, fmt.Sprintf("%s: required value is missing", field.Key))
			}
			continue
		}

		if field.IsReference() {
			row.References[field.Key] = value
			continue
		}

		typed, err := m.coerce(field, value)
		if err != nil && field.Type == domain.FieldEnum && field.Default != "" {
			// An unknown option falls back to the declared default.
			typed, err = field.Default, nil
			markDefaulted(&row, field.Key)
		}
		if err != nil {
			row.Problem = firstProblem(row.Problem, fmt.Sprintf("%s: %v", field.Key, err))
			continue
		}
		row.Values[field.Key] = typed
	}
	return row
}

func (m *Materializer) coerce(field domain.FieldDefinition, value string) (any, error) {
	switch field.Type {
	case domain.FieldEmail:
		email := strings.ToLower(value)
		if err := m.validate.Var(email, "email"); err != nil {
			return nil, fmt.Errorf("%q is not a valid email address", value)
		}
		return email, nil
	case domain.FieldDate:
		for _, layout := range m.dateFormats {
			if t, err := time.Parse(layout, value); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
		return nil, fmt.Errorf("%q is not a valid date", value)
	case domain.FieldEnum:
		for _, option := range field.Options {
			if strings.EqualFold(option, value) {
				return option, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", value, strings.Join(field.Options, ", "))
	case domain.FieldNumber:
		cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(value)
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", value)
		}
		return n, nil
	case domain.FieldBoolean:
		switch strings.ToLower(value) {
		case "true", "yes", "y", "1":
			return true, nil
		case "false", "no", "n", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", value)
	default:
		return value, nil
	}
}

func firstProblem(current, next string) string {
	if current != "" {
		return current
	}
	return next
}

func markDefaulted(row *domain.ResolvedRow, key string) {
	if row.Defaulted == nil {
		row.Defaulted = make(map[string]struct{})
	}
	row.Defaulted[key] = struct{}{}
}
