package importing

import (
	"context"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type ValidateImportInput struct {
	Operator      string
	ImportID      string
	Defaults      map[string]string
	ManualMatches domain.ManualMatches
}

// ValidateImportOutput previews an execution without writing anything.
type ValidateImportOutput struct {
	ImportID        string                     `json:"import_id"`
	Unmatched       domain.UnmatchedReferences `json:"unmatched"`
	TotalRows       int                        `json:"total_rows"`
	ValidRows       int                        `json:"valid_rows"`
	InvalidRows     int                        `json:"invalid_rows"`
	ExistingRows    int                        `json:"existing_rows"`
	Errors          []domain.RowError          `json:"errors"`
	ErrorsTruncated bool                       `json:"errors_truncated"`
}

type ValidateImport interface {
	Execute(ctx context.Context, in ValidateImportInput) (ValidateImportOutput, error)
}

type validateImport struct {
	pipeline *Pipeline
}

func NewValidateImport(pipeline *Pipeline) ValidateImport {
	return &validateImport{pipeline: pipeline}
}

func (uc *validateImport) Execute(ctx context.Context, in ValidateImportInput) (ValidateImportOutput, error) {
	out, err := uc.execute(ctx, in)
	if err != nil {
		getMetrics().structural(err)
	}
	return out, err
}

func (uc *validateImport) execute(ctx context.Context, in ValidateImportInput) (ValidateImportOutput, error) {
	p := uc.pipeline
	session, err := p.activeSession(ctx, in.ImportID, in.Operator)
	if err != nil {
		return ValidateImportOutput{}, err
	}
	if err := session.CheckExecutable(); err != nil {
		return ValidateImportOutput{}, err
	}
	schema, store, err := p.target(session.EntityType)
	if err != nil {
		return ValidateImportOutput{}, err
	}

	rows, unmatched, err := p.prepareRows(ctx, session, schema, store, in.Defaults, in.ManualMatches)
	if err != nil {
		return ValidateImportOutput{}, err
	}

	groups, failures := groupRows(schema, rows)
	existing := make(map[int]bool, len(rows))
	for _, group := range groups {
		found, err := callWithTimeout(ctx, p.cfg.RowTimeout, func(c context.Context) (lookupResult, error) {
			id, ok, err := store.FindExisting(c, group.key)
			return lookupResult{id: id, found: ok}, err
		})
		if err != nil {
			for _, idx := range group.indexes {
				failures[idx] = rowFailureMessage("find existing", err)
			}
			continue
		}
		if found.found {
			for _, idx := range group.indexes {
				existing[idx] = true
			}
		}
	}

	out := ValidateImportOutput{
		ImportID:  session.ID,
		Unmatched: unmatched,
		TotalRows: len(rows),
		Errors:    []domain.RowError{},
	}
	for i := range rows {
		message, failed := failures[i]
		if !failed {
			out.ValidRows++
			if existing[i] {
				out.ExistingRows++
			}
			continue
		}
		out.InvalidRows++
		if len(out.Errors) < p.cfg.MaxErrors {
			out.Errors = append(out.Errors, domain.RowError{RowNumber: rows[i].Number, Message: message})
		} else {
			out.ErrorsTruncated = true
		}
	}

	p.sessionLogger(session, in.Operator).WithFields(logrus.Fields{
		"valid":     out.ValidRows,
		"invalid":   out.InvalidRows,
		"existing":  out.ExistingRows,
		"unmatched": unmatched.Len(),
	}).Info("import validated")
	return out, nil
}
