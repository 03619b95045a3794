package importing

import (
	"context"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type GetImportSummary interface {
	Execute(ctx context.Context, importID string) (domain.Summary, error)
}

type getImportSummary struct {
	runs domain.RunRepository
}

func NewGetImportSummary(runs domain.RunRepository) GetImportSummary {
	return &getImportSummary{runs: runs}
}

// Execute reads the persisted result of a finished execution; it keeps
// working after the session itself is gone.
func (uc *getImportSummary) Execute(ctx context.Context, importID string) (domain.Summary, error) {
	if uc.runs == nil {
		return domain.Summary{}, domain.ErrRunNotFound
	}
	return uc.runs.Get(ctx, importID)
}
