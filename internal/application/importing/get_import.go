package importing

import (
	"context"
	"time"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type GetImportInput struct {
	Operator string
	ImportID string
}

type GetImportOutput struct {
	ImportID      string                 `json:"import_id"`
	EntityType    domain.EntityType      `json:"entity_type"`
	Filename      string                 `json:"filename,omitempty"`
	Status        domain.Status          `json:"status"`
	Columns       []string               `json:"columns"`
	SampleRows    []domain.RawRow        `json:"sample_rows"`
	TotalRows     int                    `json:"total_rows"`
	Mappings      []domain.ColumnMapping `json:"mappings"`
	ManualMatches domain.ManualMatches   `json:"manual_matches,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type GetImport interface {
	Execute(ctx context.Context, in GetImportInput) (GetImportOutput, error)
}

type getImport struct {
	pipeline *Pipeline
}

func NewGetImport(pipeline *Pipeline) GetImport {
	return &getImport{pipeline: pipeline}
}

func (uc *getImport) Execute(ctx context.Context, in GetImportInput) (GetImportOutput, error) {
	p := uc.pipeline
	session, err := p.activeSession(ctx, in.ImportID, in.Operator)
	if err != nil {
		return GetImportOutput{}, err
	}

	return GetImportOutput{
		ImportID:      session.ID,
		EntityType:    session.EntityType,
		Filename:      session.Filename,
		Status:        session.Status,
		Columns:       session.Columns,
		SampleRows:    session.SampleRows(p.cfg.SampleRows),
		TotalRows:     len(session.Rows),
		Mappings:      session.Mapping.Pairs(),
		ManualMatches: session.ManualMatches,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}, nil
}
