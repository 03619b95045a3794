package importing

import (
	"context"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type SaveImportMappingInput struct {
	Operator string
	ImportID string
	Mappings []domain.ColumnMapping
}

type SaveImportMappingOutput struct {
	ImportID string                 `json:"import_id"`
	Status   domain.Status          `json:"status"`
	Mappings []domain.ColumnMapping `json:"mappings"`
}

type SaveImportMapping interface {
	Execute(ctx context.Context, in SaveImportMappingInput) (SaveImportMappingOutput, error)
}

type saveImportMapping struct {
	pipeline *Pipeline
}

func NewSaveImportMapping(pipeline *Pipeline) SaveImportMapping {
	return &saveImportMapping{pipeline: pipeline}
}

// Execute replaces the session's mapping. An invalid mapping leaves the
// stored session exactly as it was.
func (uc *saveImportMapping) Execute(ctx context.Context, in SaveImportMappingInput) (SaveImportMappingOutput, error) {
	p := uc.pipeline
	session, err := p.sessions.Update(ctx, in.ImportID, func(s *domain.Session) error {
		if err := s.CheckOwner(in.Operator); err != nil {
			return err
		}
		schema, err := p.registry.Schema(s.EntityType)
		if err != nil {
			return err
		}
		return s.ApplyMapping(schema, in.Mappings, p.now())
	})
	if err != nil {
		getMetrics().structural(err)
		return SaveImportMappingOutput{}, err
	}
	getMetrics().sessionEvent(session.EntityType, domain.StatusMapped)
	p.sessionLogger(session, in.Operator).WithField("mapped_fields", len(session.Mapping)).Info("import mapping saved")

	return SaveImportMappingOutput{
		ImportID: session.ID,
		Status:   session.Status,
		Mappings: session.Mapping.Pairs(),
	}, nil
}
