package importing

import (
	"context"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type SaveManualMatchesInput struct {
	Operator      string
	ImportID      string
	ManualMatches domain.ManualMatches
}

type SaveManualMatchesOutput struct {
	ImportID      string               `json:"import_id"`
	ManualMatches domain.ManualMatches `json:"manual_matches"`
}

type SaveManualMatches interface {
	Execute(ctx context.Context, in SaveManualMatchesInput) (SaveManualMatchesOutput, error)
}

type saveManualMatches struct {
	pipeline *Pipeline
}

func NewSaveManualMatches(pipeline *Pipeline) SaveManualMatches {
	return &saveManualMatches{pipeline: pipeline}
}

// Execute stores overrides on the session so later validate and execute
// calls pick them up. Only available when retention is enabled.
func (uc *saveManualMatches) Execute(ctx context.Context, in SaveManualMatchesInput) (SaveManualMatchesOutput, error) {
	p := uc.pipeline
	if !p.cfg.RetainManualMatches {
		return SaveManualMatchesOutput{}, ErrManualMatchesNotRetained
	}

	session, err := p.sessions.Update(ctx, in.ImportID, func(s *domain.Session) error {
		if err := s.CheckOwner(in.Operator); err != nil {
			return err
		}
		schema, err := p.registry.Schema(s.EntityType)
		if err != nil {
			return err
		}
		if err := in.ManualMatches.Validate(schema); err != nil {
			return err
		}
		return s.RetainManualMatches(in.ManualMatches, p.now())
	})
	if err != nil {
		getMetrics().structural(err)
		return SaveManualMatchesOutput{}, err
	}

	p.sessionLogger(session, in.Operator).WithField("fields", len(session.ManualMatches)).Info("manual matches saved")
	return SaveManualMatchesOutput{
		ImportID:      session.ID,
		ManualMatches: session.ManualMatches,
	}, nil
}
