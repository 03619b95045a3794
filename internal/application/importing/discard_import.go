package importing

import (
	"context"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type DiscardImportInput struct {
	Operator string
	ImportID string
}

type DiscardImportOutput struct {
	ImportID string        `json:"import_id"`
	Status   domain.Status `json:"status"`
}

type DiscardImport interface {
	Execute(ctx context.Context, in DiscardImportInput) (DiscardImportOutput, error)
}

type discardImport struct {
	pipeline *Pipeline
}

func NewDiscardImport(pipeline *Pipeline) DiscardImport {
	return &discardImport{pipeline: pipeline}
}

// Execute is a no-op on a session that already reached a terminal state.
func (uc *discardImport) Execute(ctx context.Context, in DiscardImportInput) (DiscardImportOutput, error) {
	p := uc.pipeline
	wasActive := false
	session, err := p.sessions.Update(ctx, in.ImportID, func(s *domain.Session) error {
		if err := s.CheckOwner(in.Operator); err != nil {
			return err
		}
		wasActive = !s.IsTerminal()
		s.Discard(p.now())
		return nil
	})
	if err != nil {
		getMetrics().structural(err)
		return DiscardImportOutput{}, err
	}

	if wasActive {
		getMetrics().sessionEvent(session.EntityType, domain.StatusDiscarded)
		p.sessionLogger(session, in.Operator).Info("import discarded")
	}
	return DiscardImportOutput{ImportID: session.ID, Status: session.Status}, nil
}
