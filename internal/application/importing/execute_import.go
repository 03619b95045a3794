package importing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type ExecuteImportInput struct {
	Operator       string
	ImportID       string
	UpdateExisting bool
	Defaults       map[string]string
	ManualMatches  domain.ManualMatches
}

type ExecuteImport interface {
	Execute(ctx context.Context, in ExecuteImportInput) (domain.Summary, error)
}

type executeImport struct {
	pipeline *Pipeline
}

func NewExecuteImport(pipeline *Pipeline) ExecuteImport {
	return &executeImport{pipeline: pipeline}
}

// Execute runs a mapped session once. Structural problems are returned
// before the session is claimed, so the operator can fix them and retry.
// Once claimed, row failures only show up in the summary. A cancelled run
// returns the partial summary together with ErrExecutionCancelled.
func (uc *executeImport) Execute(ctx context.Context, in ExecuteImportInput) (domain.Summary, error) {
	p := uc.pipeline
	m := getMetrics()

	session, err := p.loadSession(ctx, in.ImportID, in.Operator)
	if err != nil {
		m.structural(err)
		return domain.Summary{}, err
	}
	if err := session.CheckExecutable(); err != nil {
		m.structural(err)
		return domain.Summary{}, err
	}
	schema, store, err := p.target(session.EntityType)
	if err != nil {
		m.structural(err)
		return domain.Summary{}, err
	}

	rows, unmatched, err := p.prepareRows(ctx, session, schema, store, in.Defaults, in.ManualMatches)
	if err != nil {
		m.structural(err)
		return domain.Summary{}, err
	}

	if _, err := p.sessions.Update(ctx, session.ID, func(s *domain.Session) error {
		if err := s.CheckOwner(in.Operator); err != nil {
			return err
		}
		return s.MarkExecuted(p.now())
	}); err != nil {
		m.structural(err)
		return domain.Summary{}, err
	}
	m.sessionEvent(session.EntityType, domain.StatusExecuted)

	logger := p.sessionLogger(session, in.Operator)
	logger.WithFields(logrus.Fields{
		"rows":            len(rows),
		"unmatched":       unmatched.Len(),
		"update_existing": in.UpdateExisting,
	}).Info("import execution started")

	startedAt := p.now()
	result := p.engine.Run(ctx, schema, store, rows, in.UpdateExisting)
	finishedAt := p.now()

	builder := domain.NewSummaryBuilder(session.ID, session.EntityType, len(rows), p.cfg.MaxErrors)
	for _, outcome := range result.Outcomes {
		builder.Add(outcome)
		m.rowsTotal.WithLabelValues(string(session.EntityType), string(outcome.Outcome)).Inc()
		if outcome.Outcome == domain.OutcomeFailed {
			logger.WithField("row", outcome.RowNumber).Debug(outcome.Message)
		}
	}
	summary := builder.Summary(startedAt, finishedAt, result.Cancelled)
	m.executionDuration.WithLabelValues(string(session.EntityType)).Observe(finishedAt.Sub(startedAt).Seconds())

	if p.runs != nil {
		if err := p.runs.Save(context.WithoutCancel(ctx), summary); err != nil {
			logger.WithError(err).Error("save import run failed")
		}
	}

	logger.WithFields(logrus.Fields{
		"processed": summary.ProcessedRows,
		"created":   summary.CreatedCount,
		"updated":   summary.UpdatedCount,
		"skipped":   summary.SkippedCount,
		"failed":    summary.FailedCount,
		"cancelled": summary.Cancelled,
	}).Info("import execution finished")

	if result.Cancelled {
		return summary, fmt.Errorf("%w: %d of %d rows processed", ErrExecutionCancelled, summary.ProcessedRows, summary.TotalRows)
	}
	return summary, nil
}
