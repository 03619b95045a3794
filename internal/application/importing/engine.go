package importing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

// Engine applies create, update or skip to resolved rows. Rows sharing a
// natural key run one after another in file order; distinct keys run on a
// bounded pool.
type Engine struct {
	workers    int
	rowTimeout time.Duration
	logger     logrus.FieldLogger
}

func NewEngine(workers int, rowTimeout time.Duration, logger logrus.FieldLogger) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if rowTimeout <= 0 {
		rowTimeout = defaultRowTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{workers: workers, rowTimeout: rowTimeout, logger: logger}
}

// ExecutionResult holds the outcome of every row that reached a terminal
// state, in file order. Cancelled reports that scheduling stopped early.
type ExecutionResult struct {
	Outcomes  []domain.RowOutcome
	Cancelled bool
}

// Run never returns row-scoped errors: they end up in the outcomes. In-flight
// writes are detached from ctx so a cancelled run never leaves a half
// written row.
func (e *Engine) Run(ctx context.Context, schema domain.Schema, store domain.EntityStore, rows []domain.ResolvedRow, updateExisting bool) ExecutionResult {
	outcomes := make([]domain.RowOutcome, len(rows))
	done := make([]bool, len(rows))

	groups, failures := groupRows(schema, rows)
	for i, message := range failures {
		outcomes[i] = domain.RowOutcome{RowNumber: rows[i].Number, Outcome: domain.OutcomeFailed, Message: message}
		done[i] = true
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	cancelled := false
	for _, group := range groups {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		g.Go(func() error {
			e.runGroup(ctx, store, rows, group, updateExisting, outcomes, done)
			return nil
		})
	}
	_ = g.Wait()

	result := ExecutionResult{Outcomes: make([]domain.RowOutcome, 0, len(rows))}
	for i := range rows {
		if done[i] {
			result.Outcomes = append(result.Outcomes, outcomes[i])
			continue
		}
		cancelled = true
	}
	result.Cancelled = cancelled
	return result
}

// runGroup writes only to the slots of its own rows, so groups never share
// an index in outcomes or done.
func (e *Engine) runGroup(
	ctx context.Context,
	store domain.EntityStore,
	rows []domain.ResolvedRow,
	group *rowGroup,
	updateExisting bool,
	outcomes []domain.RowOutcome,
	done []bool,
) {
	writeCtx := context.WithoutCancel(ctx)
	existingID := ""
	looked := false

	for _, idx := range group.indexes {
		if ctx.Err() != nil {
			return
		}
		row := &rows[idx]
		outcome := domain.RowOutcome{RowNumber: row.Number}

		if !looked {
			found, err := callWithTimeout(writeCtx, e.rowTimeout, func(c context.Context) (lookupResult, error) {
				id, ok, err := store.FindExisting(c, group.key)
				return lookupResult{id: id, found: ok}, err
			})
			if err != nil {
				outcome.Outcome = domain.OutcomeFailed
				outcome.Message = rowFailureMessage("find existing", err)
				e.logRowFailure(row, err)
				outcomes[idx], done[idx] = outcome, true
				continue
			}
			looked = true
			if found.found {
				existingID = found.id
			}
		}

		row.ExistingID = existingID
		switch {
		case existingID != "" && !updateExisting:
			outcome.Outcome = domain.OutcomeSkipped
			outcome.EntityID = existingID
		case existingID != "":
			_, err := callWithTimeout(writeCtx, e.rowTimeout, func(c context.Context) (struct{}, error) {
				return struct{}{}, store.Update(c, existingID, row.UpdateValues())
			})
			if err != nil {
				outcome.Outcome = domain.OutcomeFailed
				outcome.Message = rowFailureMessage("update", err)
				e.logRowFailure(row, err)
				break
			}
			outcome.Outcome = domain.OutcomeUpdated
			outcome.EntityID = existingID
		default:
			id, err := callWithTimeout(writeCtx, e.rowTimeout, func(c context.Context) (string, error) {
				return store.Create(c, row.Values)
			})
			if err != nil {
				outcome.Outcome = domain.OutcomeFailed
				outcome.Message = rowFailureMessage("create", err)
				e.logRowFailure(row, err)
				if errors.Is(err, ErrRowTimeout) {
					// The abandoned create may still land; look again before
					// the next row of this key.
					looked = false
				}
				break
			}
			existingID = id
			outcome.Outcome = domain.OutcomeCreated
			outcome.EntityID = id
		}
		outcomes[idx], done[idx] = outcome, true
	}
}

func (e *Engine) logRowFailure(row *domain.ResolvedRow, err error) {
	e.logger.WithError(err).WithField("row", row.Number).Warn("row persistence failed")
}

type lookupResult struct {
	id    string
	found bool
}

// callWithTimeout bounds a collaborator call. A call that outlives the
// timeout is abandoned and reported as ErrRowTimeout.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		ch <- result{value: value, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			var zero T
			return zero, ErrRowTimeout
		}
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ErrRowTimeout
	}
}

func rowFailureMessage(op string, err error) string {
	if errors.Is(err, ErrRowTimeout) {
		return fmt.Sprintf("%s timed out", op)
	}
	return fmt.Sprintf("%s: %v", op, err)
}
