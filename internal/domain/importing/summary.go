package importing

import (
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RowOutcome is the terminal classification of one row.
type RowOutcome struct {
	RowNumber int
	Outcome   Outcome
	EntityID  string
	Message   string
}

type RowError struct {
	RowNumber int    `json:"row_number"`
	Message   string `json:"message"`
}

type Summary struct {
	ImportID        string     `json:"import_id"`
	EntityType      EntityType `json:"entity_type"`
	TotalRows       int        `json:"total_rows"`
	ProcessedRows   int        `json:"processed_rows"`
	CreatedCount    int        `json:"created_count"`
	UpdatedCount    int        `json:"updated_count"`
	SkippedCount    int        `json:"skipped_count"`
	FailedCount     int        `json:"failed_count"`
	Errors          []RowError `json:"errors"`
	ErrorsTruncated bool       `json:"errors_truncated"`
	Note            string     `json:"note,omitempty"`
	Cancelled       bool       `json:"cancelled"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

// SummaryBuilder aggregates row outcomes. Counters stay exact; only the
// first maxErrors failure messages are kept.
type SummaryBuilder struct {
	maxErrors int
	summary   Summary
}

func NewSummaryBuilder(importID string, entityType EntityType, totalRows, maxErrors int) *SummaryBuilder {
	if maxErrors < 0 {
		maxErrors = 0
	}
	return &SummaryBuilder{
		maxErrors: maxErrors,
		summary: Summary{
			ImportID:   importID,
			EntityType: entityType,
			TotalRows:  totalRows,
			Errors:     []RowError{},
		},
	}
}

func (b *SummaryBuilder) Add(outcome RowOutcome) {
	s := &b.summary
	s.ProcessedRows++
	switch outcome.Outcome {
	case OutcomeCreated:
		s.CreatedCount++
	case OutcomeUpdated:
		s.UpdatedCount++
	case OutcomeSkipped:
		s.SkippedCount++
	default:
		s.FailedCount++
		if len(s.Errors) < b.maxErrors {
			s.Errors = append(s.Errors, RowError{RowNumber: outcome.RowNumber, Message: outcome.Message})
		} else {
			s.ErrorsTruncated = true
		}
	}
}

func (b *SummaryBuilder) Summary(startedAt, finishedAt time.Time, cancelled bool) Summary {
	out := b.summary
	out.Errors = append([]RowError{}, b.summary.Errors...)
	out.StartedAt = startedAt
	out.FinishedAt = finishedAt
	out.Cancelled = cancelled
	if out.ErrorsTruncated {
		out.Note = fmt.Sprintf("showing the first %d of %d row errors", len(out.Errors), out.FailedCount)
	}
	if cancelled {
		out.Note = joinNote(out.Note, fmt.Sprintf("execution cancelled after %d of %d rows", out.ProcessedRows, out.TotalRows))
	}
	return out
}

func joinNote(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
