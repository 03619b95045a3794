package importing

import "errors"

var (
	ErrInvalidImportSource      = errors.New("invalid import source")
	ErrLookupFailed             = errors.New("reference lookup failed")
	ErrExecutionCancelled       = errors.New("import execution cancelled")
	ErrManualMatchesNotRetained = errors.New("manual matches are supplied at execution time only")
	ErrRowTimeout               = errors.New("row persistence timed out")
	ErrMissingEntityStore       = errors.New("no entity store registered")
)
