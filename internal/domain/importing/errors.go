package importing

import (
	"errors"
	"strings"
)

var (
	ErrSessionNotFound        = errors.New("import session not found")
	ErrSessionAlreadyExecuted = errors.New("import session already executed")
	ErrSessionNotMapped       = errors.New("import session has no confirmed mapping")
	ErrSessionForbidden       = errors.New("import session belongs to another operator")
	ErrUnknownEntityType      = errors.New("unknown entity type")
	ErrMalformedFile          = errors.New("malformed file")
	ErrUnsupportedFormat      = errors.New("unsupported file format")
	ErrInvalidMapping         = errors.New("invalid mapping")
	ErrInvalidManualMatch     = errors.New("invalid manual match")
	ErrInvalidSchema          = errors.New("invalid field schema")
	ErrEntityNotFound         = errors.New("entity not found")
	ErrRunNotFound            = errors.New("import run not found")
)

// MalformedFileError reports an upload that has no usable header row.
type MalformedFileError struct {
	Reason string
}

func (e *MalformedFileError) Error() string {
	return "malformed file: " + e.Reason
}

func (e *MalformedFileError) Is(target error) bool {
	return target == ErrMalformedFile
}

// InvalidMappingError lists every problem found in a submitted mapping.
type InvalidMappingError struct {
	Problems []string
}

func (e *InvalidMappingError) Error() string {
	return "invalid mapping: " + strings.Join(e.Problems, "; ")
}

func (e *InvalidMappingError) Is(target error) bool {
	return target == ErrInvalidMapping
}
