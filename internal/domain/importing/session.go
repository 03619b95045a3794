package importing

import "time"

type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusMapped    Status = "mapped"
	StatusExecuted  Status = "executed"
	StatusDiscarded Status = "discarded"
)

// RawRow is one spreadsheet row keyed by header name.
type RawRow map[string]string

// Table is the parsed content of an uploaded file. RowNumbers holds, for
// each row, its distance from the header row in the file; blank rows that
// were dropped keep their number.
type Table struct {
	Columns    []string
	Rows       []RawRow
	RowNumbers []int
}

// Session tracks one uploaded file from upload to execution.
type Session struct {
	ID            string        `json:"id"`
	Owner         string        `json:"owner,omitempty"`
	EntityType    EntityType    `json:"entity_type"`
	Filename      string        `json:"filename,omitempty"`
	Columns       []string      `json:"columns"`
	Rows          []RawRow      `json:"rows"`
	RowNumbers    []int         `json:"row_numbers,omitempty"`
	Mapping       Mapping       `json:"mapping,omitempty"`
	ManualMatches ManualMatches `json:"manual_matches,omitempty"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func NewSession(id, owner string, entityType EntityType, filename string, table Table, now time.Time) *Session {
	return &Session{
		ID:         id,
		Owner:      owner,
		EntityType: entityType,
		Filename:   filename,
		Columns:    table.Columns,
		Rows:       table.Rows,
		RowNumbers: table.RowNumbers,
		Status:     StatusUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Session) IsTerminal() bool {
	return s.Status == StatusExecuted || s.Status == StatusDiscarded
}

// CheckOwner rejects access from an operator other than the one that
// uploaded the file. Sessions without owner are open to everyone.
func (s *Session) CheckOwner(operator string) error {
	if s.Owner != "" && s.Owner != operator {
		return ErrSessionForbidden
	}
	return nil
}

func (s *Session) SampleRows(n int) []RawRow {
	if n > len(s.Rows) {
		n = len(s.Rows)
	}
	if n < 0 {
		n = 0
	}
	out := make([]RawRow, 0, n)
	for _, row := range s.Rows[:n] {
		out = append(out, row.clone())
	}
	return out
}

// ApplyMapping replaces the current mapping wholesale and moves the session
// to mapped. The session is left untouched when the mapping is invalid.
func (s *Session) ApplyMapping(schema Schema, pairs []ColumnMapping, now time.Time) error {
	if s.IsTerminal() {
		return ErrSessionNotFound
	}
	mapping, err := NewMapping(schema, s.Columns, pairs)
	if err != nil {
		return err
	}
	s.Mapping = mapping
	s.Status = StatusMapped
	s.UpdatedAt = now
	return nil
}

// RetainManualMatches merges overrides into the ones already stored on the
// session; later values win.
func (s *Session) RetainManualMatches(matches ManualMatches, now time.Time) error {
	if s.IsTerminal() {
		return ErrSessionNotFound
	}
	s.ManualMatches = s.ManualMatches.Merge(matches)
	s.UpdatedAt = now
	return nil
}

// CheckExecutable reports why the session cannot be executed, if it can't.
func (s *Session) CheckExecutable() error {
	switch s.Status {
	case StatusMapped:
		return nil
	case StatusExecuted:
		return ErrSessionAlreadyExecuted
	case StatusDiscarded:
		return ErrSessionNotFound
	default:
		return ErrSessionNotMapped
	}
}

func (s *Session) MarkExecuted(now time.Time) error {
	if err := s.CheckExecutable(); err != nil {
		return err
	}
	s.Status = StatusExecuted
	s.Rows = nil
	s.RowNumbers = nil
	s.UpdatedAt = now
	return nil
}

// Discard ends the session. Discarding a terminal session is a no-op.
// Terminal sessions keep their metadata but drop the uploaded rows.
func (s *Session) Discard(now time.Time) {
	if s.IsTerminal() {
		return
	}
	s.Status = StatusDiscarded
	s.Rows = nil
	s.RowNumbers = nil
	s.UpdatedAt = now
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) Clone() *Session {
	out := *s
	out.Columns = append([]string(nil), s.Columns...)
	out.RowNumbers = append([]int(nil), s.RowNumbers...)
	out.Rows = make([]RawRow, len(s.Rows))
	for i, row := range s.Rows {
		out.Rows[i] = row.clone()
	}
	out.Mapping = s.Mapping.clone()
	out.ManualMatches = s.ManualMatches.Merge(nil)
	return &out
}

// RowNumber reports the file row number of Rows[i]. Sessions created
// without numbers count data rows from 1.
func (s *Session) RowNumber(i int) int {
	if i < len(s.RowNumbers) {
		return s.RowNumbers[i]
	}
	return i + 1
}

func (r RawRow) clone() RawRow {
	out := make(RawRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
