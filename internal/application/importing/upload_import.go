package importing

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

var supportedSourceExtensions = map[string]struct{}{
	".csv":  {},
	".tsv":  {},
	".txt":  {},
	".xlsx": {},
}

// UploadImportInput carries either an uploaded file (Content) or the path of
// a file already present in the import directory (SourcePath).
type UploadImportInput struct {
	Operator    string
	EntityType  domain.EntityType
	Filename    string
	ContentType string
	Content     io.Reader
	SourcePath  string
}

type UploadImportOutput struct {
	ImportID          string                   `json:"import_id"`
	EntityType        domain.EntityType        `json:"entity_type"`
	Columns           []string                 `json:"columns"`
	SampleRows        []domain.RawRow          `json:"sample_rows"`
	TotalRows         int                      `json:"total_rows"`
	AvailableFields   []domain.FieldDefinition `json:"available_fields"`
	SuggestedMappings []SuggestedMapping       `json:"suggested_mappings"`
}

type UploadImport interface {
	Execute(ctx context.Context, in UploadImportInput) (UploadImportOutput, error)
}

type uploadImport struct {
	pipeline *Pipeline
	parser   TableParser
	source   ImportSource
	newID    func() string
}

func NewUploadImport(pipeline *Pipeline, parser TableParser, source ImportSource) UploadImport {
	return &uploadImport{
		pipeline: pipeline,
		parser:   parser,
		source:   source,
		newID:    func() string { return uuid.NewString() },
	}
}

func (uc *uploadImport) Execute(ctx context.Context, in UploadImportInput) (UploadImportOutput, error) {
	out, err := uc.execute(ctx, in)
	if err != nil {
		getMetrics().structural(err)
	}
	return out, err
}

func (uc *uploadImport) execute(ctx context.Context, in UploadImportInput) (UploadImportOutput, error) {
	p := uc.pipeline
	schema, _, err := p.target(in.EntityType)
	if err != nil {
		return UploadImportOutput{}, err
	}

	content, filename, closeFn, err := uc.open(ctx, in)
	if err != nil {
		return UploadImportOutput{}, err
	}
	defer closeFn()

	table, err := uc.parser.Parse(ctx, filename, in.ContentType, content)
	if err != nil {
		return UploadImportOutput{}, err
	}

	session := domain.NewSession(uc.newID(), in.Operator, schema.EntityType, filename, table, p.now())
	if err := p.sessions.Create(ctx, session); err != nil {
		return UploadImportOutput{}, fmt.Errorf("create import session: %w", err)
	}
	getMetrics().sessionEvent(schema.EntityType, domain.StatusUploaded)

	p.sessionLogger(session, in.Operator).WithFields(logrus.Fields{
		"filename": filename,
		"columns":  len(table.Columns),
		"rows":     len(table.Rows),
	}).Info("import uploaded")

	return UploadImportOutput{
		ImportID:          session.ID,
		EntityType:        session.EntityType,
		Columns:           session.Columns,
		SampleRows:        session.SampleRows(p.cfg.SampleRows),
		TotalRows:         len(session.Rows),
		AvailableFields:   schema.Fields,
		SuggestedMappings: SuggestMapping(schema, session.Columns, p.cfg.SuggestThreshold),
	}, nil
}

func (uc *uploadImport) open(ctx context.Context, in UploadImportInput) (io.Reader, string, func(), error) {
	if in.Content != nil {
		return in.Content, in.Filename, func() {}, nil
	}

	sourcePath := strings.TrimSpace(in.SourcePath)
	if sourcePath == "" || uc.source == nil {
		return nil, "", nil, ErrInvalidImportSource
	}
	if _, ok := supportedSourceExtensions[strings.ToLower(filepath.Ext(sourcePath))]; !ok {
		return nil, "", nil, ErrInvalidImportSource
	}

	reader, err := uc.source.Open(ctx, sourcePath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: %v", ErrInvalidImportSource, err)
	}
	return reader, filepath.Base(sourcePath), func() { _ = reader.Close() }, nil
}
