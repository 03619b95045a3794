package repository

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/db/models"
)

// ImportRunRepository keeps the summary of every finished execution so it
// can be fetched after the session is gone.
type ImportRunRepository struct {
	db *gorm.DB
}

func NewImportRunRepository(db *gorm.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

func (r *ImportRunRepository) Save(ctx context.Context, summary domain.Summary) error {
	run, err := toImportRun(summary)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&run).Error
	if err != nil {
		return errors.Wrap(err, "save import run")
	}
	return nil
}

func (r *ImportRunRepository) Get(ctx context.Context, importID string) (domain.Summary, error) {
	var run models.ImportRun
	err := r.db.WithContext(ctx).Where("import_id = ?", importID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Summary{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.Summary{}, errors.Wrap(err, "get import run")
	}
	return toSummary(run)
}

func toImportRun(s domain.Summary) (models.ImportRun, error) {
	rowErrors := s.Errors
	if rowErrors == nil {
		rowErrors = []domain.RowError{}
	}
	encoded, err := json.Marshal(rowErrors)
	if err != nil {
		return models.ImportRun{}, errors.Wrap(err, "encode row errors")
	}

	run := models.ImportRun{
		ImportID:        s.ImportID,
		EntityType:      string(s.EntityType),
		TotalRows:       int64(s.TotalRows),
		ProcessedRows:   int64(s.ProcessedRows),
		CreatedCount:    int64(s.CreatedCount),
		UpdatedCount:    int64(s.UpdatedCount),
		SkippedCount:    int64(s.SkippedCount),
		FailedCount:     int64(s.FailedCount),
		Errors:          datatypes.JSON(encoded),
		ErrorsTruncated: s.ErrorsTruncated,
		Cancelled:       s.Cancelled,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
	}
	if s.Note != "" {
		note := s.Note
		run.Note = &note
	}
	return run, nil
}

func toSummary(run models.ImportRun) (domain.Summary, error) {
	rowErrors := []domain.RowError{}
	if len(run.Errors) > 0 {
		if err := json.Unmarshal(run.Errors, &rowErrors); err != nil {
			return domain.Summary{}, errors.Wrap(err, "decode row errors")
		}
	}

	s := domain.Summary{
		ImportID:        run.ImportID,
		EntityType:      domain.EntityType(run.EntityType),
		TotalRows:       int(run.TotalRows),
		ProcessedRows:   int(run.ProcessedRows),
		CreatedCount:    int(run.CreatedCount),
		UpdatedCount:    int(run.UpdatedCount),
		SkippedCount:    int(run.SkippedCount),
		FailedCount:     int(run.FailedCount),
		Errors:          rowErrors,
		ErrorsTruncated: run.ErrorsTruncated,
		Cancelled:       run.Cancelled,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
	if run.Note != nil {
		s.Note = *run.Note
	}
	return s, nil
}
