package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportRun struct {
	ImportID        string         `gorm:"type:text;primaryKey"`
	EntityType      string         `gorm:"type:text;not null;index"`
	TotalRows       int64          `gorm:"not null;default:0"`
	ProcessedRows   int64          `gorm:"not null;default:0"`
	CreatedCount    int64          `gorm:"not null;default:0"`
	UpdatedCount    int64          `gorm:"not null;default:0"`
	SkippedCount    int64          `gorm:"not null;default:0"`
	FailedCount     int64          `gorm:"not null;default:0"`
	Errors          datatypes.JSON `gorm:"type:jsonb;not null"`
	ErrorsTruncated bool           `gorm:"not null;default:false"`
	Note            *string        `gorm:"type:text"`
	Cancelled       bool           `gorm:"not null;default:false"`
	StartedAt       time.Time
	FinishedAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ImportRun) TableName() string {
	return "import_runs"
}
