package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/db/models"
	"github.com/mohammadpnp/tabular-import/internal/infrastructure/repository"
)

func TestImportRunRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "failed to connect db")
	require.NoError(t, db.AutoMigrate(&models.ImportRun{}))

	repo := repository.NewImportRunRepository(db)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	summary := domain.Summary{
		ImportID:      uuid.NewString(),
		EntityType:    "contact",
		TotalRows:     3,
		ProcessedRows: 3,
		CreatedCount:  2,
		FailedCount:   1,
		Errors:        []domain.RowError{{RowNumber: 3, Message: `birthday: "x" is not a valid date`}},
		StartedAt:     started,
		FinishedAt:    started.Add(time.Second),
	}
	require.NoError(t, repo.Save(ctx, summary))

	got, err := repo.Get(ctx, summary.ImportID)
	require.NoError(t, err)
	assert.Equal(t, summary.CreatedCount, got.CreatedCount)
	assert.Equal(t, summary.Errors, got.Errors)
	assert.True(t, summary.StartedAt.Equal(got.StartedAt))
	assert.Empty(t, got.Note)

	summary.Note = "execution cancelled after 3 of 3 rows"
	summary.Cancelled = true
	require.NoError(t, repo.Save(ctx, summary))

	got, err = repo.Get(ctx, summary.ImportID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
	assert.Equal(t, summary.Note, got.Note)

	_, err = repo.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
