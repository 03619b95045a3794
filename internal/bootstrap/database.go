package bootstrap

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mohammadpnp/tabular-import/internal/infrastructure/db/models"
)

// Databases holds both handles onto the same Postgres database: pgx for the
// per-row entity writes, gorm for import-run history.
type Databases struct {
	Gorm *gorm.DB
	Pool *pgxpool.Pool
}

func OpenDatabases(ctx context.Context, databaseURL string) (*Databases, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connect database")
	}
	dbs := &Databases{Gorm: db, Pool: pool}
	if err := db.WithContext(ctx).AutoMigrate(&models.ImportRun{}); err != nil {
		dbs.Close()
		return nil, errors.Wrap(err, "migrate import runs")
	}
	return dbs, nil
}

func (d *Databases) Close() {
	d.Pool.Close()
	if sqlDB, err := d.Gorm.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
