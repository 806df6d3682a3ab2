package storage

import (
	"context"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

// NewPostgresStorage connects through the pgx database/sql driver and
// applies pending migrations.
func NewPostgresStorage(dsn string, logger internal.Logger) (*SQLStorage, error) {
	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := Migrate(ctx, db.DB, DialectPostgres); err != nil {
		logger.Errorf("failed to migrate postgres: %v", err)
		db.Close()
		return nil, err
	}
	return NewSQLStorage(db, DialectPostgres, logger), nil
}
