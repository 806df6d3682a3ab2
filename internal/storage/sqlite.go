package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

// NewSQLiteStorage opens (or creates) the database at path and applies
// pending migrations. Transactions take the write lock at BEGIN so two
// award requests never interleave their read and write phases.
func NewSQLiteStorage(path string, logger internal.Logger) (*SQLStorage, error) {
	ctx := context.Background()
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		logger.Errorf("failed to open sqlite %s: %v", path, err)
		return nil, err
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := Migrate(ctx, db.DB, DialectSQLite); err != nil {
		logger.Errorf("failed to migrate sqlite: %v", err)
		db.Close()
		return nil, err
	}
	return NewSQLStorage(db, DialectSQLite, logger), nil
}
