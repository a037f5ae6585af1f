package postgres

import (
	"context"
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/store"
)

// DB is the PostgreSQL implementation of store.Driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the PostgreSQL connection and ensures the schema exists.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	driver := &DB{db: db, profile: profile}
	if err := driver.migrate(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return driver, nil
}

func (d *DB) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS conversation (
			uid TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			preferred_language TEXT NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			turn_count INTEGER NOT NULL DEFAULT 0,
			turns JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_updated_ts ON conversation (updated_ts);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}
