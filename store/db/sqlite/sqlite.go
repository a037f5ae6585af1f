package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/store"
)

// DB is the SQLite implementation of store.Driver. Turn sequences are kept
// as a JSON document column; the Store facade is the single writer per
// conversation, so whole-record replacement is safe.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database and ensures the schema exists.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

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
			turns TEXT NOT NULL DEFAULT '[]'
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
