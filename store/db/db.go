package db

import (
	"github.com/pkg/errors"

	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/store/db/memdb"
	"github.com/parleyhq/parley/store/db/postgres"
	"github.com/parleyhq/parley/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "memory":
		driver = memdb.NewDB()
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
