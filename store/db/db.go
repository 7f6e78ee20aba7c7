package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/store"
	"github.com/hrygo/strawbean/store/db/memory"
	"github.com/hrygo/strawbean/store/db/postgres"
	"github.com/hrygo/strawbean/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// sqlite is the default for single-host installs, postgres for shared
// deployments, and memory keeps nothing across restarts.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "memory":
		driver = memory.NewDB()
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite', 'postgres' and 'memory' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
