// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/encompliance/encompliance/internal/profile"
	"github.com/encompliance/encompliance/store"
	"github.com/encompliance/encompliance/store/db/postgres"
	"github.com/encompliance/encompliance/store/db/sqlite"
)

// NewDBDriver creates a new database driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
}
