// Package postgres implements store.Driver on PostgreSQL, the production
// database.
package postgres

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/encompliance/encompliance/internal/profile"
	"github.com/encompliance/encompliance/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a connection to the PostgreSQL instance named by the
// profile DSN and verifies it with a ping.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	postgresDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	if err := postgresDB.Ping(); err != nil {
		_ = postgresDB.Close()
		return nil, errors.Wrap(err, "failed to ping db")
	}

	return &DB{db: postgresDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// placeholder returns the PostgreSQL parameter marker for position n (1-based).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
