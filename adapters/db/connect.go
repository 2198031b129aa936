package db

import (
	"context"
	"fmt"

	"peerscan/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Connect opens and pings a database for the given driver ("postgres" or "sqlite").
func Connect(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", driver))
	}

	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to "+driver, err)
	}
	if driver == "sqlite" {
		// A single writer avoids SQLITE_BUSY and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
