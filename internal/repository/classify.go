package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	appErrors "github.com/unclebandit/campaign-launch-api/internal/errors"
)

// classify wraps a driver error in the taxonomy kind that matches it.
// SQLSTATE class 23 and SQLITE_CONSTRAINT are integrity violations; any other
// error raised by the database server is operational.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		pqErr     *pq.Error
		pgErr     *pgconn.PgError
		sqliteErr *msqlite.Error
	)
	switch {
	case errors.As(err, &pqErr):
		if pqErr.Code.Class() == "23" {
			return appErrors.NewDatabase(appErrors.KindIntegrity, op, err)
		}
		return appErrors.NewDatabase(appErrors.KindOperational, op, err)
	case errors.As(err, &pgErr):
		if strings.HasPrefix(pgErr.Code, "23") {
			return appErrors.NewDatabase(appErrors.KindIntegrity, op, err)
		}
		return appErrors.NewDatabase(appErrors.KindOperational, op, err)
	case errors.As(err, &sqliteErr):
		// extended result codes carry the primary code in the low byte
		if sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
			return appErrors.NewDatabase(appErrors.KindIntegrity, op, err)
		}
		return appErrors.NewDatabase(appErrors.KindOperational, op, err)
	default:
		return appErrors.NewDatabase(appErrors.KindDatabase, op, err)
	}
}
