package pgstore

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrEmptyConnectionString    = errors.New("pgstore: empty connection string, set PG_CONN_URL")
	ErrFailedToParseDBConfig    = errors.New("pgstore: failed to parse db config")
	ErrFailedToOpenDBConnection = errors.New("pgstore: failed to open db connection")
	ErrHealthcheckFailed        = errors.New("pgstore: healthcheck failed")
	ErrFailedToApplyMigrations  = errors.New("pgstore: failed to apply migrations")
)

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
