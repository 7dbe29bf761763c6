package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrCodeTaken means another active session claimed the join code first.
	ErrCodeTaken = errors.New("join code already in use")
	// ErrHasAttempts means a session delete lost a race with a join.
	ErrHasAttempts = errors.New("session has attempts")
	// ErrAttemptFinished means the attempt was finalized before this write.
	ErrAttemptFinished = errors.New("attempt already finished")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}
