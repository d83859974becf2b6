package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/leafybank/backend/internal/observability/metrics"
)

const uniqueViolation = "23505"

// ObserveOperation records the duration of a document store call and, when
// err is a genuine failure, its error type.
func ObserveOperation(operation, collection string, startTime time.Time, err error) {
	metrics.DocstoreOperationDurationSeconds.WithLabelValues(operation, collection).Observe(time.Since(startTime).Seconds())

	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return
	}
	metrics.DocstoreOperationErrors.WithLabelValues(operation, collection, errorType(err)).Inc()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func errorType(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "pg_" + pgErr.Code
	}
	return fmt.Sprintf("%T", err)
}
