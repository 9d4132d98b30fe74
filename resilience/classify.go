package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error classes that indicate contention worth retrying: the same
// statement can succeed once the competing transaction finishes.
var retryablePgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"53300": true, // too_many_connections
}

const pgUniqueViolation = "23505"

// IsRetryableDBError reports whether a storage error is transient contention.
// Unique violations are explicitly not retryable: they are the last line of
// defense against a missed race and must surface as a conflict.
func IsRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsUniqueViolation(err) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if retryablePgCodes[pgErr.Code] {
			return true
		}
		// class 08: connection exceptions
		return strings.HasPrefix(pgErr.Code, "08")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, token := range []string{
		"deadlock",
		"lock wait timeout",
		"serialization failure",
		"connection reset",
		"connection refused",
		"broken pipe",
	} {
		if strings.Contains(msg, token) {
			return true
		}
	}

	return false
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// IsRetryableGatewayError covers network failures, timeouts, and gateway-side
// 5xx/429 responses. Declines and validation failures are final.
func IsRetryableGatewayError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, token := range []string{
		"timeout",
		"temporarily unavailable",
		"service unavailable",
		"too many requests",
		"connection reset",
		"connection refused",
		"status code: 5",
	} {
		if strings.Contains(msg, token) {
			return true
		}
	}

	return false
}
