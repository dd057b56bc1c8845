package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes the store reacts to
const (
	pgErrUniqueViolation       = "23505"
	pgErrSerializationFailure  = "40001"
	pgErrDeadlockDetected      = "40P01"
	pgErrUndefinedTable        = "42P01"
	pgErrLockNotAvailable      = "55P03"
	pgErrAdminShutdown         = "57P01"
	pgErrCrashShutdown         = "57P02"
	pgErrCannotConnectNow      = "57P03"
	pgErrConnectionClassPrefix = "08"
)

// classify maps driver errors onto the store sentinels, keeping the original
// message for logs.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrConflict, ErrStoreUnavailable, ErrTableNotFound} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgErrUndefinedTable:
			return fmt.Errorf("%w: %s", ErrTableNotFound, pgErr.Message)
		case pgErr.Code == pgErrSerializationFailure,
			pgErr.Code == pgErrDeadlockDetected,
			pgErr.Code == pgErrLockNotAvailable,
			pgErr.Code == pgErrUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case pgErr.Code == pgErrAdminShutdown,
			pgErr.Code == pgErrCrashShutdown,
			pgErr.Code == pgErrCannotConnectNow,
			strings.HasPrefix(pgErr.Code, pgErrConnectionClassPrefix):
			return fmt.Errorf("%w: %s", ErrStoreUnavailable, pgErr.Message)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
