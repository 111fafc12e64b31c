package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/go-sql-driver/mysql"
)

// Error categories. Every error returned by this package wraps one of these
// (or is an *UnsupportedDatasourceError) so callers can branch with errors.Is.
var (
	// ErrConfiguration reports a missing or malformed profile field.
	ErrConfiguration = errors.New("invalid datasource configuration")

	// ErrDriverUnavailable reports that no client library is registered for the engine.
	ErrDriverUnavailable = errors.New("driver not installed")

	// ErrInvalidQuery reports a statement rejected by the read-only guard.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrConnection reports a network or authentication failure, either while
	// connecting or on a connection that was already open.
	ErrConnection = errors.New("connection failed")

	// ErrQuery reports an error raised by the engine for an accepted statement,
	// such as a missing table or a type mismatch.
	ErrQuery = errors.New("query failed")
)

// UnsupportedDatasourceError is returned by New for an unknown type tag.
type UnsupportedDatasourceError struct {
	Type string
}

func (e *UnsupportedDatasourceError) Error() string {
	return fmt.Sprintf("unsupported datasource type: %q", e.Type)
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func invalidQueryf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// classify tags an error raised on an open connection with ErrConnection or
// ErrQuery. Errors that already carry a category pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case categorized(err):
		return err
	case isConnectionError(err):
		return fmt.Errorf("%w: %w", ErrConnection, err)
	default:
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}
}

// queryError prefixes a classified err with the failed step.
func queryError(step string, err error) error {
	return fmt.Errorf("%s: %w", step, classify(err))
}

func categorized(err error) bool {
	for _, target := range []error{ErrConfiguration, ErrDriverUnavailable, ErrInvalidQuery, ErrConnection, ErrQuery} {
		if errors.Is(err, target) {
			return true
		}
	}
	var unsupported *UnsupportedDatasourceError
	return errors.As(err, &unsupported)
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
