package deppkg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// RetryPolicy retries an operation a bounded number of times with a fixed
// delay, as long as the returned error is considered retryable.
type RetryPolicy struct {
	Attempts  int
	Delay     time.Duration
	Retryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		Delay:     200 * time.Millisecond,
		Retryable: IsTransient,
	}
}

func NewRetryPolicy(config RetryConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if config.Attempts > 0 {
		policy.Attempts = config.Attempts
	}
	if config.Delay.Duration > 0 {
		policy.Delay = config.Delay.Duration
	}
	return policy
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			err := fn()
			if err == nil {
				return nil
			}
			if p.Retryable == nil || !p.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, wait time.Duration) {
			slog.Error(
				"database connection error, will retry",
				"op", op,
				"attempt", attempt,
				"attempts", attempts,
				"wait", wait,
				"err", err,
			)
		},
	)
}

// IsTransient reports whether err is a connectivity level datastore failure
// that is worth retrying. Constraint and data errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// sqlite result codes, the primary code lives in the low byte
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}

	return false
}

const (
	sqliteBusy   = 5
	sqliteLocked = 6
)
