package deppkg_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

func TestRetryPolicySucceedsAfterTransientErrors(t *testing.T) {
	require := require.New(t)

	calls := 0
	err := fastRetry().Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("query failed: %w", driver.ErrBadConn)
		}
		return nil
	})
	require.NoError(err)
	require.Equal(3, calls)
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	require := require.New(t)

	errPermanent := errors.New("duplicate key")
	calls := 0
	err := fastRetry().Do(context.Background(), "test", func() error {
		calls++
		return errPermanent
	})
	require.ErrorIs(err, errPermanent)
	require.Equal(1, calls)
}

func TestRetryPolicyHonoursAttempts(t *testing.T) {
	require := require.New(t)

	policy := deppkg.RetryPolicy{
		Attempts:  5,
		Delay:     time.Millisecond,
		Retryable: func(error) bool { return true },
	}
	calls := 0
	err := policy.Do(context.Background(), "test", func() error {
		calls++
		return errors.New("still down")
	})
	require.EqualError(err, "still down")
	require.Equal(5, calls)
}

func TestRetryPolicyStopsWhenContextIsDone(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	policy := deppkg.RetryPolicy{
		Attempts:  10,
		Delay:     time.Millisecond,
		Retryable: func(error) bool { return true },
	}
	calls := 0
	err := policy.Do(ctx, "test", func() error {
		calls++
		cancel()
		return driver.ErrBadConn
	})
	require.Error(err)
	require.Equal(1, calls)
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	assert := assert.New(t)

	policy := deppkg.NewRetryPolicy(deppkg.RetryConfig{})
	assert.Equal(3, policy.Attempts)
	assert.Equal(200*time.Millisecond, policy.Delay)
	assert.NotNil(policy.Retryable)

	policy = deppkg.NewRetryPolicy(deppkg.RetryConfig{Attempts: 5, Delay: deppkg.Duration{Duration: time.Second}})
	assert.Equal(5, policy.Attempts)
	assert.Equal(time.Second, policy.Delay)
}

type sqliteError struct {
	code int
}

func (e *sqliteError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e *sqliteError) Code() int     { return e.code }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("tx: %w", driver.ErrBadConn), true},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite busy", &sqliteError{code: 5}, true},
		{"sqlite busy extended", &sqliteError{code: 5 | 1<<8}, true},
		{"sqlite constraint", &sqliteError{code: 19}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deppkg.IsTransient(tt.err))
		})
	}
}
