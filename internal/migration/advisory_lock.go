package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	advisoryLockKey   int64 = 7_301_554_208
	lockRetryInterval       = 500 * time.Millisecond
)

var ErrLockHeld = errors.New("migration_lock_held")

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock takes the session level migration lock on conn, retrying until ctx
// expires. The lock belongs to the session, so it must be released on the same conn.
func acquireAdvisoryLock(ctx context.Context, conn *sql.Conn) (unlockFunc, error) {
	if conn == nil {
		return nil, errors.New("advisory lock requires a database connection")
	}

	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
			return nil, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockHeld, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	return func(unlockCtx context.Context) error {
		var released bool
		if err := conn.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", advisoryLockKey).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}
