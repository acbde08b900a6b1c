package store

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// retryBudget is the bounded retry budget for transient contention:
// 3 attempts with exponential backoff starting at 10ms.
const retryBudget = 3

var initialBackoff = 10 * time.Millisecond

// isBusyOrLocked reports whether err is a SQLite busy/locked error,
// the class of error the retry budget exists for.
func isBusyOrLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// withRetry runs fn up to retryBudget times, backing off exponentially
// between attempts that fail with a transient (busy/locked) error. Any
// other error, or exhaustion of the budget, is returned immediately.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < retryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusyOrLocked(err) {
			return err
		}
	}
	return lastErr
}
