// Package storegate serializes all write transactions against the
// single-writer embedded store process-wide (spec.md §4.1).
package storegate

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"sync"
	"time"
)

const maxAttempts = 10

// Gate is a process-wide mutual-exclusion primitive around write
// transactions, combined with a retry-with-backoff policy for transient
// busy/locked errors from the single-writer store. Grounded on internal/
// httpclient.DoWithRetry's attempt loop and internal/httpclient.HostSemaphore's
// shared-mutex-keyed-resource pattern, generalized from per-host HTTP
// concurrency to the single global write lock.
type Gate struct {
	mu sync.Mutex
	db *sql.DB
}

// New returns a Gate serializing writes against db. db should be the
// store's single-connection write pool (internal/store.Store.WriteDB).
func New(db *sql.DB) *Gate {
	return &Gate{db: db}
}

// WithWriteLock acquires the gate, begins a transaction, runs fn, and
// commits on success. On a transient "database is locked"/"database is
// busy" error it retries up to 10 times with backoff min(5s, 100ms·attempt²),
// re-acquiring the gate each attempt. Non-transient errors are returned
// immediately without retry.
func (g *Gate) WithWriteLock(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := g.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err

		wait := backoff(attempt)
		log.Printf("storegate: transient error (attempt %d/%d); retrying in %s: %v",
			attempt, maxAttempts, wait, err)
		if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}

func (g *Gate) attempt(ctx context.Context, fn func(tx *sql.Tx) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// backoff returns min(5000ms, 100ms·attempt^2), per spec.md §4.1.
func backoff(attempt int) time.Duration {
	d := time.Duration(100*attempt*attempt) * time.Millisecond
	if max := 5 * time.Second; d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// isTransient reports whether err looks like a SQLite busy/locked error.
// modernc.org/sqlite surfaces these as plain errors whose message contains
// "database is locked" or "database is busy"; there is no typed sentinel to
// compare against with errors.Is, so this matches on message the same way
// the teacher's httpclient classifies retriable HTTP status codes by value
// rather than by a typed taxonomy.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}
