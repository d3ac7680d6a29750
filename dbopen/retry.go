package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// txAttempts bounds RunTx; backoff(i) is the pause after failed attempt i.
var (
	txAttempts = 3
	backoff    = func(i int) time.Duration { return time.Duration(100*(i+1)) * time.Millisecond }
)

// IsBusy reports whether err is SQLite lock contention: SQLITE_BUSY,
// "database is locked" or "database table is locked".
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RunTx runs fn in a transaction, committing when fn returns nil. A busy
// failure, from fn or from the commit, retries the whole transaction up to
// three times with a 100/200 ms pause. Any other error rolls back and is
// returned as-is.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for i := 0; i < txAttempts; i++ {
		if err = runOnce(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if i == txAttempts-1 {
			break
		}
		if werr := sleepCtx(ctx, backoff(i)); werr != nil {
			return fmt.Errorf("dbopen: retry interrupted: %w", werr)
		}
	}
	return fmt.Errorf("dbopen: still busy after %d attempts: %w", txAttempts, err)
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
