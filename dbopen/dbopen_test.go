package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func pragmaInt(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var v int
	if err := db.QueryRow("PRAGMA " + name).Scan(&v); err != nil {
		t.Fatalf("PRAGMA %s: %v", name, err)
	}
	return v
}

func TestPragmas(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		busy    int
		syncVal int // NORMAL = 1, FULL = 2
	}{
		{"defaults", nil, 10_000, 1},
		{"busy timeout", []Option{WithBusyTimeout(2500)}, 2500, 1},
		{"synchronous full", []Option{WithSynchronous("FULL")}, 10_000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := OpenMemory(t, tt.opts...)
			if got := pragmaInt(t, db, "busy_timeout"); got != tt.busy {
				t.Errorf("busy_timeout = %d, want %d", got, tt.busy)
			}
			if got := pragmaInt(t, db, "synchronous"); got != tt.syncVal {
				t.Errorf("synchronous = %d, want %d", got, tt.syncVal)
			}
		})
	}
}

func TestOpen_FileWithWAL(t *testing.T) {
	// WHAT: A journal file deep in a missing directory is created and runs in WAL.
	path := filepath.Join(t.TempDir(), "var", "pagekit", "journal.db")
	db, err := Open(path, WithMkdirAll(), WithSchema(`CREATE TABLE IF NOT EXISTS j (id TEXT PRIMARY KEY)`))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO j (id) VALUES ('req_1')`); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}
}

func TestOpen_BadSchema(t *testing.T) {
	if _, err := Open(Memory, WithSchema(`CREATE TABLE (`)); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestOpenMemory_SharedAcrossQueries(t *testing.T) {
	// WHAT: Rows written by one statement are visible to the next.
	// WHY: Each :memory: connection would otherwise be its own database.
	db := OpenMemory(t, WithSchema(`CREATE TABLE t (id INTEGER)`))
	for i := 0; i < 5; i++ {
		if _, err := db.Exec(`INSERT INTO t (id) VALUES (?)`, i); err != nil {
			t.Fatal(err)
		}
	}
	if n := pragmaCount(t, db); n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
}

func pragmaCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestIsBusy(t *testing.T) {
	tests := map[string]bool{
		"":                                  false,
		"no such table":                     false,
		"SQLITE_BUSY":                       true,
		"sqlite: step: database is locked":  true,
		"database table is locked (6)":      true,
		"commit: SQLITE_BUSY (5) after 10s": true,
	}
	for msg, want := range tests {
		var err error
		if msg != "" {
			err = errors.New(msg)
		}
		if got := IsBusy(err); got != want {
			t.Errorf("IsBusy(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestRunTx_CommitAndRollback(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE t (id INTEGER)`))
	ctx := context.Background()

	if err := RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (id) VALUES (1)`)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := RunTx(ctx, db, func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO t (id) VALUES (2)`)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n := pragmaCount(t, db); n != 1 {
		t.Fatalf("count = %d, want 1 after rollback", n)
	}
}

func TestRunTx_RetriesBusy(t *testing.T) {
	// WHAT: Busy failures are retried; other failures are not.
	old := backoff
	backoff = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { backoff = old })
	db := OpenMemory(t)
	ctx := context.Background()

	calls := 0
	err := RunTx(ctx, db, func(*sql.Tx) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err = %v after %d calls, want success on the third", err, calls)
	}

	calls = 0
	err = RunTx(ctx, db, func(*sql.Tx) error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if !IsBusy(err) || calls != txAttempts {
		t.Fatalf("err = %v after %d calls", err, calls)
	}

	calls = 0
	RunTx(ctx, db, func(*sql.Tx) error {
		calls++
		return errors.New("constraint failed")
	})
	if calls != 1 {
		t.Fatalf("non-busy error retried %d times", calls)
	}
}

func TestRunTx_CancelledContext(t *testing.T) {
	db := OpenMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := RunTx(ctx, db, func(*sql.Tx) error { return nil }); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
