// Package dbopen opens the SQLite database behind the request journal.
//
// File databases carry their pragmas in the DSN so every pooled connection
// gets them (journal_mode WAL, busy_timeout 10000 ms, synchronous NORMAL).
// The in-memory database used by tests is pinned to one connection and has
// the same pragmas applied once.
//
//	db, err := dbopen.Open("var/journal.db", dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

type options struct {
	busyTimeoutMS int
	synchronous   string
	mkdirAll      bool
	schema        []string
}

// Option tunes Open.
type Option func(*options)

// WithBusyTimeout overrides the 10 s busy timeout.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeoutMS = ms } }

// WithSynchronous overrides synchronous=NORMAL, e.g. with "FULL".
func WithSynchronous(mode string) Option { return func(o *options) { o.synchronous = mode } }

// WithMkdirAll creates the parent directory of a file database.
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// WithSchema runs DDL after opening. Repeatable; statements run in order.
func WithSchema(ddl string) Option { return func(o *options) { o.schema = append(o.schema, ddl) } }

func (o *options) pragmas() [][2]string {
	return [][2]string{
		{"journal_mode", "WAL"},
		{"busy_timeout", fmt.Sprint(o.busyTimeoutMS)},
		{"synchronous", o.synchronous},
	}
}

func (o *options) dsn(path string) string {
	parts := make([]string, 0, 3)
	for _, p := range o.pragmas() {
		parts = append(parts, fmt.Sprintf("_pragma=%s(%s)", p[0], p[1]))
	}
	return path + "?" + strings.Join(parts, "&")
}

// Open opens path with the modernc driver, applies the schema and pings.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := options{busyTimeoutMS: 10_000, synchronous: "NORMAL"}
	for _, fn := range opts {
		fn(&o)
	}

	db, err := connect(path, &o)
	if err != nil {
		return nil, err
	}
	for _, ddl := range o.schema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	return db, nil
}

func connect(path string, o *options) (*sql.DB, error) {
	if path != Memory {
		if o.mkdirAll {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("dbopen: mkdir: %w", err)
			}
		}
		db, err := sql.Open("sqlite", o.dsn(path))
		if err != nil {
			return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
		}
		return db, nil
	}

	db, err := sql.Open("sqlite", Memory)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open memory: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	for _, p := range o.pragmas() {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p[0], p[1])); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: pragma %s: %w", p[0], err)
		}
	}
	return db, nil
}

// OpenMemory is Open(Memory) for tests; the database closes on cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(Memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
