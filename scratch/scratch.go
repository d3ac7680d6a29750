// CLAUDE:SUMMARY Request-scoped scratch storage — memory-first spools that roll over to temp files, with counted, exactly-once release.
// CLAUDE:EXPORTS Manager, Config, Resource, ReleaseFunc, Stats, ErrReleased
//
// Package scratch allocates the intermediate storage used while a document is
// transformed: spooled buffers for generated PDFs and archives, and temp files
// for documents that must be parsed from disk.
//
// Every allocation is a Resource with a single Release. Release is idempotent;
// the first call frees the backing storage and later calls return nil. The
// Manager counts opens and releases so leaks are visible in tests.
//
// Usage:
//
//	m := scratch.NewManager(scratch.Config{SpoolThreshold: 1 << 20})
//	sp := m.Spool()
//	defer sp.Release()
//	io.Copy(sp, src)
//	sp.Seek(0, io.SeekStart)
package scratch

import (
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
)

// ErrReleased is returned by I/O on a spool or file after Release.
var ErrReleased = errors.New("scratch: resource already released")

// Resource is an ownership handle over scratch storage.
type Resource interface {
	Release() error
}

// ReleaseFunc adapts a plain function to Resource. The function may run more
// than once if the caller invokes it more than once; wrap it in a Bundle when
// exactly-once matters.
type ReleaseFunc func() error

// Release calls f.
func (f ReleaseFunc) Release() error { return f() }

// Config configures a Manager.
type Config struct {
	// Dir is where disk-backed storage is created (default: os.TempDir()).
	Dir string `json:"dir" yaml:"dir"`

	// SpoolThreshold is the number of bytes a spool keeps in memory before
	// rolling over to a temp file (default: 1 MiB). Zero or negative uses the default.
	SpoolThreshold int64 `json:"spool_threshold" yaml:"spool_threshold"`

	// Logger receives best-effort release failures.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.SpoolThreshold <= 0 {
		c.SpoolThreshold = 1 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats is a snapshot of the Manager's allocation counters.
type Stats struct {
	Opened   int64 `json:"opened"`
	Released int64 `json:"released"`
}

// Live returns the number of resources opened but not yet released.
func (s Stats) Live() int64 { return s.Opened - s.Released }

// Manager hands out scratch resources. It is safe for concurrent use; the
// resources it returns are not and belong to a single request.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	opened   atomic.Int64
	released atomic.Int64
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, logger: cfg.Logger}
}

// Dir returns the directory used for disk-backed storage.
func (m *Manager) Dir() string { return m.cfg.Dir }

// Stats returns the current allocation counters.
func (m *Manager) Stats() Stats {
	return Stats{Opened: m.opened.Load(), Released: m.released.Load()}
}

// Spool returns an empty memory-first spool.
func (m *Manager) Spool() *Spool {
	m.opened.Add(1)
	return &Spool{m: m, threshold: m.cfg.SpoolThreshold}
}

// File returns a spool that is disk-backed from the start, so Path is valid
// immediately. pattern follows os.CreateTemp.
func (m *Manager) File(pattern string) (*Spool, error) {
	f, err := os.CreateTemp(m.cfg.Dir, pattern)
	if err != nil {
		return nil, err
	}
	m.opened.Add(1)
	return &Spool{m: m, file: f, threshold: 0}, nil
}

// Bundle returns an empty Bundle that logs release failures via the Manager's logger.
func (m *Manager) Bundle() *Bundle {
	return NewBundle(m.logger)
}

func (m *Manager) noteRelease() { m.released.Add(1) }
