package scratch

import (
	"errors"
	"log/slog"
	"sync"
)

// Bundle composes several resources under one Release. Resources are released
// in reverse order of Add. Release runs exactly once; a resource added after
// that is released on the spot.
type Bundle struct {
	mu       sync.Mutex
	items    []Resource
	released bool
	logger   *slog.Logger
}

// NewBundle creates an empty Bundle. A nil logger uses slog.Default().
func NewBundle(logger *slog.Logger) *Bundle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bundle{logger: logger}
}

// Add transfers ownership of r to the bundle.
func (b *Bundle) Add(r Resource) {
	if r == nil {
		return
	}
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		if err := r.Release(); err != nil {
			b.logger.Warn("scratch: late release failed", "error", err)
		}
		return
	}
	b.items = append(b.items, r)
	b.mu.Unlock()
}

// Len returns the number of resources currently held.
func (b *Bundle) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Released reports whether Release has run.
func (b *Bundle) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Release releases every held resource. Failures are logged and joined into
// the returned error; a failing resource never stops the others from being
// released. Calls after the first return nil.
func (b *Bundle) Release() error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil
	}
	b.released = true
	items := b.items
	b.items = nil
	b.mu.Unlock()

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		if err := items[i].Release(); err != nil {
			b.logger.Warn("scratch: release failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
