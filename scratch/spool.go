package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Spool is a seekable read/write buffer. It starts in memory and moves to a
// temp file once its size would exceed the Manager's SpoolThreshold.
// A Spool is not safe for concurrent use.
type Spool struct {
	m         *Manager
	threshold int64

	mem  []byte
	pos  int64
	file *os.File

	once     sync.Once
	released bool
}

// Write writes p at the current position, rolling over to disk if needed.
func (s *Spool) Write(p []byte) (int, error) {
	if s.released {
		return 0, ErrReleased
	}
	if s.file == nil && s.pos+int64(len(p)) > s.threshold {
		if err := s.rollover(); err != nil {
			return 0, err
		}
	}
	if s.file != nil {
		return s.file.Write(p)
	}
	end := s.pos + int64(len(p))
	if end > int64(len(s.mem)) {
		if end > int64(cap(s.mem)) {
			grown := make([]byte, end, 2*end)
			copy(grown, s.mem)
			s.mem = grown
		} else {
			s.mem = s.mem[:end]
		}
	}
	copy(s.mem[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

// Read reads from the current position.
func (s *Spool) Read(p []byte) (int, error) {
	if s.released {
		return 0, ErrReleased
	}
	if s.file != nil {
		return s.file.Read(p)
	}
	if s.pos >= int64(len(s.mem)) {
		return 0, io.EOF
	}
	n := copy(p, s.mem[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// Seek implements io.Seeker.
func (s *Spool) Seek(offset int64, whence int) (int64, error) {
	if s.released {
		return 0, ErrReleased
	}
	if s.file != nil {
		return s.file.Seek(offset, whence)
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.mem)) + offset
	default:
		return 0, fmt.Errorf("scratch: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("scratch: negative position")
	}
	s.pos = abs
	return abs, nil
}

// Rewind seeks back to the start.
func (s *Spool) Rewind() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Size returns the number of bytes held.
func (s *Spool) Size() (int64, error) {
	if s.released {
		return 0, ErrReleased
	}
	if s.file != nil {
		info, err := s.file.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
	return int64(len(s.mem)), nil
}

// OnDisk reports whether the spool has rolled over to a temp file.
func (s *Spool) OnDisk() bool { return s.file != nil }

// Path returns the temp file path, or "" while the spool is in memory.
func (s *Spool) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Sync flushes a disk-backed spool to stable storage. No-op in memory.
func (s *Spool) Sync() error {
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// Release frees the spool's storage. Only the first call has any effect.
func (s *Spool) Release() error {
	var err error
	s.once.Do(func() {
		s.released = true
		s.mem = nil
		if s.file != nil {
			name := s.file.Name()
			cerr := s.file.Close()
			rerr := os.Remove(name)
			if rerr != nil && errors.Is(rerr, os.ErrNotExist) {
				rerr = nil
			}
			err = errors.Join(cerr, rerr)
			s.file = nil
		}
		s.m.noteRelease()
	})
	return err
}

func (s *Spool) rollover() error {
	f, err := os.CreateTemp(s.m.cfg.Dir, "pagekit-spool-*")
	if err != nil {
		return fmt.Errorf("scratch: rollover: %w", err)
	}
	if _, err := f.Write(s.mem); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("scratch: rollover: %w", err)
	}
	if _, err := f.Seek(s.pos, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("scratch: rollover: %w", err)
	}
	s.file = f
	s.mem = nil
	return nil
}
