// CLAUDE:SUMMARY Async SQLite request journal — one row per finished request, batched writes, filtered queries, retention cleanup.
// Package observability records what pagekit did: the process logger and a
// request journal holding one row per request that reached a terminal state.
// The journal stores operational metadata only, never document bytes.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pagekit/dbopen"
	"github.com/hazyhaar/pagekit/kit"
	"github.com/hazyhaar/pagekit/lifecycle"
)

// Entry is one journal row.
type Entry struct {
	RequestID    string        `json:"request_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Operation    string        `json:"operation"`
	Transport    string        `json:"transport"`
	Files        []string      `json:"files"`
	State        string        `json:"state"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	Bytes        int64         `json:"bytes_streamed"`
}

// Filter narrows Query results. Zero fields match everything.
type Filter struct {
	Operation string
	State     string
	Since     time.Time
	Limit     int // default 100
}

// Journal persists entries asynchronously in batches.
type Journal struct {
	db       *sql.DB
	logger   *slog.Logger
	interval time.Duration
	batch    int
	ch       chan *Entry
	stop     chan struct{}
	done     chan struct{}

	mu        sync.RWMutex // guards closed against in-flight sends
	closed    bool
	closeOnce sync.Once
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithFlushInterval sets how often queued entries are written (default 5s).
func WithFlushInterval(d time.Duration) JournalOption {
	return func(j *Journal) { j.interval = d }
}

// WithBatchSize sets how many queued entries force an early flush (default 100).
func WithBatchSize(n int) JournalOption {
	return func(j *Journal) { j.batch = n }
}

// WithJournalLogger sets the logger for write failures.
func WithJournalLogger(l *slog.Logger) JournalOption {
	return func(j *Journal) { j.logger = l }
}

// NewJournal starts a journal over db, applying Schema first. Recommended
// bufferSize: 1000.
func NewJournal(db *sql.DB, bufferSize int, opts ...JournalOption) (*Journal, error) {
	if err := Init(db); err != nil {
		return nil, fmt.Errorf("observability: init journal: %w", err)
	}
	j := &Journal{
		db:       db,
		logger:   slog.Default(),
		interval: 5 * time.Second,
		batch:    100,
		ch:       make(chan *Entry, bufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(j)
	}
	go j.flushLoop()
	return j, nil
}

// Observer returns a lifecycle observer that journals every finished request
// arriving through transport.
func (j *Journal) Observer(transport string) lifecycle.Observer {
	return func(s lifecycle.Summary) {
		j.RecordAsync(FromSummary(s, transport))
	}
}

// FromSummary converts a lifecycle summary to a journal entry.
func FromSummary(s lifecycle.Summary, transport string) *Entry {
	e := &Entry{
		RequestID: s.ID,
		Timestamp: s.Started,
		Operation: s.Operation,
		Transport: transport,
		Files:     s.Files,
		State:     s.State.String(),
		Duration:  s.Duration,
		Bytes:     s.Bytes,
	}
	if s.Failure != nil {
		e.ErrorMessage = s.Failure.Error()
		var c kit.Coder
		if errors.As(s.Failure, &c) {
			e.ErrorCode = c.Code()
		}
	}
	return e
}

// Record inserts an entry synchronously.
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	fillDefaults(e)
	return insert(ctx, j.db, e)
}

// RecordAsync queues an entry. Falls back to a synchronous insert when the
// buffer is full or the journal is closed.
func (j *Journal) RecordAsync(e *Entry) {
	fillDefaults(e)
	j.mu.RLock()
	queued := false
	if !j.closed {
		select {
		case j.ch <- e:
			queued = true
		default:
			j.logger.Warn("observability journal buffer full, sync fallback", "request_id", e.RequestID)
		}
	}
	j.mu.RUnlock()
	if queued {
		return
	}
	if err := insert(context.Background(), j.db, e); err != nil {
		j.logger.Error("observability journal: sync insert failed", "error", err, "request_id", e.RequestID)
	}
}

// Query returns entries matching f, newest first.
func (j *Journal) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	q := `SELECT request_id, timestamp, operation, transport, files, state,
		error_code, error_message, duration_ms, bytes_streamed
		FROM request_journal WHERE 1=1`
	var args []any
	if f.Operation != "" {
		q += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.State != "" {
		q += " AND state = ?"
		args = append(args, f.State)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY timestamp DESC, request_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var ts, durMs int64
		var files string
		var code, msg sql.NullString
		if err := rows.Scan(&e.RequestID, &ts, &e.Operation, &e.Transport, &files, &e.State,
			&code, &msg, &durMs, &e.Bytes); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.ErrorCode = code.String
		e.ErrorMessage = msg.String
		if err := json.Unmarshal([]byte(files), &e.Files); err != nil {
			return nil, fmt.Errorf("decode files of %s: %w", e.RequestID, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Counts returns the number of journaled requests per terminal state.
func (j *Journal) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM request_journal GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than retentionDays.
func (j *Journal) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	res, err := j.db.ExecContext(ctx, "DELETE FROM request_journal WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup journal: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine. Later calls wait for
// the first to finish; entries recorded afterwards are inserted synchronously.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()
		close(j.stop)
	})
	<-j.done
	return nil
}

func fillDefaults(e *Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Transport == "" {
		e.Transport = kit.TransportHTTP
	}
	if e.Files == nil {
		e.Files = []string{}
	}
}

func (j *Journal) flushLoop() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	batch := make([]*Entry, 0, j.batch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := dbopen.RunTx(ctx, j.db, func(tx *sql.Tx) error {
			for _, e := range batch {
				if err := insert(ctx, tx, e); err != nil {
					j.logger.Error("observability journal: insert", "error", err, "request_id", e.RequestID)
				}
			}
			return nil
		})
		if err != nil {
			j.logger.Error("observability journal: flush", "error", err, "entries", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-j.stop:
			for {
				select {
				case e := <-j.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-j.ch:
			batch = append(batch, e)
			if len(batch) >= j.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, e *Entry) error {
	files, err := json.Marshal(e.Files)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO request_journal
		(request_id, timestamp, operation, transport, files, state,
		 error_code, error_message, duration_ms, bytes_streamed)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.RequestID, e.Timestamp.UnixMilli(), e.Operation, e.Transport, string(files), e.State,
		nullable(e.ErrorCode), nullable(e.ErrorMessage), e.Duration.Milliseconds(), e.Bytes)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
