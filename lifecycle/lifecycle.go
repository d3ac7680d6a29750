// CLAUDE:SUMMARY Request lifecycle state machine — legal transitions, exactly-once scratch release on terminal states, terminal observer.
// CLAUDE:EXPORTS State, Request, Summary, Observer, ErrIllegalTransition
//
// Package lifecycle tracks one transformation request from upload to the last
// byte streamed:
//
//	Received → Validating → Rejected | Validated
//	Validated → Processing → Failed | Produced
//	Produced → Streaming → Completed | Aborted
//
// A Request owns a scratch.Bundle. Entering any terminal state releases the
// bundle exactly once, even when two terminal transitions race, and reports a
// Summary to the observer.
//
//	req := lifecycle.New("merge", lifecycle.WithBundle(b), lifecycle.WithObserver(j.Record))
//	req.To(lifecycle.Validating)
//	...
//	req.Fail(lifecycle.Failed, err)
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pagekit/idgen"
	"github.com/hazyhaar/pagekit/scratch"
)

// ErrIllegalTransition is returned when a transition is not allowed from the
// current state. It signals a programming error in the caller.
var ErrIllegalTransition = errors.New("lifecycle: illegal transition")

// State is a lifecycle state.
type State int

const (
	Received State = iota
	Validating
	Rejected
	Validated
	Processing
	Failed
	Produced
	Streaming
	Completed
	Aborted
)

var stateNames = [...]string{
	Received:   "received",
	Validating: "validating",
	Rejected:   "rejected",
	Validated:  "validated",
	Processing: "processing",
	Failed:     "failed",
	Produced:   "produced",
	Streaming:  "streaming",
	Completed:  "completed",
	Aborted:    "aborted",
}

// String returns the lowercase state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case Rejected, Failed, Completed, Aborted:
		return true
	}
	return false
}

var transitions = map[State][]State{
	Received:   {Validating},
	Validating: {Rejected, Validated},
	Validated:  {Processing},
	Processing: {Failed, Produced},
	Produced:   {Streaming},
	Streaming:  {Completed, Aborted},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Summary describes a request that reached a terminal state.
type Summary struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	Files     []string      `json:"files,omitempty"`
	State     State         `json:"state"`
	Failure   error         `json:"-"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Bytes     int64         `json:"bytes"`
}

// Observer receives a Summary once per request, after scratch was released.
type Observer func(Summary)

// Option configures a Request.
type Option func(*Request)

// WithID sets the request id (default: a generated "req_" id).
func WithID(id string) Option { return func(r *Request) { r.id = id } }

// WithBundle sets the bundle released on terminal states.
func WithBundle(b *scratch.Bundle) Option { return func(r *Request) { r.bundle = b } }

// WithObserver sets the terminal observer.
func WithObserver(o Observer) Option { return func(r *Request) { r.observer = o } }

// WithLogger sets the logger used for transitions and release failures.
func WithLogger(l *slog.Logger) Option { return func(r *Request) { r.logger = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(r *Request) { r.now = now } }

var newID = idgen.Prefixed(idgen.RequestPrefix, idgen.Default)

// Request is the state of one request. It is safe for concurrent use.
type Request struct {
	mu       sync.Mutex
	id       string
	op       string
	files    []string
	state    State
	failure  error
	bytes    int64
	started  time.Time
	bundle   *scratch.Bundle
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Request in the Received state.
func New(operation string, opts ...Option) *Request {
	r := &Request{op: operation, state: Received, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if r.id == "" {
		r.id = newID()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.bundle == nil {
		r.bundle = scratch.NewBundle(r.logger)
	}
	r.started = r.now()
	return r
}

// ID returns the request id.
func (r *Request) ID() string { return r.id }

// Operation returns the operation name.
func (r *Request) Operation() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.op
}

// SetOperation renames the operation, for endpoints that pick it from the
// request body.
func (r *Request) SetOperation(op string) {
	r.mu.Lock()
	r.op = op
	r.mu.Unlock()
}

// Bundle returns the bundle released when the request ends.
func (r *Request) Bundle() *scratch.Bundle { return r.bundle }

// State returns the current state.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure recorded by Fail, if any.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

// SetFiles records the input file names for the summary.
func (r *Request) SetFiles(names ...string) {
	r.mu.Lock()
	r.files = append(r.files[:0], names...)
	r.mu.Unlock()
}

// AddBytes adds n to the streamed byte count.
func (r *Request) AddBytes(n int64) {
	r.mu.Lock()
	r.bytes += n
	r.mu.Unlock()
}

// To moves the request to next. Moving into a terminal state releases the
// bundle and notifies the observer.
func (r *Request) To(next State) error {
	return r.transition(next, nil)
}

// Fail moves the request to a terminal failure state (Rejected, Failed or
// Aborted) and records reason.
func (r *Request) Fail(next State, reason error) error {
	if next != Rejected && next != Failed && next != Aborted {
		return fmt.Errorf("%w: %s is not a failure state", ErrIllegalTransition, next)
	}
	return r.transition(next, reason)
}

// Done reports whether the request reached a terminal state.
func (r *Request) Done() bool { return r.State().Terminal() }

// Abandon ends a request that has not reached a terminal state, taking the
// failure exit of the phase it is in: Rejected before validation completes,
// Failed before output exists, Aborted once output exists. It is a no-op on a
// finished request, so handlers can defer it unconditionally.
func (r *Request) Abandon(reason error) {
	if reason == nil {
		reason = errors.New("request abandoned")
	}
	switch r.State() {
	case Received:
		if r.To(Validating) != nil {
			return
		}
		r.Fail(Rejected, reason)
	case Validating:
		r.Fail(Rejected, reason)
	case Validated:
		if r.To(Processing) != nil {
			return
		}
		r.Fail(Failed, reason)
	case Processing:
		r.Fail(Failed, reason)
	case Produced:
		if r.To(Streaming) != nil {
			return
		}
		r.Fail(Aborted, reason)
	case Streaming:
		r.Fail(Aborted, reason)
	}
}

func (r *Request) transition(next State, reason error) error {
	r.mu.Lock()
	from := r.state
	if !CanTransition(from, next) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, next)
	}
	r.state = next
	if reason != nil {
		r.failure = reason
	}
	var sum Summary
	if next.Terminal() {
		sum = Summary{
			ID:        r.id,
			Operation: r.op,
			Files:     append([]string(nil), r.files...),
			State:     next,
			Failure:   r.failure,
			Started:   r.started,
			Duration:  r.now().Sub(r.started),
			Bytes:     r.bytes,
		}
	}
	r.mu.Unlock()

	r.logger.Debug("request transition", "request_id", r.id, "from", from.String(), "to", next.String())
	if !next.Terminal() {
		return nil
	}

	// The state check above admits a single terminal transition, so this runs once.
	if err := r.bundle.Release(); err != nil {
		r.logger.Warn("lifecycle: scratch release failed", "request_id", r.id, "error", err)
	}
	if r.observer != nil {
		r.observer(sum)
	}
	return nil
}
