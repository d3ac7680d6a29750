package lifecycle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/pagekit/scratch"
)

func countingBundle(n *atomic.Int32) *scratch.Bundle {
	b := scratch.NewBundle(nil)
	b.Add(scratch.ReleaseFunc(func() error {
		n.Add(1)
		return nil
	}))
	return b
}

func TestHappyPath(t *testing.T) {
	// WHAT: A request that streams to completion releases scratch once and
	// reports a Completed summary with the streamed byte count.
	var released atomic.Int32
	var got []Summary
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	req := New("merge",
		WithID("req_test"),
		WithBundle(countingBundle(&released)),
		WithObserver(func(s Summary) { got = append(got, s) }),
		WithClock(func() time.Time { return clock }),
	)
	req.SetFiles("a.pdf", "b.pdf")

	for _, s := range []State{Validating, Validated, Processing, Produced, Streaming} {
		if err := req.To(s); err != nil {
			t.Fatalf("to %s: %v", s, err)
		}
	}
	if released.Load() != 0 {
		t.Fatal("released before terminal state")
	}
	req.AddBytes(100)
	req.AddBytes(23)
	clock = start.Add(2 * time.Second)
	if err := req.To(Completed); err != nil {
		t.Fatal(err)
	}

	if released.Load() != 1 {
		t.Fatalf("released %d times, want 1", released.Load())
	}
	if len(got) != 1 {
		t.Fatalf("observer called %d times", len(got))
	}
	s := got[0]
	if s.ID != "req_test" || s.Operation != "merge" || s.State != Completed || s.Bytes != 123 || s.Duration != 2*time.Second {
		t.Errorf("summary = %+v", s)
	}
	if len(s.Files) != 2 || s.Files[1] != "b.pdf" {
		t.Errorf("files = %v", s.Files)
	}
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		path []State
		next State
	}{
		{nil, Processing},
		{nil, Completed},
		{[]State{Validating}, Processing},
		{[]State{Validating, Validated}, Streaming},
		{[]State{Validating, Validated, Processing}, Streaming},
		{[]State{Validating, Rejected}, Validated},
	}
	for _, tt := range tests {
		req := New("split")
		for _, s := range tt.path {
			if err := req.To(s); err != nil {
				t.Fatalf("setup %v: %v", tt.path, err)
			}
		}
		if err := req.To(tt.next); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("%v → %s: err = %v, want illegal", tt.path, tt.next, err)
		}
	}
}

func TestFail_RecordsReason(t *testing.T) {
	var released atomic.Int32
	var got Summary
	req := New("images", WithBundle(countingBundle(&released)), WithObserver(func(s Summary) { got = s }))
	req.To(Validating)
	reason := errors.New("bad pdf")
	if err := req.Fail(Rejected, reason); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(req.Err(), reason) || !errors.Is(got.Failure, reason) || got.State != Rejected {
		t.Errorf("summary = %+v, err = %v", got, req.Err())
	}
	if released.Load() != 1 {
		t.Errorf("released %d times", released.Load())
	}
	if err := req.Fail(Completed, nil); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Fail(Completed) err = %v", err)
	}
}

func TestRacingTerminalTransitions(t *testing.T) {
	// WHAT: Completed and Aborted racing from Streaming release scratch once.
	// WHY: A client disconnect can land while the handler finishes its write.
	var released, observed atomic.Int32
	req := New("explode",
		WithBundle(countingBundle(&released)),
		WithObserver(func(Summary) { observed.Add(1) }))
	for _, s := range []State{Validating, Validated, Processing, Produced, Streaming} {
		req.To(s)
	}

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = req.To(Completed)
			} else {
				err = req.Fail(Aborted, errors.New("disconnect"))
			}
			if err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 || released.Load() != 1 || observed.Load() != 1 {
		t.Fatalf("wins=%d released=%d observed=%d, want 1 each", wins.Load(), released.Load(), observed.Load())
	}
}

func TestAbandon(t *testing.T) {
	tests := []struct {
		path []State
		want State
	}{
		{nil, Rejected},
		{[]State{Validating}, Rejected},
		{[]State{Validating, Validated}, Failed},
		{[]State{Validating, Validated, Processing}, Failed},
		{[]State{Validating, Validated, Processing, Produced}, Aborted},
		{[]State{Validating, Validated, Processing, Produced, Streaming}, Aborted},
		{[]State{Validating, Validated, Processing, Produced, Streaming, Completed}, Completed},
	}
	for _, tt := range tests {
		var released atomic.Int32
		req := New("merge", WithBundle(countingBundle(&released)))
		for _, s := range tt.path {
			req.To(s)
		}
		req.Abandon(nil)
		req.Abandon(nil)
		if req.State() != tt.want {
			t.Errorf("after %v: state = %s, want %s", tt.path, req.State(), tt.want)
		}
		if released.Load() != 1 {
			t.Errorf("after %v: released %d times", tt.path, released.Load())
		}
	}
}

func TestStateString(t *testing.T) {
	if Streaming.String() != "streaming" || State(42).String() != "state(42)" {
		t.Fatal("unexpected names")
	}
	for _, s := range []State{Rejected, Failed, Completed, Aborted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if Produced.Terminal() {
		t.Error("produced is not terminal")
	}
}
