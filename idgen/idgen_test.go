package idgen

import (
	"strings"
	"testing"
)

func TestShort_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{8, 12, 24} {
		id := Short(length)()
		if len(id) != length {
			t.Fatalf("Short(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("Short: unexpected character %q in %q", c, id)
			}
		}
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 36 {
			t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	// WHAT: Request ids carry the req_ prefix and parse back to a v7 UUID.
	// WHY: The journal keys rows by request id.
	id := Request()
	if !strings.HasPrefix(id, RequestPrefix) {
		t.Fatalf("id %q lacks prefix", id)
	}
	u, err := ParseRequest(id)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Version() != 7 {
		t.Errorf("version = %d, want 7", u.Version())
	}
}

func TestParseRequest_Rejects(t *testing.T) {
	for _, id := range []string{"", "trc_abc", "req_not-a-uuid", "0190f0f0-0000-7000-8000-000000000000"} {
		if _, err := ParseRequest(id); err == nil {
			t.Errorf("ParseRequest(%q): expected error", id)
		}
	}
}

func TestPrefixedFixed(t *testing.T) {
	if got := Prefixed(TracePrefix, Fixed("x1"))(); got != "trc_x1" {
		t.Fatalf("got %q", got)
	}
}
