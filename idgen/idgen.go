// Package idgen generates the identifiers pagekit attaches to requests and
// traces. Every constructor that needs ids takes a Generator, so tests can
// pin them.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// Prefixes used across pagekit.
const (
	RequestPrefix = "req_"
	TracePrefix   = "trc_"
)

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time, which keeps journal rows in arrival order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Short returns a Generator of base-36 ids of the given length, for trace ids
// that end up in response headers.
func Short(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// Prefixed prepends prefix to every id of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Fixed returns a Generator that always yields id.
func Fixed(id string) Generator {
	return func() string { return id }
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Request returns a new request id, "req_<uuidv7>".
func Request() string { return RequestPrefix + Default() }

// ParseRequest checks that id is a request id and returns its UUID part.
func ParseRequest(id string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(id, RequestPrefix)
	if !ok {
		return uuid.UUID{}, fmt.Errorf("idgen: %q lacks prefix %s", id, RequestPrefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("idgen: invalid request id %q: %w", id, err)
	}
	return u, nil
}
