// Package ids generates sortable codes for movements and launches.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable code.
func New() string {
	return At(time.Now())
}

// At returns a code whose timestamp part is t.
func At(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Valid reports whether s is a well-formed code.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
