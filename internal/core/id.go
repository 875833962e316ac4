package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewTurnID returns a lexically sortable turn identifier.
// IDs generated within the same millisecond still sort in creation order.
func NewTurnID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ValidSessionID reports whether id looks like a session identifier.
func ValidSessionID(id string) bool {
	return uuid.Validate(id) == nil
}
