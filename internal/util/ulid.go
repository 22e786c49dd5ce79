package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRequestID returns a ULID string, sortable by creation time.
func NewRequestID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
