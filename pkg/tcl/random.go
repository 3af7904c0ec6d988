package tcl

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateUniqueDocID returns a millisecond timestamp followed by a zero padded 3 digit random suffix.
//
// Uniqueness is advisory only: two letters created in the same millisecond collide one time in a thousand.
func GenerateUniqueDocID() string {
	return timestampWithSuffix(time.Now())
}

// NewNonce generates the time based nonce sent as the "t" auth field.
func NewNonce() string {
	return timestampWithSuffix(time.Now())
}

func timestampWithSuffix(now time.Time) string {
	return fmt.Sprintf("%d%03d", now.UnixMilli(), rand.Intn(1000))
}
