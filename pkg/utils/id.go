package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid"
)

// NewCallID returns a fresh opaque call identifier. Falls back to a
// timestamp-based ID if the random source is unavailable.
func NewCallID() string {
	id, err := gonanoid.Nanoid(16)
	if err != nil {
		return fmt.Sprintf("call-%d", time.Now().UnixNano())
	}
	return "call-" + id
}
