package history

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a time-sortable ULID. IDs minted in the same millisecond
// still sort in creation order.
func NewID() string {
	return ulid.Make().String()
}

// NewIDAt mints a ULID carrying the timestamp t. If the shared monotonic
// entropy overflows within t's millisecond it falls back to the current time.
func NewIDAt(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), ulid.DefaultEntropy())
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}
