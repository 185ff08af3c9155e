package state

import "errors"

// ErrNotFound is returned when no offset has been stored yet.
var ErrNotFound = errors.New("not found")

// OffsetStore remembers the last processed offset per topic partition.
type OffsetStore interface {
	SaveOffset(topic string, partition int, offset int64) error
	GetOffset(topic string, partition int) (int64, error)
}
