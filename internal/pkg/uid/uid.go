// Package uid generates identifiers: snowflake int64 ids for ordered records
// and UUIDv7 strings for ephemeral handles.
package uid

import "github.com/google/uuid"

// NumberID generates monotonically increasing int64 ids.
type NumberID interface {
	Generate() int64
}

// StringID generates opaque string ids.
type StringID interface {
	Generate() string
}

// UUID is a StringID producing time ordered version 7 UUIDs.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}

	return uuid.NewString()
}
