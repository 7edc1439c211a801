// Package config reads typed configuration values by dotted key.
package config

import (
	"io"
	"time"
)

// Config retrieves configuration values of various types.
//
// Missing keys and values that cannot be converted yield the zero value of
// the requested type, or the default registered with the implementation.
type Config interface {
	io.Closer

	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetInt64(key string) int64
	GetUint(key string) uint
	GetFloat64(key string) float64

	// GetSecond reads an integer and scales it to seconds.
	GetSecond(key string) time.Duration

	// GetBinary reads a base64 encoded (standard encoding) value.
	GetBinary(key string) []byte

	// GetArray reads a comma separated list; empty elements are dropped.
	GetArray(key string) []string

	// IsSet reports whether key has a value from any source.
	IsSet(key string) bool
}
