package kv

import "errors"

var (
	// ErrUnreadableSource is returned when a source is neither valid JSON nor valid YAML.
	ErrUnreadableSource = errors.New("config source is neither valid JSON nor valid YAML")

	// ErrKeyNotFound is returned by strict reads of an absent key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidFormat is returned when a format token is not "json" or "yaml".
	ErrInvalidFormat = errors.New("invalid format")

	// ErrUnknownFormat is returned when saving a store whose format is not supported.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrEmptyKey is returned when writing under the empty key.
	ErrEmptyKey = errors.New("key is required")

	// ErrInvalidValue is returned for values that are not a string, integer or boolean.
	ErrInvalidValue = errors.New("value must be a string, integer or boolean")

	// ErrBadAccess is returned by Access for a malformed name or argument count.
	ErrBadAccess = errors.New("bad access")
)
