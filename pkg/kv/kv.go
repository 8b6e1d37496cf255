package kv

// Store defines the interface for a scalar key-value store.
// Implementations of this interface can be swapped out,
// allowing for different storage backends (e.g., in-memory, Raft-replicated).
type Store interface {
	// Get retrieves the value associated with the given key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(key string) (Value, error)

	// Lookup retrieves the value associated with the given key.
	// Returns the value and true if the key exists, or the zero Value and false if not.
	Lookup(key string) (Value, bool)

	// Has reports whether the key exists.
	Has(key string) bool

	// Set stores a key-value pair.
	// Returns an error if the key is empty, the value is not a scalar,
	// or the operation fails.
	Set(key string, value Value) error

	// Delete removes a key from the store.
	// Returns an error if the operation fails.
	Delete(key string) error

	// Snapshot returns a copy of every key/value pair.
	Snapshot() map[string]Value
}
