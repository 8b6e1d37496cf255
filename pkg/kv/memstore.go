package kv

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemStore is an in-memory implementation of the Store interface.
// It uses a map protected by a RWMutex for its own methods. Each MemStore
// owns its map; share one by passing the pointer around.
type MemStore struct {
	mu     sync.RWMutex
	data   map[string]Value
	format Format
}

// Compile-time check to ensure MemStore implements Store.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty store whose format is JSON.
func NewMemStore() *MemStore {
	return &MemStore{
		data:   make(map[string]Value),
		format: FormatJSON,
	}
}

// Get retrieves a value by key, failing with ErrKeyNotFound if absent.
func (s *MemStore) Get(key string) (Value, error) {
	val, ok := s.Lookup(key)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return val, nil
}

// Lookup retrieves a value by key.
// Returns the value and true if found, the zero Value and false otherwise.
func (s *MemStore) Lookup(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok
}

// Has reports whether key is present.
func (s *MemStore) Has(key string) bool {
	_, ok := s.Lookup(key)
	return ok
}

// Set stores a key-value pair, overwriting any previous value.
func (s *MemStore) Set(key string, value Value) error {
	if key == "" {
		return ErrEmptyKey
	}
	if !value.IsValid() {
		return ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Delete removes a key from the store.
// Always returns nil, even if the key doesn't exist.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Clear removes every key. The format is left unchanged.
func (s *MemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.data)
}

// Len returns the number of keys.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Keys returns the keys in sorted order.
func (s *MemStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.data))
}

// Snapshot returns a copy of the store contents.
func (s *MemStore) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.data)
}

// Mapping returns the backing map itself, not a copy. Writes through it
// change the store, and it is not guarded by the store's lock.
func (s *MemStore) Mapping() map[string]Value {
	return s.data
}

// Equal reports whether both stores hold the same key/value pairs.
// Formats are not compared.
func (s *MemStore) Equal(other *MemStore) bool {
	return maps.Equal(s.Snapshot(), other.Snapshot())
}

// LoadFrom coerces every entry of src into the store, overwriting existing
// keys. Nothing is written if any key is empty.
func (s *MemStore) LoadFrom(src map[string]any) error {
	return LoadMap(s, src)
}

// LoadMap loads a mapping with arbitrary key and value types into s. Keys
// are converted with fmt.Sprint and values with Coerce.
func LoadMap[K comparable, V any](s *MemStore, src map[K]V) error {
	coerced := make(map[string]Value, len(src))
	for k, v := range src {
		key := fmt.Sprint(k)
		if key == "" {
			return ErrEmptyKey
		}
		coerced[key] = Coerce(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.data, coerced)
	return nil
}

// Format returns the format the store was last loaded with or assigned.
func (s *MemStore) Format() Format {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.format
}

// SetFormat assigns the format used when the store is saved.
func (s *MemStore) SetFormat(f Format) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.format = f
}

// SetFormatName assigns the format from a "json" or "yaml" token.
func (s *MemStore) SetFormatName(token string) error {
	f, err := ParseFormat(token)
	if err != nil {
		return err
	}
	s.SetFormat(f)
	return nil
}
