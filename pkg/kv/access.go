package kv

import (
	"fmt"
	"strings"
)

// Access resolves an attribute-style name against a store. It is the one
// place where dynamic names become store operations:
//
//	Access(s, "port")           // Get("port"), ErrKeyNotFound when absent
//	Access(s, "port?")          // Lookup("port"), zero Value when absent
//	Access(s, "port=", 8080)    // Set("port", 8080), returns the stored Value
//
// The value given to a "=" name must be a string, Go integer, bool or Value.
func Access(s Store, name string, args ...any) (Value, error) {
	switch {
	case strings.HasSuffix(name, "="):
		key := strings.TrimSuffix(name, "=")
		if len(args) != 1 {
			return Value{}, fmt.Errorf("%w: %s takes 1 argument, got %d", ErrBadAccess, name, len(args))
		}
		v, err := ValueOf(args[0])
		if err != nil {
			return Value{}, err
		}
		if err := s.Set(key, v); err != nil {
			return Value{}, err
		}
		return v, nil

	case strings.HasSuffix(name, "?"):
		if len(args) != 0 {
			return Value{}, fmt.Errorf("%w: %s takes no arguments", ErrBadAccess, name)
		}
		v, _ := s.Lookup(strings.TrimSuffix(name, "?"))
		return v, nil

	default:
		if len(args) != 0 {
			return Value{}, fmt.Errorf("%w: %s takes no arguments", ErrBadAccess, name)
		}
		return s.Get(name)
	}
}
