// Package util holds small reflection helpers shared by config parsing.
package util

import "reflect"

// IsZero reports whether i holds its type's zero value.
func IsZero(i interface{}) bool {
	return IsZeroVal(reflect.ValueOf(i))
}

// IsZeroVal is IsZero for a reflect.Value already in hand, so callers
// walking a struct's fields with reflect don't have to box each one back
// into an interface{} first.
func IsZeroVal(v reflect.Value) bool {
	return v.Interface() == reflect.Zero(v.Type()).Interface()
}
