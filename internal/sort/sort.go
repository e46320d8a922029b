// Package sort orders a reflected map's keys deterministically, so two
// writes of an unchanged map produce byte-identical output even though
// Go's own map iteration order is randomized per run (spec.md §8's
// "measuring and serializing an unchanged instance twice produces
// identical byte sequences" applies to map fields too).
package sort

import (
	"fmt"
	"reflect"
	"sort"
)

// MapKeys returns v's keys (v must be a reflect.Map) ordered
// deterministically by value, not by insertion or hash order.
func MapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return less(keys[i], keys[j])
	})
	return keys
}

func less(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return a.Uint() < b.Uint()
	case reflect.Bool:
		return !a.Bool() && b.Bool()
	default:
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	}
}
