package plan

import "reflect"

// newInstance allocates a zero value of t and returns it as the same
// pointer-or-value shape fields are registered under: if t is a
// pointer type, returns a new *T; otherwise returns a T value boxed in
// an any (accessors for value-typed message fields must tolerate a
// non-addressable Set target being replaced wholesale).
func newInstance(t reflect.Type) any {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Elem().Interface()
}
