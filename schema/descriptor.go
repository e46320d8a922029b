// Package schema holds the runtime type model: field descriptors, type
// entries, and the registry that maps a Go type to its ordered field
// list. Nothing in this package touches the wire format directly; it
// is consumed by the plan package to build per-field codec nodes.
package schema

import (
	"math"
	"reflect"
)

// WireType mirrors wire.Type without importing the wire package, so
// schema stays independent of the codec's internal representation.
type WireType int8

const (
	WireVarint WireType = iota
	WireFixed64
	WireBytes
	WireStartGroup
	WireEndGroup
	WireFixed32
)

// DataFormat selects how a descriptor's logical value maps onto its
// WireType, per spec.md §3(c).
type DataFormat int8

const (
	FormatDefault DataFormat = iota
	FormatFixedSize
	FormatZigZag
	FormatGroup
	FormatWellKnown
)

// ValueKind is the descriptor's logical value type, spec.md §3(d).
type ValueKind int8

const (
	KindScalar ValueKind = iota
	KindMessage
	KindRepeated
	KindMap
	KindEnum
)

// Flags is a bitmask of the per-descriptor booleans in spec.md §3(h).
type Flags uint8

const (
	Required Flags = 1 << iota
	Packed
	OverwriteList
	MapDuplicateFails
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Accessor is a pair of closures captured once, at registration time,
// so the interpreted read/write path never calls into reflect. Get
// reads the field off owner; Set writes v back onto owner (owner is
// always a pointer to the host record).
type Accessor struct {
	Get func(owner any) any
	Set func(owner any, v any)
}

// ReflectAccessor builds an Accessor for a named exported field of a
// struct using reflect exactly once, at registration time. It is a
// convenience for callers that don't already have closures in hand —
// the interpreted hot path calls the returned closures directly and
// never touches reflect again.
func ReflectAccessor(sample any, fieldName string) Accessor {
	st := reflect.TypeOf(sample)
	for st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	sf, ok := st.FieldByName(fieldName)
	if !ok {
		panic("schema: no such field " + fieldName + " on " + st.String())
	}
	index := sf.Index
	return Accessor{
		Get: func(owner any) any {
			v := reflect.ValueOf(owner).Elem().FieldByIndex(index)
			return v.Interface()
		},
		Set: func(owner any, val any) {
			v := reflect.ValueOf(owner).Elem().FieldByIndex(index)
			if val == nil {
				v.Set(reflect.Zero(v.Type()))
				return
			}
			rv := reflect.ValueOf(val)
			if rv.Type() != v.Type() && rv.Type().ConvertibleTo(v.Type()) {
				rv = rv.Convert(v.Type())
			}
			v.Set(rv)
		},
	}
}

// FieldDescriptor is the per-field record of spec.md §3: number,
// declared wire-type, data-format variant, logical kind, optional
// item/key/value sub-descriptors, default value, accessor, flags.
type FieldDescriptor struct {
	Number   int32
	WireType WireType
	Format   DataFormat
	Kind     ValueKind

	// GoType is the declared Go type of a KindScalar value (or the
	// underlying integer type of a KindEnum value), used to pick the
	// concrete read-side decode variant (e.g. int32 vs int64,
	// fixed32-as-uint32 vs fixed32-as-float32).
	GoType reflect.Type

	// Item describes the element type for KindRepeated.
	Item *FieldDescriptor
	// Key and Value describe the two map-entry fields for KindMap.
	Key   *FieldDescriptor
	Value *FieldDescriptor

	// MessageType names the registered Go type for KindMessage (and
	// the element type of a repeated/map of messages), used to look
	// up the nested TypeEntry at plan-build time.
	MessageType reflect.Type

	// EnumNames and EnumCatchAll implement the enum mapping of
	// spec.md §4.F ("Enum decorator"): an unmapped value is replaced
	// by *EnumCatchAll when set, otherwise rejected with
	// xerr.ErrUnknownEnumValue.
	EnumNames    map[int32]string
	EnumCatchAll *int32

	Default  any
	Accessor Accessor
	Flags    Flags
}

// IsPackable reports whether this descriptor is eligible for packed
// encoding: scalar item types whose wire-type is varint, fixed32,
// fixed64, or (via Format) signed-varint, per spec.md §3's registry
// invariant.
func (fd *FieldDescriptor) IsPackable() bool {
	if fd.Kind != KindScalar {
		return false
	}
	switch fd.WireType {
	case WireVarint, WireFixed32, WireFixed64:
		return true
	default:
		return false
	}
}

// DefaultEquals reports whether v matches the descriptor's declared
// default using the comparison spec.md §4.D requires: bitwise for
// floats, ordinal for strings, == for everything else comparable.
func (fd *FieldDescriptor) DefaultEquals(v any) bool {
	if fd.Default == nil {
		return v == nil
	}
	switch dv := fd.Default.(type) {
	case float32:
		ov, ok := v.(float32)
		return ok && math.Float32bits(dv) == math.Float32bits(ov)
	case float64:
		ov, ok := v.(float64)
		return ok && math.Float64bits(dv) == math.Float64bits(ov)
	default:
		return fd.Default == v
	}
}
