package plan

import (
	"fmt"
	"reflect"

	"github.com/ironwood-labs/dynpb/schema"
)

// synthesizeEntry implements config.WithAutoAddMissingTypes (spec.md
// §6 "auto_add_missing_types ... synthesize one from reflective
// hints"): it builds a schema.TypeEntry for t by walking its exported
// fields in declaration order and inferring each one's wire shape from
// its Go type, assigning field numbers 1..N as it goes. The entry is
// never registered on the Registry (which may already be frozen by the
// time a Builder needs it) — it only lives in the Builder's own plan
// cache, scoped to this *Builder.
func (b *Builder) synthesizeEntry(t reflect.Type) (*schema.TypeEntry, error) {
	st := t
	for st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("plan: cannot auto-add non-struct type %s", t)
	}

	entry := schema.NewTypeEntry(st)
	number := int32(1)
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() {
			continue
		}
		fd, err := inferFieldDescriptor(sf, number)
		if err != nil {
			return nil, fmt.Errorf("plan: auto-add %s.%s: %w", st, sf.Name, err)
		}
		if fd == nil {
			continue // unrepresentable field (e.g. a func or chan), silently skipped
		}
		fd.Accessor = schema.ReflectAccessor(reflect.New(st).Interface(), sf.Name)
		if err := entry.AddField(fd); err != nil {
			return nil, err
		}
		number++
	}
	return entry, nil
}

func inferFieldDescriptor(sf reflect.StructField, number int32) (*schema.FieldDescriptor, error) {
	if scalar := inferScalarShape(sf.Type); scalar != nil {
		scalar.Number = number
		return scalar, nil
	}
	switch sf.Type.Kind() {
	case reflect.Slice:
		elem := inferScalarShape(sf.Type.Elem())
		if elem == nil {
			return nil, fmt.Errorf("unsupported repeated element type %s", sf.Type.Elem())
		}
		return &schema.FieldDescriptor{Number: number, Kind: schema.KindRepeated, Item: elem}, nil
	case reflect.Map:
		key := inferScalarShape(sf.Type.Key())
		val := inferScalarShape(sf.Type.Elem())
		if key == nil || val == nil {
			return nil, fmt.Errorf("unsupported map key/value type %s", sf.Type)
		}
		return &schema.FieldDescriptor{Number: number, Kind: schema.KindMap, Key: key, Value: val}, nil
	case reflect.Ptr, reflect.Struct:
		msgType := sf.Type
		if msgType.Kind() != reflect.Ptr {
			msgType = reflect.PtrTo(msgType)
		}
		return &schema.FieldDescriptor{
			Number:      number,
			Kind:        schema.KindMessage,
			WireType:    schema.WireBytes,
			MessageType: msgType,
		}, nil
	default:
		return nil, nil
	}
}

// inferScalarShape returns the field descriptor for a scalar leaf type,
// or nil if t isn't one of the scalar kinds this module knows how to
// auto-wire.
func inferScalarShape(t reflect.Type) *schema.FieldDescriptor {
	if t == reflect.TypeOf([]byte(nil)) {
		return &schema.FieldDescriptor{Kind: schema.KindScalar, WireType: schema.WireBytes, GoType: t}
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Int32, reflect.Int64, reflect.Uint32, reflect.Uint64:
		return &schema.FieldDescriptor{Kind: schema.KindScalar, WireType: schema.WireVarint, GoType: t}
	case reflect.Float32:
		return &schema.FieldDescriptor{Kind: schema.KindScalar, WireType: schema.WireFixed32, GoType: t}
	case reflect.Float64:
		return &schema.FieldDescriptor{Kind: schema.KindScalar, WireType: schema.WireFixed64, GoType: t}
	case reflect.String:
		return &schema.FieldDescriptor{Kind: schema.KindScalar, WireType: schema.WireBytes, GoType: t}
	default:
		return nil
	}
}
