package plan

import (
	"fmt"
	"math"
	"reflect"

	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// scalarNode is the fused tag+default+accessor decorator chain for a
// single non-repeated scalar field: it writes the field header itself
// (suppressing the whole field, header included, when the current
// value equals the descriptor's default) and reads/writes the payload
// via fd.Accessor. Grounded on codec/codec.go's encodeFieldValue
// switch-by-type shape, restructured per SPEC_FULL.md §4.F into one
// small node per field instead of one large central switch.
type scalarNode struct {
	fd *schema.FieldDescriptor

	// implicitZeroDefault mirrors config.WithImplicitZeroDefaults: when
	// set and fd.Default is nil, the field's Go zero value is treated
	// as its default (and so suppressed on write) instead of every
	// value — including zero — being written because no default was
	// ever configured.
	implicitZeroDefault bool
}

func (n *scalarNode) Write(w *wire.Writer, owner any) error {
	v := n.fd.Accessor.Get(owner)
	if !n.fd.Flags.Has(schema.Required) {
		if n.fd.DefaultEquals(v) {
			return nil
		}
		if n.fd.Default == nil && n.implicitZeroDefault && isZeroValue(v) {
			return nil
		}
	}
	if err := w.WriteFieldHeader(n.fd.Number, wire.Type(n.fd.WireType)); err != nil {
		return err
	}
	return writeScalar(w, n.fd, v)
}

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}

func (n *scalarNode) Read(r *wire.Reader, owner any) error {
	v, err := readScalar(r, n.fd)
	if err != nil {
		return err
	}
	n.fd.Accessor.Set(owner, v)
	return nil
}

func writeScalar(w *wire.Writer, fd *schema.FieldDescriptor, v any) error {
	switch val := v.(type) {
	case bool:
		b := uint64(0)
		if val {
			b = 1
		}
		return w.WriteVarint(b)
	case int32:
		if fd.Format == schema.FormatZigZag {
			return w.WriteSignedVarint32(val)
		}
		if fd.WireType == schema.WireFixed32 {
			return w.WriteFixed32(uint32(val))
		}
		return w.WriteVarintInt64(int64(val))
	case int64:
		if fd.Format == schema.FormatZigZag {
			return w.WriteSignedVarint64(val)
		}
		if fd.WireType == schema.WireFixed64 {
			return w.WriteFixed64(uint64(val))
		}
		return w.WriteVarintInt64(val)
	case uint32:
		if fd.WireType == schema.WireFixed32 {
			return w.WriteFixed32(val)
		}
		return w.WriteVarint(uint64(val))
	case uint64:
		if fd.WireType == schema.WireFixed64 {
			return w.WriteFixed64(val)
		}
		return w.WriteVarint(val)
	case float32:
		return w.WriteFixed32(math.Float32bits(val))
	case float64:
		return w.WriteFixed64(math.Float64bits(val))
	case string:
		return w.WriteString(val)
	case []byte:
		return w.WriteBytes(val)
	default:
		return &xerr.UnexpectedTypeError{Type: reflect.TypeOf(v)}
	}
}

func readScalar(r *wire.Reader, fd *schema.FieldDescriptor) (any, error) {
	goType := fd.GoType
	switch fd.WireType {
	case schema.WireVarint:
		if fd.Format == schema.FormatZigZag {
			if isInt32Type(goType) {
				return r.ReadSignedVarint32()
			}
			return r.ReadSignedVarint64()
		}
		v, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		return coerceVarint(v, goType), nil
	case schema.WireFixed32:
		v, err := r.ReadFixed32()
		if err != nil {
			return nil, err
		}
		if goType != nil && goType.Kind() == reflect.Float32 {
			return math.Float32frombits(v), nil
		}
		if goType != nil && goType.Kind() == reflect.Int32 {
			return int32(v), nil
		}
		return v, nil
	case schema.WireFixed64:
		v, err := r.ReadFixed64()
		if err != nil {
			return nil, err
		}
		if goType != nil && goType.Kind() == reflect.Float64 {
			return math.Float64frombits(v), nil
		}
		if goType != nil && goType.Kind() == reflect.Int64 {
			return int64(v), nil
		}
		return v, nil
	case schema.WireBytes:
		if goType != nil && goType.Kind() == reflect.String {
			return r.ReadString()
		}
		return r.ReadBytes(true)
	default:
		return nil, fmt.Errorf("%w: scalar field %d has non-scalar wire type", xerr.ErrBadWireType, fd.Number)
	}
}

func isInt32Type(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Int32
}

func coerceVarint(v uint64, goType reflect.Type) any {
	if goType == nil {
		return v
	}
	switch goType.Kind() {
	case reflect.Bool:
		return v != 0
	case reflect.Int32:
		return int32(v)
	case reflect.Int64:
		return int64(v)
	case reflect.Uint32:
		return uint32(v)
	default:
		return v
	}
}
