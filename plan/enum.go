package plan

import (
	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// enumNode is the Enum decorator of spec.md §4.F: the wire
// representation is always a plain varint carrying the integer value;
// fd.EnumNames is consulted only to validate membership and route an
// unmapped value to EnumCatchAll (or xerr.ErrUnknownEnumValue if no
// catch-all is set). The Go-side value stays a plain int32 through
// fd.Accessor — callers that want named constants wrap their own type
// around that int32 at the struct-field boundary.
type enumNode struct {
	fd *schema.FieldDescriptor
}

func (n *enumNode) Write(w *wire.Writer, owner any) error {
	v, _ := n.fd.Accessor.Get(owner).(int32)
	if !n.fd.Flags.Has(schema.Required) && n.fd.DefaultEquals(v) {
		return nil
	}
	if err := w.WriteFieldHeader(n.fd.Number, wire.Varint); err != nil {
		return err
	}
	return w.WriteVarintInt64(int64(v))
}

func (n *enumNode) Read(r *wire.Reader, owner any) error {
	raw, err := r.ReadVarintInt64()
	if err != nil {
		return err
	}
	v := int32(raw)
	if n.fd.EnumNames != nil {
		if _, known := n.fd.EnumNames[v]; !known {
			if n.fd.EnumCatchAll != nil {
				v = *n.fd.EnumCatchAll
			} else {
				return xerr.ErrUnknownEnumValue
			}
		}
	}
	n.fd.Accessor.Set(owner, v)
	return nil
}
