package plan

import (
	"reflect"
	"sync"

	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
)

// repeatedNode is the Repeated decorator of spec.md §4.F/§4.H: writes
// packed or unpacked depending on fd.Flags and fd.Item.IsPackable, and
// on read appends to (or, when OverwriteList is set and this is the
// first item seen, replaces) the target slice. Grounded on
// dynamic/dynamic_message.go's addRepeatedField/getRepeatedField and
// codec/codec.go's isPacked detection.
//
// A single repeatedNode is compiled once per field and then shared
// across every Read call made through its MessagePlan, so "first item
// seen" cannot be a plain bool on the node itself — that would only be
// true for the very first owner ever read. clearedOwners tracks it per
// owner identity instead, the same way Measurer keys its length cache.
type repeatedNode struct {
	fd       *schema.FieldDescriptor
	compiler *Builder

	clearedOwners sync.Map // uintptr identity -> struct{}, OverwriteList bookkeeping
}

func (n *repeatedNode) Write(w *wire.Writer, owner any) error {
	raw := n.fd.Accessor.Get(owner)
	if raw == nil {
		return nil
	}
	items := reflect.ValueOf(raw)
	count := items.Len()
	if count == 0 {
		return nil
	}
	packed := n.fd.Flags.Has(schema.Packed) && n.fd.Item.IsPackable() && count >= 2
	if packed {
		if err := w.WriteFieldHeader(n.fd.Number, wire.Bytes); err != nil {
			return err
		}
		tok, err := w.StartSubItem()
		if err != nil {
			return err
		}
		if err := w.SetPackedField(n.fd.Number); err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := w.WriteFieldHeader(n.fd.Number, wire.Type(n.fd.Item.WireType)); err != nil {
				return err
			}
			if err := writeScalar(w, n.fd.Item, items.Index(i).Interface()); err != nil {
				return err
			}
		}
		if err := w.ClearPackedField(n.fd.Number); err != nil {
			return err
		}
		return w.EndSubItem(tok)
	}
	for i := 0; i < count; i++ {
		if err := n.writeItem(w, items.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (n *repeatedNode) writeItem(w *wire.Writer, v any) error {
	switch n.fd.Item.Kind {
	case schema.KindMessage:
		child, err := n.compiler.Build(n.fd.Item.MessageType)
		if err != nil {
			return err
		}
		if err := w.WriteFieldHeader(n.fd.Number, wire.Bytes); err != nil {
			return err
		}
		tok, err := w.StartSubItem()
		if err != nil {
			return err
		}
		if err := child.Write(w, v); err != nil {
			return err
		}
		return w.EndSubItem(tok)
	case schema.KindEnum:
		ev, _ := v.(int32)
		if err := w.WriteFieldHeader(n.fd.Number, wire.Varint); err != nil {
			return err
		}
		return w.WriteVarintInt64(int64(ev))
	default:
		if err := w.WriteFieldHeader(n.fd.Number, wire.Type(n.fd.Item.WireType)); err != nil {
			return err
		}
		return writeScalar(w, n.fd.Item, v)
	}
}

func (n *repeatedNode) Read(r *wire.Reader, owner any) error {
	if n.fd.Flags.Has(schema.OverwriteList) {
		if id, ok := identityOf(owner); ok {
			if _, seen := n.clearedOwners.LoadOrStore(id, struct{}{}); !seen {
				n.fd.Accessor.Set(owner, reflect.Zero(reflect.SliceOf(elemGoType(n.fd.Item))).Interface())
			}
		}
	}
	if r.WireType() == wire.Bytes && n.fd.Item.WireType != schema.WireBytes && n.fd.Item.Kind == schema.KindScalar {
		return n.readPacked(r, owner)
	}
	v, err := n.readOneItem(r)
	if err != nil {
		return err
	}
	n.appendItem(owner, v)
	return nil
}

func (n *repeatedNode) readPacked(r *wire.Reader, owner any) error {
	tok, err := r.StartSubItem()
	if err != nil {
		return err
	}
	for !r.EOF() {
		v, err := readScalar(r, n.fd.Item)
		if err != nil {
			return err
		}
		n.appendItem(owner, v)
	}
	return r.EndSubItem(tok)
}

func (n *repeatedNode) readOneItem(r *wire.Reader) (any, error) {
	switch n.fd.Item.Kind {
	case schema.KindMessage:
		child, err := n.compiler.Build(n.fd.Item.MessageType)
		if err != nil {
			return nil, err
		}
		tok, err := r.StartSubItem()
		if err != nil {
			return nil, err
		}
		inst := newInstance(n.fd.Item.MessageType)
		if err := child.Read(r, inst); err != nil {
			return nil, err
		}
		if err := r.EndSubItem(tok); err != nil {
			return nil, err
		}
		return inst, nil
	case schema.KindEnum:
		raw, err := r.ReadVarintInt64()
		return int32(raw), err
	default:
		return readScalar(r, n.fd.Item)
	}
}

func (n *repeatedNode) appendItem(owner any, v any) {
	old := reflect.ValueOf(n.fd.Accessor.Get(owner))
	elemType := elemGoType(n.fd.Item)
	if !old.IsValid() {
		old = reflect.Zero(reflect.SliceOf(elemType))
	}
	appended := reflect.Append(old, reflect.ValueOf(v).Convert(elemType))
	n.fd.Accessor.Set(owner, appended.Interface())
}

// elemGoType returns the Go type a single repeated/map element of
// this descriptor decodes to.
func elemGoType(fd *schema.FieldDescriptor) reflect.Type {
	if fd.Kind == schema.KindMessage {
		return fd.MessageType
	}
	if fd.GoType != nil {
		return fd.GoType
	}
	return reflect.TypeOf(int32(0))
}

