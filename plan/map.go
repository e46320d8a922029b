package plan

import (
	"fmt"
	"reflect"

	"github.com/ironwood-labs/dynpb/internal/sort"
	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// mapNode is the Map decorator of spec.md §4.F/§3: each entry is
// written as a length-delimited two-field sub-message {1: key, 2:
// value}; on read, entries are committed one at a time into the
// target map, optionally failing on a duplicate key per
// MapDuplicateFails. Grounded on dynamic/dynamic_message.go's
// putMapField/getMapField family.
type mapNode struct {
	fd       *schema.FieldDescriptor
	compiler *Builder
}

func (n *mapNode) Write(w *wire.Writer, owner any) error {
	raw := n.fd.Accessor.Get(owner)
	if raw == nil {
		return nil
	}
	m := reflect.ValueOf(raw)
	for _, k := range sort.MapKeys(m) {
		if err := w.WriteFieldHeader(n.fd.Number, wire.Bytes); err != nil {
			return err
		}
		tok, err := w.StartSubItem()
		if err != nil {
			return err
		}
		if err := n.writeEntry(w, k.Interface(), m.MapIndex(k).Interface()); err != nil {
			return err
		}
		if err := w.EndSubItem(tok); err != nil {
			return err
		}
	}
	return nil
}

func (n *mapNode) writeEntry(w *wire.Writer, key, value any) error {
	if err := w.WriteFieldHeader(1, wire.Type(n.fd.Key.WireType)); err != nil {
		return err
	}
	if err := writeScalar(w, n.fd.Key, key); err != nil {
		return err
	}
	if n.fd.Value.Kind == schema.KindMessage {
		child, err := n.compiler.Build(n.fd.Value.MessageType)
		if err != nil {
			return err
		}
		if err := w.WriteFieldHeader(2, wire.Bytes); err != nil {
			return err
		}
		tok, err := w.StartSubItem()
		if err != nil {
			return err
		}
		if err := child.Write(w, value); err != nil {
			return err
		}
		return w.EndSubItem(tok)
	}
	if err := w.WriteFieldHeader(2, wire.Type(n.fd.Value.WireType)); err != nil {
		return err
	}
	return writeScalar(w, n.fd.Value, value)
}

func (n *mapNode) Read(r *wire.Reader, owner any) error {
	tok, err := r.StartSubItem()
	if err != nil {
		return err
	}
	var key, value any
	for !r.EOF() {
		num, _, err := r.ReadFieldHeader()
		if err != nil {
			return err
		}
		if num == 0 {
			break
		}
		switch num {
		case 1:
			key, err = readScalar(r, n.fd.Key)
			if err != nil {
				return err
			}
		case 2:
			if n.fd.Value.Kind == schema.KindMessage {
				child, berr := n.compiler.Build(n.fd.Value.MessageType)
				if berr != nil {
					return berr
				}
				inner, terr := r.StartSubItem()
				if terr != nil {
					return terr
				}
				inst := newInstance(n.fd.Value.MessageType)
				if err := child.Read(r, inst); err != nil {
					return err
				}
				if err := r.EndSubItem(inner); err != nil {
					return err
				}
				value = inst
			} else {
				value, err = readScalar(r, n.fd.Value)
				if err != nil {
					return err
				}
			}
		default:
			if err := r.SkipField(); err != nil {
				return err
			}
		}
	}
	if err := r.EndSubItem(tok); err != nil {
		return err
	}
	return n.commit(owner, key, value)
}

func (n *mapNode) commit(owner any, key, value any) error {
	keyType := elemGoType(n.fd.Key)
	valType := elemGoType(n.fd.Value)
	mapType := reflect.MapOf(keyType, valType)

	raw := n.fd.Accessor.Get(owner)
	var m reflect.Value
	if raw != nil {
		m = reflect.ValueOf(raw)
	}
	if !m.IsValid() || m.IsNil() {
		m = reflect.MakeMap(mapType)
	}
	kv := reflect.ValueOf(key)
	if !kv.IsValid() {
		kv = reflect.Zero(keyType)
	} else {
		kv = kv.Convert(keyType)
	}
	if n.fd.Flags.Has(schema.MapDuplicateFails) && m.MapIndex(kv).IsValid() {
		return fmt.Errorf("plan: %w: duplicate map key in field %d", xerr.ErrMalformedInput, n.fd.Number)
	}
	vv := reflect.ValueOf(value)
	if !vv.IsValid() {
		vv = reflect.Zero(valType)
	} else if vv.Type() != valType && vv.Type().ConvertibleTo(valType) {
		vv = vv.Convert(valType)
	}
	m.SetMapIndex(kv, vv)
	n.fd.Accessor.Set(owner, m.Interface())
	return nil
}
