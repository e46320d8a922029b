package plan

import (
	"reflect"

	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// subItemNode is the Sub-item decorator of spec.md §4.F: delegates to
// the registered plan for fd.MessageType, framed as a nested
// length-delimited sub-item (or a group, when fd.Format is
// FormatGroup).
type subItemNode struct {
	fd       *schema.FieldDescriptor
	compiler *Builder
	child    *MessagePlan // resolved lazily, since Builder.Build may not have reached fd.MessageType yet
}

func (n *subItemNode) resolve() (*MessagePlan, error) {
	if n.child != nil {
		return n.child, nil
	}
	p, err := n.compiler.Build(n.fd.MessageType)
	if err != nil {
		return nil, err
	}
	n.child = p
	return p, nil
}

func (n *subItemNode) Write(w *wire.Writer, owner any) error {
	v := n.fd.Accessor.Get(owner)
	if rv := reflect.ValueOf(v); v == nil || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
		if n.fd.Flags.Has(schema.Required) {
			return xerr.ErrNullNotAllowed
		}
		return nil
	}
	child, err := n.resolve()
	if err != nil {
		return err
	}
	if n.fd.Format == schema.FormatGroup {
		if err := w.WriteFieldHeader(n.fd.Number, wire.StartGroup); err != nil {
			return err
		}
		tok, err := w.StartGroup(n.fd.Number)
		if err != nil {
			return err
		}
		if err := child.Write(w, v); err != nil {
			return err
		}
		return w.EndSubItem(tok)
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
}

func (n *subItemNode) Read(r *wire.Reader, owner any) error {
	child, err := n.resolve()
	if err != nil {
		return err
	}
	tok, err := r.StartSubItem()
	if err != nil {
		return err
	}
	v := newInstance(n.fd.MessageType)
	if err := child.Read(r, v); err != nil {
		return err
	}
	if err := r.EndSubItem(tok); err != nil {
		return err
	}
	n.fd.Accessor.Set(owner, v)
	return nil
}
