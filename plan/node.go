// Package plan compiles a frozen schema.Registry into per-field codec
// nodes and the message-level dispatcher that drives them, per
// spec.md §4.F-§4.J. Builder.Build does not check that
// schema.Registry.Freeze has been called; it compiles a *MessagePlan
// per type on first use and caches it for reuse (spec.md §5).
package plan

import (
	"reflect"

	"github.com/ironwood-labs/dynpb/wire"
)

// Node is the shared capability of every codec node in the per-field
// decorator chain (spec.md §4.F): write the field starting from owner,
// or read it into owner. Write emits the node's own field header(s);
// Read is called by MessagePlan.Read after that field's header has
// already been consumed.
type Node interface {
	Write(w *wire.Writer, owner any) error
	Read(r *wire.Reader, owner any) error
}

// Compiler resolves a nested message field's Go type to its compiled
// MessagePlan, building it on first use. *Builder satisfies this; nodes
// hold the concrete *Builder rather than this interface, since nothing
// else in this package implements it today.
type Compiler interface {
	PlanFor(t reflect.Type) (*MessagePlan, error)
}
