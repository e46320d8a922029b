// Package dynpb ties the wire codec, type registry, and dispatch plan
// into the single entry point spec.md §1 describes: "compile that
// description into a fast read/write plan, and drive bidirectional
// serialization through that plan". Everything here is a thin
// convenience layer over schema.Registry, plan.Builder, and
// wire.Reader/Writer — none of those packages depend on this one.
package dynpb

import (
	"reflect"

	"github.com/ironwood-labs/dynpb/config"
	"github.com/ironwood-labs/dynpb/plan"
	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
)

// Engine owns one frozen registry and the compiled plans built against
// it. Safe for concurrent Marshal/Unmarshal calls once Freeze has been
// called (spec.md §5: "multiple independent serialize calls on the
// same frozen registry proceed in parallel without coordination").
type Engine struct {
	reg     *schema.Registry
	builder *plan.Builder
}

// New creates an Engine over a freshly created, open Registry.
func New(opts ...config.Option) *Engine {
	reg := schema.NewRegistry(opts...)
	return &Engine{reg: reg, builder: plan.NewBuilder(reg)}
}

// NewFromRegistry wraps an already-constructed Registry, for callers
// that need direct access to Register/RegisterAlias/OnContention before
// handing the registry to an Engine.
func NewFromRegistry(reg *schema.Registry) *Engine {
	return &Engine{reg: reg, builder: plan.NewBuilder(reg)}
}

// Registry returns the underlying registry, for callers that need
// Register/Freeze/ContentionStats directly.
func (e *Engine) Registry() *schema.Registry { return e.reg }

// Register adds entry for t; see schema.Registry.Register.
func (e *Engine) Register(t reflect.Type, entry *schema.TypeEntry) error {
	return e.reg.Register(t, entry)
}

// Freeze freezes the underlying registry; see schema.Registry.Freeze.
func (e *Engine) Freeze() { e.reg.Freeze() }

// Marshal serializes v (a pointer to a registered, or auto-addable,
// record type) to its Protocol Buffers wire-format bytes.
func (e *Engine) Marshal(v any) ([]byte, error) {
	p, err := e.builder.Build(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	var wopts []wire.WriterOption
	w := wire.NewWriter(wopts...)
	if err := p.Write(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal deserializes data into v (a pointer to a registered, or
// auto-addable, record type), per spec.md §6's lifecycle contract.
func (e *Engine) Unmarshal(data []byte, v any) error {
	p, err := e.builder.Build(reflect.TypeOf(v))
	if err != nil {
		return err
	}
	var ropts []wire.ReaderOption
	if e.reg.Options().InternStrings {
		ropts = append(ropts, wire.WithStringInterning())
	}
	r := wire.NewReader(data, ropts...)
	return p.Read(r, v)
}

// MarshalAs serializes owner through the plan compiled for rootType
// rather than reflect.TypeOf(owner), for the polymorphic case where
// rootType names a registered base of owner's concrete type (spec.md
// §4.G): the plan's rootChain/subTypes walk still discovers and nests
// the more-derived levels, since owner (the full concrete, most-derived
// struct) carries every level's fields by Go embedding promotion.
func (e *Engine) MarshalAs(rootType reflect.Type, owner any) ([]byte, error) {
	p, err := e.builder.Build(rootType)
	if err != nil {
		return nil, err
	}
	w := wire.NewWriter()
	if err := p.Write(w, owner); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalAs is MarshalAs's read-side counterpart: it deserializes
// data into owner using the plan compiled for rootType, so a
// discriminator sub-item encountered mid-read can recurse into a
// more-derived sub-type plan while continuing to populate fields on
// the same owner. owner must already be the concrete, most-derived
// struct the chain expects; UnmarshalAs does not allocate it.
func (e *Engine) UnmarshalAs(rootType reflect.Type, data []byte, owner any) error {
	p, err := e.builder.Build(rootType)
	if err != nil {
		return err
	}
	var ropts []wire.ReaderOption
	if e.reg.Options().InternStrings {
		ropts = append(ropts, wire.WithStringInterning())
	}
	r := wire.NewReader(data, ropts...)
	return p.Read(r, owner)
}

// Measure pre-computes v's serialized length without keeping the bytes
// around, per spec.md §4.J; the returned *plan.Measurer's WriteSized
// can then reuse the cached length for the real write instead of
// re-measuring.
func (e *Engine) Measure(v any) (*plan.Measurer, int, error) {
	p, err := e.builder.Build(reflect.TypeOf(v))
	if err != nil {
		return nil, 0, err
	}
	m := plan.NewMeasurer()
	n, err := m.Measure(p, v)
	return m, n, err
}
