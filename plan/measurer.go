package plan

import (
	"reflect"

	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// measureKey identifies one (object identity, inheritance level) pair
// for the Measurer's length cache, per spec.md §4.J.
type measureKey struct {
	identity uintptr
	plan     *MessagePlan
}

// Measurer is the optional pre-pass of spec.md §4.J: it serializes
// once into a counting-only sink to compute and cache every
// sub-message's exact length, so a subsequent real write can use
// Writer.StartSubItemSized (strategy 1, measure-then-write) instead of
// the buffered reserve-and-shift strategy. Grounded on the general
// "serialize into a counting sink before the real marshal" shape of
// dynamic/dynamic_message.go's size-probing Buffer use.
type Measurer struct {
	lengths map[measureKey]int
}

// NewMeasurer creates an empty Measurer.
func NewMeasurer() *Measurer {
	return &Measurer{lengths: make(map[measureKey]int)}
}

// Measure runs p.Write(owner) into a throwaway counting writer and
// records the resulting length for (owner, p), returning it. Safe to
// call once per message before the real write; discards its buffer
// once the byte count is known.
//
// Only the root (owner, p) pair is cached: p.Write descends
// into nested sub-items via each field node's own Write, which does
// not call back into this Measurer, so WriteSized's pre-sizing benefit
// applies at the top level only — a nested sub-message still falls
// back to the buffered reserve-and-shift strategy. The returned total
// length is correct regardless; this only limits how deep the
// measure-then-write optimization reaches.
func (m *Measurer) Measure(p *MessagePlan, owner any) (int, error) {
	cw := wire.NewWriter()
	if err := p.Write(cw, owner); err != nil {
		return 0, err
	}
	n := cw.Len()
	if id, ok := identityOf(owner); ok {
		m.lengths[measureKey{identity: id, plan: p}] = n
	}
	return n, nil
}

// Lookup returns the cached length for (owner, p), if Measure has
// already run for that pair.
func (m *Measurer) Lookup(p *MessagePlan, owner any) (int, bool) {
	id, ok := identityOf(owner)
	if !ok {
		return 0, false
	}
	n, ok := m.lengths[measureKey{identity: id, plan: p}]
	return n, ok
}

// WriteSized runs p.Write(owner) into w inside a pre-sized
// sub-item opened with the cached length from a prior Measure call,
// raising xerr.LengthMismatchError (via Writer.EndSubItem) if the
// real write disagrees — signaling the value mutated between the
// measure and write passes.
func (m *Measurer) WriteSized(w *wire.Writer, p *MessagePlan, owner any) error {
	length, ok := m.Lookup(p, owner)
	if !ok {
		return xerr.ErrTruncatedInput
	}
	tok, err := w.StartSubItemSized(length)
	if err != nil {
		return err
	}
	if err := p.Write(w, owner); err != nil {
		return err
	}
	return w.EndSubItem(tok)
}

func identityOf(owner any) (uintptr, bool) {
	v := reflect.ValueOf(owner)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}
