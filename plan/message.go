package plan

import (
	"fmt"
	"reflect"

	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// MessagePlan is the compiled dispatch unit for one registered type:
// an ordered set of field nodes plus the inheritance-chain metadata
// needed to walk to a more-derived runtime type on write and to
// recognize a discriminator field on read (spec.md §4.G). MessagePlan
// values are immutable once returned by Builder.Build and safe to
// share across concurrent serialize calls (spec.md §5).
type MessagePlan struct {
	entry    *schema.TypeEntry
	byNumber map[int32]Node
	ordered  []int32 // field numbers in declaration order, for deterministic write

	base     *MessagePlan            // nil if entry has no registered base
	subTypes map[reflect.Type]int32  // direct children discriminator numbers
	subPlans map[reflect.Type]*MessagePlan
}

// Builder compiles a frozen schema.Registry's type entries into
// MessagePlans on demand, memoizing by Go type so a type referenced
// from many fields is only compiled once.
type Builder struct {
	reg   *schema.Registry
	cache map[reflect.Type]*MessagePlan
}

// NewBuilder creates a Builder over a frozen registry. Building
// against an open registry is a programmer error: nothing prevents it
// mechanically, but plans compiled before Freeze may miss types
// registered afterward.
func NewBuilder(reg *schema.Registry) *Builder {
	return &Builder{reg: reg, cache: make(map[reflect.Type]*MessagePlan)}
}

// PlanFor implements Compiler, resolving a nested message field's Go
// type to its compiled plan, building it on first use.
func (b *Builder) PlanFor(t reflect.Type) (*MessagePlan, error) {
	return b.Build(t)
}

// Build compiles (or returns the cached plan for) t.
func (b *Builder) Build(t reflect.Type) (*MessagePlan, error) {
	if p, ok := b.cache[t]; ok {
		return p, nil
	}
	var entry *schema.TypeEntry
	// Callers pass pointer types (Marshal's v, a message field's
	// MessageType); the registry is keyed by the struct type.
	lookupType := t
	for lookupType.Kind() == reflect.Ptr {
		lookupType = lookupType.Elem()
	}
	idx, ok := b.reg.Lookup(lookupType)
	if ok {
		entry = b.reg.Entry(idx)
	} else {
		if !b.reg.Options().AutoAddMissingTypes {
			return nil, &xerr.UnexpectedTypeError{Type: t}
		}
		var err error
		entry, err = b.synthesizeEntry(t)
		if err != nil {
			return nil, err
		}
	}

	p := &MessagePlan{
		entry:    entry,
		byNumber: make(map[int32]Node),
		subTypes: entry.SubTypes,
		subPlans: make(map[reflect.Type]*MessagePlan),
	}
	// Memoize before recursing so a cycle (A references A, or mutual
	// A<->B references) terminates instead of looping forever.
	b.cache[t] = p

	for _, fd := range entry.Fields {
		node, err := b.buildNode(fd)
		if err != nil {
			return nil, err
		}
		p.byNumber[fd.Number] = node
		p.ordered = append(p.ordered, fd.Number)
	}

	if entry.BaseIndex >= 0 {
		baseEntry := b.reg.Entry(entry.BaseIndex)
		basePlan, err := b.Build(baseEntry.GoType)
		if err != nil {
			return nil, err
		}
		p.base = basePlan
	}

	for childType := range entry.SubTypes {
		childPlan, err := b.Build(childType)
		if err != nil {
			return nil, err
		}
		p.subPlans[childType] = childPlan
	}

	return p, nil
}

func (b *Builder) buildNode(fd *schema.FieldDescriptor) (Node, error) {
	switch fd.Kind {
	case schema.KindScalar:
		return &scalarNode{fd: fd, implicitZeroDefault: b.reg.Options().ImplicitZeroDefaults}, nil
	case schema.KindEnum:
		return &enumNode{fd: fd}, nil
	case schema.KindMessage:
		return &subItemNode{fd: fd, compiler: b}, nil
	case schema.KindRepeated:
		return &repeatedNode{fd: fd, compiler: b}, nil
	case schema.KindMap:
		return &mapNode{fd: fd, compiler: b}, nil
	default:
		return nil, fmt.Errorf("plan: field %d has unknown kind %d", fd.Number, fd.Kind)
	}
}

// rootChain returns the registered entries from the root-most
// registered ancestor down to this plan, inclusive, by walking
// BaseIndex upward then reversing (spec.md §4.G: "walk the chain
// rootmost-first").
func (p *MessagePlan) rootChain() []*MessagePlan {
	chain := []*MessagePlan{p}
	for cur := p; cur.base != nil; cur = cur.base {
		chain = append(chain, cur.base)
	}
	// chain is currently leaf-first; reverse to root-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Write serializes owner (a pointer to p.entry.GoType) starting at the
// root-most registered ancestor,
// nesting one nested discriminator sub-item per inheritance level
// crossed, per spec.md §4.G.
func (p *MessagePlan) Write(w *wire.Writer, owner any) error {
	if hook := p.entry.BeforeSerialize; hook != nil {
		if err := hook(owner); err != nil {
			return err
		}
	}
	chain := p.rootChain()
	var tokens []wire.SubToken
	for i, level := range chain {
		if err := level.writeOwnFields(w, owner); err != nil {
			return err
		}
		if i+1 < len(chain) {
			next := chain[i+1]
			discrim, ok := level.subTypes[next.entry.GoType]
			if !ok {
				return &xerr.UnexpectedSubTypeError{Base: level.entry.GoType, Actual: next.entry.GoType}
			}
			if err := w.WriteFieldHeader(discrim, wire.Bytes); err != nil {
				return err
			}
			tok, err := w.StartSubItem()
			if err != nil {
				return err
			}
			tokens = append(tokens, tok)
		}
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		if err := w.EndSubItem(tokens[i]); err != nil {
			return err
		}
	}
	if hook := p.entry.AfterSerialize; hook != nil {
		if err := hook(owner); err != nil {
			return err
		}
	}
	return nil
}

func (p *MessagePlan) writeOwnFields(w *wire.Writer, owner any) error {
	for _, num := range p.ordered {
		if err := p.byNumber[num].Write(w, owner); err != nil {
			return fmt.Errorf("plan: writing field %d of %s: %w", num, p.entry.GoType, err)
		}
	}
	return nil
}

// Read deserializes into owner field-by-field, recursing into a
// nested discriminator sub-item whenever the field number read
// matches one of this level's registered sub-types, and seeding
// defaults for every own field never encountered (spec.md §4.D "on
// read, if the field is absent, seed the destination with the
// default").
func (p *MessagePlan) Read(r *wire.Reader, owner any) error {
	if hook := p.entry.BeforeDeserialize; hook != nil {
		if err := hook(owner); err != nil {
			return err
		}
	}
	seen := make(map[int32]bool, len(p.ordered))
	for {
		num, wt, err := r.ReadFieldHeader()
		if err != nil {
			return err
		}
		if num == 0 && wt == 0 {
			break
		}
		if wt == wire.EndGroup {
			// End of a group-framed sub-message; the caller's
			// Reader.EndSubItem checks the field number.
			break
		}
		if node, ok := p.byNumber[num]; ok {
			seen[num] = true
			if err := node.Read(r, owner); err != nil {
				return fmt.Errorf("plan: reading field %d of %s: %w", num, p.entry.GoType, err)
			}
			continue
		}
		if childType, ok := p.childForDiscriminator(num); ok {
			if err := r.Assert(wire.Bytes); err != nil && r.Strict() {
				return err
			}
			tok, err := r.StartSubItem()
			if err != nil {
				return err
			}
			child := p.subPlans[childType]
			if err := child.Read(r, owner); err != nil {
				return err
			}
			if err := r.EndSubItem(tok); err != nil {
				return err
			}
			continue
		}
		if err := r.SkipField(); err != nil {
			return err
		}
	}
	for _, num := range p.ordered {
		if seen[num] {
			continue
		}
		fd := p.fieldDescriptor(num)
		if fd == nil || fd.Default == nil {
			continue
		}
		fd.Accessor.Set(owner, cloneDefault(fd.Default))
	}
	if hook := p.entry.AfterDeserialize; hook != nil {
		if err := hook(owner); err != nil {
			return err
		}
	}
	return nil
}

func (p *MessagePlan) childForDiscriminator(num int32) (reflect.Type, bool) {
	for t, d := range p.subTypes {
		if d == num {
			return t, true
		}
	}
	return nil, false
}

func (p *MessagePlan) fieldDescriptor(num int32) *schema.FieldDescriptor {
	return p.entry.FieldByNumber(num)
}
