package schema

import "reflect"

// SurrogateBinding records that values of one Go type are serialized
// in place of another (spec.md §3(vi)): Convert maps a value of the
// owning type to the surrogate's representation on write; Restore
// does the inverse on read.
type SurrogateBinding struct {
	SurrogateType reflect.Type
	Convert       func(owner any) any
	Restore       func(surrogate any) any
}

// TypeEntry is the per-user-type record of spec.md §3: an ordered
// field list (held here as a slice in AddField call order, with ByNumber
// for O(1) lookup), the sub-type table keyed by child Go type, a
// base-type back-link by registry index (weak, per the ownership
// rule in spec.md §3), an optional bypass-constructor factory, and
// the four lifecycle hooks.
type TypeEntry struct {
	GoType reflect.Type

	Fields   []*FieldDescriptor
	ByNumber map[int32]*FieldDescriptor

	// SubTypes maps a derived Go type to the discriminator field
	// number used when GoType is the base of that type.
	SubTypes map[reflect.Type]int32
	// BaseIndex is the registry index of this type's base entry, or
	// -1 if GoType has no registered base.
	BaseIndex int32

	Factory func() any

	BeforeSerialize   func(any) error
	AfterSerialize    func(any) error
	BeforeDeserialize func(any) error
	AfterDeserialize  func(any) error

	Surrogate *SurrogateBinding
}

// NewTypeEntry creates an empty entry for t with no base and no
// sub-types, ready to accept AddField calls.
func NewTypeEntry(t reflect.Type) *TypeEntry {
	return &TypeEntry{
		GoType:    t,
		ByNumber:  make(map[int32]*FieldDescriptor),
		SubTypes:  make(map[reflect.Type]int32),
		BaseIndex: -1,
	}
}

// AddField registers fd on this entry, rejecting a non-positive number
// or one already used by a field of this same entry. Numbers used by
// the entry's base or derived entries are not checked.
func (te *TypeEntry) AddField(fd *FieldDescriptor) error {
	if fd.Number <= 0 {
		return newFieldNumberError(te.GoType, fd.Number, "field numbers must be positive")
	}
	if _, exists := te.ByNumber[fd.Number]; exists {
		return newFieldNumberError(te.GoType, fd.Number, "duplicate field number")
	}
	te.Fields = append(te.Fields, fd)
	te.ByNumber[fd.Number] = fd
	return nil
}

// AddSubType records that child is a registered derived type of this
// entry, discriminated on the wire by the sub-message at field
// discriminator.
func (te *TypeEntry) AddSubType(child reflect.Type, discriminator int32) error {
	if _, exists := te.ByNumber[discriminator]; exists {
		return newFieldNumberError(te.GoType, discriminator, "discriminator collides with a declared field")
	}
	te.SubTypes[child] = discriminator
	return nil
}

// FieldByNumber returns the descriptor for number, or nil.
func (te *TypeEntry) FieldByNumber(number int32) *FieldDescriptor {
	return te.ByNumber[number]
}
