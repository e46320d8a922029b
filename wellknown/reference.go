package wellknown

// Field numbers of the legacy cross-graph reference wire layout
// (AsReference/DynamicType). The shape is documented here so a future
// implementation has the numbers to build against, but no revival
// logic is implemented — out of scope per spec.md §1's non-goals list.
const (
	ReferenceFieldID          int32 = 1 // object identity within one serialize call
	ReferenceFieldTypeName    int32 = 2 // runtime type name, present only on first occurrence
	ReferenceFieldPayload     int32 = 3 // the referenced object's own fields, first occurrence only
)
