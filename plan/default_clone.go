package plan

import "github.com/tiendc/go-deepcopy"

// cloneDefault returns a copy of v safe to hand to a caller who may
// mutate it in place, for default values that are not comparable by
// identity (byte slices, nested messages). Generalizes the same
// problem the teacher solves with proto.Clone in
// dynamic.Message.GetField for message-typed defaults, to arbitrary Go
// values since this core's records are not limited to generated
// message types.
func cloneDefault(v any) any {
	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v // value types: no aliasing is possible
	}
	var dst any
	if err := deepcopy.Copy(&dst, v); err != nil {
		return v
	}
	return dst
}
