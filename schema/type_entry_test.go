package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type base struct {
	ID int32
}

type derived struct {
	base
	Extra string
}

func TestTypeEntrySubTypeDiscriminatorCannotCollideWithField(t *testing.T) {
	te := NewTypeEntry(reflect.TypeOf(base{}))
	require.NoError(t, te.AddField(&FieldDescriptor{Number: 1, Kind: KindScalar}))

	err := te.AddSubType(reflect.TypeOf(derived{}), 1)
	require.Error(t, err)

	require.NoError(t, te.AddSubType(reflect.TypeOf(derived{}), 2))
	require.Equal(t, int32(2), te.SubTypes[reflect.TypeOf(derived{})])
}

func TestFieldDescriptorDefaultEqualsBitwiseFloat(t *testing.T) {
	fd := &FieldDescriptor{Default: float64(0)}
	require.True(t, fd.DefaultEquals(float64(0)))
	require.False(t, fd.DefaultEquals(float64(-0.0000001)))

	nan := &FieldDescriptor{Default: float64(0)}
	require.False(t, nan.DefaultEquals(nanFloat()))
}

func nanFloat() float64 {
	var zero float64
	return zero / zero
}

func TestFieldDescriptorIsPackable(t *testing.T) {
	scalarVarint := &FieldDescriptor{Kind: KindScalar, WireType: WireVarint}
	require.True(t, scalarVarint.IsPackable())

	scalarBytes := &FieldDescriptor{Kind: KindScalar, WireType: WireBytes}
	require.False(t, scalarBytes.IsPackable())

	msg := &FieldDescriptor{Kind: KindMessage, WireType: WireVarint}
	require.False(t, msg.IsPackable())
}
