package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZigZagRoundTrip(t *testing.T) {
	cases32 := []int32{0, 1, -1, math.MaxInt32, math.MinInt32, 150, -150}
	for _, v := range cases32 {
		got := DecodeZigZag32(EncodeZigZag32(v))
		require.Equal(t, v, got)
	}
	cases64 := []int64{0, 1, -1, math.MaxInt64, math.MinInt64, 150, -150}
	for _, v := range cases64 {
		got := DecodeZigZag64(EncodeZigZag64(v))
		require.Equal(t, v, got)
	}
}

func TestVarintBoundaryLengths(t *testing.T) {
	// Varints at 1, 2, 3, 5, 9, 10 bytes (spec.md §8 boundary behaviors).
	cases := []struct {
		v      uint64
		nbytes int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{1 << 20, 3},
		{1 << 34, 5},
		{1 << 48, 7},
		{1 << 56, 9},
		{math.MaxUint64, 10},
	}
	for _, c := range cases {
		buf := appendVarint(nil, c.v)
		require.Equal(t, c.nbytes, len(buf), "value %d", c.v)
		got, n, err := decodeVarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, c.v, got)
	}
}

func TestDecodeVarintOverflow(t *testing.T) {
	// 10 bytes, all with continuation bit set: no terminator within 10
	// bytes is malformed (too large to represent in 64 bits).
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	buf[10] = 0x01
	_, _, err := decodeVarint(buf)
	require.Error(t, err)
}

func TestFixedRoundTrip(t *testing.T) {
	b32 := appendFixed32(nil, 0xdeadbeef)
	v32, err := decodeFixed32(b32)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), v32)

	b64 := appendFixed64(nil, 0x0102030405060708)
	v64, err := decodeFixed64(b64)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), v64)
}

func TestTagPacking(t *testing.T) {
	v := Tag(1, Varint)
	require.Equal(t, int32(1), UntagNumber(v))
	require.Equal(t, Varint, UntagType(v))

	v = Tag(2, Bytes)
	require.Equal(t, int32(2), UntagNumber(v))
	require.Equal(t, Bytes, UntagType(v))
}
