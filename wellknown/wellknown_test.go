package wellknown

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ironwood-labs/dynpb/config"
	"github.com/ironwood-labs/dynpb/wire"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// Scenario 5: Duration of 1.5s (seconds=1, nanos=500_000_000) -> 08 01 10 80 94 eb dc 01.
func TestWriteDurationScenario5(t *testing.T) {
	w := wire.NewWriter()
	require.NoError(t, WriteDuration(w, Duration{Seconds: 1, Nanos: 500_000_000}))
	require.Equal(t, hexBytes(t, "08011080" + "94ebdc01"), w.Bytes())
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration{Seconds: 1, Nanos: 500_000_000}
	w := wire.NewWriter()
	require.NoError(t, WriteDuration(w, d))

	r := wire.NewReader(w.Bytes())
	got, err := ReadDuration(r)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

// Duration/Timestamp must be bit-exact with the real protobuf wire
// format: marshal the same values through google.golang.org/protobuf's
// generated types and compare bytes directly.
func TestDurationBitExactWithRealProtobuf(t *testing.T) {
	cases := []Duration{
		{Seconds: 1, Nanos: 500_000_000},
		{Seconds: 0, Nanos: 0},
		{Seconds: 86400, Nanos: 1},
		{Seconds: -5, Nanos: 250_000_000},
	}
	for _, d := range cases {
		want, err := proto.Marshal(&durationpb.Duration{Seconds: d.Seconds, Nanos: d.Nanos})
		require.NoError(t, err)

		w := wire.NewWriter()
		require.NoError(t, WriteDuration(w, d))
		require.Equal(t, want, w.Bytes(), "duration %+v", d)
	}
}

func TestTimestampBitExactWithRealProtobuf(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 123_456_789, time.UTC)
	ts := TimestampFromStdlib(now)

	want, err := proto.Marshal(timestamppb.New(now))
	require.NoError(t, err)

	w := wire.NewWriter()
	require.NoError(t, WriteTimestamp(w, ts))
	require.Equal(t, want, w.Bytes())

	r := wire.NewReader(w.Bytes())
	got, err := ReadTimestamp(r)
	require.NoError(t, err)
	require.Equal(t, now, got.Stdlib())
}

func TestDurationFromTicksNormalizesNegativeNanos(t *testing.T) {
	// -1500ms at 1000 ticks/sec should normalize to seconds=-2, nanos=500_000_000,
	// matching spec.md §4.I's "nanos is normalized non-negative with a
	// unit borrowed from seconds on serialize".
	d := DurationFromTicks(-1500, 1000)
	require.Equal(t, int64(-2), d.Seconds)
	require.Equal(t, int32(500_000_000), d.Nanos)
}

func TestScaledTicksRoundTripWithKind(t *testing.T) {
	s := ScaledTicks{Value: -123456, Scale: ScaleMilliseconds, Kind: config.DateTimeUTC}
	w := wire.NewWriter()
	require.NoError(t, WriteScaledTicks(w, s, true))

	r := wire.NewReader(w.Bytes())
	got, err := ReadScaledTicks(r)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestScaledTicksOmitsKindWhenNotRequested(t *testing.T) {
	s := ScaledTicks{Value: 10, Scale: ScaleSeconds, Kind: config.DateTimeLocal}
	w := wire.NewWriter()
	require.NoError(t, WriteScaledTicks(w, s, false))

	r := wire.NewReader(w.Bytes())
	got, err := ReadScaledTicks(r)
	require.NoError(t, err)
	require.Equal(t, config.DateTimeUnspecified, got.Kind)
	require.Equal(t, s.Value, got.Value)
}

func TestScaledTicksSaturatingInfinity(t *testing.T) {
	pos := ScaledTicks{Value: 1<<63 - 1}
	neg := ScaledTicks{Value: -1 << 63}
	p, n := pos.SaturatingInfinity()
	require.True(t, p)
	require.False(t, n)
	p, n = neg.SaturatingInfinity()
	require.False(t, p)
	require.True(t, n)
}

func TestDecimalRoundTrip(t *testing.T) {
	d := Decimal{Low: 0x0102030405060708, High: 0x090A0B0C, Scale: 4, Negative: true}
	w := wire.NewWriter()
	require.NoError(t, WriteDecimal(w, d))

	r := wire.NewReader(w.Bytes())
	got, err := ReadDecimal(r)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestDecimalRejectsScaleAboveMax(t *testing.T) {
	w := wire.NewWriter()
	err := WriteDecimal(w, Decimal{Scale: 29})
	require.Error(t, err)
}

func TestGuidRoundTrip(t *testing.T) {
	id := uuid.New()
	w := wire.NewWriter()
	require.NoError(t, WriteGuid(w, id))

	r := wire.NewReader(w.Bytes())
	got, err := ReadGuid(r)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestGuidNilRoundTrip(t *testing.T) {
	w := wire.NewWriter()
	require.NoError(t, WriteGuid(w, uuid.Nil))

	r := wire.NewReader(w.Bytes())
	got, err := ReadGuid(r)
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, got)
}
