// Package wellknown provides the adapters of spec.md §4.I: fixed wire
// shapes for values that occur often enough to deserve a built-in
// encoding instead of requiring every caller to hand-register them as
// ordinary two/three-field messages. Duration and Timestamp match the
// real google.protobuf wire format bit-for-bit; ScaledTicks and Decimal
// are project-specific legacy shapes that only need to round-trip with
// themselves.
package wellknown

import (
	"time"

	"github.com/ironwood-labs/dynpb/wire"
)

// Duration is the Go-side value type for google.protobuf.Duration:
// {1: seconds int64, 2: nanos int32}, per spec.md §4.I.
type Duration struct {
	Seconds int64
	Nanos   int32
}

// DurationFromTicks converts a tick count at the given ticks-per-second
// rate into a Duration, normalizing nanos non-negative per spec.md
// §4.I ("nanos is normalized non-negative with a unit borrowed from
// seconds on serialize").
func DurationFromTicks(ticks int64, tps int64) Duration {
	seconds := ticks / tps
	remainder := ticks % tps
	nanos := remainder * (1_000_000_000 / tps)
	if nanos < 0 {
		nanos += 1_000_000_000
		seconds--
	}
	return Duration{Seconds: seconds, Nanos: int32(nanos)}
}

// DurationFromStdlib converts a time.Duration to the wire shape.
func DurationFromStdlib(d time.Duration) Duration {
	return Duration{
		Seconds: int64(d / time.Second),
		Nanos:   int32(d % time.Second),
	}
}

// Stdlib converts back to a time.Duration.
func (d Duration) Stdlib() time.Duration {
	return time.Duration(d.Seconds)*time.Second + time.Duration(d.Nanos)
}

// WriteDuration writes d's two fields directly, skipping either one
// that equals its zero default — matching how a plain scalarNode would
// behave for an ordinary {1: int64, 2: int32} message, since Duration
// is wired as exactly that shape rather than through the generic
// per-field node machinery.
func WriteDuration(w *wire.Writer, d Duration) error {
	// google.protobuf.Duration declares both fields as plain int64/int32
	// (not sint64/sint32), so negatives sign-extend to a 10-byte varint
	// rather than zig-zag — WriteVarintInt64 matches that wire type.
	if d.Seconds != 0 {
		if err := w.WriteFieldHeader(1, wire.Varint); err != nil {
			return err
		}
		if err := w.WriteVarintInt64(d.Seconds); err != nil {
			return err
		}
	}
	if d.Nanos != 0 {
		if err := w.WriteFieldHeader(2, wire.Varint); err != nil {
			return err
		}
		if err := w.WriteVarintInt64(int64(d.Nanos)); err != nil {
			return err
		}
	}
	return nil
}

// ReadDuration reads a Duration sub-message's own fields (the caller is
// responsible for the surrounding sub-item framing, matching every
// other message-kind reader in this module).
func ReadDuration(r *wire.Reader) (Duration, error) {
	var d Duration
	for !r.EOF() {
		num, _, err := r.ReadFieldHeader()
		if err != nil {
			return d, err
		}
		if num == 0 {
			break
		}
		switch num {
		case 1:
			v, err := r.ReadVarintInt64()
			if err != nil {
				return d, err
			}
			d.Seconds = v
		case 2:
			v, err := r.ReadVarintInt64()
			if err != nil {
				return d, err
			}
			d.Nanos = int32(v)
		default:
			if err := r.SkipField(); err != nil {
				return d, err
			}
		}
	}
	return d, nil
}
