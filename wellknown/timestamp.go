package wellknown

import (
	"time"

	"github.com/ironwood-labs/dynpb/wire"
)

// Timestamp is the Go-side value type for google.protobuf.Timestamp:
// same {1: seconds, 2: nanos} wire shape as Duration, offset from the
// Unix epoch rather than measuring an elapsed span (spec.md §4.I).
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampFromStdlib converts a time.Time to the wire shape, always
// normalizing nanos to [0, 1e9) the way the canonical protobuf
// timestamp.proto implementation does.
func TimestampFromStdlib(t time.Time) Timestamp {
	u := t.UTC()
	return Timestamp{Seconds: u.Unix(), Nanos: int32(u.Nanosecond())}
}

// Stdlib converts back to a time.Time in UTC.
func (ts Timestamp) Stdlib() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// WriteTimestamp mirrors WriteDuration's field-by-field encoding;
// Timestamp has its own function (rather than reusing Duration's) so
// the two value types stay independent even though the wire shape is
// identical, matching spec.md treating them as distinct adapters.
func WriteTimestamp(w *wire.Writer, ts Timestamp) error {
	if ts.Seconds != 0 {
		if err := w.WriteFieldHeader(1, wire.Varint); err != nil {
			return err
		}
		if err := w.WriteVarintInt64(ts.Seconds); err != nil {
			return err
		}
	}
	if ts.Nanos != 0 {
		if err := w.WriteFieldHeader(2, wire.Varint); err != nil {
			return err
		}
		if err := w.WriteVarintInt64(int64(ts.Nanos)); err != nil {
			return err
		}
	}
	return nil
}

// ReadTimestamp reads a Timestamp sub-message's own fields.
func ReadTimestamp(r *wire.Reader) (Timestamp, error) {
	var ts Timestamp
	for !r.EOF() {
		num, _, err := r.ReadFieldHeader()
		if err != nil {
			return ts, err
		}
		if num == 0 {
			break
		}
		switch num {
		case 1:
			v, err := r.ReadVarintInt64()
			if err != nil {
				return ts, err
			}
			ts.Seconds = v
		case 2:
			v, err := r.ReadVarintInt64()
			if err != nil {
				return ts, err
			}
			ts.Nanos = int32(v)
		default:
			if err := r.SkipField(); err != nil {
				return ts, err
			}
		}
	}
	return ts, nil
}
