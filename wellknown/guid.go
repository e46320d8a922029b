package wellknown

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ironwood-labs/dynpb/wire"
)

// WriteGuid writes id's canonical 16 bytes split into two little-endian
// uint64 halves, per spec.md §4.I: "{1: low64, 2: high64} little-endian
// byte mapping of the canonical 16-byte form".
func WriteGuid(w *wire.Writer, id uuid.UUID) error {
	b := [16]byte(id)
	low := binary.LittleEndian.Uint64(b[0:8])
	high := binary.LittleEndian.Uint64(b[8:16])
	if err := w.WriteFieldHeader(1, wire.Fixed64); err != nil {
		return err
	}
	if err := w.WriteFixed64(low); err != nil {
		return err
	}
	if err := w.WriteFieldHeader(2, wire.Fixed64); err != nil {
		return err
	}
	return w.WriteFixed64(high)
}

// ReadGuid reads a Guid sub-message's own fields back into a uuid.UUID.
func ReadGuid(r *wire.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	var low, high uint64
	for !r.EOF() {
		num, _, err := r.ReadFieldHeader()
		if err != nil {
			return id, err
		}
		if num == 0 {
			break
		}
		switch num {
		case 1:
			v, err := r.ReadFixed64()
			if err != nil {
				return id, err
			}
			low = v
		case 2:
			v, err := r.ReadFixed64()
			if err != nil {
				return id, err
			}
			high = v
		default:
			if err := r.SkipField(); err != nil {
				return id, err
			}
		}
	}
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], low)
	binary.LittleEndian.PutUint64(b[8:16], high)
	return uuid.UUID(b), nil
}
