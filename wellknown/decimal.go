package wellknown

import (
	"fmt"

	"github.com/ironwood-labs/dynpb/wire"
	"github.com/ironwood-labs/dynpb/xerr"
)

// Decimal is the 96-bit-significand wire shape of spec.md §4.I: {1:
// low64, 2: high32, 3: signscale}. signscale packs the decimal's scale
// (0..28) in its low 16 bits and the sign in bit 31, following the
// .NET System.Decimal wire convention this adapter exists to
// interoperate with.
type Decimal struct {
	Low      uint64
	High     uint32
	Scale    uint8 // 0..28
	Negative bool
}

const maxDecimalScale = 28

// signScale packs Scale and Negative into the field-3 wire value.
func (d Decimal) signScale() uint32 {
	v := uint32(d.Scale)
	if d.Negative {
		v |= 1 << 31
	}
	return v
}

func decimalFromSignScale(v uint32) (scale uint8, negative bool) {
	return uint8(v & 0xFFFF), v&(1<<31) != 0
}

// WriteDecimal writes all three fields unconditionally; low/high are
// fixed-width (matching the source representation's raw 96-bit
// integer) and signscale is a plain varint.
func WriteDecimal(w *wire.Writer, d Decimal) error {
	if d.Scale > maxDecimalScale {
		return fmt.Errorf("wellknown: %w: decimal scale %d exceeds %d", xerr.ErrMalformedInput, d.Scale, maxDecimalScale)
	}
	if err := w.WriteFieldHeader(1, wire.Fixed64); err != nil {
		return err
	}
	if err := w.WriteFixed64(d.Low); err != nil {
		return err
	}
	if err := w.WriteFieldHeader(2, wire.Fixed32); err != nil {
		return err
	}
	if err := w.WriteFixed32(d.High); err != nil {
		return err
	}
	if err := w.WriteFieldHeader(3, wire.Varint); err != nil {
		return err
	}
	return w.WriteVarint(uint64(d.signScale()))
}

// ReadDecimal reads a Decimal sub-message's own fields.
func ReadDecimal(r *wire.Reader) (Decimal, error) {
	var d Decimal
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
			v, err := r.ReadFixed64()
			if err != nil {
				return d, err
			}
			d.Low = v
		case 2:
			v, err := r.ReadFixed32()
			if err != nil {
				return d, err
			}
			d.High = v
		case 3:
			v, err := r.ReadVarint()
			if err != nil {
				return d, err
			}
			d.Scale, d.Negative = decimalFromSignScale(uint32(v))
		default:
			if err := r.SkipField(); err != nil {
				return d, err
			}
		}
	}
	return d, nil
}
