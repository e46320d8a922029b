package wellknown

import (
	"math"

	"github.com/ironwood-labs/dynpb/config"
	"github.com/ironwood-labs/dynpb/wire"
)

// TickScale enumerates the unit a ScaledTicks.Value is expressed in,
// per spec.md §4.I's "{days,hours,minutes,seconds,ms,ticks,min/max}".
type TickScale int8

const (
	ScaleDays TickScale = iota
	ScaleHours
	ScaleMinutes
	ScaleSeconds
	ScaleMilliseconds
	ScaleTicks
	ScaleMinValue
	ScaleMaxValue
)

// ScaledTicks is the legacy time-span wire shape: {1: value
// signed-varint, 2: scale, 3: kind}, a project-specific format that
// predates Duration/Timestamp in the systems this library replaces and
// is kept only to round-trip prior data bit-for-bit, not to match any
// public google.protobuf message (spec.md §4.I, §6 "legacy
// scaled-ticks variants ... must round-trip with existing data").
type ScaledTicks struct {
	Value int64
	Scale TickScale
	Kind  config.DateTimeKind
}

// SaturatingInfinity reports whether Value is at the ±max sentinel that
// spec.md §4.I designates as saturating positive/negative infinity.
func (s ScaledTicks) SaturatingInfinity() (positive, negative bool) {
	return s.Value == math.MaxInt64, s.Value == math.MinInt64
}

// WriteScaledTicks writes value and scale unconditionally (both are
// semantically significant even at zero, unlike Duration/Timestamp's
// additive fields) and writes s.Kind only when includeKind is set
// (spec.md §6's include_datetime_kind option). It does not consult
// config.Options.DateTimeKind.
func WriteScaledTicks(w *wire.Writer, s ScaledTicks, includeKind bool) error {
	if err := w.WriteFieldHeader(1, wire.Varint); err != nil {
		return err
	}
	if err := w.WriteSignedVarint64(s.Value); err != nil {
		return err
	}
	if err := w.WriteFieldHeader(2, wire.Varint); err != nil {
		return err
	}
	if err := w.WriteVarint(uint64(s.Scale)); err != nil {
		return err
	}
	if includeKind {
		if err := w.WriteFieldHeader(3, wire.Varint); err != nil {
			return err
		}
		if err := w.WriteVarint(uint64(s.Kind)); err != nil {
			return err
		}
	}
	return nil
}

// ReadScaledTicks reads a ScaledTicks sub-message's own fields; kind
// defaults to config.DateTimeUnspecified when field 3 is absent.
func ReadScaledTicks(r *wire.Reader) (ScaledTicks, error) {
	var s ScaledTicks
	for !r.EOF() {
		num, _, err := r.ReadFieldHeader()
		if err != nil {
			return s, err
		}
		if num == 0 {
			break
		}
		switch num {
		case 1:
			v, err := r.ReadSignedVarint64()
			if err != nil {
				return s, err
			}
			s.Value = v
		case 2:
			v, err := r.ReadVarint()
			if err != nil {
				return s, err
			}
			s.Scale = TickScale(v)
		case 3:
			v, err := r.ReadVarint()
			if err != nil {
				return s, err
			}
			s.Kind = config.DateTimeKind(v)
		default:
			if err := r.SkipField(); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}
