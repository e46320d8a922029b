package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ironwood-labs/dynpb/bufpool"
	"github.com/ironwood-labs/dynpb/xerr"
)

// noLimit marks the top-level Reader's limit when there is no
// enclosing sub-item (either a buffer read in full, or a stream whose
// end is simply EOF).
const noLimit = math.MaxInt64

// Token is returned by StartSubItem and must be passed back to
// EndSubItem to close the same nesting level. Tokens are not
// reentrant-safe across readers; each belongs to the Reader that
// produced it.
type Token struct {
	prevLimit int64
	limit     int64 // absolute end position; unused (-1) for groups
	group     int32 // field number for a group token, -1 otherwise
}

// Reader is a positioned input cursor over either a contiguous buffer
// or a stream, surfacing field headers and honoring sub-item nesting.
// A Reader is an exclusive, non-shareable cursor: passing one across
// goroutines is undefined, per spec.md §5.
type Reader struct {
	buf    []byte
	pos    int64
	absLo  int64 // absolute position of buf[0]; nonzero once compacted
	limit  int64
	depth  int // open StartSubItem tokens; compaction only at depth 0
	source io.Reader
	atEOF  bool
	pool   bufpool.Pool

	wireType    Type
	fieldNumber int32
	hint        Type // pendingHint; -1 means "no hint set"
	strict      bool

	interning bool
	interned  map[string]string
}

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*Reader)

// WithPool overrides the buffer pool used for streaming refills.
func WithPool(p bufpool.Pool) ReaderOption {
	return func(r *Reader) { r.pool = p }
}

// WithStrictWireTypes sets the flag reported by Strict. Assert reports a
// mismatch in either mode; plan code returns that error only when
// Strict is true and otherwise ignores it; see spec.md §9's
// strict/non-strict open question.
func WithStrictWireTypes() ReaderOption {
	return func(r *Reader) { r.strict = true }
}

// WithStringInterning enables per-call string sharing: equal strings
// decoded during the lifetime of this Reader return the same backing
// string allocation.
func WithStringInterning() ReaderOption {
	return func(r *Reader) { r.interning = true; r.interned = make(map[string]string) }
}

// NewReader creates a Reader over a contiguous, already-fully-available
// buffer (the "ReadOnlyMemory"/"ReadOnlySequence" mode of spec.md §4.B).
func NewReader(buf []byte, opts ...ReaderOption) *Reader {
	r := &Reader{buf: buf, limit: int64(len(buf)), hint: -1, pool: bufpool.Default}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewStreamReader creates a Reader pulling from src on demand, used
// when the full input is not available as one contiguous slice.
func NewStreamReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{source: src, limit: noLimit, hint: -1, pool: bufpool.Default}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ensure guarantees at least n unread bytes are buffered at r.pos,
// pulling more from the stream (if any) and growing r.buf. It returns
// io.ErrUnexpectedEOF only when fewer than n bytes will ever be
// available; callers distinguish a clean top-level end-of-stream (zero
// bytes available at all) themselves, since that is not an error.
func (r *Reader) ensure(n int64) error {
	have := int64(len(r.buf)) - (r.pos - r.absLo)
	if have >= n {
		return nil
	}
	if r.source == nil {
		return io.ErrUnexpectedEOF
	}
	for {
		have = int64(len(r.buf)) - (r.pos - r.absLo)
		if have >= n {
			return nil
		}
		if r.atEOF {
			return io.ErrUnexpectedEOF
		}
		chunk := r.pool.Get(4096)
		chunk = chunk[:cap(chunk)]
		nRead, err := r.source.Read(chunk)
		if nRead > 0 {
			r.buf = append(r.buf, chunk[:nRead]...)
		}
		r.pool.Put(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.atEOF = true
				continue
			}
			return err
		}
	}
}

// bufPos returns pos relative to the current buf slice.
func (r *Reader) bufPos() int64 { return r.pos - r.absLo }

func (r *Reader) maybeCompact() {
	if r.depth != 0 {
		return
	}
	bp := r.bufPos()
	if bp <= 0 {
		return
	}
	r.buf = append(r.buf[:0], r.buf[bp:]...)
	r.absLo = r.pos
}

// EOF reports whether the reader is at the end of the current
// sub-item (or the end of the whole input, at depth 0).
func (r *Reader) EOF() bool {
	if r.pos >= r.limit {
		return true
	}
	if r.source == nil {
		return r.bufPos() >= int64(len(r.buf))
	}
	return r.ensure(1) != nil
}

// ReadFieldHeader reads a field tag+wire-type varint and returns the
// field number and wire type. It returns (0, 0, nil) when the cursor
// has reached the end of the current sub-item (or, at depth 0, the end
// of the stream) — there is no error for a clean end.
func (r *Reader) ReadFieldHeader() (int32, Type, error) {
	if r.pos >= r.limit {
		return 0, 0, nil
	}
	if err := r.ensure(10); err != nil {
		if r.bufPos() == int64(len(r.buf)) {
			return 0, 0, nil // clean end of top-level stream
		}
		// Fewer than 10 bytes remain but at least one is present;
		// decodeVarint below will succeed if the varint is short, or
		// report truncation if it genuinely needs more.
	}
	v, n, err := decodeVarint(r.buf[r.bufPos():])
	if err != nil {
		return 0, 0, err
	}
	r.pos += int64(n)
	num := UntagNumber(v)
	wt := UntagType(v)
	if num <= 0 {
		return 0, 0, xerr.ErrMalformedInput
	}
	r.wireType = wt
	r.fieldNumber = num
	r.hint = -1
	return num, wt, nil
}

// WireType returns the wire type of the field header most recently
// returned by ReadFieldHeader, ignoring any Hint override.
func (r *Reader) WireType() Type { return r.wireType }

// Hint overrides the wire type the next scalar read will honor,
// without consuming any additional bytes — used to read a varint
// field as zig-zag (SignedVarint) when the descriptor's data-format
// says so.
func (r *Reader) Hint(wt Type) { r.hint = wt }

func (r *Reader) effectiveWireType() Type {
	if r.hint >= 0 {
		return r.hint
	}
	return r.wireType
}

// Assert fails if the current wire type (after any Hint) is not wt. In
// non-strict mode (the default) this is advisory only; call sites that
// care about strictness should check the returned error themselves —
// Assert always returns the mismatch so callers opting into strict
// behavior (WithStrictWireTypes) can propagate it, while non-strict
// callers may choose to ignore it and reinterpret via Hint instead.
func (r *Reader) Assert(wt Type) error {
	if r.effectiveWireType() != wt {
		return fmt.Errorf("%w: expected %s, have %s", xerr.ErrBadWireType, wt, r.effectiveWireType())
	}
	return nil
}

// Strict reports whether this reader was constructed with
// WithStrictWireTypes.
func (r *Reader) Strict() bool { return r.strict }

func (r *Reader) readVarintRaw() (uint64, error) {
	if err := r.ensure(10); err != nil && r.bufPos() >= int64(len(r.buf)) {
		return 0, xerr.ErrTruncatedInput
	}
	v, n, err := decodeVarint(r.buf[r.bufPos():])
	if err != nil {
		return 0, err
	}
	r.pos += int64(n)
	return v, nil
}

// ReadVarint reads an unsigned base-128 varint (bool/uint32/uint64/enum).
func (r *Reader) ReadVarint() (uint64, error) { return r.readVarintRaw() }

// ReadSignedVarint64 reads a varint and applies the zig-zag inverse,
// i.e. reads a sint64.
func (r *Reader) ReadSignedVarint64() (int64, error) {
	v, err := r.readVarintRaw()
	if err != nil {
		return 0, err
	}
	return DecodeZigZag64(v), nil
}

func (r *Reader) ReadSignedVarint32() (int32, error) {
	v, err := r.readVarintRaw()
	if err != nil {
		return 0, err
	}
	return DecodeZigZag32(v), nil
}

// ReadVarintInt64 reads a plain (non-zig-zag) int32/int64, where
// negative values are sign-extended to 64 bits on the wire (protobuf's
// int32/int64 kinds, as opposed to sint32/sint64).
func (r *Reader) ReadVarintInt64() (int64, error) {
	v, err := r.readVarintRaw()
	return int64(v), err
}

// ReadFixed32 reads a little-endian 32-bit value (fixed32/sfixed32/float).
func (r *Reader) ReadFixed32() (uint32, error) {
	if err := r.ensure(4); err != nil {
		return 0, xerr.ErrTruncatedInput
	}
	v, err := decodeFixed32(r.buf[r.bufPos():])
	if err != nil {
		return 0, err
	}
	r.pos += 4
	return v, nil
}

// ReadFixed64 reads a little-endian 64-bit value (fixed64/sfixed64/double).
func (r *Reader) ReadFixed64() (uint64, error) {
	if err := r.ensure(8); err != nil {
		return 0, xerr.ErrTruncatedInput
	}
	v, err := decodeFixed64(r.buf[r.bufPos():])
	if err != nil {
		return 0, err
	}
	r.pos += 8
	return v, nil
}

// ReadBytes reads a length-delimited byte range. If alloc is false the
// returned slice aliases the reader's internal buffer (only safe for
// buffer-mode readers whose backing array the caller does not mutate
// and that will not be compacted before the slice is used); streaming
// readers always copy regardless of alloc, since compaction can move
// data underneath an aliased slice.
func (r *Reader) ReadBytes(alloc bool) ([]byte, error) {
	n, err := r.readVarintRaw()
	if err != nil {
		return nil, err
	}
	if err := r.ensure(int64(n)); err != nil {
		return nil, xerr.ErrTruncatedInput
	}
	start := r.bufPos()
	end := start + int64(n)
	if end > int64(len(r.buf)) {
		return nil, xerr.ErrTruncatedInput
	}
	var out []byte
	if alloc || r.source != nil {
		out = make([]byte, n)
		copy(out, r.buf[start:end])
	} else {
		out = r.buf[start:end]
	}
	r.pos += int64(n)
	return out, nil
}

// AppendBytes reads a length-delimited byte range and appends it to
// existing, returning the grown slice — useful for accumulating
// repeated bytes fields without an intermediate allocation per item.
func (r *Reader) AppendBytes(existing []byte) ([]byte, error) {
	n, err := r.readVarintRaw()
	if err != nil {
		return nil, err
	}
	if err := r.ensure(int64(n)); err != nil {
		return nil, xerr.ErrTruncatedInput
	}
	start := r.bufPos()
	end := start + int64(n)
	if end > int64(len(r.buf)) {
		return nil, xerr.ErrTruncatedInput
	}
	out := append(existing, r.buf[start:end]...)
	r.pos += int64(n)
	return out, nil
}

// ReadString reads a length-delimited UTF-8 string. When string
// interning is enabled, an equal string already seen during this
// Reader's lifetime is returned instead of allocating a new one.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes(true)
	if err != nil {
		return "", err
	}
	s := string(b)
	if r.interning {
		if existing, ok := r.interned[s]; ok {
			return existing, nil
		}
		r.interned[s] = s
	}
	return s, nil
}

// StartSubItem begins a nested message or group, per the current wire
// type (which must be Bytes or StartGroup). The returned Token must be
// passed to EndSubItem to restore the outer cursor's limit.
func (r *Reader) StartSubItem() (Token, error) {
	switch r.wireType {
	case Bytes:
		n, err := r.readVarintRaw()
		if err != nil {
			return Token{}, err
		}
		newLimit := r.pos + int64(n)
		if newLimit < r.pos || newLimit > r.limit {
			return Token{}, xerr.ErrTruncatedInput
		}
		tok := Token{prevLimit: r.limit, limit: newLimit, group: -1}
		r.limit = newLimit
		r.depth++
		return tok, nil
	case StartGroup:
		tok := Token{prevLimit: r.limit, limit: -1, group: r.fieldNumber}
		r.depth++
		return tok, nil
	default:
		return Token{}, fmt.Errorf("%w: cannot start a sub-item over wire type %s", xerr.ErrBadWireType, r.wireType)
	}
}

// EndSubItem closes a sub-item opened by StartSubItem, failing if the
// cursor did not land exactly on the sub-item's declared boundary (for
// length-delimited items) or if the matching end-group marker was not
// the most recently read field header (for groups).
func (r *Reader) EndSubItem(tok Token) error {
	r.depth--
	if tok.group >= 0 {
		if r.wireType != EndGroup || r.fieldNumber != tok.group {
			return fmt.Errorf("%w: missing end-group for field %d", xerr.ErrMalformedInput, tok.group)
		}
		r.limit = tok.prevLimit
		r.maybeCompact()
		return nil
	}
	if r.pos < tok.limit {
		return fmt.Errorf("%w: sub-item ended with %d bytes remaining", xerr.ErrMalformedInput, tok.limit-r.pos)
	}
	if r.pos > tok.limit {
		return fmt.Errorf("%w: sub-item overran its declared length by %d bytes", xerr.ErrMalformedInput, r.pos-tok.limit)
	}
	r.limit = tok.prevLimit
	r.maybeCompact()
	return nil
}

// SkipField discards the current field's payload according to its wire
// type, recursing through nested groups.
func (r *Reader) SkipField() error {
	switch r.wireType {
	case Varint:
		_, err := r.readVarintRaw()
		return err
	case Fixed32:
		_, err := r.ReadFixed32()
		return err
	case Fixed64:
		_, err := r.ReadFixed64()
		return err
	case Bytes:
		n, err := r.readVarintRaw()
		if err != nil {
			return err
		}
		return r.skip(int64(n))
	case StartGroup:
		return r.skipGroup()
	case EndGroup:
		return fmt.Errorf("%w: unexpected end-group", xerr.ErrMalformedInput)
	default:
		return fmt.Errorf("%w: unknown wire type %d", xerr.ErrMalformedInput, r.wireType)
	}
}

// skip advances the cursor by n bytes without returning them.
func (r *Reader) skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative skip length", xerr.ErrMalformedInput)
	}
	if err := r.ensure(n); err != nil {
		return xerr.ErrTruncatedInput
	}
	newPos := r.pos + n
	if newPos > r.limit {
		return xerr.ErrTruncatedInput
	}
	r.pos = newPos
	return nil
}

func (r *Reader) skipGroup() error {
	startNum := r.fieldNumber
	for {
		num, wt, err := r.ReadFieldHeader()
		if err != nil {
			return err
		}
		if num == 0 && wt == 0 {
			return fmt.Errorf("%w: unterminated group for field %d", xerr.ErrMalformedInput, startNum)
		}
		if wt == EndGroup {
			if num != startNum {
				return fmt.Errorf("%w: mismatched end-group, expected field %d got %d", xerr.ErrMalformedInput, startNum, num)
			}
			return nil
		}
		if wt == StartGroup {
			if err := r.skipGroup(); err != nil {
				return err
			}
			continue
		}
		if err := r.SkipField(); err != nil {
			return err
		}
	}
}
