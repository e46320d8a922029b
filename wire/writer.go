package wire

import (
	"fmt"
	"io"
	"reflect"

	"github.com/ironwood-labs/dynpb/bufpool"
	"github.com/ironwood-labs/dynpb/xerr"
)

// isReferenceKind reports whether v's dynamic type has a meaningful,
// hashable identity distinct from its value — only pointers qualify
// (maps and slices can alias too, but are not comparable/hashable and
// so cannot be tracked in a Go map key); strings and other value types
// are exempt from the recursion check per spec.md §4.C.
func isReferenceKind(v any) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Ptr
}

// Sink is a stream-like byte sink.
type Sink interface {
	io.Writer
}

// BufferWriterSink is a segmented-buffer sink: GetMemory returns a
// writable span of at least minHint bytes (the caller may use less),
// and Advance commits the first n bytes of that span.
type BufferWriterSink interface {
	GetMemory(minHint int) []byte
	Advance(n int)
}

// reservedVarintWidth is the number of bytes reserved for a
// not-yet-known sub-message length, per spec.md §4.C strategy 2: the
// maximum width of a varint that can appear as a length prefix for any
// message this writer will ever produce in one call.
const reservedVarintWidth = 10

// WriterOption configures a Writer at construction time.
type WriterOption func(*Writer)

// WithWriterPool overrides the Writer's stored buffer pool. The Writer
// builds every message, packed fields included, in its own growing
// buffer and never draws from this pool.
func WithWriterPool(p bufpool.Pool) WriterOption {
	return func(w *Writer) { w.pool = p }
}

// WithRecursionCheck enables cycle detection: BeginObject/EndObject
// track pointer identities currently being written, raising
// xerr.ErrRecursion if the same identity is entered twice.
func WithRecursionCheck() WriterOption {
	return func(w *Writer) { w.recursionCheck = true; w.inProgress = make(map[any]struct{}) }
}

// Writer is a positioned output cursor, building a message in an
// internal growing buffer (like codec.Buffer) so that sub-message
// length backpatching can always use the buffered reserve-and-shift
// strategy without needing a second pass, unless the caller supplies a
// pre-measured length (see StartSubItemSized), in which case the exact
// length is written up front with no reservation at all.
type Writer struct {
	buf []byte

	packedField int32 // -1 when not in packed mode
	packedSaved Type  // wire type to restore is irrelevant; kept for clarity

	pending     Type // the wire type the next WriteXxx must match; -1 = unconstrained
	abandoned   bool
	recursionCheck bool
	inProgress  map[any]struct{}
	pool        bufpool.Pool
}

type subItemToken struct {
	isGroup     bool
	fieldNumber int32
	reserveAt   int // start of the reserved/ length-varint window
	payloadAt   int // start of the payload (after the window)
	expectLen   int // -1 unless StartSubItemSized
}

// SubToken is the opaque handle returned by StartSubItem[Sized].
type SubToken struct{ t subItemToken }

// NewWriter creates a Writer building into an internal buffer. Use
// Bytes or WriteTo to obtain the finished message.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{packedField: -1, pending: -1, pool: bufpool.Default}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Bytes returns the bytes written so far. The slice aliases the
// writer's internal buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// WriteTo copies the finished message to sink, satisfying io.WriterTo.
func (w *Writer) WriteTo(sink io.Writer) (int64, error) {
	n, err := sink.Write(w.buf)
	return int64(n), err
}

// FlushTo writes the finished message into a BufferWriterSink in one
// or more chunks sized by GetMemory's hint.
func (w *Writer) FlushTo(sink BufferWriterSink) error {
	remaining := w.buf
	for len(remaining) > 0 {
		mem := sink.GetMemory(len(remaining))
		if len(mem) == 0 {
			return xerr.ErrOutOfSpace
		}
		n := copy(mem, remaining)
		sink.Advance(n)
		remaining = remaining[n:]
	}
	return nil
}

// Abandon discards any buffered output and voids packed/recursion
// state, per spec.md §7's "on any failure, abandon() is invoked".
func (w *Writer) Abandon() {
	w.abandoned = true
	w.buf = nil
	w.packedField = -1
	w.pending = -1
	if w.inProgress != nil {
		for k := range w.inProgress {
			delete(w.inProgress, k)
		}
	}
}

// Close finalizes the writer. For a plain in-memory Writer this is a
// no-op beyond validating there is no open packed-field state; callers
// using FlushTo/WriteTo should do so before Close.
func (w *Writer) Close() error {
	if w.packedField >= 0 {
		return fmt.Errorf("%w: writer closed with packed field %d still open", xerr.ErrMalformedInput, w.packedField)
	}
	return nil
}

func (w *Writer) checkAlive() error {
	if w.abandoned {
		return fmt.Errorf("%w: writer was abandoned", xerr.ErrOutOfSpace)
	}
	return nil
}

// WriteFieldHeader emits a field tag+wire-type varint, unless the
// packed-field state machine is currently active for a different
// field number writing would be illegal for, or active for this same
// number (in which case the header is correctly suppressed).
func (w *Writer) WriteFieldHeader(number int32, wt Type) error {
	if err := w.checkAlive(); err != nil {
		return err
	}
	if w.packedField >= 0 {
		if number != w.packedField {
			return fmt.Errorf("%w: field %d written while packed field %d is open", xerr.ErrMalformedInput, number, w.packedField)
		}
		w.pending = packedItemPending(wt)
		return nil
	}
	w.buf = appendVarint(w.buf, Tag(number, wt))
	w.pending = wt
	return nil
}

// packedItemPending maps a packed item's logical wire type to the
// pending-payload state used for WriteXxx validation; packed varint
// items are still validated as Varint writes, etc.
func packedItemPending(wt Type) Type { return wt }

// SetPackedField switches the writer into packed-field mode: further
// WriteFieldHeader(number, ...) calls for this field number emit no
// header, so the per-item codec node can be reused unmodified for both
// packed and unpacked encoding.
func (w *Writer) SetPackedField(number int32) error {
	if w.packedField >= 0 {
		return fmt.Errorf("%w: packed field %d already open", xerr.ErrMalformedInput, w.packedField)
	}
	w.packedField = number
	return nil
}

// ClearPackedField leaves packed-field mode.
func (w *Writer) ClearPackedField(number int32) error {
	if w.packedField != number {
		return fmt.Errorf("%w: packed field %d is not open (have %d)", xerr.ErrMalformedInput, number, w.packedField)
	}
	w.packedField = -1
	return nil
}

func (w *Writer) checkPending(wt Type) error {
	if w.pending != -1 && w.pending != wt {
		return fmt.Errorf("%w: writer expected a %s payload, got %s", xerr.ErrBadWireType, w.pending, wt)
	}
	return nil
}

// WriteVarint writes an unsigned varint (bool/uint32/uint64/enum).
func (w *Writer) WriteVarint(v uint64) error {
	if err := w.checkAlive(); err != nil {
		return err
	}
	if err := w.checkPending(Varint); err != nil {
		return err
	}
	w.buf = appendVarint(w.buf, v)
	return nil
}

// WriteVarintInt64 writes a plain (sign-extended, non-zig-zag) int32/int64.
func (w *Writer) WriteVarintInt64(v int64) error { return w.WriteVarint(uint64(v)) }

// WriteSignedVarint64/32 zig-zag encode a sint64/sint32.
func (w *Writer) WriteSignedVarint64(v int64) error { return w.WriteVarint(EncodeZigZag64(v)) }
func (w *Writer) WriteSignedVarint32(v int32) error { return w.WriteVarint(EncodeZigZag32(v)) }

// WriteFixed32 writes a little-endian 32-bit value.
func (w *Writer) WriteFixed32(v uint32) error {
	if err := w.checkAlive(); err != nil {
		return err
	}
	if err := w.checkPending(Fixed32); err != nil {
		return err
	}
	w.buf = appendFixed32(w.buf, v)
	return nil
}

// WriteFixed64 writes a little-endian 64-bit value.
func (w *Writer) WriteFixed64(v uint64) error {
	if err := w.checkAlive(); err != nil {
		return err
	}
	if err := w.checkPending(Fixed64); err != nil {
		return err
	}
	w.buf = appendFixed64(w.buf, v)
	return nil
}

// WriteBytes writes a length-delimited byte range (bytes/string fields,
// and the raw building block sub-messages are wrapped in).
func (w *Writer) WriteBytes(b []byte) error {
	if err := w.checkAlive(); err != nil {
		return err
	}
	if err := w.checkPending(Bytes); err != nil {
		return err
	}
	w.buf = appendVarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
	return nil
}

// WriteString writes a length-delimited UTF-8 string.
func (w *Writer) WriteString(s string) error {
	if err := w.checkAlive(); err != nil {
		return err
	}
	if err := w.checkPending(Bytes); err != nil {
		return err
	}
	w.buf = appendVarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// StartSubItem begins a length-delimited sub-message whose length is
// not yet known: it reserves the maximum varint width, to be patched
// by EndSubItem once the payload has been written (strategy 2,
// "Buffered", from spec.md §4.C).
func (w *Writer) StartSubItem() (SubToken, error) {
	if err := w.checkAlive(); err != nil {
		return SubToken{}, err
	}
	if err := w.checkPending(Bytes); err != nil {
		return SubToken{}, err
	}
	reserveAt := len(w.buf)
	for i := 0; i < reservedVarintWidth; i++ {
		w.buf = append(w.buf, 0)
	}
	w.pending = -1
	return SubToken{subItemToken{reserveAt: reserveAt, payloadAt: len(w.buf), expectLen: -1}}, nil
}

// StartSubItemSized begins a length-delimited sub-message whose exact
// payload length is already known (from a prior plan.Measurer pass):
// the real length varint is written immediately, with no reservation
// or shifting needed (strategy 1, "Measure-then-write"). EndSubItem
// raises a LengthMismatchError if the payload actually written does
// not match length.
func (w *Writer) StartSubItemSized(length int) (SubToken, error) {
	if err := w.checkAlive(); err != nil {
		return SubToken{}, err
	}
	if err := w.checkPending(Bytes); err != nil {
		return SubToken{}, err
	}
	w.buf = appendVarint(w.buf, uint64(length))
	w.pending = -1
	return SubToken{subItemToken{reserveAt: -1, payloadAt: len(w.buf), expectLen: length}}, nil
}

// StartGroup begins a group-framed sub-message (strategy 3: no length
// prefix, just start/end markers). The caller must already have
// written the StartGroup field header via WriteFieldHeader.
func (w *Writer) StartGroup(fieldNumber int32) (SubToken, error) {
	if err := w.checkAlive(); err != nil {
		return SubToken{}, err
	}
	w.pending = -1
	return SubToken{subItemToken{isGroup: true, fieldNumber: fieldNumber, expectLen: -1}}, nil
}

// EndSubItem closes a sub-message opened by StartSubItem,
// StartSubItemSized, or StartGroup, patching the reserved length
// window (if any) and validating against any pre-measured length.
func (w *Writer) EndSubItem(tok SubToken) error {
	t := tok.t
	if t.isGroup {
		return w.WriteFieldHeader(t.fieldNumber, EndGroup)
	}
	payloadLen := len(w.buf) - t.payloadAt
	if t.expectLen >= 0 && t.expectLen != payloadLen {
		return &xerr.LengthMismatchError{Measured: t.expectLen, Observed: payloadLen}
	}
	if t.reserveAt < 0 {
		// StartSubItemSized already wrote the exact-width varint; nothing to patch.
		return nil
	}
	actual := varintSize(uint64(payloadLen))
	shift := reservedVarintWidth - actual
	if shift > 0 {
		copy(w.buf[t.reserveAt+actual:], w.buf[t.payloadAt:])
		w.buf = w.buf[:len(w.buf)-shift]
	}
	lenBytes := appendVarint(make([]byte, 0, actual), uint64(payloadLen))
	copy(w.buf[t.reserveAt:], lenBytes)
	return nil
}

// BeginObject registers owner (only pointers are tracked; every other
// kind, including maps, slices, value types and strings, is exempt)
// as in-progress, failing with xerr.ErrRecursion if
// it is already being written somewhere up the call stack.
func (w *Writer) BeginObject(owner any) error {
	if !w.recursionCheck || !isReferenceKind(owner) {
		return nil
	}
	if _, ok := w.inProgress[owner]; ok {
		return xerr.ErrRecursion
	}
	w.inProgress[owner] = struct{}{}
	return nil
}

// EndObject releases the in-progress marker set by BeginObject.
func (w *Writer) EndObject(owner any) {
	if !w.recursionCheck || !isReferenceKind(owner) {
		return
	}
	delete(w.inProgress, owner)
}
