package wire

import (
	"context"
	"io"
)

// PumpRead copies src into dst in fixed-size chunks, checking ctx
// between each chunk so a cooperative runtime can yield — the core
// codec itself never awaits (spec.md §5); this is the thin async
// veneer Design Notes §9 invites ("offer async wrappers that pump
// through a bounded buffer and yield at buffer boundaries, not inside
// the codec") for callers who need a context-aware copy before handing
// a fully materialized buffer to NewReader.
func PumpRead(ctx context.Context, dst io.Writer, src io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

// PumpWrite streams a Writer's finished buffer to sink in fixed-size
// chunks, checking ctx between each chunk.
func PumpWrite(ctx context.Context, sink io.Writer, w *Writer, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	remaining := w.Bytes()
	var total int64
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n := chunkSize
		if n > len(remaining) {
			n = len(remaining)
		}
		wn, err := sink.Write(remaining[:n])
		total += int64(wn)
		if err != nil {
			return total, err
		}
		remaining = remaining[n:]
	}
	return total, nil
}
