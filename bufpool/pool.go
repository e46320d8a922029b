// Package bufpool supplies the injected byte-buffer pool used by
// wire.Reader's streaming refill. wire.Writer stores a Pool but never
// draws from it. Pool pressure never blocks a caller: Get always
// returns usable memory, falling back to a fresh allocation when the
// pool is empty.
package bufpool

import "sync"

// Pool hands out and reclaims scratch byte slices. Implementations must
// be safe for concurrent use.
type Pool interface {
	// Get returns a slice with length 0 and capacity at least size.
	Get(size int) []byte
	// Put returns a slice obtained from Get back to the pool. The
	// caller must not use buf after calling Put.
	Put(buf []byte)
}

// Default is the package-level pool used when no Pool option is given
// to a Reader or Writer constructor.
var Default Pool = New()

// syncPool is the standard sync.Pool-backed implementation.
type syncPool struct {
	p sync.Pool
}

// New returns a Pool backed by sync.Pool.
func New() Pool {
	return &syncPool{
		p: sync.Pool{
			New: func() any { return make([]byte, 0, 256) },
		},
	}
}

func (sp *syncPool) Get(size int) []byte {
	b := sp.p.Get().([]byte)
	if cap(b) < size {
		return make([]byte, 0, size)
	}
	return b[:0]
}

func (sp *syncPool) Put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	//nolint:staticcheck // intentionally storing a slice header in sync.Pool
	sp.p.Put(buf[:0])
}

// NoopPool never retains anything; every Get allocates fresh. Useful
// for deterministic tests where pooling would make allocation behavior
// (and therefore, occasionally, ordering of unrelated heap state)
// nondeterministic across runs.
type NoopPool struct{}

func (NoopPool) Get(size int) []byte { return make([]byte, 0, size) }
func (NoopPool) Put([]byte)          {}

var _ Pool = NoopPool{}
var _ Pool = (*syncPool)(nil)
