package schema

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ironwood-labs/dynpb/config"
	"github.com/ironwood-labs/dynpb/xerr"
	"golang.org/x/sync/semaphore"
)

// ContentionStats counts writer-lock contention events, grounded on
// the teacher's nil-receiver-safe optional-callback idiom
// (dynamic.MessageFactory): every method is safe to call on a zero
// value, and the callback is only invoked when set.
type ContentionStats struct {
	contended int64
	onContend func(ContentionInfo)
}

// ContentionInfo is passed to the optional contention callback, which
// runs as soon as a writer finds the lock held, before it waits. Holder
// carries the call-stack of that waiting writer (not of the goroutine
// holding the lock), captured via runtime.Callers.
type ContentionInfo struct {
	Holder []uintptr
}

// Contended returns the number of times a writer had to wait for the
// registry's single-writer lock.
func (c *ContentionStats) Contended() int64 {
	if c == nil {
		return 0
	}
	return atomic.LoadInt64(&c.contended)
}

func (c *ContentionStats) record(holder []uintptr) {
	atomic.AddInt64(&c.contended, 1)
	if c.onContend != nil {
		c.onContend(ContentionInfo{Holder: holder})
	}
}

// Registry is the runtime type model of spec.md §3/§4.E: a map of Go
// type to TypeEntry, open for single-writer mutation with a deadline
// until Freeze, after which it is immutable and safe for concurrent
// readers. Grounded on desc/globals.go's process-wide cache pattern
// and desc/builder/builders.go's builder-then-Build() shape (Freeze
// here).
type Registry struct {
	opts config.Options

	mu    sync.RWMutex // guards entries/index during the open phase
	sem   *semaphore.Weighted
	stats ContentionStats

	entries []*TypeEntry
	index   map[reflect.Type]int32
	aliases map[reflect.Type]reflect.Type

	frozen atomic.Bool

	// proxySuffixes is a configurable set of type-name suffixes stripped
	// by ResolveProxy (spec.md §4.E "resolve_proxies"), e.g. ORM lazy
	// proxies named "*Proxy".
	proxySuffixes []string
}

// NewRegistry creates an empty, open Registry.
func NewRegistry(opts ...config.Option) *Registry {
	return &Registry{
		opts:  config.Apply(opts...),
		sem:   semaphore.NewWeighted(1),
		index: make(map[reflect.Type]int32),
	}
}

// Options returns the configuration this registry was built with.
func (r *Registry) Options() config.Options { return r.opts }

// ContentionStats exposes the writer-lock contention counters.
func (r *Registry) ContentionStats() *ContentionStats { return &r.stats }

// OnContention installs a callback fired each time Register has to
// wait for the writer lock. Must be called before concurrent use.
func (r *Registry) OnContention(f func(ContentionInfo)) {
	r.stats.onContend = f
}

// WithProxySuffixes configures the type-name suffixes ResolveProxy
// strips, e.g. "Proxy" for an ORM's lazy-loading proxy subclasses.
func (r *Registry) WithProxySuffixes(suffixes ...string) *Registry {
	r.proxySuffixes = suffixes
	return r
}

// Lookup returns the registry index for t's effective type (after
// ResolveProxy), or (-1, false) if t is not registered.
func (r *Registry) Lookup(t reflect.Type) (int32, bool) {
	t = r.ResolveProxy(t)
	if r.frozen.Load() {
		idx, ok := r.index[t]
		if !ok {
			return -1, false
		}
		return idx, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.index[t]
	if !ok {
		return -1, false
	}
	return idx, true
}

// Entry returns the TypeEntry at index, which must have come from a
// prior Lookup/Register on this Registry.
func (r *Registry) Entry(index int32) *TypeEntry {
	if r.frozen.Load() {
		return r.entries[index]
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[index]
}

// Register adds entry for t, acquiring the single-writer lock with
// the configured metadata timeout (spec.md §3 "Lifecycle"). Acquiring
// under contention records a ContentionStats event carrying the
// calling goroutine's own stack, matching the diagnostic shape
// spec.md §4.E calls for ("the holding caller's stack context").
func (r *Registry) Register(t reflect.Type, entry *TypeEntry) error {
	if r.frozen.Load() {
		return xerr.ErrRegistryFrozen
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.MetadataTimeout)
	defer cancel()

	if !r.sem.TryAcquire(1) {
		pc := make([]uintptr, 32)
		n := runtime.Callers(2, pc)
		r.stats.record(pc[:n])
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("schema: %w", &xerr.MetadataTimeoutError{Holder: pc[:n]})
		}
	}
	defer r.sem.Release(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return xerr.ErrRegistryFrozen
	}
	if _, exists := r.index[t]; exists {
		return fmt.Errorf("schema: type %s already registered", t)
	}
	idx := int32(len(r.entries))
	r.entries = append(r.entries, entry)
	r.index[t] = idx
	return nil
}

// Freeze makes the registry immutable; after Freeze, Lookup/Entry
// never take r.mu, so many serialization contexts can read
// concurrently without coordination (spec.md §5).
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// ResolveProxy strips any configured proxy suffix from t's type name
// and, if a type of the stripped name is registered in the same
// package, returns that type; otherwise it falls back to the explicit
// alias map, then returns t unchanged (spec.md §4.E: "for ORM-style
// proxy classes the registry strips a known set of wrappers and
// aliases to the base class"). Because Go has no runtime subclassing,
// this operates on structurally identical types registered under their
// base name rather than true subclass stripping.
func (r *Registry) ResolveProxy(t reflect.Type) reflect.Type {
	if base, ok := r.stripProxySuffix(t); ok {
		return base
	}
	if alias, ok := r.aliasOf(t); ok {
		return alias
	}
	return t
}

func (r *Registry) aliasOf(t reflect.Type) (reflect.Type, bool) {
	if r.aliases == nil {
		return nil, false
	}
	real, ok := r.aliases[t]
	return real, ok
}

// stripProxySuffix checks t's type name against the configured
// WithProxySuffixes list and, for the first matching suffix, looks for
// a registered type of the stripped name in t's package.
func (r *Registry) stripProxySuffix(t reflect.Type) (reflect.Type, bool) {
	if len(r.proxySuffixes) == 0 {
		return nil, false
	}
	name := t.Name()
	for _, suffix := range r.proxySuffixes {
		if suffix == "" || name == suffix || !strings.HasSuffix(name, suffix) {
			continue
		}
		if base, ok := r.typeByName(strings.TrimSuffix(name, suffix), t.PkgPath()); ok {
			return base, true
		}
	}
	return nil, false
}

// typeByName scans the registered types for one named name in pkgPath.
func (r *Registry) typeByName(name, pkgPath string) (reflect.Type, bool) {
	scan := func() (reflect.Type, bool) {
		for candidate := range r.index {
			if candidate.Name() == name && candidate.PkgPath() == pkgPath {
				return candidate, true
			}
		}
		return nil, false
	}
	if r.frozen.Load() {
		return scan()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return scan()
}

// RegisterAlias makes alias resolve to the same registry index as
// base, without adding a new TypeEntry. Used for proxy/wrapper types
// that should serialize identically to their base.
func (r *Registry) RegisterAlias(alias, base reflect.Type) error {
	if r.frozen.Load() {
		return xerr.ErrRegistryFrozen
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aliases == nil {
		r.aliases = make(map[reflect.Type]reflect.Type)
	}
	r.aliases[alias] = base
	return nil
}
