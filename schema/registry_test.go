package schema

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ironwood-labs/dynpb/config"
	"github.com/ironwood-labs/dynpb/xerr"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name string
	Size int32
}

func TestRegistryLookupBeforeAndAfterFreeze(t *testing.T) {
	r := NewRegistry()
	wt := reflect.TypeOf(widget{})

	_, ok := r.Lookup(wt)
	require.False(t, ok)

	entry := NewTypeEntry(wt)
	require.NoError(t, entry.AddField(&FieldDescriptor{
		Number:   1,
		WireType: WireBytes,
		Kind:     KindScalar,
		Accessor: ReflectAccessor(&widget{}, "Name"),
	}))
	require.NoError(t, r.Register(wt, entry))

	idx, ok := r.Lookup(wt)
	require.True(t, ok)
	require.Equal(t, int32(0), idx)

	r.Freeze()
	require.True(t, r.Frozen())

	idx2, ok := r.Lookup(wt)
	require.True(t, ok)
	require.Equal(t, idx, idx2)

	got := r.Entry(idx)
	require.Same(t, entry, got)
}

func TestRegistryRejectsDuplicateFieldNumber(t *testing.T) {
	entry := NewTypeEntry(reflect.TypeOf(widget{}))
	require.NoError(t, entry.AddField(&FieldDescriptor{Number: 1, Kind: KindScalar}))
	err := entry.AddField(&FieldDescriptor{Number: 1, Kind: KindScalar})
	require.ErrorIs(t, err, xerr.ErrFieldNumberConflict)
}

func TestRegistryFreezeRejectsFurtherRegister(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	err := r.Register(reflect.TypeOf(widget{}), NewTypeEntry(reflect.TypeOf(widget{})))
	require.ErrorIs(t, err, xerr.ErrRegistryFrozen)
}

func TestRegistryMetadataTimeoutSurfacesUnderHeldLock(t *testing.T) {
	r := NewRegistry(config.WithMetadataTimeout(10 * time.Millisecond))
	require.NoError(t, r.sem.Acquire(context.Background(), 1))
	defer r.sem.Release(1)

	err := r.Register(reflect.TypeOf(widget{}), NewTypeEntry(reflect.TypeOf(widget{})))
	require.Error(t, err)
	var mte *xerr.MetadataTimeoutError
	require.ErrorAs(t, err, &mte)
}

func TestRegistryProxyAlias(t *testing.T) {
	r := NewRegistry()
	wt := reflect.TypeOf(widget{})
	entry := NewTypeEntry(wt)
	require.NoError(t, r.Register(wt, entry))

	type widgetProxy widget
	pt := reflect.TypeOf(widgetProxy{})
	require.NoError(t, r.RegisterAlias(pt, wt))

	idx, ok := r.Lookup(pt)
	require.True(t, ok)
	baseIdx, _ := r.Lookup(wt)
	require.Equal(t, baseIdx, idx)
}

func TestRegistryProxySuffixResolvesToBase(t *testing.T) {
	r := NewRegistry()
	r.WithProxySuffixes("Proxy")
	wt := reflect.TypeOf(widget{})
	entry := NewTypeEntry(wt)
	require.NoError(t, r.Register(wt, entry))

	type widgetProxy widget
	pt := reflect.TypeOf(widgetProxy{})

	idx, ok := r.Lookup(pt)
	require.True(t, ok)
	baseIdx, _ := r.Lookup(wt)
	require.Equal(t, baseIdx, idx)
}

func TestRegistryProxySuffixUnconfiguredLeavesTypeUnresolved(t *testing.T) {
	r := NewRegistry()
	wt := reflect.TypeOf(widget{})
	require.NoError(t, r.Register(wt, NewTypeEntry(wt)))

	type widgetProxy widget
	pt := reflect.TypeOf(widgetProxy{})

	_, ok := r.Lookup(pt)
	require.False(t, ok)
}

func TestContentionStatsNilSafe(t *testing.T) {
	var c *ContentionStats
	require.Equal(t, int64(0), c.Contended())
}
