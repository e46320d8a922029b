package plan

import (
	"encoding/hex"
	"reflect"
	"testing"

	"github.com/ironwood-labs/dynpb/config"
	"github.com/ironwood-labs/dynpb/schema"
	"github.com/ironwood-labs/dynpb/wire"
	"github.com/stretchr/testify/require"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

type simpleInt32 struct {
	A int32
}

// Scenario 1: {field 1 int32 = 150} -> 08 96 01
func TestPlanScalarInt32(t *testing.T) {
	reg := schema.NewRegistry()
	te := schema.NewTypeEntry(reflect.TypeOf(simpleInt32{}))
	require.NoError(t, te.AddField(&schema.FieldDescriptor{
		Number:   1,
		WireType: schema.WireVarint,
		Kind:     schema.KindScalar,
		GoType:   reflect.TypeOf(int32(0)),
		Accessor: schema.ReflectAccessor(&simpleInt32{}, "A"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(simpleInt32{}), te))
	reg.Freeze()

	b := NewBuilder(reg)
	p, err := b.Build(reflect.TypeOf(simpleInt32{}))
	require.NoError(t, err)

	w := wire.NewWriter()
	require.NoError(t, p.Write(w, &simpleInt32{A: 150}))
	require.Equal(t, hexBytes(t, "089601"), w.Bytes())

	r := wire.NewReader(w.Bytes())
	out := &simpleInt32{}
	require.NoError(t, p.Read(r, out))
	require.Equal(t, int32(150), out.A)
}

type simpleString struct {
	S string
}

// Scenario 2: {field 2 string = "testing"} -> 12 07 74 65 73 74 69 6e 67
func TestPlanScalarString(t *testing.T) {
	reg := schema.NewRegistry()
	te := schema.NewTypeEntry(reflect.TypeOf(simpleString{}))
	require.NoError(t, te.AddField(&schema.FieldDescriptor{
		Number:   2,
		WireType: schema.WireBytes,
		Kind:     schema.KindScalar,
		GoType:   reflect.TypeOf(""),
		Accessor: schema.ReflectAccessor(&simpleString{}, "S"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(simpleString{}), te))
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(simpleString{}))
	require.NoError(t, err)

	w := wire.NewWriter()
	require.NoError(t, p.Write(w, &simpleString{S: "testing"}))
	require.Equal(t, hexBytes(t, "1207"+hex.EncodeToString([]byte("testing"))), w.Bytes())
}

type packedInts struct {
	Items []int32
}

// Scenario 3: packed repeated int32 field 4 = [3, 270, 86942] -> 22 06 03 8e 02 9e a7 05
func TestPlanPackedRepeated(t *testing.T) {
	reg := schema.NewRegistry()
	te := schema.NewTypeEntry(reflect.TypeOf(packedInts{}))
	require.NoError(t, te.AddField(&schema.FieldDescriptor{
		Number: 4,
		Kind:   schema.KindRepeated,
		Flags:  schema.Packed,
		Item: &schema.FieldDescriptor{
			Kind:     schema.KindScalar,
			WireType: schema.WireVarint,
			GoType:   reflect.TypeOf(int32(0)),
		},
		Accessor: schema.ReflectAccessor(&packedInts{}, "Items"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(packedInts{}), te))
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(packedInts{}))
	require.NoError(t, err)

	w := wire.NewWriter()
	require.NoError(t, p.Write(w, &packedInts{Items: []int32{3, 270, 86942}}))
	require.Equal(t, hexBytes(t, "22"+"06"+"038e029ea705"), w.Bytes())

	r := wire.NewReader(w.Bytes())
	out := &packedInts{}
	require.NoError(t, p.Read(r, out))
	require.Equal(t, []int32{3, 270, 86942}, out.Items)
}

type inner struct {
	A int32
}

type outer struct {
	Inner *inner
}

// Scenario 4: field 3 sub-message {1: 150} -> 1a 03 08 96 01
func TestPlanSubMessage(t *testing.T) {
	reg := schema.NewRegistry()

	innerEntry := schema.NewTypeEntry(reflect.TypeOf(inner{}))
	require.NoError(t, innerEntry.AddField(&schema.FieldDescriptor{
		Number:   1,
		WireType: schema.WireVarint,
		Kind:     schema.KindScalar,
		GoType:   reflect.TypeOf(int32(0)),
		Accessor: schema.ReflectAccessor(&inner{}, "A"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(inner{}), innerEntry))

	outerEntry := schema.NewTypeEntry(reflect.TypeOf(outer{}))
	require.NoError(t, outerEntry.AddField(&schema.FieldDescriptor{
		Number:      3,
		WireType:    schema.WireBytes,
		Kind:        schema.KindMessage,
		MessageType: reflect.TypeOf(&inner{}),
		Accessor:    schema.ReflectAccessor(&outer{}, "Inner"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(outer{}), outerEntry))
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(outer{}))
	require.NoError(t, err)

	w := wire.NewWriter()
	require.NoError(t, p.Write(w, &outer{Inner: &inner{A: 150}}))
	require.Equal(t, hexBytes(t, "1a0308"+"9601"), w.Bytes())

	r := wire.NewReader(w.Bytes())
	out := &outer{}
	require.NoError(t, p.Read(r, out))
	require.Equal(t, int32(150), out.Inner.A)
}

type mapHolder struct {
	M map[string]int32
}

// Scenario 6: map<string,int32> {"a":1, "b":2} at field 7.
func TestPlanMap(t *testing.T) {
	reg := schema.NewRegistry()
	te := schema.NewTypeEntry(reflect.TypeOf(mapHolder{}))
	require.NoError(t, te.AddField(&schema.FieldDescriptor{
		Number: 7,
		Kind:   schema.KindMap,
		Key: &schema.FieldDescriptor{
			Kind:     schema.KindScalar,
			WireType: schema.WireBytes,
			GoType:   reflect.TypeOf(""),
		},
		Value: &schema.FieldDescriptor{
			Kind:     schema.KindScalar,
			WireType: schema.WireVarint,
			GoType:   reflect.TypeOf(int32(0)),
		},
		Accessor: schema.ReflectAccessor(&mapHolder{}, "M"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(mapHolder{}), te))
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(mapHolder{}))
	require.NoError(t, err)

	w := wire.NewWriter()
	in := &mapHolder{M: map[string]int32{"a": 1, "b": 2}}
	require.NoError(t, p.Write(w, in))

	r := wire.NewReader(w.Bytes())
	out := &mapHolder{}
	require.NoError(t, p.Read(r, out))
	require.Equal(t, in.M, out.M)
}

// Serializing an unchanged map-bearing instance twice must produce
// identical byte sequences (spec.md §8), which requires a deterministic
// key order since Go's own map iteration is randomized per run.
func TestPlanMapWriteIsDeterministicAcrossCalls(t *testing.T) {
	reg := schema.NewRegistry()
	te := schema.NewTypeEntry(reflect.TypeOf(mapHolder{}))
	require.NoError(t, te.AddField(&schema.FieldDescriptor{
		Number: 7,
		Kind:   schema.KindMap,
		Key: &schema.FieldDescriptor{
			Kind: schema.KindScalar, WireType: schema.WireBytes, GoType: reflect.TypeOf(""),
		},
		Value: &schema.FieldDescriptor{
			Kind: schema.KindScalar, WireType: schema.WireVarint, GoType: reflect.TypeOf(int32(0)),
		},
		Accessor: schema.ReflectAccessor(&mapHolder{}, "M"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(mapHolder{}), te))
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(mapHolder{}))
	require.NoError(t, err)

	in := &mapHolder{M: map[string]int32{"z": 26, "a": 1, "m": 13, "b": 2, "q": 17}}
	w1 := wire.NewWriter()
	require.NoError(t, p.Write(w1, in))
	w2 := wire.NewWriter()
	require.NoError(t, p.Write(w2, in))
	require.Equal(t, w1.Bytes(), w2.Bytes())
}

type autoAddLeaf struct {
	Name string
}

type autoAddTarget struct {
	ID     int32
	Tags   []string
	Scores map[string]int32
	Child  *autoAddLeaf
}

// config.WithAutoAddMissingTypes lets a Build proceed against a type
// with no registry entry at all, synthesizing field numbers 1..N from
// the struct's own exported fields in declaration order.
func TestPlanAutoAddMissingTypes(t *testing.T) {
	reg := schema.NewRegistry(config.WithAutoAddMissingTypes())
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(autoAddTarget{}))
	require.NoError(t, err)

	in := &autoAddTarget{
		ID:     7,
		Tags:   []string{"x", "y"},
		Scores: map[string]int32{"a": 1},
		Child:  &autoAddLeaf{Name: "kid"},
	}
	w := wire.NewWriter()
	require.NoError(t, p.Write(w, in))

	r := wire.NewReader(w.Bytes())
	out := &autoAddTarget{}
	require.NoError(t, p.Read(r, out))
	require.Equal(t, in, out)
}

func TestPlanBuildFailsWithoutAutoAdd(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Freeze()
	_, err := NewBuilder(reg).Build(reflect.TypeOf(autoAddTarget{}))
	require.Error(t, err)
}

type implicitZero struct {
	A int32
}

// config.WithImplicitZeroDefaults treats an absent FieldDescriptor
// default as the Go zero value, so a zero field is suppressed on write
// without the caller having to configure Default explicitly.
func TestPlanImplicitZeroDefaultsSuppressesZeroWrite(t *testing.T) {
	reg := schema.NewRegistry(config.WithImplicitZeroDefaults())
	te := schema.NewTypeEntry(reflect.TypeOf(implicitZero{}))
	require.NoError(t, te.AddField(&schema.FieldDescriptor{
		Number: 1, Kind: schema.KindScalar, WireType: schema.WireVarint,
		GoType: reflect.TypeOf(int32(0)), Accessor: schema.ReflectAccessor(&implicitZero{}, "A"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(implicitZero{}), te))
	reg.Freeze()

	p, err := NewBuilder(reg).Build(reflect.TypeOf(implicitZero{}))
	require.NoError(t, err)

	w := wire.NewWriter()
	require.NoError(t, p.Write(w, &implicitZero{A: 0}))
	require.Empty(t, w.Bytes())

	w2 := wire.NewWriter()
	require.NoError(t, p.Write(w2, &implicitZero{A: 5}))
	require.NotEmpty(t, w2.Bytes())
}

type base struct {
	ID int32
}

type middle struct {
	base
	Mid string
}

type leaf struct {
	middle
	Leaf string
}

// Inheritance chain base<middle<leaf: serializing a leaf instance
// through the root entry and reading it back restores all three
// levels' fields (spec.md §8 "inheritance chain A<B<C" property).
func TestPlanInheritanceChain(t *testing.T) {
	reg := schema.NewRegistry()

	// Go has no runtime subclassing: a single owner pointer (always
	// the most-derived concrete type) is threaded through every level
	// of the chain, so each level's accessor must be built against
	// that concrete type rather than its own standalone struct —
	// reflect's FieldByName walks the promotion chain through the
	// embedded fields for us, so ReflectAccessor(&leaf{}, name) finds
	// "ID" and "Mid" even though they're declared on base and middle.
	baseEntry := schema.NewTypeEntry(reflect.TypeOf(base{}))
	require.NoError(t, baseEntry.AddField(&schema.FieldDescriptor{
		Number: 1, Kind: schema.KindScalar, WireType: schema.WireVarint,
		GoType: reflect.TypeOf(int32(0)), Accessor: schema.ReflectAccessor(&leaf{}, "ID"),
	}))
	require.NoError(t, reg.Register(reflect.TypeOf(base{}), baseEntry))

	middleEntry := schema.NewTypeEntry(reflect.TypeOf(middle{}))
	require.NoError(t, middleEntry.AddField(&schema.FieldDescriptor{
		Number: 2, Kind: schema.KindScalar, WireType: schema.WireBytes,
		GoType: reflect.TypeOf(""), Accessor: schema.ReflectAccessor(&leaf{}, "Mid"),
	}))
	baseIdx, _ := reg.Lookup(reflect.TypeOf(base{}))
	middleEntry.BaseIndex = baseIdx
	require.NoError(t, reg.Register(reflect.TypeOf(middle{}), middleEntry))
	require.NoError(t, baseEntry.AddSubType(reflect.TypeOf(middle{}), 10))

	leafEntry := schema.NewTypeEntry(reflect.TypeOf(leaf{}))
	require.NoError(t, leafEntry.AddField(&schema.FieldDescriptor{
		Number: 3, Kind: schema.KindScalar, WireType: schema.WireBytes,
		GoType: reflect.TypeOf(""), Accessor: schema.ReflectAccessor(&leaf{}, "Leaf"),
	}))
	middleIdx, _ := reg.Lookup(reflect.TypeOf(middle{}))
	leafEntry.BaseIndex = middleIdx
	require.NoError(t, reg.Register(reflect.TypeOf(leaf{}), leafEntry))
	require.NoError(t, middleEntry.AddSubType(reflect.TypeOf(leaf{}), 20))

	reg.Freeze()

	b := NewBuilder(reg)
	leafPlan, err := b.Build(reflect.TypeOf(leaf{}))
	require.NoError(t, err)

	in := &leaf{}
	in.ID = 42
	in.Mid = "middle-value"
	in.Leaf = "leaf-value"

	w := wire.NewWriter()
	require.NoError(t, leafPlan.Write(w, in))

	rootPlan, err := b.Build(reflect.TypeOf(base{}))
	require.NoError(t, err)
	r := wire.NewReader(w.Bytes())
	out := &leaf{}
	require.NoError(t, rootPlan.Read(r, out))

	require.Equal(t, int32(42), out.ID)
	require.Equal(t, "middle-value", out.Mid)
	require.Equal(t, "leaf-value", out.Leaf)
}
