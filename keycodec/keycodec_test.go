package keycodec

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docstore/value"
)

func TestCrossKindOrder(t *testing.T) {
	ordered := []value.Value{
		value.MinKey(),
		value.Null(),
		value.Float(math.NaN()),
		value.Float(math.Inf(-1)),
		value.Int(-5),
		value.Float(0.5),
		value.Int(1),
		value.Float(math.Inf(1)),
		value.String(""),
		value.String("a"),
		value.Doc(value.D("a", 1)),
		value.Array(value.Int(1)),
		value.MustBinData(value.SubtypeGeneric, "AA=="),
		value.OID(value.ObjectID{1}),
		value.Bool(false),
		value.Bool(true),
		value.DateMillis(-1),
		value.DateMillis(0),
		value.MaxKey(),
	}

	for i := 1; i < len(ordered); i++ {
		assert.Equal(t, -1, Compare(ordered[i-1], ordered[i]), "%v < %v", ordered[i-1], ordered[i])
		assert.Equal(t, 1, Compare(ordered[i], ordered[i-1]), "%v > %v", ordered[i], ordered[i-1])
	}
}

func TestNumbers(t *testing.T) {
	assert.True(t, Equal(value.Int(1), value.Float(1)))
	assert.True(t, Equal(value.Float(0), value.Float(math.Copysign(0, -1))))
	assert.True(t, Equal(value.Null(), value.Value{}), "missing compares as null")

	// Large integers that are not exactly representable as float64.
	big := int64(1) << 53
	assert.Equal(t, -1, Compare(value.Int(big), value.Int(big+1)))
	assert.Equal(t, -1, Compare(value.Float(float64(big)), value.Int(big+1)))
	assert.Equal(t, -1, Compare(value.Int(math.MaxInt64-1), value.Int(math.MaxInt64)))
	assert.Equal(t, -1, Compare(value.Int(math.MinInt64), value.Int(math.MinInt64+1)))
	assert.Equal(t, -1, Compare(value.Int(math.MaxInt64), value.Float(math.Inf(1))))
	assert.Equal(t, 1, Compare(value.Float(1e19), value.Int(math.MaxInt64)))
}

func TestStrings(t *testing.T) {
	vals := []string{"", "\x00", "\x00\x00", "a", "a\x00", "a\x00b", "ab", "b", "\xff"}
	for i := 1; i < len(vals); i++ {
		assert.Equal(t, -1, Compare(value.String(vals[i-1]), value.String(vals[i])), "%q < %q", vals[i-1], vals[i])
	}
}

func TestBinDataOrder(t *testing.T) {
	// Length first, then subtype, then bytes.
	short := value.MustBinData(value.SubtypeUser, "AA==")
	long := value.MustBinData(value.SubtypeGeneric, "AAA=")
	assert.Equal(t, -1, Compare(short, long))

	a, err := value.BinData(value.SubtypeGeneric, []byte{9})
	require.NoError(t, err)
	b, err := value.BinData(value.SubtypeBinary, []byte{0})
	require.NoError(t, err)
	assert.Equal(t, -1, Compare(a, b))

	c, err := value.BinData(value.SubtypeGeneric, []byte{1, 0})
	require.NoError(t, err)
	d, err := value.BinData(value.SubtypeGeneric, []byte{1, 1})
	require.NoError(t, err)
	assert.Equal(t, -1, Compare(c, d))
}

func TestArraysAndDocuments(t *testing.T) {
	assert.Equal(t, -1, Compare(value.Array(), value.Array(value.MinKey())))
	assert.Equal(t, -1, Compare(value.Array(value.Int(1)), value.Array(value.Int(1), value.Int(0))))
	assert.Equal(t, -1, Compare(value.Array(value.Int(1), value.Int(9)), value.Array(value.Int(2))))
	assert.Equal(t, -1, Compare(value.Doc(value.D("a", 1)), value.Doc(value.D("a", 1, "b", 0))))
	assert.Equal(t, -1, Compare(value.Doc(value.D("a", 2)), value.Doc(value.D("b", 1))))
}

func TestDescendingTuple(t *testing.T) {
	dirs := []Direction{Ascending, Descending}
	rows := [][]value.Value{
		{value.Int(1), value.String("z")},
		{value.Int(1), value.String("a")},
		{value.Int(2), value.String("b")},
		{value.Int(1), value.String("m")},
		{value.Int(2), value.String("")},
	}
	keys := make([][]byte, len(rows))
	for i, r := range rows {
		keys[i] = EncodeTuple(r, dirs)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	want := [][]byte{
		EncodeTuple(rows[0], dirs),
		EncodeTuple(rows[3], dirs),
		EncodeTuple(rows[1], dirs),
		EncodeTuple(rows[2], dirs),
		EncodeTuple(rows[4], dirs),
	}
	assert.Equal(t, want, keys)
}

func TestPrefixFree(t *testing.T) {
	vals := []value.Value{
		value.Null(), value.Int(0), value.String("ab"), value.String("a"),
		value.Doc(value.D("a", "b")), value.Array(value.String("a")),
		value.MustBinData(value.SubtypeGeneric, "AQID"), value.Bool(true), value.DateMillis(5),
	}
	for _, a := range vals {
		for _, b := range vals {
			if Equal(a, b) {
				continue
			}
			ea, eb := Encode(a), Encode(b)
			assert.False(t, bytes.HasPrefix(eb, ea), "%v is a prefix of %v", a, b)
		}
		enc := AppendDir(nil, a, Descending)
		assert.NotEqual(t, byte(0xFF), enc[0])
	}
}

func TestClassBounds(t *testing.T) {
	lo, hi := ClassBounds(value.Int(5))
	for _, v := range []value.Value{value.Float(math.Inf(-1)), value.Float(math.NaN()), value.Int(math.MaxInt64)} {
		e := Encode(v)
		assert.GreaterOrEqual(t, bytes.Compare(e, lo), 0)
		assert.Equal(t, -1, bytes.Compare(e, hi))
	}
	assert.Equal(t, 1, bytes.Compare(Encode(value.String("")), hi))

	end := RangeEnd(Encode(value.Int(1)))
	assert.Equal(t, -1, bytes.Compare(EncodeTuple([]value.Value{value.Int(1), value.MaxKey()}, []Direction{Ascending, Descending}), end))
}
