package value

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinData(t *testing.T) {
	tests := []struct {
		name    string
		subtype byte
		data    []byte
		wantErr bool
	}{
		{"generic empty", SubtypeGeneric, nil, false},
		{"generic", SubtypeGeneric, []byte{1, 2, 3}, false},
		{"uuid 16 bytes", SubtypeUUID, make([]byte, 16), false},
		{"uuid short", SubtypeUUID, make([]byte, 15), true},
		{"md5 long", SubtypeMD5, make([]byte, 17), true},
		{"reserved", 0x20, []byte{1}, true},
		{"user defined", SubtypeUser, []byte{1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := BinData(tt.subtype, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidBinData))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindBinData, v.Kind)
			assert.Equal(t, tt.subtype, v.Sub)
			assert.Len(t, v.Bin, len(tt.data))
		})
	}
}

func TestBinDataCopiesInput(t *testing.T) {
	b := []byte{1, 2, 3}
	v, err := BinData(SubtypeGeneric, b)
	require.NoError(t, err)
	b[0] = 9
	assert.Equal(t, byte(1), v.Bin[0])
}

func TestParseBinData(t *testing.T) {
	v, err := ParseBinData(SubtypeGeneric, "AAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Len(t, v.Bin, 21)

	_, err = ParseBinData(SubtypeGeneric, "not base64!")
	assert.ErrorIs(t, err, ErrInvalidBinData)

	_, err = ParseBinData(SubtypeUUID, "AAAA")
	assert.ErrorIs(t, err, ErrInvalidBinData)

	assert.Panics(t, func() { MustBinData(SubtypeGeneric, "%%%") })
}

func TestFromAny(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		input   any
		want    Value
		wantErr bool
	}{
		{nil, Null(), false},
		{1, Int(1), false},
		{int32(7), Int(7), false},
		{uint64(7), Int(7), false},
		{uint64(1 << 63), Value{}, true},
		{1.5, Float(1.5), false},
		{"s", String("s"), false},
		{true, Bool(true), false},
		{now, DateMillis(1700000000123), false},
		{[]any{1, "a"}, Array(Int(1), String("a")), false},
		{struct{}{}, Value{}, true},
	}

	for _, tt := range tests {
		got, err := FromAny(tt.input)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDocumentFromMapIsSorted(t *testing.T) {
	d, err := DocumentFromMap(map[string]any{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, d.Names())
}

func TestDocumentPaths(t *testing.T) {
	d := D("_id", 1, "mm", D("tag", "x", "loc", D("type", "Point")), "arr", []any{10, D("k", 2)})

	id, ok := d.ID()
	require.True(t, ok)
	assert.Equal(t, Int(1), id)

	v, ok := d.Lookup("mm.loc.type")
	require.True(t, ok)
	assert.Equal(t, String("Point"), v)

	v, ok = d.Lookup("arr.1.k")
	require.True(t, ok)
	assert.Equal(t, Int(2), v)

	_, ok = d.Lookup("mm.missing")
	assert.False(t, ok)
	_, ok = d.Lookup("arr.5")
	assert.False(t, ok)

	d2 := d.Clone().SetPath("mm.new.deep", Int(3))
	v, ok = d2.Lookup("mm.new.deep")
	require.True(t, ok)
	assert.Equal(t, Int(3), v)
	_, ok = d.Lookup("mm.new.deep")
	assert.False(t, ok, "clone must not alias the original")

	d3 := d.Delete("mm")
	assert.Equal(t, []string{"_id", "arr"}, d3.Names())
	assert.Equal(t, []string{"_id", "mm", "arr"}, d.Names())
}

func TestDPanics(t *testing.T) {
	assert.Panics(t, func() { D("a") })
	assert.Panics(t, func() { D(1, 2) })
}

func TestString(t *testing.T) {
	bin := MustBinData(SubtypeGeneric, "AQI=")
	d := D("_id", bin, "n", 1, "s", "x", "a", []any{true, nil})
	assert.Equal(t, `{_id: BinData(0, "AQI="), n: 1, s: "x", a: [true, null]}`, d.String())
	assert.Equal(t, `ISODate("1970-01-01T00:00:00.001Z")`, DateMillis(1).String())
}

func TestBSONRoundTrip(t *testing.T) {
	oid := NewObjectID()
	d := D(
		"_id", OID(oid),
		"i", 1,
		"big", int64(1)<<40,
		"f", 2.5,
		"s", "str",
		"b", false,
		"n", nil,
		"when", DateMillis(1700000000000),
		"bin", MustBinData(SubtypeUUID, "AAAAAAAAAAAAAAAAAAAAAA=="),
		"sub", D("x", []any{1, "two"}),
		"min", MinKey(),
		"max", MaxKey(),
	)

	raw, err := MarshalDocument(d)
	require.NoError(t, err)

	got, err := UnmarshalDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestParseExtJSON(t *testing.T) {
	d, err := ParseExtJSON(`{"tm": {"$date": "2024-01-01T00:00:00Z"}, "mm": {"tag": "a"}, "x": 1}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"tm", "mm", "x"}, d.Names())

	tm, ok := d.Get("tm")
	require.True(t, ok)
	assert.Equal(t, KindDate, tm.Kind)

	x, _ := d.Get("x")
	assert.Equal(t, Int(1), x)
}

func TestObjectIDFromTime(t *testing.T) {
	a := ObjectIDFromTime(time.Unix(100, 0))
	b := ObjectIDFromTime(time.Unix(200, 0))
	assert.Less(t, a.Hex(), b.Hex())
}
