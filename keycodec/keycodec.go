package keycodec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/hupe1980/docstore/value"
)

// Type class tags. The numeric order of the tags is the cross-kind order.
// No tag is 0x00 or 0xFF so that inverted (descending) encodings never
// start with 0xFF either; range ends rely on that.
const (
	tagMinKey   byte = 0x01
	tagNull     byte = 0x0A
	tagNumber   byte = 0x14
	tagString   byte = 0x3C
	tagDocument byte = 0x46
	tagArray    byte = 0x50
	tagBinData  byte = 0x5A
	tagObjectID byte = 0x64
	tagBool     byte = 0x6E
	tagDate     byte = 0x78
	tagMaxKey   byte = 0xF0
)

const (
	elemMarker byte = 0x02
	endMarker  byte = 0x01

	strEscape byte = 0x00
	strNul    byte = 0xFF
	strEnd    byte = 0x01
)

// Direction of a key component.
type Direction int8

const (
	// Ascending component order.
	Ascending Direction = 1
	// Descending component order.
	Descending Direction = -1
)

// Encode returns the order-preserving encoding of v.
//
// Encodings are prefix-free: no encoding is a proper prefix of another, so
// encodings can be concatenated into tuples and compared with bytes.Compare.
func Encode(v value.Value) []byte {
	return Append(nil, v)
}

// Append appends the ascending encoding of v to dst.
func Append(dst []byte, v value.Value) []byte {
	switch v.Kind {
	case value.KindMinKey:
		return append(dst, tagMinKey)
	case value.KindInvalid, value.KindNull:
		return append(dst, tagNull)
	case value.KindInt:
		dst = append(dst, tagNumber)
		f := float64(v.I64)
		dst = appendFloat(dst, f)
		return appendInt(dst, intResidual(v.I64, f))
	case value.KindFloat:
		dst = append(dst, tagNumber)
		if math.IsNaN(v.F64) {
			// NaN sorts below every other number.
			return append(dst, make([]byte, 16)...)
		}
		dst = appendFloat(dst, v.F64)
		return appendInt(dst, 0)
	case value.KindString:
		dst = append(dst, tagString)
		return appendString(dst, v.S)
	case value.KindDocument:
		dst = append(dst, tagDocument)
		for _, f := range v.D {
			dst = append(dst, elemMarker)
			dst = appendString(dst, f.Name)
			dst = Append(dst, f.Value)
		}
		return append(dst, endMarker)
	case value.KindArray:
		dst = append(dst, tagArray)
		for i := range v.A {
			dst = append(dst, elemMarker)
			dst = Append(dst, v.A[i])
		}
		return append(dst, endMarker)
	case value.KindBinData:
		dst = append(dst, tagBinData)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.Bin)))
		dst = append(dst, v.Sub)
		return append(dst, v.Bin...)
	case value.KindObjectID:
		dst = append(dst, tagObjectID)
		return append(dst, v.OID[:]...)
	case value.KindBool:
		if v.B {
			return append(dst, tagBool, 1)
		}
		return append(dst, tagBool, 0)
	case value.KindDate:
		dst = append(dst, tagDate)
		return appendInt(dst, v.I64)
	case value.KindMaxKey:
		return append(dst, tagMaxKey)
	default:
		return append(dst, tagNull)
	}
}

// AppendDir appends the encoding of v in the given direction.
func AppendDir(dst []byte, v value.Value, dir Direction) []byte {
	start := len(dst)
	dst = Append(dst, v)
	if dir == Descending {
		Invert(dst[start:])
	}
	return dst
}

// EncodeTuple encodes a compound key. dirs may be shorter than vals; missing
// directions default to ascending.
func EncodeTuple(vals []value.Value, dirs []Direction) []byte {
	var dst []byte
	for i := range vals {
		dir := Ascending
		if i < len(dirs) {
			dir = dirs[i]
		}
		dst = AppendDir(dst, vals[i], dir)
	}
	return dst
}

// Invert flips every bit of b in place.
func Invert(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}

// Compare returns -1, 0 or +1 according to the total order of a and b.
func Compare(a, b value.Value) int {
	return bytes.Compare(Encode(a), Encode(b))
}

// Equal reports whether a and b are equal under the key order.
// Int(1) and Float(1) are equal.
func Equal(a, b value.Value) bool {
	return Compare(a, b) == 0
}

// SameClass reports whether a and b belong to the same type class.
// Int and Float share the number class; missing shares the null class.
func SameClass(a, b value.Value) bool {
	return classTag(a) == classTag(b)
}

// ClassBounds returns the encoded edges of v's type class: every encoding of
// a value in the class is >= lo and < hi.
//
// Range predicates are type-bracketed: {$gt: 5} only matches numbers, so its
// upper edge is the end of the number class.
func ClassBounds(v value.Value) (lo, hi []byte) {
	tag := classTag(v)
	return []byte{tag}, []byte{tag + 1}
}

// MinEncoding and MaxEncoding bound every ascending encoding.
var (
	MinEncoding = []byte{tagMinKey}
	MaxEncoding = []byte{tagMaxKey}
)

// RangeEnd returns the smallest byte string greater than every key starting
// with prefix. Component encodings never start with 0xFF.
func RangeEnd(prefix []byte) []byte {
	out := make([]byte, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = 0xFF
	return out
}

func classTag(v value.Value) byte {
	switch v.Kind {
	case value.KindMinKey:
		return tagMinKey
	case value.KindInt, value.KindFloat:
		return tagNumber
	case value.KindString:
		return tagString
	case value.KindDocument:
		return tagDocument
	case value.KindArray:
		return tagArray
	case value.KindBinData:
		return tagBinData
	case value.KindObjectID:
		return tagObjectID
	case value.KindBool:
		return tagBool
	case value.KindDate:
		return tagDate
	case value.KindMaxKey:
		return tagMaxKey
	default:
		return tagNull
	}
}

func appendString(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == strEscape {
			dst = append(dst, strEscape, strNul)
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, strEscape, strEnd)
}

func appendInt(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v)^(1<<63))
}

func appendFloat(dst []byte, f float64) []byte {
	if f == 0 {
		f = 0 // -0 == +0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(dst, bits)
}

// intResidual returns v - f where f is float64(v). Rounding to float64 is
// monotonic, so (f, residual) orders integers and floats by numeric value.
func intResidual(v int64, f float64) int64 {
	if f >= math.MaxInt64 {
		// f == 2^63 is not representable as int64.
		return (v - math.MaxInt64) - 1
	}
	return v - int64(f)
}
