package value

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindMinKey sorts below every other value.
	KindMinKey
	// KindNull represents a null value. Missing fields index as null.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindDocument represents an embedded document.
	KindDocument
	// KindArray represents an array value.
	KindArray
	// KindBinData represents a binary blob with a subtype.
	KindBinData
	// KindObjectID represents a 12-byte object identifier.
	KindObjectID
	// KindBool represents a boolean value.
	KindBool
	// KindDate represents a UTC datetime with millisecond precision.
	KindDate
	// KindMaxKey sorts above every other value.
	KindMaxKey
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindMinKey:
		return "minKey"
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "double"
	case KindString:
		return "string"
	case KindDocument:
		return "object"
	case KindArray:
		return "array"
	case KindBinData:
		return "binData"
	case KindObjectID:
		return "objectId"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindMaxKey:
		return "maxKey"
	default:
		return "invalid"
	}
}

// IsNumber reports whether the kind is numeric.
func (k Kind) IsNumber() bool { return k == KindInt || k == KindFloat }

// BinData subtypes.
const (
	SubtypeGeneric   byte = 0x00
	SubtypeFunction  byte = 0x01
	SubtypeBinary    byte = 0x02
	SubtypeUUIDOld   byte = 0x03
	SubtypeUUID      byte = 0x04
	SubtypeMD5       byte = 0x05
	SubtypeCrypt     byte = 0x06
	SubtypeColumn    byte = 0x07
	SubtypeSensitive byte = 0x08
	SubtypeVector    byte = 0x09
	SubtypeUser      byte = 0x80
)

// ObjectID is a 12-byte identifier.
type ObjectID [12]byte

// Hex returns the hex encoding of the ObjectID.
func (id ObjectID) Hex() string { return hex.EncodeToString(id[:]) }

// Value is a small typed value used for documents, keys and filters.
//
// The set of kinds is closed; there is no reflection on the hot path.
// NOTE: Values are persisted through the bson adapter; keep kinds stable.
type Value struct {
	Kind Kind
	I64  int64   // KindInt, KindDate (unix millis)
	F64  float64 // KindFloat
	S    string  // KindString
	B    bool    // KindBool
	A    []Value // KindArray
	D    Document
	Bin  []byte // KindBinData
	Sub  byte   // KindBinData subtype
	OID  ObjectID
}

// MinKey returns the minimum sentinel value.
func MinKey() Value { return Value{Kind: KindMinKey} }

// MaxKey returns the maximum sentinel value.
func MaxKey() Value { return Value{Kind: KindMaxKey} }

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Array returns an array Value.
func Array(v ...Value) Value { return Value{Kind: KindArray, A: v} }

// Doc returns an embedded document Value.
func Doc(d Document) Value { return Value{Kind: KindDocument, D: d} }

// OID returns an ObjectID Value.
func OID(id ObjectID) Value { return Value{Kind: KindObjectID, OID: id} }

// Date returns a date Value truncated to millisecond precision.
func Date(t time.Time) Value { return Value{Kind: KindDate, I64: t.UnixMilli()} }

// DateMillis returns a date Value from unix milliseconds.
func DateMillis(ms int64) Value { return Value{Kind: KindDate, I64: ms} }

var (
	// ErrInvalidBinData is returned when a binary value cannot be constructed.
	ErrInvalidBinData = errors.New("invalid binData")
)

// BinData returns a binary Value after validating the subtype/length combination.
//
// UUID and MD5 subtypes require exactly 16 bytes. The bytes are copied.
func BinData(subtype byte, data []byte) (Value, error) {
	if subtype > SubtypeVector && subtype < SubtypeUser {
		return Value{}, fmt.Errorf("%w: reserved subtype 0x%02x", ErrInvalidBinData, subtype)
	}
	if (subtype == SubtypeUUID || subtype == SubtypeUUIDOld || subtype == SubtypeMD5) && len(data) != 16 {
		return Value{}, fmt.Errorf("%w: subtype 0x%02x requires 16 bytes, got %d", ErrInvalidBinData, subtype, len(data))
	}
	if uint64(len(data)) > math.MaxInt32 {
		return Value{}, fmt.Errorf("%w: length %d out of range", ErrInvalidBinData, len(data))
	}
	b := make([]byte, len(data))
	copy(b, data)
	return Value{Kind: KindBinData, Sub: subtype, Bin: b}, nil
}

// ParseBinData decodes a standard base64 payload into a binary Value.
func ParseBinData(subtype byte, b64 string) (Value, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrInvalidBinData, err)
	}
	return BinData(subtype, data)
}

// MustBinData is like ParseBinData but panics on error. Intended for tests and constants.
func MustBinData(subtype byte, b64 string) Value {
	v, err := ParseBinData(subtype, b64)
	if err != nil {
		panic(err)
	}
	return v
}

// IsMissing reports whether v is the zero Value (no kind).
func (v Value) IsMissing() bool { return v.Kind == KindInvalid }

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the numeric value as float64 for KindInt and KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I64), true
	case KindFloat:
		return v.F64, true
	default:
		return 0, false
	}
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// AsDocument returns the embedded document if Kind is KindDocument.
func (v Value) AsDocument() (Document, bool) {
	if v.Kind != KindDocument {
		return nil, false
	}
	return v.D, true
}

// AsArray returns the array value if Kind is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// AsTime returns the date value as time.Time if Kind is KindDate.
func (v Value) AsTime() (time.Time, bool) {
	if v.Kind != KindDate {
		return time.Time{}, false
	}
	return time.UnixMilli(v.I64).UTC(), true
}

// Clone creates a deep copy of the Value.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		if len(v.A) == 0 {
			return v
		}
		a := make([]Value, len(v.A))
		for i := range v.A {
			a[i] = v.A[i].Clone()
		}
		v.A = a
	case KindDocument:
		v.D = v.D.Clone()
	case KindBinData:
		b := make([]byte, len(v.Bin))
		copy(b, v.Bin)
		v.Bin = b
	}
	return v
}

// String renders the value in a shell-like extended JSON form.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.Kind {
	case KindMinKey:
		sb.WriteString("MinKey")
	case KindMaxKey:
		sb.WriteString("MaxKey")
	case KindNull:
		sb.WriteString("null")
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.I64, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.F64, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.S))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.B))
	case KindDocument:
		v.D.write(sb)
	case KindArray:
		sb.WriteByte('[')
		for i := range v.A {
			if i > 0 {
				sb.WriteString(", ")
			}
			v.A[i].write(sb)
		}
		sb.WriteByte(']')
	case KindBinData:
		sb.WriteString("BinData(")
		sb.WriteString(strconv.Itoa(int(v.Sub)))
		sb.WriteString(`, "`)
		sb.WriteString(base64.StdEncoding.EncodeToString(v.Bin))
		sb.WriteString(`")`)
	case KindObjectID:
		sb.WriteString(`ObjectId("`)
		sb.WriteString(v.OID.Hex())
		sb.WriteString(`")`)
	case KindDate:
		sb.WriteString(`ISODate("`)
		sb.WriteString(time.UnixMilli(v.I64).UTC().Format("2006-01-02T15:04:05.000Z"))
		sb.WriteString(`")`)
	default:
		sb.WriteString("<invalid>")
	}
}
