package value

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FromBSON converts a value produced by the mongo-driver bson decoder into a Value.
func FromBSON(v any) (Value, error) {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return Null(), nil
	case primitive.MinKey:
		return MinKey(), nil
	case primitive.MaxKey:
		return MaxKey(), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case primitive.ObjectID:
		return OID(ObjectID(x)), nil
	case primitive.DateTime:
		return DateMillis(int64(x)), nil
	case time.Time:
		return Date(x), nil
	case primitive.Binary:
		return BinData(x.Subtype, x.Data)
	case primitive.D:
		d, err := DocumentFromBSON(x)
		if err != nil {
			return Value{}, err
		}
		return Doc(d), nil
	case primitive.M:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(Document, 0, len(x))
		for _, k := range keys {
			fv, err := FromBSON(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			d = append(d, Field{Name: k, Value: fv})
		}
		return Doc(d), nil
	case primitive.A:
		arr := make([]Value, len(x))
		for i := range x {
			ev, err := FromBSON(x[i])
			if err != nil {
				return Value{}, err
			}
			arr[i] = ev
		}
		return Array(arr...), nil
	default:
		return FromAny(v)
	}
}

// DocumentFromBSON converts an ordered bson document into a Document.
func DocumentFromBSON(d bson.D) (Document, error) {
	out := make(Document, 0, len(d))
	for _, e := range d {
		v, err := FromBSON(e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		out = append(out, Field{Name: e.Key, Value: v})
	}
	return out, nil
}

// ToBSON converts a Value into its mongo-driver representation.
func ToBSON(v Value) any {
	switch v.Kind {
	case KindMinKey:
		return primitive.MinKey{}
	case KindMaxKey:
		return primitive.MaxKey{}
	case KindNull:
		return primitive.Null{}
	case KindInt:
		if v.I64 >= math.MinInt32 && v.I64 <= math.MaxInt32 {
			return int32(v.I64)
		}
		return v.I64
	case KindFloat:
		return v.F64
	case KindString:
		return v.S
	case KindBool:
		return v.B
	case KindObjectID:
		return primitive.ObjectID(v.OID)
	case KindDate:
		return primitive.DateTime(v.I64)
	case KindBinData:
		return primitive.Binary{Subtype: v.Sub, Data: v.Bin}
	case KindDocument:
		return DocumentToBSON(v.D)
	case KindArray:
		a := make(bson.A, len(v.A))
		for i := range v.A {
			a[i] = ToBSON(v.A[i])
		}
		return a
	default:
		return primitive.Undefined{}
	}
}

// DocumentToBSON converts a Document into an ordered bson document.
func DocumentToBSON(d Document) bson.D {
	out := make(bson.D, len(d))
	for i := range d {
		out[i] = bson.E{Key: d[i].Name, Value: ToBSON(d[i].Value)}
	}
	return out
}

// MarshalDocument encodes a Document as BSON bytes.
func MarshalDocument(d Document) ([]byte, error) {
	return bson.Marshal(DocumentToBSON(d))
}

// UnmarshalDocument decodes BSON bytes into a Document.
func UnmarshalDocument(data []byte) (Document, error) {
	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return DocumentFromBSON(d)
}

// ParseExtJSON parses relaxed or canonical MongoDB extended JSON into a Document.
func ParseExtJSON(s string) (Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON([]byte(s), false, &d); err != nil {
		return nil, err
	}
	return DocumentFromBSON(d)
}

// NewObjectID returns a fresh ObjectID.
func NewObjectID() ObjectID {
	return ObjectID(primitive.NewObjectID())
}

// ObjectIDFromTime returns an ObjectID whose timestamp part is t and whose
// remaining bytes are zero. Such ids sort by time.
func ObjectIDFromTime(t time.Time) ObjectID {
	return ObjectID(primitive.NewObjectIDFromTimestamp(t))
}
