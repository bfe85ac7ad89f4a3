package value

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FromAny converts a Go value into a typed Value.
//
// This exists as an adapter layer for user input and literals.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case Document:
		return Doc(x), nil
	case ObjectID:
		return OID(x), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return fromUint64(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return fromUint64(x)
	case time.Time:
		return Date(x), nil
	case []byte:
		return BinData(SubtypeGeneric, x)
	case []Value:
		return Array(x...), nil
	case []any:
		arr := make([]Value, len(x))
		for i := range x {
			vv, err := FromAny(x[i])
			if err != nil {
				return Value{}, err
			}
			arr[i] = vv
		}
		return Array(arr...), nil
	case []string:
		arr := make([]Value, len(x))
		for i := range x {
			arr[i] = String(x[i])
		}
		return Array(arr...), nil
	case []int:
		arr := make([]Value, len(x))
		for i := range x {
			arr[i] = Int(int64(x[i]))
		}
		return Array(arr...), nil
	case []float64:
		arr := make([]Value, len(x))
		for i := range x {
			arr[i] = Float(x[i])
		}
		return Array(arr...), nil
	case map[string]any:
		d, err := DocumentFromMap(x)
		if err != nil {
			return Value{}, err
		}
		return Doc(d), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromUint64(x uint64) (Value, error) {
	if x > math.MaxInt64 {
		// Avoid silently wrapping large values.
		return Value{}, fmt.Errorf("uint64 out of range: %d", x)
	}
	return Int(int64(x)), nil
}

// DocumentFromMap converts a map[string]any to a Document.
//
// Go maps are unordered, so fields are sorted by name to keep the result
// deterministic. Use D or the bson adapter when field order matters.
func DocumentFromMap(m map[string]any) (Document, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	d := make(Document, 0, len(m))
	for _, k := range names {
		vv, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		d = append(d, Field{Name: k, Value: vv})
	}
	return d, nil
}
