package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/value"
)

var (
	// ErrInvalidFilter is returned for malformed filter documents.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidProjection is returned for malformed projection documents.
	ErrInvalidProjection = errors.New("invalid projection")
)

// Op is a comparison operator.
type Op uint8

const (
	// OpEq matches values equal to the operand. Null matches missing fields.
	OpEq Op = iota
	// OpNe negates OpEq.
	OpNe
	// OpGt matches values of the operand's type class greater than it.
	OpGt
	// OpGte matches values of the operand's type class greater than or equal to it.
	OpGte
	// OpLt matches values of the operand's type class less than it.
	OpLt
	// OpLte matches values of the operand's type class less than or equal to it.
	OpLte
	// OpIn matches values equal to any of the operands.
	OpIn
	// OpNin negates OpIn.
	OpNin
	// OpExists matches on field presence.
	OpExists
)

var opNames = map[string]Op{
	"$eq":     OpEq,
	"$ne":     OpNe,
	"$gt":     OpGt,
	"$gte":    OpGte,
	"$lt":     OpLt,
	"$lte":    OpLte,
	"$in":     OpIn,
	"$nin":    OpNin,
	"$exists": OpExists,
}

var opStrings = [...]string{"$eq", "$ne", "$gt", "$gte", "$lt", "$lte", "$in", "$nin", "$exists"}

// String returns the operator as written in a filter.
func (o Op) String() string {
	if int(o) < len(opStrings) {
		return opStrings[o]
	}
	return "$unknown"
}

// Predicate is a single comparison against a field path.
type Predicate struct {
	Path   string
	Op     Op
	Value  value.Value
	Values []value.Value // OpIn, OpNin
}

// Filter is a conjunction of predicates.
type Filter struct {
	Preds []Predicate
}

// Getter resolves a field path. present is false for missing fields.
type Getter func(path string) (v value.Value, present bool)

// Parse converts a filter document into a Filter.
//
// Supported forms are {path: v}, {path: {$op: v, ...}} and {$and: [...]}.
func Parse(doc value.Document) (Filter, error) {
	var f Filter
	if err := f.parse(doc); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// MustParse is like Parse but panics on error. Intended for tests.
func MustParse(doc value.Document) Filter {
	f, err := Parse(doc)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Filter) parse(doc value.Document) error {
	for _, field := range doc {
		if strings.HasPrefix(field.Name, "$") {
			if field.Name != "$and" {
				return fmt.Errorf("%w: unknown top level operator %s", ErrInvalidFilter, field.Name)
			}
			clauses, ok := field.Value.AsArray()
			if !ok || len(clauses) == 0 {
				return fmt.Errorf("%w: $and must be a nonempty array", ErrInvalidFilter)
			}
			for _, c := range clauses {
				sub, ok := c.AsDocument()
				if !ok {
					return fmt.Errorf("%w: $and entries must be documents", ErrInvalidFilter)
				}
				if err := f.parse(sub); err != nil {
					return err
				}
			}
			continue
		}
		if field.Name == "" {
			return fmt.Errorf("%w: empty field path", ErrInvalidFilter)
		}

		ops, ok := field.Value.AsDocument()
		if !ok || len(ops) == 0 || !strings.HasPrefix(ops[0].Name, "$") {
			f.Preds = append(f.Preds, Predicate{Path: field.Name, Op: OpEq, Value: field.Value})
			continue
		}
		for _, o := range ops {
			p, err := parseOp(field.Name, o)
			if err != nil {
				return err
			}
			f.Preds = append(f.Preds, p)
		}
	}
	return nil
}

func parseOp(path string, o value.Field) (Predicate, error) {
	op, ok := opNames[o.Name]
	if !ok {
		if strings.HasPrefix(o.Name, "$") {
			return Predicate{}, fmt.Errorf("%w: unknown operator %s", ErrInvalidFilter, o.Name)
		}
		return Predicate{}, fmt.Errorf("%w: cannot mix operators and fields under %s", ErrInvalidFilter, path)
	}
	p := Predicate{Path: path, Op: op, Value: o.Value}
	switch op {
	case OpIn, OpNin:
		vals, ok := o.Value.AsArray()
		if !ok {
			return Predicate{}, fmt.Errorf("%w: %s needs an array", ErrInvalidFilter, o.Name)
		}
		p.Values = vals
		p.Value = value.Value{}
	case OpExists:
		switch o.Value.Kind {
		case value.KindBool:
		case value.KindInt, value.KindFloat:
			f, _ := o.Value.AsFloat64()
			p.Value = value.Bool(f != 0)
		default:
			return Predicate{}, fmt.Errorf("%w: $exists needs a boolean", ErrInvalidFilter)
		}
	}
	return p, nil
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool { return len(f.Preds) == 0 }

// Paths returns the distinct predicate paths in first-use order.
func (f Filter) Paths() []string {
	var out []string
	seen := make(map[string]struct{}, len(f.Preds))
	for _, p := range f.Preds {
		if _, ok := seen[p.Path]; ok {
			continue
		}
		seen[p.Path] = struct{}{}
		out = append(out, p.Path)
	}
	return out
}

// On returns the predicates on path.
func (f Filter) On(path string) []Predicate {
	var out []Predicate
	for _, p := range f.Preds {
		if p.Path == path {
			out = append(out, p)
		}
	}
	return out
}

// Without returns a filter with the predicates on the given paths removed.
func (f Filter) Without(paths ...string) Filter {
	var out Filter
	for _, p := range f.Preds {
		drop := false
		for _, path := range paths {
			if p.Path == path {
				drop = true
				break
			}
		}
		if !drop {
			out.Preds = append(out.Preds, p)
		}
	}
	return out
}

// And returns the conjunction of f and g.
func (f Filter) And(g Filter) Filter {
	out := Filter{Preds: make([]Predicate, 0, len(f.Preds)+len(g.Preds))}
	out.Preds = append(out.Preds, f.Preds...)
	out.Preds = append(out.Preds, g.Preds...)
	return out
}

// Matches evaluates the filter with the given field resolver.
func (f Filter) Matches(get Getter) bool {
	for _, p := range f.Preds {
		v, ok := get(p.Path)
		if !p.Match(v, ok) {
			return false
		}
	}
	return true
}

// MatchesDocument evaluates the filter against a document.
func (f Filter) MatchesDocument(doc value.Document) bool {
	return f.Matches(doc.Lookup)
}

// Shape returns a canonical string of the filter's structure without its
// operands. Filters with the same shape are planned the same way.
func (f Filter) Shape() string {
	parts := make([]string, len(f.Preds))
	for i, p := range f.Preds {
		parts[i] = p.Path + ":" + p.Op.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// String renders the filter for logs and explain output.
func (f Filter) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range f.Preds {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Path)
		sb.WriteString(": {")
		sb.WriteString(p.Op.String())
		sb.WriteString(": ")
		if p.Op == OpIn || p.Op == OpNin {
			sb.WriteString(value.Array(p.Values...).String())
		} else {
			sb.WriteString(p.Value.String())
		}
		sb.WriteByte('}')
	}
	sb.WriteByte('}')
	return sb.String()
}

// Match evaluates the predicate against a single field value.
func (p Predicate) Match(v value.Value, present bool) bool {
	if !present {
		v = value.Value{}
	}
	switch p.Op {
	case OpEq:
		return equals(v, present, p.Value)
	case OpNe:
		return !equals(v, present, p.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return compares(p.Op, v, present, p.Value)
	case OpIn:
		return in(v, present, p.Values)
	case OpNin:
		return !in(v, present, p.Values)
	case OpExists:
		return present == p.Value.B
	default:
		return false
	}
}

func isNullish(v value.Value) bool {
	return v.Kind == value.KindNull || v.Kind == value.KindInvalid
}

func equals(v value.Value, present bool, operand value.Value) bool {
	if isNullish(operand) {
		return !present || isNullish(v)
	}
	return present && keycodec.Equal(v, operand)
}

func compares(op Op, v value.Value, present bool, operand value.Value) bool {
	if isNullish(operand) {
		// $gte/$lte null behave like $eq null; $gt/$lt null match nothing.
		if op == OpGte || op == OpLte {
			return equals(v, present, operand)
		}
		return false
	}
	if !present || !keycodec.SameClass(v, operand) {
		return false
	}
	c := keycodec.Compare(v, operand)
	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	default:
		return c <= 0
	}
}

func in(v value.Value, present bool, operands []value.Value) bool {
	for _, o := range operands {
		if equals(v, present, o) {
			return true
		}
	}
	return false
}
