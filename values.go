package asterisk

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/asterisk-lang/asterisk/parser"
	"github.com/asterisk-lang/asterisk/token"
)

// Value represents a value in the Asterisk runtime.
type Value interface {
	// TypeName returns the name of the type.
	TypeName() string
	// String returns a string representation of the value.
	String() string
	// IsFalsy returns true if the value should be considered as falsy.
	IsFalsy() bool
}

// Callable represents a value that can be called with arguments.
type Callable interface {
	Value
	// Call invokes the value with the given arguments.
	Call(args ...Value) (Value, error)
}

// Int represents an integer value.
type Int int64

func (v Int) TypeName() string { return "int" }
func (v Int) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Int) IsFalsy() bool    { return v == 0 }

// Float represents a floating point value.
type Float float64

func (v Float) TypeName() string { return "float" }
func (v Float) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Float) IsFalsy() bool    { return v == 0 }

// Bool represents a boolean value.
type Bool bool

func (v Bool) TypeName() string { return "bool" }
func (v Bool) IsFalsy() bool    { return !bool(v) }

func (v Bool) String() string {
	if v {
		return "true"
	}
	return "false"
}

// String represents a string value. Iteration and length are defined over
// Unicode code points.
type String string

func (v String) TypeName() string { return "string" }
func (v String) String() string   { return strconv.Quote(string(v)) }
func (v String) IsFalsy() bool    { return len(v) == 0 }

// List represents an ordered mutable collection of values.
type List struct {
	elems []Value
}

// NewList creates a List holding the given elements.
func NewList(elems []Value) *List {
	return &List{elems: elems}
}

func (v *List) TypeName() string { return "list" }
func (v *List) IsFalsy() bool    { return len(v.elems) == 0 }

func (v *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, elem := range v.elems {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(elemString(elem))
	}
	b.WriteByte(']')
	return b.String()
}

// Len returns the number of elements.
func (v *List) Len() int { return len(v.elems) }

// Elems returns the underlying element slice.
func (v *List) Elems() []Value { return v.elems }

// Tuple represents an ordered immutable collection of values.
type Tuple []Value

func (v Tuple) TypeName() string { return "tuple" }
func (v Tuple) IsFalsy() bool    { return len(v) == 0 }

func (v Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, elem := range v {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(elemString(elem))
	}
	if len(v) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

// Map represents a mapping from hashable primitive keys to values.
// Insertion order is preserved and is the iteration order.
type Map struct {
	keys  []Value
	items map[Value]Value
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{items: make(map[Value]Value)}
}

func (v *Map) TypeName() string { return "dict" }
func (v *Map) IsFalsy() bool    { return len(v.keys) == 0 }

func (v *Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range v.keys {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(elemString(key))
		b.WriteString(": ")
		b.WriteString(elemString(v.items[key]))
	}
	b.WriteByte('}')
	return b.String()
}

// Len returns the number of entries.
func (v *Map) Len() int { return len(v.keys) }

// Get returns the value stored under key.
func (v *Map) Get(key Value) (Value, bool) {
	value, ok := v.items[key]
	return value, ok
}

// Set inserts or overwrites the value stored under key.
// The key must be hashable.
func (v *Map) Set(key, value Value) error {
	if !Hashable(key) {
		return &TypeError{Msg: "dict key is not hashable"}
	}
	if _, ok := v.items[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.items[key] = value
	return nil
}

// Keys returns the keys in insertion order.
func (v *Map) Keys() []Value { return v.keys }

// Module represents the frozen exports of an evaluated module file.
type Module struct {
	name   string
	fields map[string]Value
}

// NewModule creates a module from a snapshot of exported bindings.
func NewModule(name string, fields map[string]Value) *Module {
	snapshot := make(map[string]Value, len(fields))
	for k, v := range fields {
		snapshot[k] = v
	}
	return &Module{name: name, fields: snapshot}
}

func (v *Module) TypeName() string { return "module" }
func (v *Module) String() string   { return fmt.Sprintf("<module %q>", v.name) }
func (v *Module) IsFalsy() bool    { return len(v.fields) == 0 }

// Name returns the module name.
func (v *Module) Name() string { return v.name }

// Len returns the number of exported bindings.
func (v *Module) Len() int { return len(v.fields) }

// Field returns the exported binding under name.
func (v *Module) Field(name string) (Value, bool) {
	value, ok := v.fields[name]
	return value, ok
}

// Exports returns a copy of the exported bindings. Mutating the returned
// map does not affect the module.
func (v *Module) Exports() map[string]Value {
	exports := make(map[string]Value, len(v.fields))
	for k, val := range v.fields {
		exports[k] = val
	}
	return exports
}

// BuiltinFunction represents a host function.
type BuiltinFunction struct {
	Name string
	Func func(args ...Value) (Value, error)
}

func (v *BuiltinFunction) TypeName() string { return "builtin-function" }
func (v *BuiltinFunction) String() string   { return fmt.Sprintf("<builtin function %s>", v.Name) }
func (v *BuiltinFunction) IsFalsy() bool    { return false }

// Call invokes the host function.
func (v *BuiltinFunction) Call(args ...Value) (Value, error) {
	return v.Func(args...)
}

// UserFunction represents a function defined in Asterisk source. It carries
// its parameter list and body only: there is no captured lexical
// environment. The function evaluates against the evaluator of the module
// that defined it.
type UserFunction struct {
	name   string
	params []string
	body   *parser.Node
	owner  *Evaluator
}

func (v *UserFunction) TypeName() string { return "function" }
func (v *UserFunction) String() string   { return fmt.Sprintf("<function %s>", v.name) }
func (v *UserFunction) IsFalsy() bool    { return false }

// Call invokes the function with the given arguments after checking arity.
func (v *UserFunction) Call(args ...Value) (Value, error) {
	if len(args) != len(v.params) {
		return nil, &TypeError{Msg: fmt.Sprintf("%s() takes %d argument(s) but %d were given",
			v.name, len(v.params), len(args))}
	}
	local := make(map[string]Value, len(v.params))
	for i, name := range v.params {
		local[name] = args[i]
	}
	return v.owner.callFunction(v, local)
}

// Truthy returns the boolean projection of a value used as a condition.
func Truthy(v Value) bool {
	return v != nil && !v.IsFalsy()
}

// Hashable reports whether v may be used as a dict key.
func Hashable(v Value) bool {
	switch v.(type) {
	case Int, Float, Bool, String:
		return true
	}
	return false
}

// TypeName returns the type name of v, handling the absent value.
func TypeName(v Value) string {
	if v == nil {
		return "none"
	}
	return v.TypeName()
}

// elemString renders a value nested inside a container.
func elemString(v Value) string {
	if v == nil {
		return "<none>"
	}
	return v.String()
}

// Equal reports deep equality of two values. Numbers compare numerically
// across int and float.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y
		case Float:
			return Float(x) == y
		}
		return false
	case Float:
		switch y := b.(type) {
		case Int:
			return x == Float(y)
		case Float:
			return x == y
		}
		return false
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.elems) != len(y.elems) {
			return false
		}
		for i := range x.elems {
			if !Equal(x.elems[i], y.elems[i]) {
				return false
			}
		}
		return true
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || len(x.keys) != len(y.keys) {
			return false
		}
		for key, value := range x.items {
			other, ok := y.items[key]
			if !ok || !Equal(value, other) {
				return false
			}
		}
		return true
	}
	return a == b
}

// Compare evaluates an ordering comparison. Ordering is defined for
// numbers (mixed int and float) and for strings.
func Compare(op token.Token, a, b Value) (Value, error) {
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			return orderResult(op, cmpFloat(x, y)), nil
		}
	}
	if x, ok := a.(String); ok {
		if y, ok := b.(String); ok {
			return orderResult(op, strings.Compare(string(x), string(y))), nil
		}
	}
	return nil, &TypeError{Msg: fmt.Sprintf("invalid operation: %s %s %s",
		TypeName(a), op, TypeName(b))}
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func orderResult(op token.Token, cmp int) Bool {
	switch op {
	case token.Less:
		return cmp < 0
	case token.LessEq:
		return cmp <= 0
	case token.Greater:
		return cmp > 0
	case token.GreaterEq:
		return cmp >= 0
	}
	return false
}

func numeric(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int:
		return float64(x), true
	case Float:
		return float64(x), true
	}
	return 0, false
}

// BinaryOp evaluates an arithmetic binary operation. Integer addition,
// subtraction and multiplication promote the result to float on overflow.
func BinaryOp(op token.Token, a, b Value) (Value, error) {
	switch op {
	case token.Add:
		switch x := a.(type) {
		case Int:
			switch y := b.(type) {
			case Int:
				if r := x + y; (r > x) == (y > 0) {
					return r, nil
				}
				return Float(float64(x) + float64(y)), nil
			case Float:
				return Float(x) + y, nil
			}
		case Float:
			switch y := b.(type) {
			case Int:
				return x + Float(y), nil
			case Float:
				return x + y, nil
			}
		case String:
			if y, ok := b.(String); ok {
				return x + y, nil
			}
		case *List:
			if y, ok := b.(*List); ok {
				elems := make([]Value, 0, len(x.elems)+len(y.elems))
				elems = append(elems, x.elems...)
				elems = append(elems, y.elems...)
				return NewList(elems), nil
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				elems := make(Tuple, 0, len(x)+len(y))
				elems = append(elems, x...)
				elems = append(elems, y...)
				return elems, nil
			}
		}
	case token.Sub:
		switch x := a.(type) {
		case Int:
			switch y := b.(type) {
			case Int:
				if r := x - y; (r < x) == (y > 0) {
					return r, nil
				}
				return Float(float64(x) - float64(y)), nil
			case Float:
				return Float(x) - y, nil
			}
		case Float:
			switch y := b.(type) {
			case Int:
				return x - Float(y), nil
			case Float:
				return x - y, nil
			}
		}
	case token.Mul:
		switch x := a.(type) {
		case Int:
			switch y := b.(type) {
			case Int:
				return mulInt(x, y), nil
			case Float:
				return Float(x) * y, nil
			}
		case Float:
			switch y := b.(type) {
			case Int:
				return x * Float(y), nil
			case Float:
				return x * y, nil
			}
		case String:
			if y, ok := b.(Int); ok {
				return repeatString(x, y), nil
			}
		case *List:
			if y, ok := b.(Int); ok {
				return repeatList(x, y), nil
			}
		}
		// int * string and int * list are symmetric
		if x, ok := a.(Int); ok {
			switch y := b.(type) {
			case String:
				return repeatString(y, x), nil
			case *List:
				return repeatList(y, x), nil
			}
		}
	case token.Quo:
		x, xok := numeric(a)
		y, yok := numeric(b)
		if xok && yok {
			if y == 0 {
				return nil, &ZeroDivisionError{
					Msg: fmt.Sprintf("division by zero: %s / %s", a.String(), b.String()),
				}
			}
			return Float(x / y), nil
		}
	}
	return nil, &TypeError{Msg: fmt.Sprintf("invalid operation: %s %s %s",
		TypeName(a), op, TypeName(b))}
}

func mulInt(x, y Int) Value {
	if x == 0 || y == 0 {
		return Int(0)
	}
	r := x * y
	if r/y == x && !(x == math.MinInt64 && y == -1) {
		return r
	}
	return Float(float64(x) * float64(y))
}

func repeatString(s String, n Int) String {
	if n <= 0 {
		return ""
	}
	return String(strings.Repeat(string(s), int(n)))
}

func repeatList(l *List, n Int) *List {
	if n <= 0 {
		return NewList(nil)
	}
	elems := make([]Value, 0, l.Len()*int(n))
	for range int(n) {
		elems = append(elems, l.elems...)
	}
	return NewList(elems)
}

// Negate evaluates unary minus.
func Negate(v Value) (Value, error) {
	switch x := v.(type) {
	case Int:
		if x == math.MinInt64 {
			return Float(-float64(x)), nil
		}
		return -x, nil
	case Float:
		return -x, nil
	}
	return nil, &TypeError{Msg: fmt.Sprintf("invalid operation: -%s", TypeName(v))}
}

// Elements returns an iterator over the elements of an iterable value:
// list and tuple elements, string code points, and dict keys in insertion
// order. The second result is false if the value is not iterable.
func Elements(v Value) (iter.Seq[Value], bool) {
	switch x := v.(type) {
	case *List:
		return func(yield func(Value) bool) {
			for _, elem := range x.elems {
				if !yield(elem) {
					return
				}
			}
		}, true
	case Tuple:
		return func(yield func(Value) bool) {
			for _, elem := range x {
				if !yield(elem) {
					return
				}
			}
		}, true
	case String:
		return func(yield func(Value) bool) {
			for _, r := range string(x) {
				if !yield(String(r)) {
					return
				}
			}
		}, true
	case *Map:
		keys := make([]Value, len(x.keys))
		copy(keys, x.keys)
		return func(yield func(Value) bool) {
			for _, key := range keys {
				if !yield(key) {
					return
				}
			}
		}, true
	}
	return nil, false
}
