package asterisk

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultBuiltins returns the host builtins mapping. The evaluator treats
// it as read-only; user code may shadow any of the names in its own scopes.
func DefaultBuiltins(stdin io.Reader, stdout io.Writer) map[string]Value {
	in := bufio.NewReader(stdin)

	builtins := map[string]Value{
		"putln": &BuiltinFunction{
			Name: "putln",
			Func: func(args ...Value) (Value, error) {
				parts := make([]string, 0, len(args))
				for _, arg := range args {
					parts = append(parts, rawString(arg))
				}
				_, err := fmt.Fprintln(stdout, strings.Join(parts, " "))
				return nil, err
			},
		},
		"scan": &BuiltinFunction{
			Name: "scan",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("scan", args, 1); err != nil {
					return nil, err
				}
				if _, err := io.WriteString(stdout, rawString(args[0])); err != nil {
					return nil, err
				}
				line, err := in.ReadString('\n')
				if err != nil && line == "" {
					return nil, err
				}
				line = strings.TrimRight(line, "\r\n")
				return String(line), nil
			},
		},
		"length": &BuiltinFunction{
			Name: "length",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("length", args, 1); err != nil {
					return nil, err
				}
				switch x := args[0].(type) {
				case String:
					return Int(utf8.RuneCountInString(string(x))), nil
				case *List:
					return Int(x.Len()), nil
				case Tuple:
					return Int(len(x)), nil
				case *Map:
					return Int(x.Len()), nil
				case *Module:
					return Int(x.Len()), nil
				}
				return nil, &TypeError{
					Msg: fmt.Sprintf("object of type %s has no length", TypeName(args[0])),
				}
			},
		},
		"upper": stringFunc("upper", strings.ToUpper),
		"lower": stringFunc("lower", strings.ToLower),
		"title": stringFunc("title", func(s string) string {
			return cases.Title(language.Und).String(s)
		}),
		"uuid": &BuiltinFunction{
			Name: "uuid",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("uuid", args, 0); err != nil {
					return nil, err
				}
				return String(uuid.NewString()), nil
			},
		},
		"to_json": &BuiltinFunction{
			Name: "to_json",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("to_json", args, 1); err != nil {
					return nil, err
				}
				var enc jx.Encoder
				if err := valueToJSON(&enc, args[0]); err != nil {
					return nil, err
				}
				return String(enc.String()), nil
			},
		},
		"from_json": &BuiltinFunction{
			Name: "from_json",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("from_json", args, 1); err != nil {
					return nil, err
				}
				s, ok := args[0].(String)
				if !ok {
					return nil, &TypeError{
						Msg: fmt.Sprintf("from_json() argument must be string, not %s", TypeName(args[0])),
					}
				}
				return jsonToValue(jx.DecodeStr(string(s)))
			},
		},
		"to_yaml": &BuiltinFunction{
			Name: "to_yaml",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("to_yaml", args, 1); err != nil {
					return nil, err
				}
				native, err := valueToNative(args[0])
				if err != nil {
					return nil, err
				}
				data, err := yaml.Marshal(native)
				if err != nil {
					return nil, &TypeError{Msg: err.Error()}
				}
				return String(data), nil
			},
		},
		"from_yaml": &BuiltinFunction{
			Name: "from_yaml",
			Func: func(args ...Value) (Value, error) {
				if err := checkArity("from_yaml", args, 1); err != nil {
					return nil, err
				}
				s, ok := args[0].(String)
				if !ok {
					return nil, &TypeError{
						Msg: fmt.Sprintf("from_yaml() argument must be string, not %s", TypeName(args[0])),
					}
				}
				var doc any
				if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
					return nil, &TypeError{Msg: err.Error()}
				}
				return nativeToValue(doc)
			},
		},
	}

	return builtins
}

func stringFunc(name string, fn func(string) string) *BuiltinFunction {
	return &BuiltinFunction{
		Name: name,
		Func: func(args ...Value) (Value, error) {
			if err := checkArity(name, args, 1); err != nil {
				return nil, err
			}
			s, ok := args[0].(String)
			if !ok {
				return nil, &TypeError{
					Msg: fmt.Sprintf("%s() argument must be string, not %s", name, TypeName(args[0])),
				}
			}
			return String(fn(string(s))), nil
		},
	}
}

func checkArity(name string, args []Value, want int) error {
	if len(args) != want {
		return &TypeError{Msg: fmt.Sprintf("%s() takes %d argument(s) but %d were given",
			name, want, len(args))}
	}
	return nil
}

func valueToJSON(enc *jx.Encoder, v Value) error {
	switch x := v.(type) {
	case nil:
		enc.Null()
	case Int:
		enc.Int64(int64(x))
	case Float:
		enc.Float64(float64(x))
	case Bool:
		enc.Bool(bool(x))
	case String:
		enc.Str(string(x))
	case *List:
		enc.ArrStart()
		for _, elem := range x.Elems() {
			if err := valueToJSON(enc, elem); err != nil {
				return err
			}
		}
		enc.ArrEnd()
	case Tuple:
		enc.ArrStart()
		for _, elem := range x {
			if err := valueToJSON(enc, elem); err != nil {
				return err
			}
		}
		enc.ArrEnd()
	case *Map:
		enc.ObjStart()
		for _, key := range x.Keys() {
			keyStr, ok := key.(String)
			if !ok {
				return &TypeError{
					Msg: fmt.Sprintf("json object key must be string, not %s", TypeName(key)),
				}
			}
			enc.FieldStart(string(keyStr))
			value, _ := x.Get(key)
			if err := valueToJSON(enc, value); err != nil {
				return err
			}
		}
		enc.ObjEnd()
	case *Module:
		enc.ObjStart()
		for name, value := range x.Exports() {
			enc.FieldStart(name)
			if err := valueToJSON(enc, value); err != nil {
				return err
			}
		}
		enc.ObjEnd()
	default:
		return &TypeError{Msg: fmt.Sprintf("cannot encode %s to json", TypeName(v))}
	}
	return nil
}

func jsonToValue(dec *jx.Decoder) (Value, error) {
	switch dec.Next() {
	case jx.Number:
		num, err := dec.Num()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		if num.IsInt() {
			i, _ := num.Int64()
			return Int(i), nil
		}
		f, _ := num.Float64()
		return Float(f), nil
	case jx.String:
		s, err := dec.Str()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		return String(s), nil
	case jx.Bool:
		b, err := dec.Bool()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		return Bool(b), nil
	case jx.Null:
		return nil, &TypeError{Msg: "cannot decode json null"}
	case jx.Array:
		var elems []Value
		if err := dec.Arr(func(d *jx.Decoder) error {
			elem, err := jsonToValue(d)
			if err != nil {
				return err
			}
			elems = append(elems, elem)
			return nil
		}); err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		return NewList(elems), nil
	case jx.Object:
		m := NewMap()
		if err := dec.Obj(func(d *jx.Decoder, key string) error {
			value, err := jsonToValue(d)
			if err != nil {
				return err
			}
			return m.Set(String(key), value)
		}); err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		return m, nil
	}
	return nil, &TypeError{Msg: "invalid json"}
}

func valueToNative(v Value) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Int:
		return int64(x), nil
	case Float:
		return float64(x), nil
	case Bool:
		return bool(x), nil
	case String:
		return string(x), nil
	case *List:
		return seqToNative(x.Elems())
	case Tuple:
		return seqToNative(x)
	case *Map:
		native := make(map[any]any, x.Len())
		for _, key := range x.Keys() {
			nativeKey, err := valueToNative(key)
			if err != nil {
				return nil, err
			}
			value, _ := x.Get(key)
			nativeValue, err := valueToNative(value)
			if err != nil {
				return nil, err
			}
			native[nativeKey] = nativeValue
		}
		return native, nil
	case *Module:
		native := make(map[string]any, x.Len())
		for name, value := range x.Exports() {
			nativeValue, err := valueToNative(value)
			if err != nil {
				return nil, err
			}
			native[name] = nativeValue
		}
		return native, nil
	}
	return nil, &TypeError{Msg: fmt.Sprintf("cannot encode %s", TypeName(v))}
}

func seqToNative(elems []Value) ([]any, error) {
	native := make([]any, 0, len(elems))
	for _, elem := range elems {
		nativeElem, err := valueToNative(elem)
		if err != nil {
			return nil, err
		}
		native = append(native, nativeElem)
	}
	return native, nil
}

func nativeToValue(x any) (Value, error) {
	switch v := x.(type) {
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint64:
		return Int(v), nil
	case float64:
		return Float(v), nil
	case string:
		return String(v), nil
	case []any:
		elems := make([]Value, 0, len(v))
		for _, elem := range v {
			value, err := nativeToValue(elem)
			if err != nil {
				return nil, err
			}
			elems = append(elems, value)
		}
		return NewList(elems), nil
	case map[string]any:
		m := NewMap()
		for key, elem := range v {
			value, err := nativeToValue(elem)
			if err != nil {
				return nil, err
			}
			if err := m.Set(String(key), value); err != nil {
				return nil, err
			}
		}
		return m, nil
	case map[any]any:
		m := NewMap()
		for key, elem := range v {
			keyValue, err := nativeToValue(key)
			if err != nil {
				return nil, err
			}
			value, err := nativeToValue(elem)
			if err != nil {
				return nil, err
			}
			if err := m.Set(keyValue, value); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return nil, &TypeError{Msg: fmt.Sprintf("cannot decode value of type %T", x)}
}
