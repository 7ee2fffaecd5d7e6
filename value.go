package sender

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultFieldKey is the field key used when a single value is recorded.
const DefaultFieldKey = "value"

// Kind identifies which line protocol type a Value holds.
type Kind uint8

const (
	// KindInvalid is the zero Kind. Values of this kind are never encoded.
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a typed field value. The zero Value is invalid and suppresses the field.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Fields maps field keys to values.
type Fields map[string]Value

// Tags maps tag keys to tag values.
type Tags map[string]string

func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

func String(v string) Value {
	return Value{kind: KindString, s: v}
}

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// Kind returns the type held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsValid reports whether v holds an encodable value.
func (v Value) IsValid() bool {
	switch v.kind {
	case KindInt, KindString, KindBool:
		return true
	case KindFloat:
		return !math.IsNaN(v.f) && !math.IsInf(v.f, 0)
	default:
		return false
	}
}

// Interface returns the value as int64, float64, string or bool, or nil when invalid.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.i == 1
	default:
		return nil
	}
}

func (v Value) appendTo(buf []byte) []byte {
	switch v.kind {
	case KindInt:
		buf = strconv.AppendInt(buf, v.i, 10)
		return append(buf, 'i')
	case KindFloat:
		return strconv.AppendFloat(buf, v.f, 'f', -1, 64)
	case KindBool:
		return strconv.AppendBool(buf, v.i == 1)
	case KindString:
		buf = append(buf, '"')
		buf = append(buf, stringFieldEscaper.Replace(v.s)...)
		return append(buf, '"')
	default:
		return buf
	}
}

// String returns the line protocol representation of the value.
func (v Value) String() string {
	return string(v.appendTo(nil))
}

// ValueOf converts a dynamically typed value into a Value.
func ValueOf(v interface{}) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case int64:
		return Int(t), nil
	case int:
		return Int(int64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case time.Duration:
		return Int(int64(t)), nil
	case nil:
		return Value{}, errors.Wrap(ErrUnsupportedValue, "nil")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, errors.Wrapf(ErrUnsupportedValue, "%d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	}
	return Value{}, errors.Wrapf(ErrUnsupportedValue, "type %T", v)
}

// ParseValue parses a field value written in line protocol syntax:
// 12i, 1.5, true, or "quoted string". Bare words that are not numbers or
// booleans are taken as strings.
func ParseValue(s string) (Value, error) {
	switch s {
	case "":
		return Value{}, errors.Wrap(ErrUnsupportedValue, "empty value")
	case "t", "T", "true", "True", "TRUE":
		return Bool(true), nil
	case "f", "F", "false", "False", "FALSE":
		return Bool(false), nil
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return String(stringFieldUnescaper.Replace(s[1 : len(s)-1])), nil
	}

	if strings.HasSuffix(s, "i") {
		if i, err := strconv.ParseInt(s[:len(s)-1], 10, 64); err == nil {
			return Int(i), nil
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), nil
	}

	return String(s), nil
}
