package value

import "math"

// Kind tags one typed value or primitive type.
type Kind uint8

const (
	KindString Kind = iota
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindTuple
	KindList
	KindArray
	KindEnum
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindBool:   "bool",
	KindI8:     "i8",
	KindI16:    "i16",
	KindI32:    "i32",
	KindI64:    "i64",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindTuple:  "tuple",
	KindList:   "list",
	KindArray:  "array",
	KindEnum:   "enum",
}

func (k Kind) Name() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// PrimKind maps a primitive type name to its kind.
func PrimKind(name string) (Kind, bool) {
	switch name {
	case "string":
		return KindString, true
	case "bool":
		return KindBool, true
	case "i8":
		return KindI8, true
	case "i16":
		return KindI16, true
	case "i32":
		return KindI32, true
	case "i64":
		return KindI64, true
	case "u8":
		return KindU8, true
	case "u16":
		return KindU16, true
	case "u32":
		return KindU32, true
	case "u64":
		return KindU64, true
	case "f32":
		return KindF32, true
	case "f64":
		return KindF64, true
	}
	return 0, false
}

func (k Kind) isSigned() bool {
	return k >= KindI8 && k <= KindI64
}

func (k Kind) isUnsigned() bool {
	return k >= KindU8 && k <= KindU64
}

func (k Kind) isInteger() bool {
	return k.isSigned() || k.isUnsigned()
}

func (k Kind) isFloat() bool {
	return k == KindF32 || k == KindF64
}

func (k Kind) bits() int {
	switch k {
	case KindI8, KindU8:
		return 8
	case KindI16, KindU16:
		return 16
	case KindI32, KindU32, KindF32:
		return 32
	case KindI64, KindU64, KindF64:
		return 64
	}
	return 0
}

// Value is one typed protocol value. Exactly the field selected by Kind is
// meaningful: Str for strings, Bool for bools, Int for the signed family,
// Uint for the unsigned family, Float for f32/f64 (an f32 holds a value that
// survives the float32 round trip), Elems for composites. Enum values carry
// the constructor name in Ctor and an optional payload as Elems[0]. Alias is
// the explicit alias prefix the value was written with, empty otherwise.
type Value struct {
	Kind  Kind
	Str   string
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Alias string
	Ctor  string
	Elems []Value
}

func Str(s string) Value      { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func I8(v int8) Value         { return Value{Kind: KindI8, Int: int64(v)} }
func I16(v int16) Value       { return Value{Kind: KindI16, Int: int64(v)} }
func I32(v int32) Value       { return Value{Kind: KindI32, Int: int64(v)} }
func I64(v int64) Value       { return Value{Kind: KindI64, Int: v} }
func U8(v uint8) Value        { return Value{Kind: KindU8, Uint: uint64(v)} }
func U16(v uint16) Value      { return Value{Kind: KindU16, Uint: uint64(v)} }
func U32(v uint32) Value      { return Value{Kind: KindU32, Uint: uint64(v)} }
func U64(v uint64) Value      { return Value{Kind: KindU64, Uint: v} }
func F32(v float32) Value     { return Value{Kind: KindF32, Float: float64(v)} }
func F64(v float64) Value     { return Value{Kind: KindF64, Float: v} }
func Tuple(vs ...Value) Value { return Value{Kind: KindTuple, Elems: vs} }
func List(vs ...Value) Value  { return Value{Kind: KindList, Elems: vs} }
func Array(vs ...Value) Value { return Value{Kind: KindArray, Elems: vs} }

func Enum(ctor string, payload *Value) Value {
	v := Value{Kind: KindEnum, Ctor: ctor}
	if payload != nil {
		v.Elems = []Value{*payload}
	}
	return v
}

// StringList builds a list of string values.
func StringList(ss ...string) Value {
	elems := make([]Value, len(ss))
	for i, s := range ss {
		elems[i] = Str(s)
	}
	return List(elems...)
}

// Equal reports deep equality. Unlike reflect.DeepEqual it treats two NaN
// floats of the same width as equal, so decode(encode(v)) comparisons hold
// for every representable value.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Alias != o.Alias || v.Ctor != o.Ctor {
		return false
	}
	switch {
	case v.Kind == KindString:
		return v.Str == o.Str
	case v.Kind == KindBool:
		return v.Bool == o.Bool
	case v.Kind.isSigned():
		return v.Int == o.Int
	case v.Kind.isUnsigned():
		return v.Uint == o.Uint
	case v.Kind.isFloat():
		if math.IsNaN(v.Float) && math.IsNaN(o.Float) {
			return true
		}
		return v.Float == o.Float
	}
	if len(v.Elems) != len(o.Elems) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}
