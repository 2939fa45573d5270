package value

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/danmuck/mcsci/internal/protocol/lex"
)

type mapResolver map[string]Descriptor

func (m mapResolver) Resolve(alias string) (Descriptor, error) {
	d, ok := m[alias]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown alias %q", alias)
	}
	return d, nil
}

func decode(t *testing.T, text string, expect *Descriptor, res Resolver) Value {
	t.Helper()
	toks, err := lex.Line(text)
	if err != nil {
		t.Fatalf("lex %q: %v", text, err)
	}
	v, err := DecodeAll(toks, expect, res)
	if err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return v
}

func decodeErr(t *testing.T, text string, expect *Descriptor, res Resolver) error {
	t.Helper()
	toks, err := lex.Line(text)
	if err != nil {
		t.Fatalf("lex %q: %v", text, err)
	}
	_, err = DecodeAll(toks, expect, res)
	if err == nil {
		t.Fatalf("decode %q: expected error", text)
	}
	return err
}

func descOf(d Descriptor) *Descriptor { return &d }

func TestSmallestTypeInference(t *testing.T) {
	cases := []struct {
		text string
		want Value
	}{
		{"42", U8(42)},
		{"-42", I8(-42)},
		{"300", U16(300)},
		{"-129", I16(-129)},
		{"70000", U32(70000)},
		{"-40000", I32(-40000)},
		{"4294967296", U64(4294967296)},
		{"-2147483649", I64(-2147483649)},
		{"0", U8(0)},
	}
	for _, tc := range cases {
		got := decode(t, tc.text, nil, nil)
		if !got.Equal(tc.want) {
			t.Fatalf("%q inferred %s(%+v), want %s", tc.text, got.Kind.Name(), got, tc.want.Kind.Name())
		}
	}
}

func TestRadixPrefixes(t *testing.T) {
	cases := []struct {
		text string
		want Value
	}{
		{"0x10", U8(16)},
		{"-0x1f", I8(-31)},
		{"0o17", U8(15)},
		{"0b101", U8(5)},
		{"-0b1000", I8(-8)},
	}
	for _, tc := range cases {
		got := decode(t, tc.text, nil, nil)
		if !got.Equal(tc.want) {
			t.Fatalf("%q decoded to %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestWidening(t *testing.T) {
	got := decode(t, "100", descOf(Prim(KindI32)), nil)
	if !got.Equal(I32(100)) {
		t.Fatalf("widen 100 to i32: got %+v", got)
	}
	got = decode(t, "42", descOf(Prim(KindF32)), nil)
	if !got.Equal(F32(42)) {
		t.Fatalf("widen 42 to f32: got %+v", got)
	}
	got = decode(t, "-7", descOf(Prim(KindI64)), nil)
	if !got.Equal(I64(-7)) {
		t.Fatalf("widen -7 to i64: got %+v", got)
	}
}

func TestLossyConversionRejected(t *testing.T) {
	var lossy LossyConversionError

	err := decodeErr(t, "300", descOf(Prim(KindI8)), nil)
	if !errors.As(err, &lossy) {
		t.Fatalf("300 vs i8: got %v, want LossyConversionError", err)
	}
	err = decodeErr(t, "-1", descOf(Prim(KindU8)), nil)
	if !errors.As(err, &lossy) {
		t.Fatalf("-1 vs u8: got %v, want LossyConversionError", err)
	}
	// 2^53+1 has no exact float64 representation
	err = decodeErr(t, "9007199254740993", descOf(Prim(KindF64)), nil)
	if !errors.As(err, &lossy) {
		t.Fatalf("2^53+1 vs f64: got %v, want LossyConversionError", err)
	}
	// 16777217 = 2^24+1 fits f64 but not f32
	err = decodeErr(t, "16777217", descOf(Prim(KindF32)), nil)
	if !errors.As(err, &lossy) {
		t.Fatalf("2^24+1 vs f32: got %v, want LossyConversionError", err)
	}
}

func TestCustomRadixConstructor(t *testing.T) {
	got := decode(t, `i32("-1a", 11)`, nil, nil)
	if !got.Equal(I32(-21)) {
		t.Fatalf(`i32("-1a", 11): got %+v, want -21`, got)
	}
	got = decode(t, `u16("ff", 16)`, nil, nil)
	if !got.Equal(U16(255)) {
		t.Fatalf(`u16("ff", 16): got %+v`, got)
	}
	err := decodeErr(t, `u8("1", 40)`, nil, nil)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("radix 40: got %v, want parse error", err)
	}
}

func TestBitPatternFloat(t *testing.T) {
	got := decode(t, "f64(0x400921fb54442d18)", nil, nil)
	if got.Kind != KindF64 {
		t.Fatalf("got kind %s", got.Kind.Name())
	}
	if math.Abs(got.Float-3.14159265358979) > 1e-13 {
		t.Fatalf("bit pattern decoded to %v", got.Float)
	}
	got = decode(t, "f32(0x3fc00000)", nil, nil)
	if !got.Equal(F32(1.5)) {
		t.Fatalf("f32 bit pattern decoded to %+v", got)
	}
}

func TestFloatSpecials(t *testing.T) {
	got := decode(t, "NaN", nil, nil)
	if got.Kind != KindF32 || !math.IsNaN(got.Float) {
		t.Fatalf("NaN decoded to %+v", got)
	}
	got = decode(t, "-Infinity", descOf(Prim(KindF64)), nil)
	if !got.Equal(F64(math.Inf(-1))) {
		t.Fatalf("-Infinity decoded to %+v", got)
	}
	got = decode(t, `f64("NaN")`, nil, nil)
	if got.Kind != KindF64 || !math.IsNaN(got.Float) {
		t.Fatalf(`f64("NaN") decoded to %+v`, got)
	}
}

func TestUntypedFloatDefaultsF32(t *testing.T) {
	got := decode(t, "3.5", nil, nil)
	if !got.Equal(F32(3.5)) {
		t.Fatalf("3.5 decoded to %+v", got)
	}
	got = decode(t, "1e3", descOf(Prim(KindF64)), nil)
	if !got.Equal(F64(1000)) {
		t.Fatalf("1e3 decoded to %+v", got)
	}
}

func TestArrayLengthMismatch(t *testing.T) {
	desc := descOf(ArrayOf(Prim(KindI32), 3))
	err := decodeErr(t, "[1, 2]", desc, nil)
	var alm ArrayLengthMismatchError
	if !errors.As(err, &alm) {
		t.Fatalf("got %v, want ArrayLengthMismatchError", err)
	}
	if alm.Want != 3 || alm.Got != 2 {
		t.Fatalf("mismatch detail %+v", alm)
	}
	got := decode(t, "[1, 2, 3]", desc, nil)
	if !got.Equal(Value{Kind: KindArray, Elems: []Value{I32(1), I32(2), I32(3)}}) {
		t.Fatalf("array decoded to %+v", got)
	}
}

func TestTupleDescriptor(t *testing.T) {
	desc := descOf(TupleOf(Prim(KindString), Prim(KindBool), Prim(KindU16)))
	got := decode(t, `("caged", true, 300)`, desc, nil)
	want := Tuple(Str("caged"), Bool(true), U16(300))
	if !got.Equal(want) {
		t.Fatalf("tuple decoded to %+v", got)
	}
	err := decodeErr(t, `("caged", true)`, desc, nil)
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("arity mismatch: got %v", err)
	}
}

func TestListHomogeneity(t *testing.T) {
	err := decodeErr(t, `[1, "x"]`, nil, nil)
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("mixed list: got %v", err)
	}
	got := decode(t, `list["a", "b"]`, descOf(ListOf(Prim(KindString))), nil)
	if !got.Equal(StringList("a", "b")) {
		t.Fatalf("string list decoded to %+v", got)
	}
}

func heightHintDesc() Descriptor {
	return EnumOf(
		Ctor{Name: "Unknown"},
		Ctor{Name: "Exact", Arg: descOf(Prim(KindI32))},
		Ctor{Name: "Range", Arg: descOf(TupleOf(Prim(KindI32), Prim(KindI32)))},
	)
}

func TestEnumDecoding(t *testing.T) {
	desc := descOf(heightHintDesc())

	got := decode(t, "Exact(5)", desc, nil)
	payload := I32(5)
	if !got.Equal(Enum("Exact", &payload)) {
		t.Fatalf("Exact(5) decoded to %+v", got)
	}

	got = decode(t, "Unknown", desc, nil)
	if !got.Equal(Enum("Unknown", nil)) {
		t.Fatalf("Unknown decoded to %+v", got)
	}

	err := decodeErr(t, "Bogus", desc, nil)
	var uc UnknownConstructorError
	if !errors.As(err, &uc) || uc.Name != "Bogus" {
		t.Fatalf("Bogus: got %v, want UnknownConstructorError", err)
	}

	err = decodeErr(t, "Unknown(3)", desc, nil)
	var pm PayloadTypeMismatchError
	if !errors.As(err, &pm) {
		t.Fatalf("payload on bare constructor: got %v", err)
	}
	err = decodeErr(t, "Exact", desc, nil)
	if !errors.As(err, &pm) {
		t.Fatalf("missing payload: got %v", err)
	}
}

func TestAliasDecoding(t *testing.T) {
	res := mapResolver{
		"height_hint": heightHintDesc(),
		"pair":        TupleOf(Prim(KindI32), Prim(KindI32)),
	}
	got := decode(t, "height_hint::Range((76, 82))", nil, res)
	pair := Tuple(I32(76), I32(82))
	want := Enum("Range", &pair)
	want.Alias = "height_hint"
	if !got.Equal(want) {
		t.Fatalf("alias value decoded to %+v", got)
	}

	err := decodeErr(t, "nope::(1, 2)", nil, res)
	if err == nil {
		t.Fatal("unknown alias accepted")
	}
}

func TestAliasChainDepthBounded(t *testing.T) {
	res := mapResolver{"loop": AliasOf("loop")}
	err := decodeErr(t, "loop::1", nil, res)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("self-referential alias: got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	pi := F64(math.Pi)
	exact := I32(91)
	values := []struct {
		v    Value
		desc *Descriptor
	}{
		{U8(42), nil},
		{I8(-42), nil},
		{U16(300), nil},
		{I64(math.MinInt64), nil},
		{U64(math.MaxUint64), nil},
		{F32(3.5), nil},
		{F64(math.NaN()), nil},
		{F64(math.Inf(1)), nil},
		{pi, nil},
		{Str("hello \"world\"\n"), nil},
		{Bool(true), nil},
		{Tuple(Str("a"), U8(1), Bool(false)), nil},
		{List(I32(1), I32(2), I32(3)), descOf(ListOf(Prim(KindI32)))},
		{Array(U8(1), U8(2)), descOf(ArrayOf(Prim(KindU8), 2))},
		{Enum("Exact", &exact), descOf(heightHintDesc())},
		{Enum("Unknown", nil), descOf(heightHintDesc())},
	}
	for _, tc := range values {
		text := tc.v.String()
		toks, err := lex.Line(text)
		if err != nil {
			t.Fatalf("lex %q: %v", text, err)
		}
		back, err := DecodeAll(toks, tc.desc, nil)
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if !back.Equal(tc.v) {
			t.Fatalf("round trip %q: got %+v, want %+v", text, back, tc.v)
		}
	}
}

func TestCanonicalFormIsContextFree(t *testing.T) {
	// the canonical rendering re-decodes to the same value without any
	// descriptor at all
	values := []Value{
		I16(-300),
		U32(1 << 20),
		F32(0.25),
		Tuple(I8(-1), U8(1)),
	}
	for _, v := range values {
		got := decode(t, v.String(), nil, nil)
		if !got.Equal(v) {
			t.Fatalf("context-free round trip of %q: got %+v", v.String(), got)
		}
	}
}

func TestTrailingTokensRejected(t *testing.T) {
	err := decodeErr(t, "1 2", nil, nil)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("trailing tokens: got %v", err)
	}
}
