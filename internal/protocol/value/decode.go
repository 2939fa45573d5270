package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danmuck/mcsci/internal/protocol/lex"
)

// maxAliasDepth bounds alias indirection so a registry holding a
// self-referential alias cannot stall decoding.
const maxAliasDepth = 32

// DecodeAll decodes exactly one value from the token stream, consuming every
// token. expect may be nil for context-free decoding; res may be nil when no
// alias can appear.
func DecodeAll(toks []lex.Token, expect *Descriptor, res Resolver) (Value, error) {
	v, rest, err := DecodeNext(toks, expect, res)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, fmt.Errorf("%w: trailing tokens after value", ErrParse)
	}
	return v, nil
}

// DecodeNext decodes one value from the front of the token stream and
// returns the unconsumed remainder.
func DecodeNext(toks []lex.Token, expect *Descriptor, res Resolver) (Value, []lex.Token, error) {
	d := &decoder{toks: toks, res: res}
	v, err := d.value(expect, 0)
	if err != nil {
		return Value{}, nil, err
	}
	return v, d.toks[d.i:], nil
}

type decoder struct {
	toks []lex.Token
	i    int
	res  Resolver
}

func (d *decoder) peek() (lex.Token, bool) {
	if d.i >= len(d.toks) {
		return lex.Token{}, false
	}
	return d.toks[d.i], true
}

func (d *decoder) peekAt(n int) (lex.Token, bool) {
	if d.i+n >= len(d.toks) {
		return lex.Token{}, false
	}
	return d.toks[d.i+n], true
}

func (d *decoder) next() (lex.Token, bool) {
	t, ok := d.peek()
	if ok {
		d.i++
	}
	return t, ok
}

func (d *decoder) expect(kind lex.Kind, what string) error {
	t, ok := d.next()
	if !ok || t.Kind != kind {
		return fmt.Errorf("%w: %s expected", ErrParse, what)
	}
	return nil
}

// resolveExpect chases alias indirection down to a structural descriptor.
func (d *decoder) resolveExpect(expect *Descriptor) (*Descriptor, error) {
	for depth := 0; expect != nil && expect.Kind == DescAlias; depth++ {
		if depth >= maxAliasDepth {
			return nil, fmt.Errorf("%w: alias chain too deep at %q", ErrParse, expect.Alias)
		}
		if d.res == nil {
			return nil, fmt.Errorf("%w: no registry to resolve alias %q", ErrParse, expect.Alias)
		}
		resolved, err := d.res.Resolve(expect.Alias)
		if err != nil {
			return nil, err
		}
		expect = &resolved
	}
	return expect, nil
}

func (d *decoder) value(expect *Descriptor, depth int) (Value, error) {
	exp, err := d.resolveExpect(expect)
	if err != nil {
		return Value{}, err
	}
	tok, ok := d.peek()
	if !ok {
		return Value{}, fmt.Errorf("%w: value expected", ErrParse)
	}

	switch tok.Kind {
	case lex.String:
		d.i++
		if exp != nil && !(exp.Kind == DescPrim && exp.Prim == KindString) {
			return Value{}, fmt.Errorf("%w: string given, %s expected", ErrMismatch, exp)
		}
		return Str(tok.Text), nil
	case lex.LParen:
		d.i++
		return d.tuple(exp, depth)
	case lex.LBracket:
		d.i++
		return d.sequence(lex.RBracket, exp, depth)
	case lex.Atom:
		return d.atomValue(tok, exp, depth)
	default:
		return Value{}, fmt.Errorf("%w: unexpected %q", ErrParse, tok.Text)
	}
}

func (d *decoder) atomValue(tok lex.Token, exp *Descriptor, depth int) (Value, error) {
	text := tok.Text

	switch text {
	case "true", "false":
		d.i++
		if exp != nil && !(exp.Kind == DescPrim && exp.Prim == KindBool) {
			return Value{}, fmt.Errorf("%w: bool given, %s expected", ErrMismatch, exp)
		}
		return Bool(text == "true"), nil
	case "NaN":
		d.i++
		return floatSpecial(math.NaN(), exp)
	case "Infinity":
		d.i++
		return floatSpecial(math.Inf(1), exp)
	case "-Infinity":
		d.i++
		return floatSpecial(math.Inf(-1), exp)
	case "tuple":
		if next, ok := d.peekAt(1); ok && next.Kind == lex.LParen {
			d.i += 2
			return d.tuple(exp, depth)
		}
	case "list":
		if closing, ok := d.openSeq(); ok {
			if exp != nil && exp.Kind != DescList {
				return Value{}, fmt.Errorf("%w: list given, %s expected", ErrMismatch, exp)
			}
			return d.sequence(closing, exp, depth)
		}
	case "array":
		if closing, ok := d.openSeq(); ok {
			if exp == nil {
				arr := Descriptor{Kind: DescArray, Len: -1}
				return d.sequence(closing, &arr, depth)
			}
			if exp.Kind != DescArray {
				return Value{}, fmt.Errorf("%w: array given, %s expected", ErrMismatch, exp)
			}
			return d.sequence(closing, exp, depth)
		}
	}

	if k, ok := PrimKind(text); ok {
		if next, nok := d.peekAt(1); nok && next.Kind == lex.LParen {
			switch {
			case k.isInteger():
				d.i += 2
				return d.intConstructor(k, exp)
			case k.isFloat():
				d.i += 2
				return d.floatConstructor(k, exp)
			}
		}
	}

	if isNumeric(text) {
		d.i++
		return decodeNumber(text, exp)
	}

	if isIdent(text) {
		if next, ok := d.peekAt(1); ok && next.Kind == lex.ColonColon {
			d.i += 2
			aliased := AliasOf(text)
			v, err := d.value(&aliased, depth+1)
			if err != nil {
				return Value{}, err
			}
			v.Alias = text
			return v, nil
		}
		d.i++
		return d.enumValue(text, exp, depth)
	}

	return Value{}, fmt.Errorf("%w: unexpected token %q", ErrParse, text)
}

// openSeq reports whether the token after the keyword opens a sequence and
// returns the matching closing delimiter. Both list[...] and list(...) forms
// are accepted.
func (d *decoder) openSeq() (lex.Kind, bool) {
	next, ok := d.peekAt(1)
	if !ok {
		return 0, false
	}
	switch next.Kind {
	case lex.LBracket:
		d.i += 2
		return lex.RBracket, true
	case lex.LParen:
		d.i += 2
		return lex.RParen, true
	}
	return 0, false
}

// tuple decodes elements up to the closing paren. The opening paren is
// already consumed.
func (d *decoder) tuple(exp *Descriptor, depth int) (Value, error) {
	if exp != nil && exp.Kind != DescTuple {
		return Value{}, fmt.Errorf("%w: tuple given, %s expected", ErrMismatch, exp)
	}
	elemExpect := func(i int) *Descriptor {
		if exp == nil || i >= len(exp.Elems) {
			return nil
		}
		return &exp.Elems[i]
	}
	elems, err := d.elements(lex.RParen, elemExpect, depth)
	if err != nil {
		return Value{}, err
	}
	if exp != nil && len(elems) != len(exp.Elems) {
		return Value{}, fmt.Errorf("%w: tuple arity %d, descriptor wants %d", ErrMismatch, len(elems), len(exp.Elems))
	}
	return Tuple(elems...), nil
}

// sequence decodes a list or array literal. The opening delimiter is already
// consumed; exp selects list vs array handling (nil means untyped list).
func (d *decoder) sequence(closing lex.Kind, exp *Descriptor, depth int) (Value, error) {
	var elemDesc *Descriptor
	kind := KindList
	declaredLen := -1
	if exp != nil {
		switch exp.Kind {
		case DescList:
			if len(exp.Elems) > 0 {
				elemDesc = &exp.Elems[0]
			}
		case DescArray:
			kind = KindArray
			declaredLen = exp.Len
			if len(exp.Elems) > 0 {
				elemDesc = &exp.Elems[0]
			}
		default:
			return Value{}, fmt.Errorf("%w: sequence given, %s expected", ErrMismatch, exp)
		}
	}

	elems, err := d.elements(closing, func(int) *Descriptor { return elemDesc }, depth)
	if err != nil {
		return Value{}, err
	}
	if elemDesc == nil && !homogeneous(elems) {
		return Value{}, fmt.Errorf("%w: sequence elements have mixed types", ErrMismatch)
	}
	if kind == KindArray && declaredLen >= 0 && len(elems) != declaredLen {
		return Value{}, ArrayLengthMismatchError{Want: declaredLen, Got: len(elems)}
	}
	return Value{Kind: kind, Elems: elems}, nil
}

func (d *decoder) elements(closing lex.Kind, expectAt func(int) *Descriptor, depth int) ([]Value, error) {
	var elems []Value
	for {
		tok, ok := d.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated composite", ErrParse)
		}
		if tok.Kind == closing {
			d.i++
			return elems, nil
		}
		v, err := d.value(expectAt(len(elems)), depth+1)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)

		tok, ok = d.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated composite", ErrParse)
		}
		switch tok.Kind {
		case closing:
			d.i++
			return elems, nil
		case lex.Comma:
			d.i++
		default:
			return nil, fmt.Errorf("%w: expected ',' or closing delimiter, got %q", ErrParse, tok.Text)
		}
	}
}

func homogeneous(elems []Value) bool {
	for i := 1; i < len(elems); i++ {
		if elems[i].Kind != elems[0].Kind {
			return false
		}
	}
	return true
}

// enumValue decodes a constructor application. The constructor name token is
// already consumed.
func (d *decoder) enumValue(name string, exp *Descriptor, depth int) (Value, error) {
	if exp != nil && exp.Kind != DescEnum {
		return Value{}, fmt.Errorf("%w: enum constructor %q given, %s expected", ErrMismatch, name, exp)
	}

	var ctor *Ctor
	if exp != nil {
		for i := range exp.Ctors {
			if exp.Ctors[i].Name == name {
				ctor = &exp.Ctors[i]
				break
			}
		}
		if ctor == nil {
			return Value{}, UnknownConstructorError{Name: name}
		}
	}

	hasPayload := false
	if tok, ok := d.peek(); ok && tok.Kind == lex.LParen {
		hasPayload = true
	}

	if ctor != nil {
		if hasPayload && ctor.Arg == nil {
			return Value{}, PayloadTypeMismatchError{Ctor: name, Reason: "constructor takes no payload"}
		}
		if !hasPayload && ctor.Arg != nil {
			return Value{}, PayloadTypeMismatchError{Ctor: name, Reason: "payload required"}
		}
	}

	if !hasPayload {
		return Enum(name, nil), nil
	}

	d.i++
	var payloadExpect *Descriptor
	if ctor != nil {
		payloadExpect = ctor.Arg
	}
	payload, err := d.value(payloadExpect, depth+1)
	if err != nil {
		if ctor != nil && !errors.Is(err, ErrParse) {
			return Value{}, PayloadTypeMismatchError{Ctor: name, Reason: err.Error()}
		}
		return Value{}, err
	}
	if err := d.expect(lex.RParen, "')' after enum payload"); err != nil {
		return Value{}, err
	}
	return Enum(name, &payload), nil
}

// intConstructor decodes Type("digits"[, radix]) with both opening tokens
// consumed.
func (d *decoder) intConstructor(k Kind, exp *Descriptor) (Value, error) {
	lit, ok := d.next()
	if !ok || lit.Kind != lex.String {
		return Value{}, fmt.Errorf("%w: quoted digits expected in %s(...)", ErrParse, k.Name())
	}
	radix := 10
	if tok, ok := d.peek(); ok && tok.Kind == lex.Comma {
		d.i++
		rtok, ok := d.next()
		if !ok || rtok.Kind != lex.Atom {
			return Value{}, fmt.Errorf("%w: radix expected", ErrParse)
		}
		r, err := strconv.Atoi(rtok.Text)
		if err != nil || r < 2 || r > 36 {
			return Value{}, fmt.Errorf("%w: radix must be between 2 and 36", ErrParse)
		}
		radix = r
	}
	if err := d.expect(lex.RParen, "')'"); err != nil {
		return Value{}, err
	}

	v, err := parseInt(lit.Text, radix, k)
	if err != nil {
		return Value{}, err
	}
	return widen(v, exp, lit.Text)
}

// floatConstructor decodes f32("...")/f64("...") or the bit-pattern form
// f32(hex)/f64(hex). Both opening tokens are consumed.
func (d *decoder) floatConstructor(k Kind, exp *Descriptor) (Value, error) {
	lit, ok := d.next()
	if !ok {
		return Value{}, fmt.Errorf("%w: float literal expected in %s(...)", ErrParse, k.Name())
	}

	var f float64
	switch {
	case lit.Kind == lex.String:
		parsed, err := strconv.ParseFloat(lit.Text, k.bits())
		if err != nil && !isRangeErr(err) {
			return Value{}, fmt.Errorf("%w: invalid float literal %q", ErrParse, lit.Text)
		}
		f = parsed
	case lit.Kind == lex.Atom && hasHexPrefix(lit.Text):
		bits, err := strconv.ParseUint(lit.Text[2:], 16, k.bits())
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid %s bit pattern %q", ErrParse, k.Name(), lit.Text)
		}
		if k == KindF32 {
			f = float64(math.Float32frombits(uint32(bits)))
		} else {
			f = math.Float64frombits(bits)
		}
	default:
		return Value{}, fmt.Errorf("%w: invalid %s(...) argument", ErrParse, k.Name())
	}

	if err := d.expect(lex.RParen, "')'"); err != nil {
		return Value{}, err
	}
	return widen(Value{Kind: k, Float: f}, exp, lit.Text)
}

func hasHexPrefix(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// isNumeric reports whether an atom starts like a numeric literal.
func isNumeric(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	return (s[0] >= '0' && s[0] <= '9') || s[0] == '.'
}

// decodeNumber handles plain (non-constructor) numeric atoms: decimal,
// 0x/0o/0b integers and decimal float forms.
func decodeNumber(text string, exp *Descriptor) (Value, error) {
	neg := strings.HasPrefix(text, "-")
	body := strings.TrimPrefix(text, "-")

	radix := 0
	switch {
	case len(body) > 2 && (body[:2] == "0x" || body[:2] == "0X"):
		radix = 16
	case len(body) > 2 && (body[:2] == "0o" || body[:2] == "0O"):
		radix = 8
	case len(body) > 2 && (body[:2] == "0b" || body[:2] == "0B"):
		radix = 2
	case allDigits(body):
		radix = 10
	}

	if radix == 0 {
		return decodeFloatLiteral(text, exp)
	}

	digits := body
	if radix != 10 {
		digits = body[2:]
	}
	signed := digits
	if neg {
		signed = "-" + digits
	}

	if exp != nil {
		if exp.Kind != DescPrim {
			return Value{}, fmt.Errorf("%w: number given, %s expected", ErrMismatch, exp)
		}
		switch {
		case exp.Prim.isInteger():
			return parseIntLiteral(signed, neg, radix, exp.Prim, text)
		case exp.Prim.isFloat():
			return intToFloat(signed, neg, radix, exp.Prim, text)
		default:
			return Value{}, fmt.Errorf("%w: number given, %s expected", ErrMismatch, exp)
		}
	}

	return inferInt(signed, neg, radix, text)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseInt parses a literal string (sign included) at a fixed kind.
func parseInt(lit string, radix int, k Kind) (Value, error) {
	if k.isSigned() {
		v, err := strconv.ParseInt(lit, radix, k.bits())
		if err != nil {
			return Value{}, intErr(err, lit, k)
		}
		return Value{Kind: k, Int: v}, nil
	}
	v, err := strconv.ParseUint(lit, radix, k.bits())
	if err != nil {
		return Value{}, intErr(err, lit, k)
	}
	return Value{Kind: k, Uint: v}, nil
}

func parseIntLiteral(signed string, neg bool, radix int, k Kind, original string) (Value, error) {
	if neg && k.isUnsigned() {
		return Value{}, LossyConversionError{Literal: original, Target: k}
	}
	v, err := parseInt(signed, radix, k)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func intToFloat(signed string, neg bool, radix int, k Kind, original string) (Value, error) {
	if neg {
		n, err := strconv.ParseInt(signed, radix, 64)
		if err != nil {
			return Value{}, intErr(err, original, k)
		}
		return widen(I64(n), &Descriptor{Kind: DescPrim, Prim: k}, original)
	}
	n, err := strconv.ParseUint(signed, radix, 64)
	if err != nil {
		return Value{}, intErr(err, original, k)
	}
	return widen(U64(n), &Descriptor{Kind: DescPrim, Prim: k}, original)
}

// inferInt selects the smallest type holding the literal: unsigned widths
// for non-negative values, signed widths for negative ones.
func inferInt(signed string, neg bool, radix int, original string) (Value, error) {
	if neg {
		n, err := strconv.ParseInt(signed, radix, 64)
		if err != nil {
			return Value{}, intErr(err, original, KindI64)
		}
		switch {
		case n >= math.MinInt8:
			return I8(int8(n)), nil
		case n >= math.MinInt16:
			return I16(int16(n)), nil
		case n >= math.MinInt32:
			return I32(int32(n)), nil
		default:
			return I64(n), nil
		}
	}
	n, err := strconv.ParseUint(signed, radix, 64)
	if err != nil {
		return Value{}, intErr(err, original, KindU64)
	}
	switch {
	case n <= math.MaxUint8:
		return U8(uint8(n)), nil
	case n <= math.MaxUint16:
		return U16(uint16(n)), nil
	case n <= math.MaxUint32:
		return U32(uint32(n)), nil
	default:
		return U64(n), nil
	}
}

func intErr(err error, lit string, k Kind) error {
	if isRangeErr(err) {
		return LossyConversionError{Literal: lit, Target: k}
	}
	return fmt.Errorf("%w: invalid integer literal %q", ErrParse, lit)
}

func isRangeErr(err error) bool {
	var ne *strconv.NumError
	return errors.As(err, &ne) && ne.Err == strconv.ErrRange
}

// decodeFloatLiteral handles decimal float forms (fraction and/or exponent).
// Untyped floats default to f32.
func decodeFloatLiteral(text string, exp *Descriptor) (Value, error) {
	k := KindF32
	if exp != nil {
		if exp.Kind != DescPrim || !exp.Prim.isFloat() {
			return Value{}, fmt.Errorf("%w: float given, %s expected", ErrMismatch, exp)
		}
		k = exp.Prim
	}
	f, err := strconv.ParseFloat(text, k.bits())
	if err != nil && !isRangeErr(err) {
		return Value{}, fmt.Errorf("%w: invalid numeric literal %q", ErrParse, text)
	}
	return Value{Kind: k, Float: f}, nil
}

func floatSpecial(f float64, exp *Descriptor) (Value, error) {
	k := KindF32
	if exp != nil {
		if exp.Kind != DescPrim || !exp.Prim.isFloat() {
			return Value{}, fmt.Errorf("%w: float given, %s expected", ErrMismatch, exp)
		}
		k = exp.Prim
	}
	return Value{Kind: k, Float: f}, nil
}

// widen converts v to the expected primitive type when the conversion is
// exact, and fails with LossyConversionError otherwise.
func widen(v Value, exp *Descriptor, literal string) (Value, error) {
	if exp == nil {
		return v, nil
	}
	if exp.Kind != DescPrim {
		return Value{}, fmt.Errorf("%w: %s given, %s expected", ErrMismatch, v.Kind.Name(), exp)
	}
	target := exp.Prim
	if target == v.Kind {
		return v, nil
	}

	lossy := func() (Value, error) {
		return Value{}, LossyConversionError{Literal: literal, Target: target}
	}

	switch {
	case v.Kind.isSigned():
		switch {
		case target.isSigned():
			if fitsSigned(v.Int, target) {
				return Value{Kind: target, Int: v.Int}, nil
			}
			return lossy()
		case target.isUnsigned():
			if v.Int >= 0 && fitsUnsigned(uint64(v.Int), target) {
				return Value{Kind: target, Uint: uint64(v.Int)}, nil
			}
			return lossy()
		case target.isFloat():
			if f, ok := exactFloatFromSigned(v.Int, target); ok {
				return Value{Kind: target, Float: f}, nil
			}
			return lossy()
		}
	case v.Kind.isUnsigned():
		switch {
		case target.isSigned():
			if v.Uint <= uint64(math.MaxInt64) && fitsSigned(int64(v.Uint), target) {
				return Value{Kind: target, Int: int64(v.Uint)}, nil
			}
			return lossy()
		case target.isUnsigned():
			if fitsUnsigned(v.Uint, target) {
				return Value{Kind: target, Uint: v.Uint}, nil
			}
			return lossy()
		case target.isFloat():
			if f, ok := exactFloatFromUnsigned(v.Uint, target); ok {
				return Value{Kind: target, Float: f}, nil
			}
			return lossy()
		}
	case v.Kind.isFloat():
		switch target {
		case KindF64:
			return Value{Kind: KindF64, Float: v.Float}, nil
		case KindF32:
			if math.IsNaN(v.Float) || float64(float32(v.Float)) == v.Float {
				return Value{Kind: KindF32, Float: float64(float32(v.Float))}, nil
			}
			return lossy()
		}
	}
	return Value{}, fmt.Errorf("%w: %s given, %s expected", ErrMismatch, v.Kind.Name(), exp)
}

func fitsSigned(n int64, k Kind) bool {
	switch k {
	case KindI8:
		return n >= math.MinInt8 && n <= math.MaxInt8
	case KindI16:
		return n >= math.MinInt16 && n <= math.MaxInt16
	case KindI32:
		return n >= math.MinInt32 && n <= math.MaxInt32
	case KindI64:
		return true
	}
	return false
}

func fitsUnsigned(n uint64, k Kind) bool {
	switch k {
	case KindU8:
		return n <= math.MaxUint8
	case KindU16:
		return n <= math.MaxUint16
	case KindU32:
		return n <= math.MaxUint32
	case KindU64:
		return true
	}
	return false
}

// exactFloatFromSigned converts n to the target float width only when the
// round trip is exact. The bound checks keep the back-conversion inside
// int64 range, where float-to-int conversion is well defined.
func exactFloatFromSigned(n int64, k Kind) (float64, bool) {
	f := float64(n)
	if k == KindF32 {
		if g := float64(float32(f)); g != f {
			return 0, false
		}
	}
	if f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return 0, false
	}
	if int64(f) != n {
		return 0, false
	}
	return f, true
}

func exactFloatFromUnsigned(n uint64, k Kind) (float64, bool) {
	f := float64(n)
	if k == KindF32 {
		if g := float64(float32(f)); g != f {
			return 0, false
		}
	}
	if f < 0 || f >= 18446744073709551616.0 {
		return 0, false
	}
	if uint64(f) != n {
		return 0, false
	}
	return f, true
}
