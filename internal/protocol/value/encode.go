package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// QuoteString renders s as a double-quoted protocol string literal. Only the
// quote, the backslash and control characters are escaped; printable
// characters pass through so the text stays readable on the wire.
func QuoteString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u{%x}`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// String renders the value in canonical v0 text. Numerics use constructor
// form with decimal digits so the rendering is self-describing: it decodes
// back to the same value with or without a descriptor.
func (v Value) String() string {
	var sb strings.Builder
	v.encode(&sb)
	return sb.String()
}

func (v Value) encode(sb *strings.Builder) {
	if v.Alias != "" {
		sb.WriteString(v.Alias)
		sb.WriteString("::")
	}
	switch {
	case v.Kind == KindString:
		sb.WriteString(QuoteString(v.Str))
	case v.Kind == KindBool:
		if v.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case v.Kind.isSigned():
		sb.WriteString(v.Kind.Name())
		sb.WriteString(`("`)
		sb.WriteString(strconv.FormatInt(v.Int, 10))
		sb.WriteString(`")`)
	case v.Kind.isUnsigned():
		sb.WriteString(v.Kind.Name())
		sb.WriteString(`("`)
		sb.WriteString(strconv.FormatUint(v.Uint, 10))
		sb.WriteString(`")`)
	case v.Kind.isFloat():
		sb.WriteString(v.Kind.Name())
		sb.WriteString(`("`)
		sb.WriteString(formatFloat(v.Float, v.Kind))
		sb.WriteString(`")`)
	case v.Kind == KindTuple:
		sb.WriteString("tuple(")
		v.encodeElems(sb)
		sb.WriteByte(')')
	case v.Kind == KindList:
		sb.WriteString("list[")
		v.encodeElems(sb)
		sb.WriteByte(']')
	case v.Kind == KindArray:
		sb.WriteString("array[")
		v.encodeElems(sb)
		sb.WriteByte(']')
	case v.Kind == KindEnum:
		sb.WriteString(v.Ctor)
		if len(v.Elems) > 0 {
			sb.WriteByte('(')
			v.Elems[0].encode(sb)
			sb.WriteByte(')')
		}
	}
}

func (v Value) encodeElems(sb *strings.Builder) {
	for i, e := range v.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		e.encode(sb)
	}
}

func formatFloat(f float64, k Kind) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if k == KindF32 {
		return strconv.FormatFloat(f, 'g', -1, 32)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
