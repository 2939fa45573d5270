package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/mcsci/internal/protocol/lex"
)

// DescKind tags one type descriptor node.
type DescKind uint8

const (
	DescPrim DescKind = iota
	DescAlias
	DescTuple
	DescList
	DescArray
	DescEnum
)

// Ctor is one enumeration constructor with an optional payload type.
type Ctor struct {
	Name string
	Arg  *Descriptor
}

// Descriptor describes the shape of a typed value. Alias nodes are
// indirection handles: they are resolved through a Resolver at decode time
// rather than inlined, which keeps descriptor trees acyclic even when
// aliases reference each other.
type Descriptor struct {
	Kind  DescKind
	Prim  Kind
	Alias string
	Elems []Descriptor
	Len   int
	Ctors []Ctor
}

// Resolver resolves alias names within one extension scope.
type Resolver interface {
	Resolve(alias string) (Descriptor, error)
}

func Prim(k Kind) Descriptor        { return Descriptor{Kind: DescPrim, Prim: k} }
func AliasOf(name string) Descriptor { return Descriptor{Kind: DescAlias, Alias: name} }

func TupleOf(elems ...Descriptor) Descriptor {
	return Descriptor{Kind: DescTuple, Elems: elems}
}

func ListOf(elem Descriptor) Descriptor {
	return Descriptor{Kind: DescList, Elems: []Descriptor{elem}}
}

func ArrayOf(elem Descriptor, n int) Descriptor {
	return Descriptor{Kind: DescArray, Elems: []Descriptor{elem}, Len: n}
}

func EnumOf(ctors ...Ctor) Descriptor {
	return Descriptor{Kind: DescEnum, Ctors: ctors}
}

// Elem returns the element descriptor of a list or array node.
func (d Descriptor) Elem() Descriptor {
	if len(d.Elems) == 0 {
		return Descriptor{}
	}
	return d.Elems[0]
}

// String renders the descriptor in the v0 type-declaration grammar.
func (d Descriptor) String() string {
	var sb strings.Builder
	d.format(&sb)
	return sb.String()
}

func (d Descriptor) format(sb *strings.Builder) {
	switch d.Kind {
	case DescPrim:
		sb.WriteString(d.Prim.Name())
	case DescAlias:
		sb.WriteString(d.Alias)
	case DescTuple:
		sb.WriteString("tuple(")
		for i, e := range d.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteByte(')')
	case DescList:
		sb.WriteString("list(")
		d.Elem().format(sb)
		sb.WriteByte(')')
	case DescArray:
		sb.WriteString("array(")
		d.Elem().format(sb)
		sb.WriteString(", ")
		sb.WriteString(strconv.Itoa(d.Len))
		sb.WriteByte(')')
	case DescEnum:
		sb.WriteString("enum(")
		for i, c := range d.Ctors {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.Name)
			if c.Arg != nil {
				sb.WriteByte('(')
				c.Arg.format(sb)
				sb.WriteByte(')')
			}
		}
		sb.WriteByte(')')
	}
}

// ParseDescriptor parses one type declaration from the token stream and
// returns the remaining tokens.
func ParseDescriptor(toks []lex.Token) (Descriptor, []lex.Token, error) {
	if len(toks) == 0 {
		return Descriptor{}, nil, fmt.Errorf("%w: empty type declaration", ErrParse)
	}
	head := toks[0]
	if head.Kind != lex.Atom {
		return Descriptor{}, nil, fmt.Errorf("%w: unexpected %q in type declaration", ErrParse, head.Text)
	}
	switch head.Text {
	case "tuple":
		return parseTupleDecl(toks[1:])
	case "list":
		return parseListDecl(toks[1:])
	case "array":
		return parseArrayDecl(toks[1:])
	case "enum":
		return parseEnumDecl(toks[1:])
	}
	if k, ok := PrimKind(head.Text); ok {
		return Prim(k), toks[1:], nil
	}
	if !isIdent(head.Text) {
		return Descriptor{}, nil, fmt.Errorf("%w: invalid type name %q", ErrParse, head.Text)
	}
	return AliasOf(head.Text), toks[1:], nil
}

func parseTupleDecl(toks []lex.Token) (Descriptor, []lex.Token, error) {
	var err error
	if toks, err = expectPunct(toks, lex.LParen); err != nil {
		return Descriptor{}, nil, err
	}
	var elems []Descriptor
	for {
		if len(toks) > 0 && toks[0].Kind == lex.RParen {
			return TupleOf(elems...), toks[1:], nil
		}
		var d Descriptor
		d, toks, err = ParseDescriptor(toks)
		if err != nil {
			return Descriptor{}, nil, err
		}
		elems = append(elems, d)
		var done bool
		toks, done, err = sepOrClose(toks, lex.RParen)
		if err != nil {
			return Descriptor{}, nil, err
		}
		if done {
			return TupleOf(elems...), toks, nil
		}
	}
}

func parseListDecl(toks []lex.Token) (Descriptor, []lex.Token, error) {
	toks, err := expectPunct(toks, lex.LParen)
	if err != nil {
		return Descriptor{}, nil, err
	}
	elem, toks, err := ParseDescriptor(toks)
	if err != nil {
		return Descriptor{}, nil, err
	}
	if toks, err = expectPunct(toks, lex.RParen); err != nil {
		return Descriptor{}, nil, err
	}
	return ListOf(elem), toks, nil
}

func parseArrayDecl(toks []lex.Token) (Descriptor, []lex.Token, error) {
	toks, err := expectPunct(toks, lex.LParen)
	if err != nil {
		return Descriptor{}, nil, err
	}
	elem, toks, err := ParseDescriptor(toks)
	if err != nil {
		return Descriptor{}, nil, err
	}
	if toks, err = expectPunct(toks, lex.Comma); err != nil {
		return Descriptor{}, nil, err
	}
	if len(toks) == 0 || toks[0].Kind != lex.Atom {
		return Descriptor{}, nil, fmt.Errorf("%w: array length expected", ErrParse)
	}
	n, convErr := strconv.ParseUint(toks[0].Text, 10, 32)
	if convErr != nil {
		return Descriptor{}, nil, fmt.Errorf("%w: invalid array length %q", ErrParse, toks[0].Text)
	}
	toks = toks[1:]
	if toks, err = expectPunct(toks, lex.RParen); err != nil {
		return Descriptor{}, nil, err
	}
	return ArrayOf(elem, int(n)), toks, nil
}

func parseEnumDecl(toks []lex.Token) (Descriptor, []lex.Token, error) {
	toks, err := expectPunct(toks, lex.LParen)
	if err != nil {
		return Descriptor{}, nil, err
	}
	var ctors []Ctor
	for {
		if len(toks) > 0 && toks[0].Kind == lex.RParen {
			return EnumOf(ctors...), toks[1:], nil
		}
		if len(toks) == 0 || toks[0].Kind != lex.Atom || !isIdent(toks[0].Text) {
			return Descriptor{}, nil, fmt.Errorf("%w: enum constructor name expected", ErrParse)
		}
		ctor := Ctor{Name: toks[0].Text}
		toks = toks[1:]
		if len(toks) > 0 && toks[0].Kind == lex.LParen {
			var arg Descriptor
			arg, toks, err = ParseDescriptor(toks[1:])
			if err != nil {
				return Descriptor{}, nil, err
			}
			if toks, err = expectPunct(toks, lex.RParen); err != nil {
				return Descriptor{}, nil, err
			}
			ctor.Arg = &arg
		}
		ctors = append(ctors, ctor)
		var done bool
		toks, done, err = sepOrClose(toks, lex.RParen)
		if err != nil {
			return Descriptor{}, nil, err
		}
		if done {
			return EnumOf(ctors...), toks, nil
		}
	}
}

func expectPunct(toks []lex.Token, kind lex.Kind) ([]lex.Token, error) {
	if len(toks) == 0 || toks[0].Kind != kind {
		return nil, fmt.Errorf("%w: malformed type declaration", ErrParse)
	}
	return toks[1:], nil
}

// sepOrClose consumes either a comma (more items follow) or the closing
// delimiter (done=true). A trailing comma before the close is accepted.
func sepOrClose(toks []lex.Token, closing lex.Kind) ([]lex.Token, bool, error) {
	if len(toks) == 0 {
		return nil, false, fmt.Errorf("%w: unterminated declaration", ErrParse)
	}
	switch toks[0].Kind {
	case closing:
		return toks[1:], true, nil
	case lex.Comma:
		toks = toks[1:]
		if len(toks) > 0 && toks[0].Kind == closing {
			return toks[1:], true, nil
		}
		return toks, false, nil
	default:
		return nil, false, fmt.Errorf("%w: expected ',' or closing delimiter", ErrParse)
	}
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
