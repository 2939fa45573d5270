// Package command turns lexed client lines into typed protocol commands.
package command

import (
	"strconv"
	"strings"

	"github.com/danmuck/mcsci/internal/protocol/lex"
	"github.com/danmuck/mcsci/internal/protocol/value"
)

// Kind tags one parsed command.
type Kind uint8

const (
	Malformed Kind = iota
	Hello
	Help
	Quit
	Version
	Extensions
	ListTypes
	ListProblems
	SetupProblem
	UseExtension
)

// Arg is one named setup-problem argument.
type Arg struct {
	Name  string
	Value value.Value
}

// Command is one parsed client line. Ext is meaningful for the extension-
// addressed kinds, Usage and Payload only for UseExtension.
type Command struct {
	Kind    Kind
	Ext     uint32
	Usage   uint64
	Problem string
	Args    []Arg
	Payload string
}

// ResolverFor supplies the alias scope for typed values embedded in a
// command addressed at one extension.
type ResolverFor func(ext uint32) value.Resolver

// Parse maps one raw line into a Command. Structurally invalid lines and
// argument decode failures fold into Malformed; nothing escapes as an error.
func Parse(line string, resolverFor ResolverFor) Command {
	line = strings.TrimRight(line, "\r\n")

	// The use-extension payload is opaque and must not go through the
	// lexer, so that command is split off the raw text first.
	if word, rest := cutWord(line); word == "use-extension" {
		return parseUseExtension(rest)
	}

	toks, err := lex.Line(line)
	if err != nil || len(toks) == 0 {
		return Command{Kind: Malformed}
	}
	head := toks[0]
	if head.Kind != lex.Atom {
		return Command{Kind: Malformed}
	}

	switch head.Text {
	case "hello":
		return bare(Hello, toks)
	case "help":
		return bare(Help, toks)
	case "quit":
		return bare(Quit, toks)
	case "version":
		return bare(Version, toks)
	case "extensions":
		return bare(Extensions, toks)
	case "list-types":
		return withExt(ListTypes, toks)
	case "list-problems":
		return withExt(ListProblems, toks)
	case "setup-problem":
		return parseSetupProblem(toks[1:], resolverFor)
	default:
		return Command{Kind: Malformed}
	}
}

func bare(kind Kind, toks []lex.Token) Command {
	if len(toks) != 1 {
		return Command{Kind: Malformed}
	}
	return Command{Kind: kind}
}

func withExt(kind Kind, toks []lex.Token) Command {
	if len(toks) != 2 || toks[1].Kind != lex.Atom {
		return Command{Kind: Malformed}
	}
	ext, err := strconv.ParseUint(toks[1].Text, 10, 32)
	if err != nil {
		return Command{Kind: Malformed}
	}
	return Command{Kind: kind, Ext: uint32(ext)}
}

func parseSetupProblem(toks []lex.Token, resolverFor ResolverFor) Command {
	if len(toks) < 2 || toks[0].Kind != lex.Atom {
		return Command{Kind: Malformed}
	}
	ext, err := strconv.ParseUint(toks[0].Text, 10, 32)
	if err != nil {
		return Command{Kind: Malformed}
	}
	if toks[1].Kind != lex.String {
		return Command{Kind: Malformed}
	}
	cmd := Command{Kind: SetupProblem, Ext: uint32(ext), Problem: toks[1].Text}

	var res value.Resolver
	if resolverFor != nil {
		res = resolverFor(cmd.Ext)
	}

	rest := toks[2:]
	for len(rest) > 0 {
		name := rest[0]
		if name.Kind != lex.String && name.Kind != lex.Atom {
			return Command{Kind: Malformed}
		}
		if len(rest) < 3 || rest[1].Kind != lex.Equals {
			return Command{Kind: Malformed}
		}
		v, remaining, err := value.DecodeNext(rest[2:], nil, res)
		if err != nil {
			return Command{Kind: Malformed}
		}
		cmd.Args = append(cmd.Args, Arg{Name: name.Text, Value: v})
		rest = remaining
	}
	return cmd
}

// parseUseExtension splits "ext usage payload..." by hand so the opaque
// payload survives byte for byte.
func parseUseExtension(rest string) Command {
	extWord, rest := cutWord(rest)
	ext, err := strconv.ParseUint(extWord, 10, 32)
	if err != nil {
		return Command{Kind: Malformed}
	}
	usageWord, payload := cutWord(rest)
	usage, err := strconv.ParseUint(usageWord, 10, 64)
	if err != nil {
		return Command{Kind: Malformed}
	}
	if strings.TrimSpace(payload) == "" {
		return Command{Kind: Malformed}
	}
	return Command{Kind: UseExtension, Ext: uint32(ext), Usage: usage, Payload: payload}
}

// cutWord splits the first space-delimited word off s.
func cutWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}
