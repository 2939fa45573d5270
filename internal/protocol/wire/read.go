package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/mcsci/internal/protocol/lex"
	"github.com/danmuck/mcsci/internal/protocol/value"
)

var ErrBadResponse = errors.New("wire: malformed response line")

// ParseResponse parses one server line into a Response. res supplies alias
// resolution for embedded typed values and may be nil. Used by the client
// reader loop; the server only ever writes responses.
func ParseResponse(line string, res value.Resolver) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	word, rest := cutWord(line)

	switch word {
	case "ack":
		return bareResponse(Ack, rest)
	case "setup-ok":
		return bareResponse(SetupOk, rest)
	case "parsefail":
		return bareResponse(ParseFail, rest)
	case "setup-error":
		v, err := parseValue(rest, res)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: SetupError, Value: v}, nil
	case "unexpected":
		if strings.TrimSpace(rest) == "" {
			return Response{Kind: Unexpected}, nil
		}
		v, err := parseValue(rest, res)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: Unexpected, Value: v}, nil
	case "version":
		return parseVersion(rest)
	case "no-such-extension":
		ext, err := parseExtID(strings.TrimSpace(rest))
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: NoSuchExtension, Ext: ext}, nil
	case "extensions":
		return parseExtensions(rest)
	case "type-list":
		return parseTypeList(rest)
	case "problem-list":
		return parseProblemList(rest, res)
	case "extension-response":
		usageWord, payload := cutWord(rest)
		usage, err := strconv.ParseUint(usageWord, 10, 64)
		if err != nil {
			return Response{}, fmt.Errorf("%w: bad usage id %q", ErrBadResponse, usageWord)
		}
		return Response{Kind: ExtensionResponse, Usage: usage, Text: payload}, nil
	case "info":
		return Response{Kind: Info, Text: rest}, nil
	case "status":
		return Response{Kind: Status, Text: rest}, nil
	default:
		return Response{}, fmt.Errorf("%w: unknown response %q", ErrBadResponse, word)
	}
}

func bareResponse(kind Kind, rest string) (Response, error) {
	if strings.TrimSpace(rest) != "" {
		return Response{}, fmt.Errorf("%w: trailing text", ErrBadResponse)
	}
	return Response{Kind: kind}, nil
}

func parseValue(text string, res value.Resolver) (*value.Value, error) {
	toks, err := lex.Line(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	v, err := value.DecodeAll(toks, nil, res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return &v, nil
}

func parseVersion(rest string) (Response, error) {
	toks, err := lex.Line(rest)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(toks) < 3 || toks[0].Kind != lex.Atom || toks[0].Text != "mcsci" || toks[1].Kind != lex.Equals || toks[2].Kind != lex.Atom {
		return Response{}, fmt.Errorf("%w: bad version line", ErrBadResponse)
	}
	proto, convErr := strconv.Atoi(toks[2].Text)
	if convErr != nil {
		return Response{}, fmt.Errorf("%w: bad protocol version", ErrBadResponse)
	}
	r := Response{Kind: VersionInfo, Proto: proto}
	toks = toks[3:]
	if len(toks) == 0 {
		return r, nil
	}
	if len(toks) != 3 || toks[0].Kind != lex.Atom || toks[0].Text != "server" || toks[1].Kind != lex.Equals || toks[2].Kind != lex.String {
		return Response{}, fmt.Errorf("%w: bad server version", ErrBadResponse)
	}
	r.Server = toks[2].Text
	return r, nil
}

func parseExtensions(rest string) (Response, error) {
	toks, err := lex.Line(rest)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(toks) == 0 || toks[0].Kind != lex.Atom {
		return Response{}, fmt.Errorf("%w: extension count expected", ErrBadResponse)
	}
	count, convErr := strconv.Atoi(toks[0].Text)
	if convErr != nil || count < 0 {
		return Response{}, fmt.Errorf("%w: bad extension count", ErrBadResponse)
	}
	toks = toks[1:]
	if len(toks) != count*3 {
		return Response{}, fmt.Errorf("%w: extension list truncated", ErrBadResponse)
	}
	r := Response{Kind: ExtensionsList}
	for i := 0; i < count; i++ {
		for j := 0; j < 3; j++ {
			if toks[i*3+j].Kind != lex.String {
				return Response{}, fmt.Errorf("%w: quoted extension fields expected", ErrBadResponse)
			}
		}
		r.Extensions = append(r.Extensions, ExtensionInfo{
			Name:        toks[i*3].Text,
			Version:     toks[i*3+1].Text,
			Description: toks[i*3+2].Text,
		})
	}
	return r, nil
}

func parseTypeList(rest string) (Response, error) {
	toks, err := lex.Line(rest)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(toks) == 0 || toks[0].Kind != lex.Atom {
		return Response{}, fmt.Errorf("%w: extension id expected", ErrBadResponse)
	}
	ext, convErr := parseExtID(toks[0].Text)
	if convErr != nil {
		return Response{}, convErr
	}
	r := Response{Kind: TypeList, Ext: ext}
	toks = toks[1:]
	for len(toks) > 0 {
		if len(toks) < 4 || toks[0].Kind != lex.LParen || toks[1].Kind != lex.Atom || toks[2].Kind != lex.Equals {
			return Response{}, fmt.Errorf("%w: bad type-list entry", ErrBadResponse)
		}
		alias := toks[1].Text
		decl, remaining, declErr := value.ParseDescriptor(toks[3:])
		if declErr != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, declErr)
		}
		if len(remaining) == 0 || remaining[0].Kind != lex.RParen {
			return Response{}, fmt.Errorf("%w: unterminated type-list entry", ErrBadResponse)
		}
		r.Types = append(r.Types, TypeDef{Alias: alias, Decl: decl})
		toks = remaining[1:]
	}
	return r, nil
}

func parseProblemList(rest string, res value.Resolver) (Response, error) {
	word, valueText := cutWord(rest)
	ext, err := parseExtID(word)
	if err != nil {
		return Response{}, err
	}
	v, err := parseValue(valueText, res)
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: ProblemList, Ext: ext, Value: v}, nil
}

func parseExtID(word string) (uint32, error) {
	ext, err := strconv.ParseUint(word, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad extension id %q", ErrBadResponse, word)
	}
	return uint32(ext), nil
}

func cutWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}
