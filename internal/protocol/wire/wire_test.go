package wire

import (
	"errors"
	"testing"

	"github.com/danmuck/mcsci/internal/protocol/value"
	"github.com/danmuck/mcsci/internal/testutil/testlog"
)

func TestFormatCoreResponses(t *testing.T) {
	testlog.Start(t)
	errVal := value.Str("usage id 7 already active")
	setupVal := value.Str("missing required argument: pillars")
	cases := []struct {
		r    Response
		want string
	}{
		{Response{Kind: Ack}, "ack"},
		{Response{Kind: SetupOk}, "setup-ok"},
		{Response{Kind: ParseFail}, "parsefail"},
		{Response{Kind: Unexpected}, "unexpected"},
		{Response{Kind: Unexpected, Value: &errVal}, `unexpected "usage id 7 already active"`},
		{Response{Kind: SetupError, Value: &setupVal}, `setup-error "missing required argument: pillars"`},
		{Response{Kind: VersionInfo, Proto: 0}, "version mcsci=0"},
		{Response{Kind: VersionInfo, Proto: 0, Server: "mcscid/0.1.0"}, `version mcsci=0 server="mcscid/0.1.0"`},
		{Response{Kind: NoSuchExtension, Ext: 99}, "no-such-extension 99"},
		{Response{Kind: ExtensionResponse, Usage: 12, Text: "done checked=65536"}, "extension-response 12 done checked=65536"},
		{Response{Kind: Info, Text: "mcsci v0 ready"}, "info mcsci v0 ready"},
		{Response{Kind: Status, Text: "search running"}, "status search running"},
	}
	for _, tc := range cases {
		if got := Format(tc.r); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.r.Kind, got, tc.want)
		}
	}
}

func TestFormatExtensionsList(t *testing.T) {
	testlog.Start(t)
	r := Response{Kind: ExtensionsList, Extensions: []ExtensionInfo{
		{Name: "seedcrack", Version: "0.1.0", Description: "pillar seed recovery"},
	}}
	want := `extensions 1 "seedcrack" "0.1.0" "pillar seed recovery"`
	if got := Format(r); got != want {
		t.Fatalf("got %q", got)
	}
	if got := Format(Response{Kind: ExtensionsList}); got != "extensions 0" {
		t.Fatalf("empty list: %q", got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	testlog.Start(t)
	detail := value.Str("bad args")
	problems := value.List(value.Tuple(value.Str("pillar-seed"), value.Str("desc"), value.List()))
	cases := []Response{
		{Kind: Ack},
		{Kind: SetupOk},
		{Kind: ParseFail},
		{Kind: Unexpected},
		{Kind: Unexpected, Value: &detail},
		{Kind: SetupError, Value: &detail},
		{Kind: VersionInfo, Proto: 0},
		{Kind: VersionInfo, Proto: 0, Server: "mcscid/0.1.0"},
		{Kind: NoSuchExtension, Ext: 99},
		{Kind: ExtensionsList, Extensions: []ExtensionInfo{
			{Name: "seedcrack", Version: "0.1.0", Description: "pillar seed recovery"},
			{Name: "other", Version: "2.0.0", Description: "something else"},
		}},
		{Kind: TypeList, Ext: 1, Types: []TypeDef{
			{Alias: "pair", Decl: value.TupleOf(value.Prim(value.KindI32), value.Prim(value.KindI32))},
			{Alias: "names", Decl: value.ListOf(value.Prim(value.KindString))},
		}},
		{Kind: ProblemList, Ext: 0, Value: &problems},
		{Kind: ExtensionResponse, Usage: 7, Text: `result seed=123 weight=1 exact=true`},
		{Kind: Info, Text: "say hello"},
		{Kind: Status, Text: "busy"},
	}
	for _, r := range cases {
		line := Format(r)
		back, err := ParseResponse(line, nil)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if back.Kind != r.Kind || back.Ext != r.Ext || back.Usage != r.Usage ||
			back.Proto != r.Proto || back.Server != r.Server || back.Text != r.Text {
			t.Fatalf("round trip %q: got %+v", line, back)
		}
		if (r.Value == nil) != (back.Value == nil) {
			t.Fatalf("round trip %q: value presence changed", line)
		}
		if r.Value != nil && !back.Value.Equal(*r.Value) {
			t.Fatalf("round trip %q: value %+v", line, *back.Value)
		}
		if len(back.Extensions) != len(r.Extensions) {
			t.Fatalf("round trip %q: extensions %+v", line, back.Extensions)
		}
		for i := range r.Extensions {
			if back.Extensions[i].Name != r.Extensions[i].Name ||
				back.Extensions[i].Version != r.Extensions[i].Version ||
				back.Extensions[i].Description != r.Extensions[i].Description {
				t.Fatalf("round trip %q: extension %d = %+v", line, i, back.Extensions[i])
			}
		}
		if len(back.Types) != len(r.Types) {
			t.Fatalf("round trip %q: types %+v", line, back.Types)
		}
		for i := range r.Types {
			if back.Types[i].Alias != r.Types[i].Alias ||
				back.Types[i].Decl.String() != r.Types[i].Decl.String() {
				t.Fatalf("round trip %q: type %d = %+v", line, i, back.Types[i])
			}
		}
	}
}

func TestParseResponseErrors(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		"nonsense",
		"ack trailing",
		"version mcsci=x",
		"no-such-extension x",
		"extensions 2 \"only\" \"one\" \"triple\"",
		"extension-response notanumber text",
		"type-list x",
	}
	for _, line := range cases {
		if _, err := ParseResponse(line, nil); !errors.Is(err, ErrBadResponse) {
			t.Fatalf("parse %q: got %v, want ErrBadResponse", line, err)
		}
	}
}
