package seedcrack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/mcsci/internal/extension"
	"github.com/danmuck/mcsci/internal/protocol/value"
	"github.com/danmuck/mcsci/internal/testutil/testlog"
)

func TestBoundedIntStaysInRange(t *testing.T) {
	testlog.Start(t)
	rng := newJavaRandom(42)
	for _, bound := range []int32{1, 3, 7, 8, 10, 16, 100} {
		for i := 0; i < 1000; i++ {
			v := rng.nextBoundedInt(bound)
			if v < 0 || v >= bound {
				t.Fatalf("nextBoundedInt(%d) = %d", bound, v)
			}
		}
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	testlog.Start(t)
	rng := newJavaRandom(7)
	a := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	shuffleInts(a, rng)
	seen := make(map[int]bool, len(a))
	for _, v := range a {
		if v < 0 || v > 9 || seen[v] {
			t.Fatalf("not a permutation: %v", a)
		}
		seen[v] = true
	}
}

func TestPillarsFromSeedLayout(t *testing.T) {
	testlog.Start(t)
	ring := pillarsFromSeed(12345)
	if ring != pillarsFromSeed(12345) {
		t.Fatal("layout not deterministic")
	}

	heights := make(map[int32]bool, pillarCount)
	caged := 0
	for _, p := range ring {
		if p.height < 76 || p.height > 103 || (p.height-76)%3 != 0 {
			t.Fatalf("bad height %d", p.height)
		}
		if heights[p.height] {
			t.Fatalf("duplicate height %d", p.height)
		}
		heights[p.height] = true
		if p.caged {
			caged++
			if p.height != 79 && p.height != 82 {
				t.Fatalf("cage on height %d", p.height)
			}
		}
	}
	if caged != 2 {
		t.Fatalf("%d caged pillars", caged)
	}
}

func TestPillarSeedOfIs16Bit(t *testing.T) {
	testlog.Start(t)
	for _, ws := range []int64{0, 1, -1, 1234567890123} {
		s := pillarSeedOf(ws)
		if s < 0 || s >= pillarSeedSpace {
			t.Fatalf("pillarSeedOf(%d) = %d", ws, s)
		}
		if s != pillarSeedOf(ws) {
			t.Fatalf("pillarSeedOf(%d) not deterministic", ws)
		}
	}
}

func TestMatchHeightFuzzyWeights(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		hint   heightHint
		height int32
		want   float64
	}{
		{heightHint{kind: hintBig}, 103, 1},
		{heightHint{kind: hintBig}, 97, 0.5},
		{heightHint{kind: hintBig}, 94, 0},
		{heightHint{kind: hintSmall}, 76, 1},
		{heightHint{kind: hintSmall}, 82, 0.5},
		{heightHint{kind: hintSmall}, 85, 0},
		{heightHint{kind: hintMedium}, 82, 0},
		{heightHint{kind: hintMedium}, 97, 0},
		{heightHint{kind: hintMediumBig}, 85, 0},
		{heightHint{kind: hintMediumSmall}, 100, 0},
		{heightHint{kind: hintUnknown}, 103, 1},
	}
	for _, tc := range cases {
		got, exact := matchHeight(tc.hint, tc.height)
		if got != tc.want {
			t.Fatalf("kind %d vs %d: weight %g, want %g", tc.hint.kind, tc.height, got, tc.want)
		}
		if exact {
			t.Fatalf("kind %d reported exact", tc.hint.kind)
		}
	}

	if w, exact := matchHeight(heightHint{kind: hintExact, min: 88}, 88); w != 1 || !exact {
		t.Fatalf("exact match: weight %g exact %t", w, exact)
	}
	if w, _ := matchHeight(heightHint{kind: hintExact, min: 88}, 91); w != 0 {
		t.Fatal("exact mismatch accepted")
	}
	if w, exact := matchHeight(heightHint{kind: hintRange, min: 85, max: 94}, 91); w != 1 || !exact {
		t.Fatalf("range match: weight %g exact %t", w, exact)
	}
}

func TestCageHintFiltersCandidates(t *testing.T) {
	testlog.Start(t)
	p := pillar{height: 79, caged: true}
	if w, exact := matchPillar(pillarHint{cage: cageCaged}, p); w != 1 || exact {
		t.Fatalf("caged hint on caged pillar: weight %g exact %t", w, exact)
	}
	if w, _ := matchPillar(pillarHint{cage: cageUncaged}, p); w != 0 {
		t.Fatal("uncaged hint matched a caged pillar")
	}
}

func TestSearchFindsGeneratedRing(t *testing.T) {
	testlog.Start(t)
	seed := pillarSeedOf(987654321)
	ring := pillarsFromSeed(seed)

	var hints [pillarCount]pillarHint
	for i, p := range ring {
		cage := cageUncaged
		if p.caged {
			cage = cageCaged
		}
		hints[i] = pillarHint{
			cage:   cage,
			height: heightHint{kind: hintExact, min: p.height},
		}
	}

	found := searchSeeds(hints, nil)
	if len(found) == 0 {
		t.Fatal("no candidates for a generated ring")
	}
	hit := false
	for _, c := range found {
		if !c.exact || c.weight != 1 {
			t.Fatalf("exact hints produced fuzzy candidate %+v", c)
		}
		if c.seed == seed {
			hit = true
		}
	}
	if !hit {
		t.Fatalf("seed %d missing from %d candidates", seed, len(found))
	}
}

func TestSearchVisitCancels(t *testing.T) {
	testlog.Start(t)
	var hints [pillarCount]pillarHint // all unknown, every seed matches
	found := searchSeeds(hints, func(done int) bool { return done < 100 })
	if len(found) != 100 {
		t.Fatalf("cancelled scan kept %d candidates", len(found))
	}
}

func TestDecodeHints(t *testing.T) {
	testlog.Start(t)
	elems := make([]value.Value, pillarCount)
	for i := range elems {
		elems[i] = hintValue("Unknown", "Unknown", nil)
	}
	exact := value.I32(97)
	elems[0] = hintValue("Caged", "Exact", &exact)
	rng := value.Tuple(value.I32(85), value.I32(94))
	elems[1] = hintValue("Uncaged", "Range", &rng)

	hints, err := decodeHints(value.Array(elems...))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hints[0].cage != cageCaged || hints[0].height.kind != hintExact || hints[0].height.min != 97 {
		t.Fatalf("hint 0 decoded to %+v", hints[0])
	}
	if hints[1].height.kind != hintRange || hints[1].height.min != 85 || hints[1].height.max != 94 {
		t.Fatalf("hint 1 decoded to %+v", hints[1])
	}
}

func TestDecodeHintsRejections(t *testing.T) {
	testlog.Start(t)
	ok := hintValue("Unknown", "Unknown", nil)
	short := make([]value.Value, 3)
	for i := range short {
		short[i] = ok
	}
	inverted := value.Tuple(value.I32(94), value.I32(85))

	cases := []value.Value{
		value.Str("not hints"),
		value.Array(short...),
		tenOf(value.Tuple(value.Str("x"), value.Str("y"))),
		tenOf(hintValue("Sideways", "Unknown", nil)),
		tenOf(hintValue("Unknown", "Tall", nil)),
		tenOf(hintValue("Unknown", "Range", &inverted)),
	}
	for i, v := range cases {
		if _, err := decodeHints(v); !errors.Is(err, extension.ErrBadArg) {
			t.Fatalf("case %d: got %v, want bad argument", i, err)
		}
	}
}

func hintValue(cage, height string, payload *value.Value) value.Value {
	return value.Tuple(value.Enum(cage, nil), value.Enum(height, payload))
}

func tenOf(v value.Value) value.Value {
	elems := make([]value.Value, pillarCount)
	for i := range elems {
		elems[i] = v
	}
	return value.Array(elems...)
}

type collectEmitter struct {
	mu    sync.Mutex
	lines []string
}

func (c *collectEmitter) ExtensionResponse(usage uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, text)
}

func (c *collectEmitter) Info(text string)   {}
func (c *collectEmitter) Status(text string) {}

func (c *collectEmitter) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[len(c.lines)-1]
}

func TestExtensionSearchLifecycle(t *testing.T) {
	log := testlog.Start(t)
	h := New(log)()

	emit := &collectEmitter{}
	h.Handle(context.Background(), 1, "go", emit)
	if got := emit.last(); !strings.Contains(got, "no problem configured") {
		t.Fatalf("go before setup: %q", got)
	}

	seed := pillarSeedOf(55555)
	ring := pillarsFromSeed(seed)
	elems := make([]value.Value, pillarCount)
	for i, p := range ring {
		cage := "Uncaged"
		if p.caged {
			cage = "Caged"
		}
		exact := value.I32(p.height)
		elems[i] = hintValue(cage, "Exact", &exact)
	}
	err := h.SetupProblem(problemName, map[string]value.Value{"pillars": value.Array(elems...)})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	emit = &collectEmitter{}
	h.Handle(context.Background(), 2, "go", emit)
	emit.mu.Lock()
	lines := append([]string(nil), emit.lines...)
	emit.mu.Unlock()
	if len(lines) < 2 {
		t.Fatalf("search emitted %v", lines)
	}
	wantResult := fmt.Sprintf("result seed=%d weight=1 exact=true", seed)
	foundSeed := false
	for _, l := range lines[:len(lines)-1] {
		if l == wantResult {
			foundSeed = true
		}
	}
	if !foundSeed {
		t.Fatalf("no %q in %v", wantResult, lines)
	}
	if !strings.HasPrefix(lines[len(lines)-1], fmt.Sprintf("done checked=%d", pillarSeedSpace)) {
		t.Fatalf("final line %q", lines[len(lines)-1])
	}

	emit = &collectEmitter{}
	h.Handle(context.Background(), 3, "progress", emit)
	if got := emit.last(); got != fmt.Sprintf("progress %d/%d", pillarSeedSpace, pillarSeedSpace) {
		t.Fatalf("progress after completion: %q", got)
	}

	emit = &collectEmitter{}
	h.Handle(context.Background(), 4, "stop", emit)
	if got := emit.last(); !strings.Contains(got, "no search running") {
		t.Fatalf("stop without search: %q", got)
	}

	emit = &collectEmitter{}
	h.Handle(context.Background(), 5, "teleport", emit)
	if got := emit.last(); !strings.Contains(got, "unknown command") {
		t.Fatalf("bad command: %q", got)
	}
}

func TestSetupProblemValidation(t *testing.T) {
	log := testlog.Start(t)
	h := New(log)()

	if err := h.SetupProblem("other", nil); !errors.Is(err, extension.ErrUnknownProblem) {
		t.Fatalf("unknown problem: %v", err)
	}
	if err := h.SetupProblem(problemName, map[string]value.Value{}); !errors.Is(err, extension.ErrMissingArg) {
		t.Fatalf("missing arg: %v", err)
	}
}
