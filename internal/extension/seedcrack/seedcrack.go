// Package seedcrack is the built-in extension that recovers a world's
// 16-bit pillar seed from partial observations of the end pillar ring.
package seedcrack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/danmuck/mcsci/internal/extension"
	"github.com/danmuck/mcsci/internal/protocol/value"
	"github.com/danmuck/mcsci/internal/protocol/wire"
)

const (
	extName        = "seedcrack"
	extVersion     = "0.1.0"
	problemName    = "pillar-seed"
	maxResultLines = 32
	progressStride = 4096
)

// Extension solves the pillar-seed problem for one connection. Setup state
// and the running search are connection-local.
type Extension struct {
	log zerolog.Logger

	mu      sync.Mutex
	hints   *[pillarCount]pillarHint
	cancel  context.CancelFunc
	checked atomic.Int64
}

// New returns a factory for per-connection instances.
func New(log zerolog.Logger) extension.Factory {
	return func() extension.Handler {
		return &Extension{log: log.With().Str("ext", extName).Logger()}
	}
}

func (e *Extension) Info() wire.ExtensionInfo {
	return wire.ExtensionInfo{
		Name:        extName,
		Version:     extVersion,
		Description: "recovers the pillar seed from partial end pillar observations",
		Authors:     []string{"mcsci"},
		Commands:    []string{"go", "stop", "progress"},
	}
}

func (e *Extension) Types() []wire.TypeDef {
	return []wire.TypeDef{
		{Alias: "cage_hint", Decl: value.EnumOf(
			value.Ctor{Name: "Unknown"},
			value.Ctor{Name: "Caged"},
			value.Ctor{Name: "Uncaged"},
		)},
		{Alias: "height_hint", Decl: value.EnumOf(
			value.Ctor{Name: "Unknown"},
			value.Ctor{Name: "Exact", Arg: descPtr(value.Prim(value.KindI32))},
			value.Ctor{Name: "Range", Arg: descPtr(value.TupleOf(value.Prim(value.KindI32), value.Prim(value.KindI32)))},
			value.Ctor{Name: "Big"},
			value.Ctor{Name: "Medium"},
			value.Ctor{Name: "Small"},
			value.Ctor{Name: "MediumBig"},
			value.Ctor{Name: "MediumSmall"},
		)},
		{Alias: "pillar_hint", Decl: value.TupleOf(
			value.AliasOf("cage_hint"),
			value.AliasOf("height_hint"),
		)},
		{Alias: "pillar_hints", Decl: value.ArrayOf(value.AliasOf("pillar_hint"), pillarCount)},
	}
}

func (e *Extension) Problems() []extension.Problem {
	return []extension.Problem{{
		Name:        problemName,
		Description: "brute-force the 16-bit pillar seed matching observed pillar heights and cages",
		Args: []extension.ProblemArg{{
			Name:        "pillars",
			Required:    true,
			Description: "pillar_hints array of ten (cage_hint, height_hint) tuples, walking the ring",
		}},
	}}
}

func (e *Extension) SetupProblem(name string, args map[string]value.Value) error {
	if name != problemName {
		return fmt.Errorf("%w: %q", extension.ErrUnknownProblem, name)
	}
	v, ok := args["pillars"]
	if !ok {
		return fmt.Errorf("%w: pillars", extension.ErrMissingArg)
	}
	hints, err := decodeHints(v)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.hints = hints
	e.mu.Unlock()
	e.log.Debug().Msg("pillar-seed problem configured")
	return nil
}

// Handle runs one opaque extension command. The engine invokes it on a
// dedicated goroutine, so go can search synchronously while stop and
// progress arrive on later dispatches.
func (e *Extension) Handle(ctx context.Context, usage uint64, payload string, emit extension.Emitter) {
	cmd, _ := cutWord(payload)
	switch cmd {
	case "go":
		e.runSearch(ctx, usage, emit)
	case "stop":
		e.stop(usage, emit)
	case "progress":
		emit.ExtensionResponse(usage, fmt.Sprintf("progress %d/%d", e.checked.Load(), pillarSeedSpace))
	default:
		emit.ExtensionResponse(usage, fmt.Sprintf("error unknown command %q, expected go, stop or progress", cmd))
	}
}

func (e *Extension) runSearch(ctx context.Context, usage uint64, emit extension.Emitter) {
	e.mu.Lock()
	if e.hints == nil {
		e.mu.Unlock()
		emit.ExtensionResponse(usage, "error no problem configured, run setup-problem first")
		return
	}
	if e.cancel != nil {
		e.mu.Unlock()
		emit.ExtensionResponse(usage, "error search already running")
		return
	}
	hints := *e.hints
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
	}()

	e.checked.Store(0)
	emit.Status(fmt.Sprintf("seedcrack search started, usage %d", usage))

	stopped := false
	found := searchSeeds(hints, func(done int) bool {
		e.checked.Store(int64(done))
		if done%progressStride == 0 {
			select {
			case <-ctx.Done():
				stopped = true
				return false
			default:
			}
		}
		return true
	})
	if stopped {
		emit.ExtensionResponse(usage, fmt.Sprintf("stopped checked=%d", e.checked.Load()))
		return
	}
	e.checked.Store(pillarSeedSpace)

	sort.Slice(found, func(i, j int) bool {
		if found[i].exact != found[j].exact {
			return found[i].exact
		}
		if found[i].weight != found[j].weight {
			return found[i].weight > found[j].weight
		}
		return found[i].seed < found[j].seed
	})

	exact := 0
	for _, c := range found {
		if c.exact {
			exact++
		}
	}
	for i, c := range found {
		if i == maxResultLines {
			break
		}
		emit.ExtensionResponse(usage, fmt.Sprintf("result seed=%d weight=%g exact=%t", c.seed, c.weight, c.exact))
	}
	emit.ExtensionResponse(usage, fmt.Sprintf("done checked=%d candidates=%d exact=%d", pillarSeedSpace, len(found), exact))
	e.log.Info().Int("candidates", len(found)).Int("exact", exact).Msg("seedcrack search finished")
}

func (e *Extension) stop(usage uint64, emit extension.Emitter) {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		emit.ExtensionResponse(usage, "error no search running")
		return
	}
	cancel()
	emit.ExtensionResponse(usage, "stopping")
}

func descPtr(d value.Descriptor) *value.Descriptor {
	return &d
}

func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}
