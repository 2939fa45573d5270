// Package extension defines the contract between the protocol engine and
// pluggable problem solvers, plus the registry that hands out stable
// extension ids.
package extension

import (
	"context"
	"errors"

	"github.com/danmuck/mcsci/internal/protocol/value"
	"github.com/danmuck/mcsci/internal/protocol/wire"
)

var (
	ErrUnknownProblem = errors.New("extension: unknown problem")
	ErrMissingArg     = errors.New("extension: missing required argument")
	ErrBadArg         = errors.New("extension: bad argument")
)

// ProblemArg describes one named setup-problem argument.
type ProblemArg struct {
	Name        string
	Required    bool
	Description string
}

// Problem describes one configurable problem an extension can solve.
type Problem struct {
	Name        string
	Description string
	Args        []ProblemArg
}

// Emitter delivers lines back to the connection. Safe for concurrent use;
// handlers may call it from their own goroutines for the lifetime of a
// dispatch.
type Emitter interface {
	ExtensionResponse(usage uint64, text string)
	Info(text string)
	Status(text string)
}

// Handler is one extension instance bound to a single connection. The
// engine calls SetupProblem and Handle from the connection's read loop,
// never concurrently with each other; Handle may spawn goroutines and emit
// until it returns.
type Handler interface {
	Info() wire.ExtensionInfo
	Types() []wire.TypeDef
	Problems() []Problem
	SetupProblem(name string, args map[string]value.Value) error
	Handle(ctx context.Context, usage uint64, payload string, emit Emitter)
}

// Factory builds a fresh per-connection handler instance. Problem setup is
// connection-local state, so instances are never shared.
type Factory func() Handler
