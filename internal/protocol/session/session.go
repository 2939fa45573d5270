// Package session drives the per-connection protocol state machine: phase
// tracking, command execution, extension dispatch and the single-writer
// outbound stream.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/mcsci/internal/extension"
	"github.com/danmuck/mcsci/internal/protocol/command"
	"github.com/danmuck/mcsci/internal/protocol/typereg"
	"github.com/danmuck/mcsci/internal/protocol/value"
	"github.com/danmuck/mcsci/internal/protocol/wire"
)

// Phase is the connection lifecycle state.
type Phase uint8

const (
	AwaitingHello Phase = iota
	Ready
	Closing
)

// Session owns one connection's protocol state. Commands are processed one
// at a time by protocol contract; extension dispatches run on their own
// goroutines and emit through the shared outbox.
type Session struct {
	log           zerolog.Logger
	out           *Outbox
	types         *typereg.Registry
	exts          []extension.Handler
	serverVersion string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	phase  Phase
	active map[uint64]uint32
	wg     sync.WaitGroup
}

// New builds a session over out, instantiating one handler per registered
// extension. Registration order fixes the extension ids for the lifetime of
// the connection.
func New(ctx context.Context, out *Outbox, reg *extension.Registry, serverVersion string, log zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		log:           log,
		out:           out,
		types:         typereg.New(),
		exts:          reg.Spawn(),
		serverVersion: serverVersion,
		ctx:           ctx,
		cancel:        cancel,
		active:        make(map[uint64]uint32),
	}
	for id, h := range s.exts {
		for _, def := range h.Types() {
			if err := s.types.Register(uint32(id), def.Alias, def.Decl); err != nil {
				s.log.Warn().Err(err).
					Uint32("ext", uint32(id)).
					Str("alias", def.Alias).
					Msg("type alias rejected")
			}
		}
	}
	return s
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Types exposes the connection's alias registry.
func (s *Session) Types() *typereg.Registry {
	return s.types
}

// Greet emits the out-of-band banner a freshly accepted connection sees.
func (s *Session) Greet() {
	s.send(wire.Response{Kind: wire.Info, Text: "mcsci v0 ready, say hello"})
}

// Close cancels in-flight dispatches and waits for them to drain.
func (s *Session) Close() {
	s.mu.Lock()
	s.phase = Closing
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// HandleLine processes one client line and returns false once the session
// has reached Closing and the read loop should stop.
func (s *Session) HandleLine(line string) bool {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	if phase == Closing {
		return false
	}

	cmd := command.Parse(line, func(ext uint32) value.Resolver {
		return s.types.View(ext)
	})

	if cmd.Kind == command.Malformed {
		s.send(wire.Response{Kind: wire.ParseFail})
		return true
	}

	if phase == AwaitingHello {
		if cmd.Kind != command.Hello {
			s.send(wire.Response{Kind: wire.Unexpected})
			return true
		}
		s.setPhase(Ready)
		s.send(wire.Response{Kind: wire.Ack})
		return true
	}

	switch cmd.Kind {
	case command.Hello:
		s.send(unexpectedText("already initialized"))
	case command.Help:
		s.send(wire.Response{Kind: wire.Ack})
		s.sendHelp()
	case command.Quit:
		s.send(wire.Response{Kind: wire.Ack})
		s.setPhase(Closing)
		s.cancel()
		return false
	case command.Version:
		s.send(wire.Response{Kind: wire.Ack})
		s.send(wire.Response{Kind: wire.VersionInfo, Proto: wire.ProtocolVersion, Server: s.serverVersion})
	case command.Extensions:
		s.send(wire.Response{Kind: wire.Ack})
		s.send(s.extensionsResponse())
	case command.ListTypes:
		s.send(wire.Response{Kind: wire.Ack})
		if h, ok := s.handler(cmd.Ext); ok {
			s.send(wire.Response{Kind: wire.TypeList, Ext: cmd.Ext, Types: h.Types()})
		} else {
			s.send(wire.Response{Kind: wire.NoSuchExtension, Ext: cmd.Ext})
		}
	case command.ListProblems:
		s.send(wire.Response{Kind: wire.Ack})
		if h, ok := s.handler(cmd.Ext); ok {
			v := problemListValue(h.Problems())
			s.send(wire.Response{Kind: wire.ProblemList, Ext: cmd.Ext, Value: &v})
		} else {
			s.send(wire.Response{Kind: wire.NoSuchExtension, Ext: cmd.Ext})
		}
	case command.SetupProblem:
		s.send(wire.Response{Kind: wire.Ack})
		s.setupProblem(cmd)
	case command.UseExtension:
		s.dispatch(cmd)
	}
	return true
}

func (s *Session) setupProblem(cmd command.Command) {
	h, ok := s.handler(cmd.Ext)
	if !ok {
		s.send(wire.Response{Kind: wire.NoSuchExtension, Ext: cmd.Ext})
		return
	}
	args := make(map[string]value.Value, len(cmd.Args))
	for _, a := range cmd.Args {
		args[a.Name] = a.Value
	}
	if err := h.SetupProblem(cmd.Problem, args); err != nil {
		v := value.Str(err.Error())
		s.send(wire.Response{Kind: wire.SetupError, Value: &v})
		return
	}
	s.send(wire.Response{Kind: wire.SetupOk})
}

func (s *Session) dispatch(cmd command.Command) {
	h, ok := s.handler(cmd.Ext)
	if !ok {
		s.send(wire.Response{Kind: wire.NoSuchExtension, Ext: cmd.Ext})
		return
	}
	s.mu.Lock()
	if _, busy := s.active[cmd.Usage]; busy {
		s.mu.Unlock()
		s.send(unexpectedText(fmt.Sprintf("usage id %d already active", cmd.Usage)))
		return
	}
	s.active[cmd.Usage] = cmd.Ext
	s.mu.Unlock()

	s.send(wire.Response{Kind: wire.Ack})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, cmd.Usage)
			s.mu.Unlock()
		}()
		h.Handle(s.ctx, cmd.Usage, cmd.Payload, emitter{s: s})
	}()
}

// ActiveUsages reports how many extension invocations are in flight.
func (s *Session) ActiveUsages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Session) handler(ext uint32) (extension.Handler, bool) {
	if int(ext) >= len(s.exts) {
		return nil, false
	}
	return s.exts[ext], true
}

func (s *Session) extensionsResponse() wire.Response {
	r := wire.Response{Kind: wire.ExtensionsList}
	for _, h := range s.exts {
		r.Extensions = append(r.Extensions, h.Info())
	}
	return r
}

func (s *Session) sendHelp() {
	s.send(wire.Response{Kind: wire.Info,
		Text: "core commands: hello help quit version extensions list-types list-problems setup-problem use-extension"})
	s.send(wire.Response{Kind: wire.Info,
		Text: "use-extension <ext> <usage> <command> forwards an opaque command; replies arrive as extension-response <usage> lines"})
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) send(r wire.Response) {
	if err := s.out.Send(r); err != nil {
		s.log.Debug().Err(err).Msg("outbox write failed")
	}
}

func unexpectedText(msg string) wire.Response {
	v := value.Str(msg)
	return wire.Response{Kind: wire.Unexpected, Value: &v}
}

// problemListValue renders problem descriptions in the built-in
// extension_problem_list shape.
func problemListValue(probs []extension.Problem) value.Value {
	descs := make([]value.Value, 0, len(probs))
	for _, p := range probs {
		args := make([]value.Value, 0, len(p.Args))
		for _, a := range p.Args {
			args = append(args, value.Tuple(
				value.Str(a.Name),
				value.Bool(a.Required),
				value.Str(a.Description),
			))
		}
		descs = append(descs, value.Tuple(
			value.Str(p.Name),
			value.Str(p.Description),
			value.List(args...),
		))
	}
	return value.List(descs...)
}

// emitter is the outbox-backed emitter handed to extension dispatches.
type emitter struct {
	s *Session
}

func (e emitter) ExtensionResponse(usage uint64, text string) {
	e.s.send(wire.Response{Kind: wire.ExtensionResponse, Usage: usage, Text: text})
}

func (e emitter) Info(text string) {
	e.s.send(wire.Response{Kind: wire.Info, Text: text})
}

func (e emitter) Status(text string) {
	e.s.send(wire.Response{Kind: wire.Status, Text: text})
}
