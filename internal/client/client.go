// Package client implements the synchronous protocol client. Its reader
// tolerates out-of-band info, status and extension-response lines at any
// point while waiting for the response that terminates the current command.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/mcsci/internal/config"
	"github.com/danmuck/mcsci/internal/protocol/typereg"
	"github.com/danmuck/mcsci/internal/protocol/value"
	"github.com/danmuck/mcsci/internal/protocol/wire"
)

var ErrRejected = errors.New("client: command rejected")

// RejectedError wraps a terminal non-success response.
type RejectedError struct {
	Response wire.Response
}

func (e *RejectedError) Error() string {
	return "client: command rejected: " + wire.Format(e.Response)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// SetupRejectedError carries the setup-error detail value.
type SetupRejectedError struct {
	Detail *value.Value
}

func (e *SetupRejectedError) Error() string {
	if e.Detail == nil {
		return "client: setup rejected"
	}
	return "client: setup rejected: " + e.Detail.String()
}

// SetupArg is one named setup-problem argument.
type SetupArg struct {
	Name  string
	Value value.Value
}

// Client drives one connection. Calls are serialized; the protocol allows
// only one in-flight core command anyway. Out-of-band lines observed while
// waiting are handed to the On* callbacks, which must be set before the
// first call.
type Client struct {
	mu    sync.Mutex
	conn  io.ReadWriteCloser
	br    *bufio.Reader
	log   zerolog.Logger
	types *typereg.Registry

	onInfo      func(text string)
	onStatus    func(text string)
	onExtension func(usage uint64, text string)
}

// New wraps an established transport.
func New(conn io.ReadWriteCloser, log zerolog.Logger) *Client {
	return &Client{
		conn:  conn,
		br:    bufio.NewReader(conn),
		log:   log,
		types: typereg.New(),
	}
}

// Dial connects with exponential backoff between attempts.
func Dial(ctx context.Context, cfg config.ClientConfig, log zerolog.Logger) (*Client, error) {
	var d net.Dialer
	bo := backoffConfig{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectRetries+1; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
		if err == nil {
			return New(conn, log), nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", cfg.Addr).Msg("dial failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(nextBackoffDelay(bo, attempt, rng)):
		}
	}
	return nil, fmt.Errorf("client dial failed: %w", lastErr)
}

func (c *Client) OnInfo(fn func(text string)) {
	c.onInfo = fn
}

func (c *Client) OnStatus(fn func(text string)) {
	c.onStatus = fn
}

func (c *Client) OnExtensionResponse(fn func(usage uint64, text string)) {
	c.onExtension = fn
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Hello performs the greeting handshake.
func (c *Client) Hello() error {
	_, err := c.call("hello", nil, nil)
	return err
}

// Quit ends the session. The server acks and closes the transport.
func (c *Client) Quit() error {
	_, err := c.call("quit", nil, nil)
	return err
}

// Version reports the negotiated protocol version and server identity.
func (c *Client) Version() (int, string, error) {
	r, err := c.call("version", nil, []wire.Kind{wire.VersionInfo})
	if err != nil {
		return 0, "", err
	}
	return r.Proto, r.Server, nil
}

// Extensions lists registered extensions; index in the result is the
// extension id.
func (c *Client) Extensions() ([]wire.ExtensionInfo, error) {
	r, err := c.call("extensions", nil, []wire.Kind{wire.ExtensionsList})
	if err != nil {
		return nil, err
	}
	return r.Extensions, nil
}

// ListTypes fetches one extension's alias table and caches it so later
// typed responses and arguments resolve locally.
func (c *Client) ListTypes(ext uint32) ([]wire.TypeDef, error) {
	r, err := c.call(fmt.Sprintf("list-types %d", ext), nil, []wire.Kind{wire.TypeList})
	if err != nil {
		return nil, err
	}
	for _, def := range r.Types {
		if err := c.types.Register(ext, def.Alias, def.Decl); err != nil {
			c.log.Warn().Err(err).Str("alias", def.Alias).Msg("alias cache rejected")
		}
	}
	return r.Types, nil
}

// ListProblems fetches one extension's problem catalogue as a typed value.
func (c *Client) ListProblems(ext uint32) (*value.Value, error) {
	r, err := c.call(fmt.Sprintf("list-problems %d", ext), c.types.View(ext), []wire.Kind{wire.ProblemList})
	if err != nil {
		return nil, err
	}
	return r.Value, nil
}

// SetupProblem configures a problem on an extension. A server-side
// rejection surfaces as a SetupRejectedError.
func (c *Client) SetupProblem(ext uint32, name string, args ...SetupArg) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "setup-problem %d %s", ext, value.QuoteString(name))
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteByte('=')
		sb.WriteString(a.Value.String())
	}
	r, err := c.call(sb.String(), c.types.View(ext), []wire.Kind{wire.SetupOk, wire.SetupError})
	if err != nil {
		return err
	}
	if r.Kind == wire.SetupError {
		return &SetupRejectedError{Detail: r.Value}
	}
	return nil
}

// UseExtension forwards an opaque command. Replies arrive asynchronously
// through the OnExtensionResponse callback, correlated by usage id.
func (c *Client) UseExtension(ext uint32, usage uint64, command string) error {
	_, err := c.call(fmt.Sprintf("use-extension %d %d %s", ext, usage, command), nil, nil)
	return err
}

// Raw sends a preformatted command line and returns its terminal response,
// waiting past the ack for the data response the command implies.
func (c *Client) Raw(line string) (wire.Response, error) {
	word, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	var want []wire.Kind
	switch word {
	case "version":
		want = []wire.Kind{wire.VersionInfo}
	case "extensions":
		want = []wire.Kind{wire.ExtensionsList}
	case "list-types":
		want = []wire.Kind{wire.TypeList}
	case "list-problems":
		want = []wire.Kind{wire.ProblemList}
	case "setup-problem":
		want = []wire.Kind{wire.SetupOk, wire.SetupError}
	}
	return c.call(line, nil, want)
}

// Pump reads one server line and dispatches it. Useful while idle to
// surface asynchronous extension output.
func (c *Client) Pump() (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.readResponse(nil)
	if err != nil {
		return wire.Response{}, err
	}
	c.dispatchOOB(r)
	return r, nil
}

// call writes one command line, waits for its ack, then for the data
// response of one of the wanted kinds if any are named. Out-of-band lines
// never satisfy either wait.
func (c *Client) call(line string, res value.Resolver, want []wire.Kind) (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return wire.Response{}, fmt.Errorf("client write failed: %w", err)
	}

	acked := false
	for {
		r, err := c.readResponse(res)
		if err != nil {
			return wire.Response{}, err
		}
		if c.dispatchOOB(r) {
			continue
		}
		if !acked {
			switch r.Kind {
			case wire.Ack:
				if len(want) == 0 {
					return r, nil
				}
				acked = true
				continue
			case wire.ParseFail, wire.Unexpected, wire.NoSuchExtension:
				return wire.Response{}, &RejectedError{Response: r}
			default:
				return wire.Response{}, fmt.Errorf("client: response %s arrived before ack", wire.Format(r))
			}
		}
		for _, k := range want {
			if r.Kind == k {
				return r, nil
			}
		}
		if r.Kind == wire.NoSuchExtension {
			return wire.Response{}, &RejectedError{Response: r}
		}
		return wire.Response{}, fmt.Errorf("client: unexpected data response %s", wire.Format(r))
	}
}

func (c *Client) readResponse(res value.Resolver) (wire.Response, error) {
	for {
		line, err := c.br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
				return wire.ParseResponse(line, res)
			}
			return wire.Response{}, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return wire.ParseResponse(line, res)
	}
}

// dispatchOOB routes out-of-band lines and reports whether r was one.
func (c *Client) dispatchOOB(r wire.Response) bool {
	switch r.Kind {
	case wire.Info:
		if c.onInfo != nil {
			c.onInfo(r.Text)
		}
	case wire.Status:
		if c.onStatus != nil {
			c.onStatus(r.Text)
		}
	case wire.ExtensionResponse:
		if c.onExtension != nil {
			c.onExtension(r.Usage, r.Text)
		}
	default:
		return false
	}
	return true
}
