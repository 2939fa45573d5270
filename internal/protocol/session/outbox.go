package session

import (
	"bufio"
	"io"
	"sync"

	"github.com/danmuck/mcsci/internal/protocol/wire"
)

// Outbox serializes response lines onto one connection writer. Core
// responses and asynchronous extension emissions share the stream, so every
// line goes through the one lock. Once a write fails the error sticks and
// all later sends fail fast.
type Outbox struct {
	mu  sync.Mutex
	w   *bufio.Writer
	err error
}

func NewOutbox(w io.Writer) *Outbox {
	return &Outbox{w: bufio.NewWriter(w)}
}

// Send writes one response line and flushes it.
func (o *Outbox) Send(r wire.Response) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	if _, err := o.w.WriteString(wire.Format(r)); err != nil {
		o.err = err
		return err
	}
	if err := o.w.WriteByte('\n'); err != nil {
		o.err = err
		return err
	}
	if err := o.w.Flush(); err != nil {
		o.err = err
		return err
	}
	return nil
}

// Err returns the sticky write error, if any.
func (o *Outbox) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}
