// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package channel carries worker messages between the worker and its host
// and correlates metadata replies with the requests that asked for them.
//
// A Conduit is a shared, unscoped duplex stream: every inbound message goes
// to whoever reads Receive, and the only correlation key a reply carries is
// its path. Requester layers request/response on top of that.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/pdiddy/bestiary/pkg/types"
)

// ErrClosed is returned by Send after the conduit was closed.
var ErrClosed = errors.New("channel closed")

// Conduit is one end of a duplex message stream.
type Conduit interface {
	// Send delivers msg to the other end. It blocks until the message is
	// accepted, ctx is done, or the conduit is closed.
	Send(ctx context.Context, msg types.Message) error

	// Receive returns the inbound message stream. The channel is closed
	// when the other end closes.
	Receive() <-chan types.Message

	// Close stops sending. The other end's Receive channel closes.
	Close() error
}

// pipeBuffer is the per-direction buffer of an in-memory pipe.
const pipeBuffer = 64

// Pipe returns two connected in-memory conduits. Whatever one end sends,
// the other receives, in order.
func Pipe() (Conduit, Conduit) {
	ab := make(chan types.Message, pipeBuffer)
	ba := make(chan types.Message, pipeBuffer)
	return newPipeEnd(ba, ab), newPipeEnd(ab, ba)
}

type pipeEnd struct {
	in  <-chan types.Message
	out chan types.Message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

func newPipeEnd(in <-chan types.Message, out chan types.Message) *pipeEnd {
	return &pipeEnd{in: in, out: out, done: make(chan struct{})}
}

func (p *pipeEnd) Send(ctx context.Context, msg types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

func (p *pipeEnd) Receive() <-chan types.Message {
	return p.in
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.closed = true
		close(p.out)
		p.mu.Unlock()
	})
	return nil
}
