// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/bestiary/pkg/types"
)

// ErrReplyTimeout is returned by RequestMetadata when the host does not
// answer within the configured timeout.
var ErrReplyTimeout = errors.New("metadata reply timed out")

// Requester asks the host for note metadata over a Conduit and matches the
// replies to the waiting callers by path.
//
// Each request registers a one-shot waiter that is removed on every exit
// path: matching reply, timeout, or cancellation. Replies that match no
// waiter are reported to the caller of Resolve and dropped.
type Requester struct {
	conduit Conduit
	timeout time.Duration

	mu      sync.Mutex
	waiters map[string][]chan types.Message
}

// NewRequester returns a Requester sending on c. A zero timeout waits for
// a reply indefinitely.
func NewRequester(c Conduit, timeout time.Duration) *Requester {
	return &Requester{
		conduit: c,
		timeout: timeout,
		waiters: make(map[string][]chan types.Message),
	}
}

// RequestMetadata sends a metadata request for path and blocks until the
// matching reply is resolved, the timeout expires, or ctx is done.
func (r *Requester) RequestMetadata(ctx context.Context, path string) (types.Message, error) {
	ch := make(chan types.Message, 1)
	r.register(path, ch)
	defer r.remove(path, ch)

	if err := r.conduit.Send(ctx, types.MetadataRequest(path)); err != nil {
		return types.Message{}, fmt.Errorf("requesting metadata for %s: %w", path, err)
	}

	var expired <-chan time.Time
	if r.timeout > 0 {
		t := time.NewTimer(r.timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-expired:
		return types.Message{}, fmt.Errorf("%w: %s after %v", ErrReplyTimeout, path, r.timeout)
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Resolve hands a metadata reply to the oldest waiter for its path and
// removes that waiter. It reports false when nobody is waiting for the
// path, in which case the reply is dropped.
func (r *Requester) Resolve(msg types.Message) bool {
	r.mu.Lock()
	ws := r.waiters[msg.Path]
	if len(ws) == 0 {
		r.mu.Unlock()
		return false
	}
	ch := ws[0]
	r.dropLocked(msg.Path, 0)
	r.mu.Unlock()

	// ch has room for exactly one message and is resolved at most once.
	ch <- msg
	return true
}

// Pending returns the number of outstanding waiters.
func (r *Requester) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ws := range r.waiters {
		n += len(ws)
	}
	return n
}

func (r *Requester) register(path string, ch chan types.Message) {
	r.mu.Lock()
	r.waiters[path] = append(r.waiters[path], ch)
	r.mu.Unlock()
}

func (r *Requester) remove(path string, ch chan types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiters[path] {
		if w == ch {
			r.dropLocked(path, i)
			return
		}
	}
}

func (r *Requester) dropLocked(path string, i int) {
	ws := r.waiters[path]
	ws = append(ws[:i:i], ws[i+1:]...)
	if len(ws) == 0 {
		delete(r.waiters, path)
		return
	}
	r.waiters[path] = ws
}
