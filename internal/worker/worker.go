// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worker runs the background extraction loop. The worker owns a
// FIFO of note paths; for each path it asks the host for the note's
// metadata, extracts a record, and reports the outcome before moving on.
// When the queue empties it tells the host the batch is complete.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/bestiary/internal/channel"
	"github.com/pdiddy/bestiary/internal/extract"
	"github.com/pdiddy/bestiary/internal/logging"
	"github.com/pdiddy/bestiary/pkg/types"
)

// State is the drain state of a Worker.
type State uint8

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	if s == StateDraining {
		return "draining"
	}
	return "idle"
}

// Worker drains queued note paths one at a time. Create it with New and
// start it with Run.
type Worker struct {
	conduit   channel.Conduit
	requests  *channel.Requester
	extractor *extract.Extractor
	log       *slog.Logger
	level     *slog.LevelVar
	timeout   time.Duration

	mu      sync.Mutex
	queue   []string
	state   State
	ctx     context.Context
	cancel  context.CancelCauseFunc
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger and the level variable the debug message
// toggles.
func WithLogger(log *slog.Logger, level *slog.LevelVar) Option {
	return func(w *Worker) {
		w.log = log
		w.level = level
	}
}

// WithReplyTimeout bounds the wait for each metadata reply. Zero, the
// default, waits forever.
func WithReplyTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

// New returns a Worker talking to its host over c.
func New(c channel.Conduit, x *extract.Extractor, opts ...Option) *Worker {
	w := &Worker{conduit: c, extractor: x}
	w.log, w.level = logging.Discard()
	for _, opt := range opts {
		opt(w)
	}
	if w.extractor == nil {
		w.extractor = extract.New(types.ExtractConfig{}, nil)
	}
	w.requests = channel.NewRequester(c, w.timeout)
	return w
}

// Run consumes inbound messages until ctx is done or the host closes the
// conduit. It is the only reader of the conduit: queue messages extend the
// work queue, debug messages toggle diagnostics, and metadata replies are
// handed to the waiting request. Run waits for an active drain to stop
// before returning; once Run returns the worker sends nothing further.
//
// Run returns nil when the host closes the conduit, the cause of
// cancellation when ctx ends, or the send error that broke the drain.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	w.mu.Lock()
	w.ctx, w.cancel = ctx, cancel
	w.startLocked()
	w.mu.Unlock()

	inbound := w.conduit.Receive()
	for {
		select {
		case <-ctx.Done():
			w.stop()
			return context.Cause(ctx)
		case msg, ok := <-inbound:
			if !ok {
				cancel(nil)
				w.stop()
				return nil
			}
			w.handle(msg)
		}
	}
}

func (w *Worker) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) handle(msg types.Message) {
	switch msg.Type {
	case types.MsgQueue:
		w.log.Debug("received queue message", "paths", len(msg.Paths))
		w.Enqueue(msg.Paths...)
	case types.MsgDebug:
		w.SetDebug(msg.Debug)
	case types.MsgMetadataReply:
		if !w.requests.Resolve(msg) {
			w.log.Debug("discarding unmatched metadata reply", "path", msg.Path)
		}
	default:
		w.log.Debug("ignoring message", "type", msg.Type)
	}
}

// Enqueue appends paths to the work queue. If the worker is idle it starts
// draining; otherwise the running drain picks the paths up in order.
// Paths enqueued before Run are drained once Run starts.
func (w *Worker) Enqueue(paths ...string) {
	if len(paths) == 0 {
		return
	}
	w.log.Debug("adding paths to queue", "count", len(paths))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue = append(w.queue, paths...)
	w.startLocked()
}

// startLocked starts a drain when there is work, the worker is idle and
// Run is active. w.mu must be held.
func (w *Worker) startLocked() {
	if w.state != StateIdle || len(w.queue) == 0 || w.ctx == nil || w.stopped || w.ctx.Err() != nil {
		return
	}
	w.state = StateDraining
	w.wg.Add(1)
	go w.drain(w.ctx)
}

// SetDebug toggles verbose diagnostics. It has no effect on processing.
func (w *Worker) SetDebug(on bool) {
	logging.SetDebug(w.level, on)
}

// State returns the current drain state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// QueueLen returns the number of paths waiting to be processed.
func (w *Worker) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// PendingRequests returns the number of metadata requests awaiting a reply.
func (w *Worker) PendingRequests() int {
	return w.requests.Pending()
}

// drain processes the queue until it is empty. Each time the queue empties
// it reports batch completion; paths enqueued meanwhile start a new cycle
// on the same goroutine, so only one drain ever runs.
func (w *Worker) drain(ctx context.Context) {
	defer w.wg.Done()

	for {
		path, remaining, ok := w.next()
		if !ok {
			if err := w.conduit.Send(ctx, types.BatchComplete()); err != nil {
				w.abort(fmt.Errorf("sending batch complete: %w", err))
				return
			}
			w.log.Debug("batch complete")
			if w.settle() {
				return
			}
			continue
		}

		w.log.Debug("parsing note for stat blocks", "path", path, "remaining", remaining)
		if err := w.process(ctx, path); err != nil {
			w.abort(err)
			return
		}
	}
}

// next pops the front of the queue.
func (w *Worker) next() (path string, remaining int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", 0, false
	}
	path = w.queue[0]
	w.queue[0] = ""
	w.queue = w.queue[1:]
	return path, len(w.queue), true
}

// settle moves the worker to idle if nothing was enqueued since the queue
// emptied and reports whether it did.
func (w *Worker) settle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) > 0 {
		return false
	}
	w.state = StateIdle
	w.queue = nil
	return true
}

// abort stops draining after a failure that leaves the host unreachable.
func (w *Worker) abort(err error) {
	w.mu.Lock()
	w.state = StateIdle
	cancel := w.cancel
	w.mu.Unlock()

	if !errors.Is(err, context.Canceled) {
		w.log.Error("drain stopped", "err", err)
	}
	cancel(err)
}

// process handles one path end to end: request its metadata, extract a
// record, report the record if any, and report the path as finished.
func (w *Worker) process(ctx context.Context, path string) error {
	reply, err := w.requests.RequestMetadata(ctx, path)
	switch {
	case errors.Is(err, channel.ErrReplyTimeout):
		w.log.Warn("no metadata reply, skipping note", "path", path, "err", err)
	case err != nil:
		return err
	default:
		file := types.FileAttrs{}
		if reply.File != nil {
			file = *reply.File
		}
		file.Path = path

		if rec, ok := w.extractor.Extract(file, reply.Metadata); ok {
			w.log.Debug("adding creature to bestiary", "name", rec.Name, "file", file.Basename)
			if err := w.conduit.Send(ctx, types.RecordUpdated(rec)); err != nil {
				return fmt.Errorf("sending record for %s: %w", path, err)
			}
		}
	}

	if err := w.conduit.Send(ctx, types.PathFinished(path)); err != nil {
		return fmt.Errorf("sending finished for %s: %w", path, err)
	}
	return nil
}
