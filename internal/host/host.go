// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package host is the side of the worker channel that owns the notes. It
// answers the worker's metadata requests from a Vault, collects the records
// the worker reports, and hands them to a Sink each time a batch completes.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdiddy/bestiary/internal/channel"
	"github.com/pdiddy/bestiary/internal/logging"
	"github.com/pdiddy/bestiary/pkg/types"
)

// Sink receives the records of a completed batch.
type Sink interface {
	Save(ctx context.Context, records []*types.Record) error
}

// Source serves note metadata. Vault is the production Source.
type Source interface {
	Read(path string) (types.Metadata, types.FileAttrs, error)
}

// Summary counts the outcome of one batch.
type Summary struct {
	// Processed is the number of paths the worker finished.
	Processed int

	// Updated is the number of records the worker reported.
	Updated int

	// Flushed is the number of records handed to the Sink.
	Flushed int

	// Err is the Sink failure, if any.
	Err error
}

// Host drives a worker over a Conduit.
type Host struct {
	conduit channel.Conduit
	source  Source
	sink    Sink
	log     *slog.Logger

	mu      sync.Mutex
	pending []*types.Record
	current Summary
	totals  Summary
	batches chan Summary
}

// New returns a Host serving metadata from src. sink may be nil, in which
// case batch records are counted and dropped.
func New(c channel.Conduit, src Source, sink Sink, log *slog.Logger) *Host {
	if log == nil {
		log, _ = logging.Discard()
	}
	return &Host{
		conduit: c,
		source:  src,
		sink:    sink,
		log:     log,
		batches: make(chan Summary, 1),
	}
}

// Queue asks the worker to process paths.
func (h *Host) Queue(ctx context.Context, paths ...string) error {
	if err := h.conduit.Send(ctx, types.QueueMessage(paths...)); err != nil {
		return fmt.Errorf("queueing %d paths: %w", len(paths), err)
	}
	return nil
}

// SetDebug toggles the worker's verbose diagnostics.
func (h *Host) SetDebug(ctx context.Context, on bool) error {
	if err := h.conduit.Send(ctx, types.DebugMessage(on)); err != nil {
		return fmt.Errorf("sending debug toggle: %w", err)
	}
	return nil
}

// Batches delivers a Summary each time the worker reports a completed
// batch, after the batch's records were flushed.
func (h *Host) Batches() <-chan Summary {
	return h.batches
}

// Totals returns the counts accumulated over every completed batch.
func (h *Host) Totals() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totals
}

// Run serves the worker until ctx is done or the worker closes the
// conduit. Every metadata request gets exactly one reply; a note that
// cannot be read is answered with absent metadata.
func (h *Host) Run(ctx context.Context) error {
	inbound := h.conduit.Receive()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := h.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (h *Host) handle(ctx context.Context, msg types.Message) error {
	switch msg.Type {
	case types.MsgMetadataRequest:
		return h.reply(ctx, msg.Path)
	case types.MsgRecordUpdated:
		if msg.Record == nil {
			h.log.Warn("record update without a record", "path", msg.Path)
			return nil
		}
		h.mu.Lock()
		h.pending = append(h.pending, msg.Record)
		h.current.Updated++
		h.mu.Unlock()
	case types.MsgPathFinished:
		h.mu.Lock()
		h.current.Processed++
		h.mu.Unlock()
	case types.MsgBatchComplete:
		return h.flush(ctx)
	default:
		h.log.Debug("ignoring message", "type", msg.Type)
	}
	return nil
}

func (h *Host) reply(ctx context.Context, path string) error {
	meta, file, err := h.source.Read(path)
	if err != nil {
		h.log.Warn("answering with no metadata", "path", path, "err", err)
		meta = nil
	}
	file.Path = path
	if err := h.conduit.Send(ctx, types.MetadataReply(path, meta, file)); err != nil {
		return fmt.Errorf("replying for %s: %w", path, err)
	}
	return nil
}

func (h *Host) flush(ctx context.Context) error {
	h.mu.Lock()
	records := h.pending
	summary := h.current
	h.pending = nil
	h.current = Summary{}
	h.mu.Unlock()

	if len(records) > 0 && h.sink != nil {
		if err := h.sink.Save(ctx, records); err != nil {
			summary.Err = err
			h.log.Error("saving batch", "records", len(records), "err", err)
		} else {
			summary.Flushed = len(records)
		}
	}

	h.mu.Lock()
	h.totals.Processed += summary.Processed
	h.totals.Updated += summary.Updated
	h.totals.Flushed += summary.Flushed
	h.totals.Err = errors.Join(h.totals.Err, summary.Err)
	h.mu.Unlock()

	select {
	case h.batches <- summary:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
