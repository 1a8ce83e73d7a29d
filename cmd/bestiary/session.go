// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bestiary/internal/channel"
	"github.com/pdiddy/bestiary/internal/extract"
	"github.com/pdiddy/bestiary/internal/host"
	"github.com/pdiddy/bestiary/internal/normalize"
	"github.com/pdiddy/bestiary/internal/spawn"
	"github.com/pdiddy/bestiary/internal/worker"
	"github.com/pdiddy/bestiary/pkg/types"
)

// session is a host connected to a running worker, either in-process or
// as a child process.
type session struct {
	host   *host.Host
	group  *errgroup.Group
	gctx   context.Context
	cancel context.CancelFunc
	close  func() error
}

// sessionOptions selects how the worker runs.
type sessionOptions struct {
	cfg      types.Config
	log      *slog.Logger
	level    *slog.LevelVar
	isolated bool

	// workerArgs are passed to a child worker after the worker subcommand.
	workerArgs []string
}

// newWorker builds an in-process worker from cfg.
func newWorker(c channel.Conduit, cfg types.Config, log *slog.Logger, level *slog.LevelVar) (*worker.Worker, error) {
	norm, err := normalize.New(cfg.Normalize)
	if err != nil {
		return nil, err
	}
	x := extract.New(cfg.Extract, norm)
	return worker.New(c, x,
		worker.WithLogger(log, level),
		worker.WithReplyTimeout(cfg.Worker.ReplyTimeout),
	), nil
}

// startSession starts a worker and a host serving src. Records of every
// completed batch go to sink.
func startSession(ctx context.Context, src host.Source, sink host.Sink, opts sessionOptions) (*session, error) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s := &session{group: g, gctx: gctx, cancel: cancel}

	var conduit channel.Conduit
	if opts.isolated {
		child, err := spawn.Start(gctx, spawn.Options{Args: opts.workerArgs, Log: opts.log})
		if err != nil {
			cancel()
			return nil, err
		}
		opts.log.Debug("started worker process", "bin", child.Bin())
		conduit = child
		s.close = child.Wait
	} else {
		hostEnd, workerEnd := channel.Pipe()
		w, err := newWorker(workerEnd, opts.cfg, opts.log, opts.level)
		if err != nil {
			cancel()
			return nil, err
		}
		g.Go(func() error { return ignoreCanceled(w.Run(gctx)) })
		conduit = hostEnd
		s.close = hostEnd.Close
	}

	s.host = host.New(conduit, src, sink, opts.log)
	g.Go(func() error { return ignoreCanceled(s.host.Run(gctx)) })

	if err := s.host.SetDebug(gctx, opts.cfg.Worker.Debug); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// batch queues paths and waits until the worker has drained them. It
// returns immediately when paths is empty.
func (s *session) batch(ctx context.Context, paths []string) (host.Summary, error) {
	if len(paths) == 0 {
		return host.Summary{}, nil
	}
	if err := s.host.Queue(ctx, paths...); err != nil {
		return host.Summary{}, err
	}
	select {
	case sum := <-s.host.Batches():
		return sum, sum.Err
	case <-ctx.Done():
		return host.Summary{}, ctx.Err()
	case <-s.gctx.Done():
		if err := s.group.Wait(); err != nil {
			return host.Summary{}, fmt.Errorf("worker session: %w", err)
		}
		return host.Summary{}, errors.New("worker session ended before the batch completed")
	}
}

// Close stops the worker and the host and waits for both.
func (s *session) Close() error {
	closeErr := s.close()
	s.cancel()
	return errors.Join(closeErr, s.group.Wait())
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
