// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package spawn runs the worker as a child process and connects to it
// with a JSON Lines stream over the child's stdin and stdout.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/pdiddy/bestiary/internal/channel"
)

// WorkerCommand is the subcommand that runs a worker over stdio.
const WorkerCommand = "worker"

// proc is a started child process.
type proc struct {
	stdin  io.WriteCloser
	stdout io.Reader
	wait   func() error
}

// executor abstracts process creation for testing.
type executor interface {
	LookPath(file string) (string, error)
	Start(ctx context.Context, name string, args []string, stderr io.Writer) (*proc, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Start(ctx context.Context, name string, args []string, stderr io.Writer) (*proc, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &proc{stdin: stdin, stdout: stdout, wait: cmd.Wait}, nil
}

var defaultExec executor = &osExecutor{}

// Options configures the child worker.
type Options struct {
	// Bin is the bestiary binary. Empty uses the running executable.
	Bin string

	// Args are passed after the worker subcommand, such as config flags.
	Args []string

	// Stderr receives the child's log output. Nil uses os.Stderr.
	Stderr io.Writer

	// Log records stream decode failures on the host side.
	Log *slog.Logger
}

// Child is a running worker process. It is a channel.Conduit to the
// worker; closing it closes the child's stdin, which ends the worker.
type Child struct {
	*channel.Stream
	bin  string
	wait func() error
}

// Start launches a worker process. Cancelling ctx kills it.
func Start(ctx context.Context, opts Options) (*Child, error) {
	return start(ctx, defaultExec, opts)
}

func start(ctx context.Context, ex executor, opts Options) (*Child, error) {
	bin, err := resolveBin(ex, opts.Bin)
	if err != nil {
		return nil, err
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	args := append([]string{WorkerCommand}, opts.Args...)
	p, err := ex.Start(ctx, bin, args, stderr)
	if err != nil {
		return nil, fmt.Errorf("starting worker %s: %w", bin, err)
	}
	return &Child{
		Stream: channel.NewStream(p.stdout, p.stdin, opts.Log),
		bin:    bin,
		wait:   p.wait,
	}, nil
}

func resolveBin(ex executor, bin string) (string, error) {
	if bin == "" {
		self, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locating bestiary executable: %w", err)
		}
		return self, nil
	}
	path, err := ex.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("worker binary %s not found: %w", bin, err)
	}
	return path, nil
}

// Bin returns the path of the running worker binary.
func (c *Child) Bin() string { return c.bin }

// Wait closes the worker's stdin and waits for it to exit. A worker killed
// by context cancellation is not an error.
func (c *Child) Wait() error {
	closeErr := c.Stream.Close()
	err := c.wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("worker %s: %w", c.bin, err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("closing worker stdin: %w", closeErr)
	}
	return nil
}
