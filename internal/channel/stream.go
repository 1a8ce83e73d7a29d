// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pdiddy/bestiary/pkg/types"
)

// maxLineSize bounds a single encoded message. Frontmatter of a large stat
// block stays far below this.
const maxLineSize = 16 << 20

// Stream is a Conduit that exchanges JSON Lines over a byte stream, one
// message per line. It connects a worker running as a child process to its
// host over stdin and stdout.
type Stream struct {
	w   io.Writer
	log *slog.Logger

	in   chan types.Message
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	once    sync.Once
	readErr error
}

// NewStream starts reading messages from r and returns a conduit writing to
// w. Lines that do not decode are logged and skipped. A nil logger discards.
func NewStream(r io.Reader, w io.Writer, log *slog.Logger) *Stream {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Stream{
		w:    w,
		log:  log,
		in:   make(chan types.Message, pipeBuffer),
		done: make(chan struct{}),
	}
	go s.readLoop(r)
	return s
}

func (s *Stream) readLoop(r io.Reader) {
	defer close(s.in)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg types.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.log.Warn("skipping undecodable message", "err", err)
			continue
		}
		select {
		case s.in <- msg:
		case <-s.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.mu.Lock()
		s.readErr = fmt.Errorf("reading messages: %w", err)
		s.mu.Unlock()
	}
}

// Send encodes msg as one line. Concurrent sends never interleave.
func (s *Stream) Send(ctx context.Context, msg types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("writing %s message: %w", msg.Type, err)
	}
	return nil
}

// Receive returns the decoded inbound messages. It closes at end of input.
func (s *Stream) Receive() <-chan types.Message {
	return s.in
}

// Err returns the read error that ended the inbound stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Close stops sending and closes the writer when it is an io.Closer.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if c, ok := s.w.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
