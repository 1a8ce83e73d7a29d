package channel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bestiary/pkg/types"
)

func recv(t *testing.T, c Conduit) types.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Receive():
		require.True(t, ok, "conduit closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return types.Message{}
}

// --- Pipe ---

func TestPipe_DeliversInOrder(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, types.PathFinished("one")))
	require.NoError(t, a.Send(ctx, types.PathFinished("two")))

	assert.Equal(t, "one", recv(t, b).Path)
	assert.Equal(t, "two", recv(t, b).Path)
}

func TestPipe_CloseEndsPeerReceive(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")

	_, ok := <-b.Receive()
	assert.False(t, ok)

	err := a.Send(context.Background(), types.BatchComplete())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPipe_SendHonorsCancelledContext(t *testing.T) {
	a, _ := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Send(ctx, types.BatchComplete())
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Stream ---

func TestStream_RoundTripKeepsMetadataOrder(t *testing.T) {
	var wire bytes.Buffer
	out := NewStream(strings.NewReader(""), &wire, nil)

	meta := types.Metadata{
		types.P("statblock", types.Bool(true)),
		types.P("name", types.String("Orc")),
		types.P("traits", types.Mapping(
			types.P("Zeal", types.String("z")),
			types.P("Aggressive", types.String("a")),
		)),
		types.P("cr", types.Float(0.5)),
		types.P("hp", types.Int(15)),
	}
	file := types.FileAttrs{Path: "orc.md", Basename: "orc", ModTime: 42}
	require.NoError(t, out.Send(context.Background(), types.MetadataReply("orc.md", meta, file)))
	require.NoError(t, out.Send(context.Background(), types.MetadataReply("none.md", nil, types.FileAttrs{Path: "none.md"})))

	in := NewStream(&wire, io.Discard, nil)

	got := recv(t, in)
	assert.Equal(t, types.MsgMetadataReply, got.Type)
	assert.Equal(t, "orc.md", got.Path)
	assert.Equal(t, meta, got.Metadata)
	require.NotNil(t, got.File)
	assert.Equal(t, file, *got.File)

	absent := recv(t, in)
	assert.Equal(t, "none.md", absent.Path)
	assert.Nil(t, absent.Metadata)

	_, ok := <-in.Receive()
	assert.False(t, ok, "stream ends at EOF")
	assert.NoError(t, in.Err())
}

func TestStream_SkipsMalformedLines(t *testing.T) {
	input := "not json\n\n{\"type\":\"queue\",\"paths\":[\"a.md\",\"b.md\"]}\n"
	s := NewStream(strings.NewReader(input), io.Discard, nil)

	msg := recv(t, s)
	assert.Equal(t, types.MsgQueue, msg.Type)
	assert.Equal(t, []string{"a.md", "b.md"}, msg.Paths)
}

func TestStream_SendAfterClose(t *testing.T) {
	s := NewStream(strings.NewReader(""), io.Discard, nil)
	require.NoError(t, s.Close())

	err := s.Send(context.Background(), types.BatchComplete())
	assert.ErrorIs(t, err, ErrClosed)
}

// --- Requester ---

func TestRequester_ResolvesMatchingReply(t *testing.T) {
	worker, host := Pipe()
	r := NewRequester(worker, 0)

	done := make(chan types.Message, 1)
	go func() {
		msg, err := r.RequestMetadata(context.Background(), "orc.md")
		assert.NoError(t, err)
		done <- msg
	}()

	req := recv(t, host)
	assert.Equal(t, types.MsgMetadataRequest, req.Type)
	assert.Equal(t, "orc.md", req.Path)

	assert.True(t, r.Resolve(types.MetadataReply("orc.md", types.Metadata{types.P("name", types.String("Orc"))}, types.FileAttrs{Path: "orc.md"})))

	select {
	case msg := <-done:
		assert.Equal(t, "orc.md", msg.Path)
		name, _ := msg.Metadata.Get("name")
		assert.Equal(t, types.String("Orc"), name)
	case <-time.After(2 * time.Second):
		t.Fatal("request never resolved")
	}
	assert.Equal(t, 0, r.Pending())
}

func TestRequester_MismatchedReplyDoesNotResolve(t *testing.T) {
	worker, host := Pipe()
	r := NewRequester(worker, 0)

	done := make(chan types.Message, 1)
	go func() {
		msg, _ := r.RequestMetadata(context.Background(), "docB.md")
		done <- msg
	}()
	recv(t, host)

	assert.False(t, r.Resolve(types.MetadataReply("stale.md", nil, types.FileAttrs{})))
	select {
	case <-done:
		t.Fatal("mismatched reply resolved the wait")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, r.Pending())

	assert.True(t, r.Resolve(types.MetadataReply("docB.md", nil, types.FileAttrs{})))
	assert.Equal(t, "docB.md", (<-done).Path)
	assert.Equal(t, 0, r.Pending())
}

func TestRequester_ResolvesOldestWaiterFirst(t *testing.T) {
	worker, host := Pipe()
	r := NewRequester(worker, 0)

	results := make(chan int, 2)
	for i := 1; i <= 2; i++ {
		go func() {
			msg, _ := r.RequestMetadata(context.Background(), "dup.md")
			results <- int(msg.File.ModTime)
		}()
		recv(t, host)
	}
	require.Eventually(t, func() bool { return r.Pending() == 2 }, time.Second, time.Millisecond)

	require.True(t, r.Resolve(types.MetadataReply("dup.md", nil, types.FileAttrs{ModTime: 1})))
	require.True(t, r.Resolve(types.MetadataReply("dup.md", nil, types.FileAttrs{ModTime: 2})))

	got := []int{<-results, <-results}
	assert.ElementsMatch(t, []int{1, 2}, got)
	assert.Equal(t, 0, r.Pending())
}

func TestRequester_TimeoutRemovesWaiter(t *testing.T) {
	worker, host := Pipe()
	r := NewRequester(worker, 10*time.Millisecond)

	errc := make(chan error, 1)
	go func() {
		_, err := r.RequestMetadata(context.Background(), "silent.md")
		errc <- err
	}()
	recv(t, host)

	err := <-errc
	assert.True(t, errors.Is(err, ErrReplyTimeout), "got %v", err)
	assert.Equal(t, 0, r.Pending())
	assert.False(t, r.Resolve(types.MetadataReply("silent.md", nil, types.FileAttrs{})), "late reply is dropped")
}

func TestRequester_CancelRemovesWaiter(t *testing.T) {
	worker, host := Pipe()
	r := NewRequester(worker, 0)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := r.RequestMetadata(ctx, "orc.md")
		errc <- err
	}()
	recv(t, host)
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, r.Pending())
}

func TestRequester_SendFailureRemovesWaiter(t *testing.T) {
	worker, _ := Pipe()
	require.NoError(t, worker.Close())
	r := NewRequester(worker, 0)

	_, err := r.RequestMetadata(context.Background(), "orc.md")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, r.Pending())
}

func TestRequester_ManyRoundTripsLeaveNoWaiters(t *testing.T) {
	worker, host := Pipe()
	r := NewRequester(worker, 0)

	for i := 0; i < 100; i++ {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := r.RequestMetadata(context.Background(), "same.md")
			assert.NoError(t, err)
		}()
		req := recv(t, host)
		require.True(t, r.Resolve(types.MetadataReply(req.Path, nil, types.FileAttrs{Path: req.Path})))
		<-done
	}
	assert.Equal(t, 0, r.Pending())
}
