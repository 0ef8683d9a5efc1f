package peer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestEnqueueEvictsOverflowToHalf(t *testing.T) {
	q := NewQueue("unused.example.com", nil)
	for i := 0; i < QueueCap+10; i++ {
		q.Enqueue(urlmodel.MustParse("http://example.com/x"))
	}
	assert.LessOrEqual(t, q.Len(), QueueCap/2+11)
}

type fakeInserter struct{ inserted chan urlmodel.URL }

func (f *fakeInserter) InsertFrontier(u urlmodel.URL) { f.inserted <- u }

// TestAcceptLoopReceivesForwardedURL exercises handleConnection's
// message-splitting contract end to end over a real loopback socket,
// using the peer wire protocol's NUL-terminated ASCII URL framing.
func TestAcceptLoopReceivesForwardedURL(t *testing.T) {
	ins := &fakeInserter{inserted: make(chan urlmodel.URL, 1)}
	running := true
	runningFn := func() bool { return running }
	setRunning := func(v bool) { running = v }

	acceptDone := make(chan error, 1)
	go func() { acceptDone <- AcceptLoop(1, ins, runningFn, setRunning, nil, nil) }()

	conn := dialWithRetry(t, "127.0.0.1:8888")
	defer conn.Close()

	_, err := conn.Write([]byte("http://example.com/forwarded\x00"))
	require.NoError(t, err)

	select {
	case u := <-ins.inserted:
		assert.Equal(t, "http://example.com/forwarded", u.String())
	case <-time.After(2 * time.Second):
		t.Fatal("URL was never forwarded to the inserter")
	}

	require.NoError(t, <-acceptDone)
}

// TestAcceptLoopKillCancelsContext ensures a remote KillMessage tears down
// the caller's context, not just the running flag: without this, a kill
// only stops the worker pool while background tasks and peer queues, which
// select on ctx.Done(), never see the shutdown.
func TestAcceptLoopKillCancelsContext(t *testing.T) {
	ins := &fakeInserter{inserted: make(chan urlmodel.URL, 1)}
	running := true
	runningFn := func() bool { return running }
	setRunning := func(v bool) { running = v }
	_, cancel := context.WithCancel(context.Background())
	cancelled := make(chan struct{})
	wrappedCancel := func() {
		cancel()
		close(cancelled)
	}

	acceptDone := make(chan error, 1)
	go func() { acceptDone <- AcceptLoop(1, ins, runningFn, setRunning, wrappedCancel, nil) }()

	conn := dialWithRetry(t, "127.0.0.1:8888")
	defer conn.Close()

	_, err := conn.Write([]byte(KillMessage + "\x00"))
	require.NoError(t, err)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("kill message never cancelled the context")
	}
	assert.False(t, runningFn())

	require.NoError(t, <-acceptDone)
}

func dialWithRetry(t *testing.T, addr string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("could not dial %s", addr)
	return nil
}
