package attach

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/config"
	"github.com/cuemby/vassal-bridge/pkg/engine"
	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuard struct {
	calls atomic.Int32
	err   error
}

func (g *fakeGuard) Handle() *types.ContainerHandle {
	return &types.ContainerHandle{ID: "abc", Name: "w1"}
}

func (g *fakeGuard) Teardown() error {
	g.calls.Add(1)
	return g.err
}

type fakeProxy struct {
	waitErr error
	closed  atomic.Bool
}

func (p *fakeProxy) Wait(ctx context.Context) error { return p.waitErr }
func (p *fakeProxy) Close() error {
	p.closed.Store(true)
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// rawEngine accepts attach connections on a unix socket, records the
// request head and hands the connection to serve.
type rawEngine struct {
	path     string
	requests chan string
	accepted atomic.Int32
}

func newRawEngine(t *testing.T, serve func(net.Conn)) *rawEngine {
	t.Helper()

	dir, err := os.MkdirTemp("", "att")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	e := &rawEngine{path: filepath.Join(dir, "engine.sock"), requests: make(chan string, 4)}
	ln, err := net.Listen("unix", e.path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			e.accepted.Add(1)
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				var head bytes.Buffer
				for !bytes.HasSuffix(head.Bytes(), []byte("\r\n\r\n")) {
					b, err := r.ReadByte()
					if err != nil {
						return
					}
					head.WriteByte(b)
				}
				e.requests <- head.String()
				serve(conn)
			}()
		}
	}()
	return e
}

func (e *rawEngine) attacher() *Attacher {
	cfg := config.Default()
	cfg.SocketPath = e.path
	cfg.Timeout = 2 * time.Second
	return NewAttacher(cfg, engine.NewClient(cfg))
}

func TestAttach_ForwardsStreamVerbatim(t *testing.T) {
	eng := newRawEngine(t, func(c net.Conn) {
		c.Write([]byte("hello\n"))
	})
	sink := &syncBuffer{}
	guard := &fakeGuard{}
	proxy := &fakeProxy{}

	err := eng.attacher().WithSink(sink).Attach(context.Background(), guard, proxy)
	require.NoError(t, err)

	assert.Equal(t, "hello\n", sink.String())
	assert.Equal(t, int32(1), guard.calls.Load())
	assert.True(t, proxy.closed.Load())
	assert.Equal(t,
		"POST /containers/abc/attach?stream=1&logs=1&stdin=1&stdout=1&stderr=1 HTTP/1.1\r\n\r\n",
		<-eng.requests)
}

func TestAttach_LargeStream(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 3*ChunkSize/16+7)
	eng := newRawEngine(t, func(c net.Conn) {
		c.Write(payload)
	})
	sink := &syncBuffer{}
	guard := &fakeGuard{}

	err := eng.attacher().WithSink(sink).Attach(context.Background(), guard, nil)
	require.NoError(t, err)

	assert.Equal(t, string(payload), sink.String())
	assert.Equal(t, int32(1), guard.calls.Load())
}

func TestAttach_ProxyFailureSkipsToTeardown(t *testing.T) {
	eng := newRawEngine(t, func(c net.Conn) {})
	guard := &fakeGuard{}
	proxy := &fakeProxy{waitErr: errors.New("accept failed")}

	err := eng.attacher().WithSink(io.Discard).Attach(context.Background(), guard, proxy)
	assert.Error(t, err)
	assert.Equal(t, int32(1), guard.calls.Load())
	assert.True(t, proxy.closed.Load())
	assert.Zero(t, eng.accepted.Load())
}

func TestAttach_EngineUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.SocketPath = filepath.Join(t.TempDir(), "missing.sock")
	guard := &fakeGuard{}

	err := NewAttacher(cfg, engine.NewClient(cfg)).WithSink(io.Discard).Attach(context.Background(), guard, nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), guard.calls.Load())
}

func TestAttach_CancelDetaches(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	eng := newRawEngine(t, func(c net.Conn) {
		c.Write([]byte("starting\n"))
		<-release
	})
	sink := &syncBuffer{}
	guard := &fakeGuard{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- eng.attacher().WithSink(sink).Attach(ctx, guard, nil)
	}()

	require.Eventually(t, func() bool {
		return sink.String() == "starting\n"
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Attach did not return after cancel")
	}
	assert.Equal(t, int32(1), guard.calls.Load())
}

func TestAttach_ReportsTeardownError(t *testing.T) {
	eng := newRawEngine(t, func(c net.Conn) {})
	guard := &fakeGuard{err: errors.New("stop failed")}

	err := eng.attacher().WithSink(io.Discard).Attach(context.Background(), guard, nil)
	assert.EqualError(t, err, "stop failed")
	assert.Equal(t, int32(1), guard.calls.Load())
}

type failingWriter struct{ writes atomic.Int32 }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes.Add(1)
	return 0, errors.New("sink closed")
}

func TestForward_KeepsDrainingAfterSinkFailure(t *testing.T) {
	sink := &failingWriter{}
	a := &Attacher{sink: sink}

	r := io.MultiReader(bytes.NewReader([]byte("one")), bytes.NewReader([]byte("two")))
	n := a.forward(r)

	assert.Equal(t, int64(6), n)
	assert.Equal(t, int32(2), sink.writes.Load())
}
