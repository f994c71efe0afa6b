package attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/config"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/cuemby/vassal-bridge/pkg/metrics"
	"github.com/cuemby/vassal-bridge/pkg/types"
)

// ChunkSize is the read size of the forward loop.
const ChunkSize = 8192

// requestFormat is written verbatim on a fresh engine connection. The
// engine answers with an HTTP header followed by the raw tty stream; both
// are forwarded as they arrive.
const requestFormat = "POST /containers/%s/attach?stream=1&logs=1&stdin=1&stdout=1&stderr=1 HTTP/1.1\r\n\r\n"

// ProxyWaiter completes the supervisor handoff before the stream is attached.
type ProxyWaiter interface {
	Wait(ctx context.Context) error
	Close() error
}

// Teardowner owns the container being attached to.
type Teardowner interface {
	Handle() *types.ContainerHandle
	Teardown() error
}

// Dialer opens raw connections to the engine socket.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// Attacher streams a container's output to a log sink.
type Attacher struct {
	dialer  Dialer
	timeout time.Duration
	sink    io.Writer
}

// NewAttacher creates an attacher dialing the engine through d. The write
// of the attach request is bounded by the configured timeout.
func NewAttacher(cfg *config.Config, d Dialer) *Attacher {
	return &Attacher{
		dialer:  d,
		timeout: cfg.Timeout,
		sink:    os.Stderr,
	}
}

// WithSink redirects the container output, stderr by default
func (a *Attacher) WithSink(w io.Writer) *Attacher {
	if w != nil {
		a.sink = w
	}
	return a
}

// Attach waits for the proxy handoff, then forwards the container's
// attach stream until the engine closes it or ctx is cancelled. The
// container is torn down exactly once before Attach returns, on every path.
func (a *Attacher) Attach(ctx context.Context, guard Teardowner, proxy ProxyWaiter) (err error) {
	h := guard.Handle()
	logger := log.WithContainer(h.Name, h.ID)

	defer func() {
		if tdErr := guard.Teardown(); tdErr != nil && err == nil {
			err = tdErr
		}
	}()

	if proxy != nil {
		logger.Info().Msg("waiting for proxy connection")
		waitErr := proxy.Wait(ctx)
		if closeErr := proxy.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("failed to release proxy sockets")
		}
		if waitErr != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("interrupted while waiting for proxy connection")
				return nil
			}
			return fmt.Errorf("proxy handoff failed for container %s: %w", h.ID, waitErr)
		}
	}

	conn, err := a.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("unable to connect to engine for attach: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(a.timeout)); err != nil {
		return fmt.Errorf("unable to set write deadline: %w", err)
	}
	if _, err := fmt.Fprintf(conn, requestFormat, h.ID); err != nil {
		return fmt.Errorf("unable to send attach request for container %s: %w", h.ID, err)
	}
	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		return fmt.Errorf("unable to clear write deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Info().Msg("attached to container")
	n := a.forward(conn)

	if ctx.Err() != nil {
		logger.Info().Int64("bytes", n).Msg("interrupted, detaching")
	} else {
		logger.Info().Int64("bytes", n).Msg("attach stream closed")
	}
	return nil
}

// forward copies every chunk read from r to the sink until r fails.
func (a *Attacher) forward(r io.Reader) int64 {
	buf := make([]byte, ChunkSize)
	var total int64
	sinkFailed := false

	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			metrics.AttachBytesTotal.Add(float64(n))
			if _, werr := a.sink.Write(buf[:n]); werr != nil && !sinkFailed {
				sinkFailed = true
				attachLog := log.WithComponent("attach")
				attachLog.Warn().Err(werr).Msg("log sink write failed")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				attachLog := log.WithComponent("attach")
				attachLog.Debug().Err(err).Msg("attach read ended")
			}
			return total
		}
	}
}
