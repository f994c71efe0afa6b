package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/cuemby/vassal-bridge/pkg/log"
	"golang.org/x/sys/unix"
)

// Handshake is the payload carrying the supervisor descriptors.
const Handshake = "uwsgi-emperor"

// Bridge hands the supervisor's control descriptors to the process in the
// container. The process connects to the proxy socket, receives the
// descriptors and talks to the supervisor directly from then on.
type Bridge struct {
	proxy   *Socket
	raw     *Socket
	control []*os.File
}

// NewBridge creates a handoff over the proxy socket. raw may be nil;
// when set its descriptor is sent after the control descriptors.
func NewBridge(proxy, raw *Socket, control ...*os.File) *Bridge {
	return &Bridge{proxy: proxy, raw: raw, control: control}
}

// Wait accepts one connection on the proxy socket and sends the
// descriptors over it. It returns early when ctx is cancelled.
func (b *Bridge) Wait(ctx context.Context) error {
	ln, err := b.proxy.Listener()
	if err != nil {
		return fmt.Errorf("unable to listen on proxy socket: %w", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("unable to accept proxy connection: %w", err)
	}
	defer conn.Close()

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return errors.New("proxy connection is not a unix socket")
	}

	fds := b.fds()
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	if _, _, err := uc.WriteMsgUnix([]byte(Handshake), oob, nil); err != nil {
		return fmt.Errorf("unable to send descriptors: %w", err)
	}

	proxyLog := log.WithComponent("proxy")
	proxyLog.Debug().
		Str("path", b.proxy.Path()).
		Int("fds", len(fds)).
		Msg("descriptors handed over")
	return nil
}

func (b *Bridge) fds() []int {
	fds := make([]int, 0, len(b.control)+1)
	for _, f := range b.control {
		fds = append(fds, int(f.Fd()))
	}
	if b.raw != nil {
		fds = append(fds, b.raw.Fd())
	}
	return fds
}

// Close releases everything the bridge holds: the proxy socket and its
// path, the control descriptors and the raw socket.
func (b *Bridge) Close() error {
	var errs []error
	if err := b.proxy.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, f := range b.control {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.raw != nil {
		if err := b.raw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
