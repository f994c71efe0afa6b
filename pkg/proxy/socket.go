package proxy

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Socket is a bound, listening socket owned by the bridge. Unix sockets
// remember their path so Close can unlink it.
type Socket struct {
	file *os.File
	path string
}

// BindUnix binds a stream socket at path with the given backlog, replacing
// a stale socket file. A non-zero mode is applied to the socket file.
func BindUnix(path string, backlog int, mode uint32) (*Socket, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to remove stale socket %s: %w", path, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to create unix socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unable to bind unix socket %s: %w", path, err)
	}

	if mode != 0 {
		if err := os.Chmod(path, os.FileMode(mode)); err != nil {
			unix.Close(fd)
			os.Remove(path)
			return nil, fmt.Errorf("unable to chmod socket %s: %w", path, err)
		}
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, fmt.Errorf("unable to listen on %s: %w", path, err)
	}

	return &Socket{file: os.NewFile(uintptr(fd), path), path: path}, nil
}

// BindTCP binds a stream socket on a "[host]:port" address.
func BindTCP(addr string, backlog int) (*Socket, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid tcp address %s: %w", addr, err)
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); tcpAddr.IP == nil || ip4 != nil {
		inet4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(inet4.Addr[:], ip4)
		sa = inet4
	} else {
		family = unix.AF_INET6
		inet6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(inet6.Addr[:], tcpAddr.IP.To16())
		sa = inet6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to create tcp socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unable to set SO_REUSEADDR on %s: %w", addr, err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unable to bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("unable to listen on %s: %w", addr, err)
	}

	return &Socket{file: os.NewFile(uintptr(fd), addr)}, nil
}

// BindSocket binds spec as a TCP address when it contains a colon and as
// a unix socket path otherwise.
func BindSocket(spec string, backlog int, mode uint32) (*Socket, error) {
	if strings.Contains(spec, ":") {
		return BindTCP(spec, backlog)
	}
	return BindUnix(spec, backlog, mode)
}

// Fd returns the listening descriptor
func (s *Socket) Fd() int {
	return int(s.file.Fd())
}

// Path returns the unix socket path, empty for TCP sockets
func (s *Socket) Path() string {
	return s.path
}

// Listener returns a net.Listener on a duplicate of the descriptor.
func (s *Socket) Listener() (net.Listener, error) {
	return net.FileListener(s.file)
}

// Close closes the descriptor and unlinks a unix socket path.
func (s *Socket) Close() error {
	err := s.file.Close()
	if s.path != "" {
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			err = rmErr
		}
	}
	return err
}
