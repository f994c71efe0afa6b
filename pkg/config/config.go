package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultSocketPath is the default container engine socket
	DefaultSocketPath = "/var/run/docker.sock"

	// DefaultTimeout bounds connect and total transfer time of every engine call
	DefaultTimeout = 4 * time.Second

	// DefaultListenQueue is the backlog requested for bound sockets
	DefaultListenQueue = 100

	// DefaultMaxConflictRetries caps destroy-and-recreate cycles on 409
	DefaultMaxConflictRetries = 16

	// DefaultConflictBackoff is the per-attempt delay step between conflict retries
	DefaultConflictBackoff = 100 * time.Millisecond
)

// Config is the bridge configuration. One value is built from the command
// line and handed to every component constructor.
type Config struct {
	// Enabled turns the engine integration on. Without it the bridge does nothing.
	Enabled bool

	// Required makes a missing per-workload configuration fatal instead of
	// a logged skip. Required implies Enabled.
	Required bool

	// Debug logs every engine request/response pair verbatim.
	Debug bool

	// SocketPath is the engine's unix socket.
	SocketPath string

	// Timeout applies to connect and total-call time of engine calls.
	Timeout time.Duration

	// VassalsDir is where default proxy sockets are placed ("<dir>/<name>.sock").
	VassalsDir string

	// ListenQueue is the backlog for sockets bound by the bridge.
	ListenQueue int

	// ChmodSocket, when non-zero, is applied to bound unix sockets.
	ChmodSocket uint32

	// MaxConflictRetries caps create retries after 409 Conflict (0 = no cap).
	MaxConflictRetries int

	// ConflictBackoff is multiplied by the attempt number between retries.
	ConflictBackoff time.Duration

	// StateDir, when set, holds the container ledger database.
	StateDir string

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string
}

// Default returns the configuration used when no flags are given.
func Default() *Config {
	return &Config{
		SocketPath:         DefaultSocketPath,
		Timeout:            DefaultTimeout,
		ListenQueue:        DefaultListenQueue,
		MaxConflictRetries: DefaultMaxConflictRetries,
		ConflictBackoff:    DefaultConflictBackoff,
	}
}

// Validate normalizes derived fields and rejects impossible values.
func (c *Config) Validate() error {
	if c.Required {
		c.Enabled = true
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid socket timeout %s", c.Timeout)
	}
	if c.ListenQueue <= 0 {
		c.ListenQueue = DefaultListenQueue
	}
	if c.MaxConflictRetries < 0 {
		return errors.New("max conflict retries cannot be negative")
	}
	if c.ConflictBackoff < 0 {
		return errors.New("conflict backoff cannot be negative")
	}
	return nil
}
