package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a workload.
var ErrNotFound = errors.New("record not found")

// State is the last lifecycle step a bridge recorded for its container
type State string

const (
	StateCreated State = "created"
	StateStarted State = "started"
)

// Record ties a workload name to the container a bridge created for it.
// It lets an operator find containers whose bridge died without cleaning up.
type Record struct {
	Name        string    `json:"name"`
	ContainerID string    `json:"container_id"`
	Image       string    `json:"image"`
	SessionID   string    `json:"session_id"`
	PID         int       `json:"pid"`
	State       State     `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store defines the container ledger operations
type Store interface {
	Put(record *Record) error
	Get(name string) (*Record, error)
	List() ([]*Record, error)
	Delete(name string) error
}
