package lifecycle

import (
	"errors"
	"os"

	"github.com/cuemby/vassal-bridge/pkg/storage"
	"github.com/cuemby/vassal-bridge/pkg/types"
)

// Ledger is told about every container the lifecycle creates, starts and
// deletes.
type Ledger interface {
	Created(h *types.ContainerHandle, image string) error
	Started(h *types.ContainerHandle) error
	Forget(name, id string) error
}

type nopLedger struct{}

func (nopLedger) Created(*types.ContainerHandle, string) error { return nil }
func (nopLedger) Started(*types.ContainerHandle) error         { return nil }
func (nopLedger) Forget(string, string) error                  { return nil }

// StoreLedger records lifecycle steps in a storage.Store.
type StoreLedger struct {
	Store     storage.Store
	SessionID string
}

// Created stores a fresh record for the container.
func (l *StoreLedger) Created(h *types.ContainerHandle, image string) error {
	return l.Store.Put(&storage.Record{
		Name:        h.Name,
		ContainerID: h.ID,
		Image:       image,
		SessionID:   l.SessionID,
		PID:         os.Getpid(),
		State:       storage.StateCreated,
	})
}

// Started marks the container's record as started.
func (l *StoreLedger) Started(h *types.ContainerHandle) error {
	rec, err := l.Store.Get(h.Name)
	if err != nil {
		return err
	}
	rec.State = storage.StateStarted
	return l.Store.Put(rec)
}

// Forget drops the record if it still points at the deleted container.
func (l *StoreLedger) Forget(name, id string) error {
	rec, err := l.Store.Get(name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.ContainerID != id {
		return nil
	}
	return l.Store.Delete(name)
}
