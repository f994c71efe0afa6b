package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/cuemby/vassal-bridge/pkg/engine"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/cuemby/vassal-bridge/pkg/metrics"
	"github.com/cuemby/vassal-bridge/pkg/types"
)

// StopGracePeriod is the t= value, in seconds, passed to the stop endpoint.
const StopGracePeriod = 3

// Engine is the subset of the engine client used by the lifecycle.
type Engine interface {
	Call(ctx context.Context, method, path string, body interface{}) (*engine.Response, error)
	Find(ctx context.Context, name string) (string, error)
}

// Destroyer stops and deletes containers.
type Destroyer struct {
	engine Engine
	ledger Ledger
}

// NewDestroyer creates a teardown sequencer on top of an engine client
func NewDestroyer(eng Engine) *Destroyer {
	return &Destroyer{engine: eng, ledger: nopLedger{}}
}

// WithLedger makes the destroyer forget ledger records of deleted containers
func (d *Destroyer) WithLedger(l Ledger) *Destroyer {
	if l != nil {
		d.ledger = l
	}
	return d
}

// Destroy stops then deletes a container. With an empty id the container
// is looked up by name first. Stop accepts 204 and 304, delete only 204;
// a failed stop skips the delete.
func (d *Destroyer) Destroy(ctx context.Context, name, id string) error {
	if id == "" {
		found, err := d.engine.Find(ctx, name)
		if err != nil {
			return fmt.Errorf("unable to get container id for %s: %w", name, err)
		}
		id = found
	}

	logger := log.WithContainer(name, id)

	stopPath := fmt.Sprintf("/containers/%s/stop?t=%d", id, StopGracePeriod)
	resp, err := d.engine.Call(ctx, http.MethodPost, stopPath, nil)
	if err != nil {
		return fmt.Errorf("unable to stop container %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotModified {
		return fmt.Errorf("unable to stop container %s: %w", id,
			engine.NewStatusError(http.MethodPost, stopPath, resp))
	}
	logger.Info().Int("status", resp.StatusCode).Msg("container stopped")

	deletePath := "/containers/" + id
	resp, err = d.engine.Call(ctx, http.MethodDelete, deletePath, nil)
	if err != nil {
		return fmt.Errorf("unable to delete container %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unable to delete container %s: %w", id,
			engine.NewStatusError(http.MethodDelete, deletePath, resp))
	}
	logger.Info().Msg("container deleted")
	metrics.ContainersDestroyedTotal.Inc()

	if err := d.ledger.Forget(name, id); err != nil {
		logger.Warn().Err(err).Msg("failed to remove ledger record")
	}

	return nil
}

// Guard runs the teardown of one container at most once, whichever exit
// path gets there first.
type Guard struct {
	destroyer *Destroyer
	handle    *types.ContainerHandle

	mu  sync.Mutex
	ran bool
	err error
}

// NewGuard registers teardown for a freshly created container
func NewGuard(d *Destroyer, h *types.ContainerHandle) *Guard {
	return &Guard{destroyer: d, handle: h}
}

// Handle returns the guarded container
func (g *Guard) Handle() *types.ContainerHandle {
	return g.handle
}

// Teardown stops and deletes the container on the first call and returns
// the same result on every later call. It uses its own context: the run
// context is usually already cancelled by the time teardown runs.
func (g *Guard) Teardown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ran {
		return g.err
	}
	g.ran = true

	logger := log.WithContainer(g.handle.Name, g.handle.ID)
	logger.Info().Msg("destroying container")

	g.err = g.destroyer.Destroy(context.Background(), g.handle.Name, g.handle.ID)
	if g.err != nil {
		logger.Error().Err(g.err).Msg("container teardown failed")
	}
	return g.err
}

// Done reports whether teardown already ran
func (g *Guard) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ran
}
