package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/config"
	"github.com/cuemby/vassal-bridge/pkg/engine"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/cuemby/vassal-bridge/pkg/metrics"
	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/docker/docker/api/types/container"
)

// maxConflictDelay caps the pause between destroy-and-recreate cycles.
const maxConflictDelay = 2 * time.Second

// ErrTooManyConflicts is returned when the name stays taken after the
// configured number of destroy-and-recreate cycles.
var ErrTooManyConflicts = errors.New("container name still in use")

// Controller creates and starts the container of a workload.
type Controller struct {
	engine     Engine
	destroyer  *Destroyer
	ledger     Ledger
	maxRetries int
	backoff    time.Duration
}

// NewController creates a lifecycle controller
func NewController(cfg *config.Config, eng Engine, d *Destroyer) *Controller {
	return &Controller{
		engine:     eng,
		destroyer:  d,
		ledger:     nopLedger{},
		maxRetries: cfg.MaxConflictRetries,
		backoff:    cfg.ConflictBackoff,
	}
}

// WithLedger records created and started containers in l
func (c *Controller) WithLedger(l Ledger) *Controller {
	if l != nil {
		c.ledger = l
	}
	return c
}

// CreateAndStart creates the workload's container, clearing a stale
// container holding the same name, records its id and starts it.
//
// The returned handle is non-nil whenever a container was created, even
// when an error is returned as well, so the caller can tear it down. A
// create call already sent to the engine is not cancelled by ctx: its
// reply is read and the handle returned along with ctx's error.
func (c *Controller) CreateAndStart(ctx context.Context, w *types.Workload) (*types.ContainerHandle, error) {
	timer := metrics.NewTimer()

	createReq, err := NewCreateRequest(w)
	if err != nil {
		return nil, fmt.Errorf("unable to build create request for vassal %s: %w", w.Name, err)
	}
	startReq, err := NewStartRequest(w)
	if err != nil {
		return nil, fmt.Errorf("unable to build start request for vassal %s: %w", w.Name, err)
	}

	handle, err := c.create(ctx, w, createReq)
	if handle == nil {
		return nil, err
	}

	if recErr := c.recordID(w, handle); recErr != nil {
		return handle, recErr
	}
	if err != nil {
		return handle, err
	}

	if err := c.start(ctx, handle, startReq); err != nil {
		return handle, err
	}

	timer.ObserveDuration(metrics.StartupDuration)
	return handle, nil
}

func (c *Controller) create(ctx context.Context, w *types.Workload, req *CreateRequest) (*types.ContainerHandle, error) {
	logger := log.WithWorkload(w.Name)
	path := "/containers/create?name=" + url.QueryEscape(w.Name)

	// Bounded by the client timeout only.
	callCtx := context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.engine.Call(callCtx, http.MethodPost, path, req)
		if err != nil {
			return nil, fmt.Errorf("unable to create container for vassal %s: %w", w.Name, err)
		}

		switch resp.StatusCode {
		case http.StatusCreated:
			var created container.CreateResponse
			if err := resp.Decode(&created); err != nil {
				return nil, fmt.Errorf("cannot find container id for vassal %s: %w", w.Name, err)
			}
			if created.ID == "" {
				return nil, fmt.Errorf("invalid container id for vassal %s: %w", w.Name, engine.ErrMalformedResponse)
			}
			for _, warning := range created.Warnings {
				logger.Warn().Str("container_id", created.ID).Msg(warning)
			}
			metrics.ContainersCreatedTotal.Inc()
			return &types.ContainerHandle{ID: created.ID, Name: w.Name}, ctx.Err()

		default:
			err := engine.NewStatusError(http.MethodPost, path, resp)
			if !engine.IsConflict(err) {
				return nil, fmt.Errorf("unable to create container for vassal %s: %w", w.Name, err)
			}
			if c.maxRetries > 0 && attempt >= c.maxRetries {
				return nil, fmt.Errorf("vassal %s after %d attempts: %w", w.Name, attempt+1, ErrTooManyConflicts)
			}
			logger.Warn().Int("attempt", attempt+1).Msg("container name in use, destroying existing container")
			if err := c.destroyer.Destroy(ctx, w.Name, ""); err != nil {
				return nil, fmt.Errorf("unable to clear name conflict for vassal %s: %w", w.Name, err)
			}
			metrics.ConflictRetriesTotal.Inc()
			if err := sleepContext(ctx, c.conflictDelay(attempt)); err != nil {
				return nil, err
			}
		}
	}
}

// conflictDelay grows linearly with the attempt number; the first retry
// is immediate.
func (c *Controller) conflictDelay(attempt int) time.Duration {
	d := c.backoff * time.Duration(attempt)
	if d > maxConflictDelay {
		d = maxConflictDelay
	}
	return d
}

func (c *Controller) recordID(w *types.Workload, h *types.ContainerHandle) error {
	logger := log.WithContainer(h.Name, h.ID)

	if w.CIDFile != "" {
		if err := os.WriteFile(w.CIDFile, []byte(h.ID+"\n"), 0644); err != nil {
			return fmt.Errorf("unable to write cid file %s: %w", w.CIDFile, err)
		}
		logger.Debug().Str("cidfile", w.CIDFile).Msg("container id recorded")
	}

	if err := c.ledger.Created(h, w.Image); err != nil {
		logger.Warn().Err(err).Msg("failed to record container in ledger")
	}
	return nil
}

func (c *Controller) start(ctx context.Context, h *types.ContainerHandle, req *StartRequest) error {
	logger := log.WithContainer(h.Name, h.ID)
	path := "/containers/" + h.ID + "/start"

	resp, err := c.engine.Call(ctx, http.MethodPost, path, req)
	if err != nil {
		return fmt.Errorf("unable to start container %s (%s): %w", h.ID, h.Name, err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unable to start container %s (%s): %w", h.ID, h.Name,
			engine.NewStatusError(http.MethodPost, path, resp))
	}

	if err := c.ledger.Started(h); err != nil {
		logger.Warn().Err(err).Msg("failed to update ledger record")
	}
	logger.Info().Int("status", resp.StatusCode).Msg("container started")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
