package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cuemby/vassal-bridge/pkg/attach"
	"github.com/cuemby/vassal-bridge/pkg/attrs"
	"github.com/cuemby/vassal-bridge/pkg/config"
	"github.com/cuemby/vassal-bridge/pkg/descriptor"
	"github.com/cuemby/vassal-bridge/pkg/engine"
	"github.com/cuemby/vassal-bridge/pkg/lifecycle"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/cuemby/vassal-bridge/pkg/proxy"
	"github.com/cuemby/vassal-bridge/pkg/storage"
	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LabelPrefix precedes the workload name in the bridge's process label.
const LabelPrefix = "[vassal-bridge] "

var (
	// ErrDisabled is returned by Run when the engine integration is off.
	ErrDisabled = errors.New("container engine integration disabled")

	// ErrSkipped is returned by Run for a workload without an image
	// outside required mode. The caller exits cleanly.
	ErrSkipped = errors.New("not a container workload")
)

// Runner wires the components for one bridge process.
type Runner struct {
	cfg        *config.Config
	client     *engine.Client
	destroyer  *lifecycle.Destroyer
	controller *lifecycle.Controller
	attacher   *attach.Attacher
	store      storage.Store
	sessionID  string

	mu     sync.Mutex
	phase  Phase
	handle *types.ContainerHandle
}

// Phase is where a Runner is in the workload's lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopped  Phase = "stopped"
)

// NewRunner creates a runner from cfg. With a state directory configured
// every container is tracked in the ledger.
func NewRunner(cfg *config.Config) (*Runner, error) {
	r := &Runner{
		cfg:       cfg,
		client:    engine.NewClient(cfg),
		sessionID: uuid.New().String(),
		phase:     PhaseIdle,
	}
	r.attacher = attach.NewAttacher(cfg, r.client)

	var ledger lifecycle.Ledger
	if cfg.StateDir != "" {
		store, err := storage.NewBoltStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open container ledger: %w", err)
		}
		r.store = store
		ledger = &lifecycle.StoreLedger{Store: store, SessionID: r.sessionID}
	}

	r.destroyer = lifecycle.NewDestroyer(r.client).WithLedger(ledger)
	r.controller = lifecycle.NewController(cfg, r.client, r.destroyer).WithLedger(ledger)
	return r, nil
}

// SessionID identifies this bridge process in logs and ledger records
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Phase returns the current lifecycle phase
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Container returns the running container, nil outside PhaseRunning
func (r *Runner) Container() *types.ContainerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

func (r *Runner) setPhase(p Phase, h *types.ContainerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
	r.handle = h
}

// Request is one workload handed over by the supervisor.
type Request struct {
	Name  string
	Argv  []string
	Attrs attrs.Store

	// Control holds the supervisor's control descriptors. The runner owns
	// them from here on and closes them once they are handed over.
	Control []*os.File
}

// Run drives the workload's container from creation to teardown. It
// returns once the container's stream ends or ctx is cancelled, and the
// container has been destroyed.
func (r *Runner) Run(ctx context.Context, req Request) error {
	if !r.cfg.Enabled {
		closeAll(req.Control)
		return ErrDisabled
	}

	logger := log.WithWorkload(req.Name).With().Str("session", r.sessionID).Logger()

	w, err := descriptor.Resolve(req.Name, req.Argv, req.Attrs, descriptor.Options{VassalsDir: r.cfg.VassalsDir})
	if errors.Is(err, descriptor.ErrNoImage) && !r.cfg.Required {
		logger.Info().Msg("no image attribute specified, skipping vassal")
		closeAll(req.Control)
		return ErrSkipped
	}
	if err != nil {
		closeAll(req.Control)
		return err
	}

	logger.Info().Str("label", LabelPrefix+w.Name).Str("image", w.Image).Msg("starting vassal bridge")
	if err := setProcessName(w.Name); err != nil {
		logger.Warn().Err(err).Msg("failed to set process name")
	}

	r.setPhase(PhaseStarting, nil)
	defer r.setPhase(PhaseStopped, nil)

	handoff, err := r.bind(w, req.Control)
	if err != nil {
		return err
	}

	handle, err := r.controller.CreateAndStart(ctx, w)
	if handle == nil {
		r.release(logger, handoff)
		return err
	}

	guard := lifecycle.NewGuard(r.destroyer, handle)
	if err != nil {
		r.release(logger, handoff)
		if tdErr := guard.Teardown(); tdErr != nil {
			logger.Error().Err(tdErr).Msg("failed to destroy container after startup failure")
		}
		return err
	}

	logger.Info().Str("container_id", handle.ShortID()).Msg("container running")
	r.setPhase(PhaseRunning, handle)
	return r.attacher.Attach(ctx, guard, handoff)
}

// bind prepares the optional raw socket and the proxy socket before any
// container exists, so a binding failure leaves nothing behind.
func (r *Runner) bind(w *types.Workload, control []*os.File) (*proxy.Bridge, error) {
	var raw *proxy.Socket
	if w.Socket != "" {
		s, err := proxy.BindSocket(w.Socket, r.cfg.ListenQueue, r.cfg.ChmodSocket)
		if err != nil {
			closeAll(control)
			return nil, fmt.Errorf("error binding docker-socket %s: %w", w.Socket, err)
		}
		raw = s
	}

	proxySock, err := proxy.BindUnix(w.Proxy.HostPath, r.cfg.ListenQueue, r.cfg.ChmodSocket)
	if err != nil {
		if raw != nil {
			raw.Close()
		}
		closeAll(control)
		return nil, fmt.Errorf("unable to bind proxy socket: %w", err)
	}

	return proxy.NewBridge(proxySock, raw, control...), nil
}

func (r *Runner) release(logger zerolog.Logger, b *proxy.Bridge) {
	if err := b.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to release proxy sockets")
	}
}

// Destroy stops and deletes the container holding name.
func (r *Runner) Destroy(ctx context.Context, name string) error {
	return r.destroyer.Destroy(ctx, name, "")
}

// Entry is a ledger record together with what the engine says about it.
type Entry struct {
	storage.Record
	Live bool // A container with this name exists in the engine
}

// List returns the containers recorded in the ledger, checking each one
// against the engine.
func (r *Runner) List(ctx context.Context) ([]Entry, error) {
	if r.store == nil {
		return nil, errors.New("no state directory configured")
	}

	records, err := r.store.List()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		id, err := r.client.Find(ctx, rec.Name)
		switch {
		case err == nil:
			entries = append(entries, Entry{Record: *rec, Live: id == rec.ContainerID})
		case errors.Is(err, engine.ErrNotFound):
			entries = append(entries, Entry{Record: *rec})
		default:
			return nil, err
		}
	}
	return entries, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
