package lifecycle

import (
	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/docker/go-connections/nat"
)

// ProxyEnv is the variable telling the process inside the container where
// its control channel lives.
const ProxyEnv = "UWSGI_EMPEROR_PROXY"

// CreateRequest is the body of POST /containers/create. The session is
// always an interactively attached TTY.
type CreateRequest struct {
	Image        string
	AttachStdin  bool
	OpenStdin    bool
	Tty          bool
	AttachStdout bool
	AttachStderr bool
	WorkingDir   string `json:",omitempty"`
	Hostname     string `json:",omitempty"`
	Memory       int64  `json:",omitempty"`
	MemorySwap   int64  `json:",omitempty"`
	User         string `json:",omitempty"`
	Env          []string
	ExposedPorts nat.PortSet
	Cmd          []string `json:",omitempty"`
}

// StartRequest is the body of POST /containers/<id>/start.
type StartRequest struct {
	Binds        []string
	Dns          []string
	PortBindings map[nat.Port][]PortBinding
	NetworkMode  string `json:",omitempty"`
}

// PortBinding is one host endpoint of a published container port. HostIp
// is left out when the spec did not name one.
type PortBinding struct {
	HostIP   string `json:"HostIp,omitempty"`
	HostPort string
}

// NewCreateRequest assembles the create body for a workload.
func NewCreateRequest(w *types.Workload) (*CreateRequest, error) {
	mappings, err := types.ParsePorts(w.Ports)
	if err != nil {
		return nil, err
	}

	env := make([]string, 0, len(w.Env)+1)
	env = append(env, w.Env...)
	env = append(env, ProxyEnv+"="+w.Proxy.ContainerPath)

	exposed := nat.PortSet{}
	for _, m := range mappings {
		exposed[m.Port] = struct{}{}
	}

	return &CreateRequest{
		Image:        w.Image,
		AttachStdin:  true,
		OpenStdin:    true,
		Tty:          true,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   w.WorkingDir,
		Hostname:     w.Hostname,
		Memory:       w.Memory,
		MemorySwap:   w.MemorySwap,
		User:         w.User,
		Env:          env,
		ExposedPorts: exposed,
		Cmd:          w.Cmd,
	}, nil
}

// NewStartRequest assembles the start body for a workload. The proxy
// socket is always bind-mounted after the declared mounts.
func NewStartRequest(w *types.Workload) (*StartRequest, error) {
	mappings, err := types.ParsePorts(w.Ports)
	if err != nil {
		return nil, err
	}

	binds := make([]string, 0, len(w.Mounts)+1)
	binds = append(binds, w.Mounts...)
	binds = append(binds, w.Proxy.Bind())

	dns := append([]string{}, w.DNS...)

	bindings := make(map[nat.Port][]PortBinding, len(mappings))
	for _, m := range mappings {
		bindings[m.Port] = append(bindings[m.Port], PortBinding{
			HostIP:   m.Binding.HostIP,
			HostPort: m.Binding.HostPort,
		})
	}

	return &StartRequest{
		Binds:        binds,
		Dns:          dns,
		PortBindings: bindings,
		NetworkMode:  w.NetworkMode,
	}, nil
}
