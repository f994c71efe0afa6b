package types

import "strings"

// Workload is the declarative description of a vassal, resolved once per
// bridge invocation from the supervisor's attribute store.
type Workload struct {
	Name        string   // Unique key, used as the container name
	Image       string   // Image reference
	Cmd         []string // Vassal argv
	WorkingDir  string
	Hostname    string
	Memory      int64 // Bytes, 0 = unset
	MemorySwap  int64 // Bytes, 0 = unset
	User        string
	Env         []string // KEY=value, declared order
	Mounts      []string // hostpath[:containerpath[:mode]]
	DNS         []string
	Ports       []string // [hostip:]hostport:containerport[/proto]
	NetworkMode string
	Proxy       ProxyEndpoint
	CIDFile     string // Optional path receiving the container id
	Socket      string // Optional pre-bound socket (host:port or unix path)
}

// ProxyEndpoint is the filesystem channel the supervisor uses to reach the
// process inside the container.
type ProxyEndpoint struct {
	HostPath      string // Path bound on the supervisor side
	ContainerPath string // Same socket as seen inside the container
}

// ParseProxyEndpoint splits a "hostside:containerside" spec at the first
// colon. A spec without a colon names one path used on both sides.
func ParseProxyEndpoint(spec string) ProxyEndpoint {
	if host, container, ok := strings.Cut(spec, ":"); ok {
		return ProxyEndpoint{HostPath: host, ContainerPath: container}
	}
	return ProxyEndpoint{HostPath: spec, ContainerPath: spec}
}

// Bind returns the bind-mount spec mapping the host path into the container.
func (p ProxyEndpoint) Bind() string {
	return p.HostPath + ":" + p.ContainerPath
}

// ContainerHandle is a transient reference to a container created for a
// workload. The engine owns the container; the handle is gone once the
// teardown delete succeeds.
type ContainerHandle struct {
	ID   string // Engine-assigned identifier
	Name string // Workload name that created it
}

// ShortID returns the first 12 characters of the id, as the engine CLI shows it.
func (h *ContainerHandle) ShortID() string {
	if len(h.ID) > 12 {
		return h.ID[:12]
	}
	return h.ID
}
