package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/vassal-bridge/pkg/attrs"
	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/docker/go-units"
)

// Attribute keys read from the supervisor's attribute store.
const (
	AttrImage       = "docker-image"
	AttrProxy       = "docker-proxy"
	AttrSocket      = "docker-socket"
	AttrWorkdir     = "docker-workdir"
	AttrHostname    = "docker-hostname"
	AttrMemory      = "docker-memory"
	AttrSwap        = "docker-swap"
	AttrUser        = "docker-user"
	AttrCIDFile     = "docker-cidfile"
	AttrNetworkMode = "docker-network-mode"
	AttrEnv         = "docker-env"
	AttrMount       = "docker-mount"
	AttrDNS         = "docker-dns"
	AttrPort        = "docker-port"
)

// ErrNoImage means the workload declares no image. Outside required mode
// the bridge treats it as "not a container workload" and steps aside.
var ErrNoImage = errors.New("no image attribute specified")

// AttrError reports an attribute value that cannot be used.
type AttrError struct {
	Key   string
	Value string
	Err   error
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("invalid %s attribute %q: %v", e.Key, e.Value, e.Err)
}

func (e *AttrError) Unwrap() error {
	return e.Err
}

// Options tune descriptor resolution.
type Options struct {
	// VassalsDir holds the default proxy sockets. Empty means the
	// working directory.
	VassalsDir string
}

// Resolve builds the workload description of vassal name from its
// attributes. argv becomes the container command.
func Resolve(name string, argv []string, store attrs.Store, opts Options) (*types.Workload, error) {
	if name == "" {
		return nil, errors.New("vassal name is required")
	}

	image, ok := store.Get(AttrImage)
	if !ok || image == "" {
		return nil, fmt.Errorf("vassal %s: %w", name, ErrNoImage)
	}

	w := &types.Workload{
		Name:        name,
		Image:       image,
		Cmd:         argv,
		WorkingDir:  single(store, AttrWorkdir),
		Hostname:    single(store, AttrHostname),
		User:        single(store, AttrUser),
		NetworkMode: single(store, AttrNetworkMode),
		CIDFile:     single(store, AttrCIDFile),
		Socket:      single(store, AttrSocket),
		Env:         store.GetMulti(AttrEnv),
		Mounts:      store.GetMulti(AttrMount),
		DNS:         store.GetMulti(AttrDNS),
		Ports:       store.GetMulti(AttrPort),
	}

	var err error
	if w.Memory, err = bytesAttr(store, AttrMemory); err != nil {
		return nil, err
	}
	if w.MemorySwap, err = bytesAttr(store, AttrSwap); err != nil {
		return nil, err
	}

	for _, spec := range w.Ports {
		if _, err := types.ParsePorts([]string{spec}); err != nil {
			return nil, &AttrError{Key: AttrPort, Value: spec, Err: err}
		}
	}

	if spec := single(store, AttrProxy); spec != "" {
		w.Proxy = types.ParseProxyEndpoint(spec)
	} else {
		w.Proxy, err = DefaultProxy(name, opts.VassalsDir)
		if err != nil {
			return nil, err
		}
	}

	return w, nil
}

// DefaultProxy places the proxy socket next to the vassal file on the host
// and at the container's root inside it.
func DefaultProxy(name, dir string) (types.ProxyEndpoint, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return types.ProxyEndpoint{}, fmt.Errorf("unable to build proxy socket path: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return types.ProxyEndpoint{}, fmt.Errorf("unable to build proxy socket path: %w", err)
	}

	return types.ProxyEndpoint{
		HostPath:      abs + ".sock",
		ContainerPath: "/" + name + ".sock",
	}, nil
}

func single(store attrs.Store, key string) string {
	v, _ := store.Get(key)
	return v
}

// bytesAttr accepts plain byte counts as well as "512m" style sizes.
func bytesAttr(store attrs.Store, key string) (int64, error) {
	v, ok := store.Get(key)
	if !ok || v == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(v)
	if err != nil {
		return 0, &AttrError{Key: key, Value: v, Err: err}
	}
	return n, nil
}
