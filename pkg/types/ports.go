package types

import (
	"fmt"

	"github.com/docker/go-connections/nat"
)

// ParsePorts expands "[hostip:]hostport:containerport[/proto]" specs into
// port mappings, in declaration order. Ranges expand to one mapping per port.
// A spec that does not publish a host port is rejected.
func ParsePorts(specs []string) ([]nat.PortMapping, error) {
	var mappings []nat.PortMapping
	for _, spec := range specs {
		parsed, err := nat.ParsePortSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid port spec %q: %w", spec, err)
		}
		for _, m := range parsed {
			if m.Binding.HostPort == "" {
				return nil, fmt.Errorf("invalid port spec %q: no host port", spec)
			}
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}
