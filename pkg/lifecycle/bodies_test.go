package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkload() *types.Workload {
	return &types.Workload{
		Name:  "w1",
		Image: "x",
		Cmd:   []string{"uwsgi", "--ini", "app.ini"},
		Proxy: types.ProxyEndpoint{HostPath: "/etc/vassals/w1.sock", ContainerPath: "/w1.sock"},
	}
}

func TestNewCreateRequest_Minimal(t *testing.T) {
	req, err := NewCreateRequest(testWorkload())
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"Image": "x",
		"AttachStdin": true,
		"OpenStdin": true,
		"Tty": true,
		"AttachStdout": true,
		"AttachStderr": true,
		"Env": ["UWSGI_EMPEROR_PROXY=/w1.sock"],
		"ExposedPorts": {},
		"Cmd": ["uwsgi", "--ini", "app.ini"]
	}`, string(data))
}

func TestNewCreateRequest_AllFields(t *testing.T) {
	w := testWorkload()
	w.WorkingDir = "/app"
	w.Hostname = "web"
	w.Memory = 512 * 1024 * 1024
	w.MemorySwap = 1024 * 1024 * 1024
	w.User = "www-data"
	w.Env = []string{"A=1", "B=2"}
	w.Ports = []string{"8080:80", "127.0.0.1:8443:443"}

	req, err := NewCreateRequest(w)
	require.NoError(t, err)

	assert.Equal(t, "/app", req.WorkingDir)
	assert.Equal(t, "web", req.Hostname)
	assert.Equal(t, int64(512*1024*1024), req.Memory)
	assert.Equal(t, int64(1024*1024*1024), req.MemorySwap)
	assert.Equal(t, "www-data", req.User)
	assert.Equal(t, []string{"A=1", "B=2", "UWSGI_EMPEROR_PROXY=/w1.sock"}, req.Env)
	assert.Equal(t, nat.PortSet{"80/tcp": {}, "443/tcp": {}}, req.ExposedPorts)

	// The declared env list is not modified
	assert.Equal(t, []string{"A=1", "B=2"}, w.Env)
}

func TestPortSpecRoundTrip(t *testing.T) {
	tests := []struct {
		spec         string
		wantBindings string
	}{
		{spec: "8080:80", wantBindings: `{"80/tcp":[{"HostPort":"8080"}]}`},
		{spec: "127.0.0.1:8080:80", wantBindings: `{"80/tcp":[{"HostIp":"127.0.0.1","HostPort":"8080"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			w := testWorkload()
			w.Ports = []string{tt.spec}

			create, err := NewCreateRequest(w)
			require.NoError(t, err)
			exposed, err := json.Marshal(create.ExposedPorts)
			require.NoError(t, err)
			assert.JSONEq(t, `{"80/tcp":{}}`, string(exposed))

			start, err := NewStartRequest(w)
			require.NoError(t, err)
			bindings, err := json.Marshal(start.PortBindings)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantBindings, string(bindings))
		})
	}
}

func TestNewStartRequest(t *testing.T) {
	w := testWorkload()
	w.Mounts = []string{"/srv/app:/app:ro", "/data"}
	w.DNS = []string{"8.8.8.8"}
	w.NetworkMode = "host"
	w.Ports = []string{"9000:80", "9001:80"}

	req, err := NewStartRequest(w)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/app:/app:ro", "/data", "/etc/vassals/w1.sock:/w1.sock"}, req.Binds)
	assert.Equal(t, []string{"8.8.8.8"}, req.Dns)
	assert.Equal(t, "host", req.NetworkMode)
	assert.Equal(t, []PortBinding{{HostPort: "9000"}, {HostPort: "9001"}}, req.PortBindings["80/tcp"])
}

func TestNewStartRequest_EmptyLists(t *testing.T) {
	req, err := NewStartRequest(testWorkload())
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"Binds": ["/etc/vassals/w1.sock:/w1.sock"],
		"Dns": [],
		"PortBindings": {}
	}`, string(data))
}

func TestBodies_InvalidPort(t *testing.T) {
	w := testWorkload()
	w.Ports = []string{"80"}

	_, err := NewCreateRequest(w)
	assert.Error(t, err)

	_, err = NewStartRequest(w)
	assert.Error(t, err)
}
