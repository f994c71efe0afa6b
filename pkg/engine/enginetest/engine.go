// Package enginetest serves a scripted container engine on a unix socket
// for tests.
package enginetest

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/config"
)

// Call is one request received by the fake engine.
type Call struct {
	Method string
	Path   string // Path plus raw query
	Body   []byte
}

// Decode unmarshals the request body into v.
func (c Call) Decode(v interface{}) error {
	return json.Unmarshal(c.Body, v)
}

// Engine is an HTTP server bound to a temporary unix socket that records
// every request before handing it to the scripted handler.
type Engine struct {
	SocketPath string

	server  *httptest.Server
	handler http.Handler

	mu    sync.Mutex
	calls []Call
}

// New starts a fake engine. It is closed when the test ends.
func New(t testing.TB, handler http.Handler) *Engine {
	t.Helper()

	// Short directory: unix socket paths are limited to ~108 bytes.
	dir, err := os.MkdirTemp("", "eng")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	e := &Engine{
		SocketPath: filepath.Join(dir, "engine.sock"),
		handler:    handler,
	}

	l, err := net.Listen("unix", e.SocketPath)
	if err != nil {
		t.Fatalf("failed to listen on %s: %v", e.SocketPath, err)
	}

	e.server = httptest.NewUnstartedServer(http.HandlerFunc(e.serve))
	e.server.Listener.Close()
	e.server.Listener = l
	e.server.Start()
	t.Cleanup(e.server.Close)

	return e
}

// Config returns a bridge configuration pointing at the fake engine.
func (e *Engine) Config() *config.Config {
	cfg := config.Default()
	cfg.Enabled = true
	cfg.SocketPath = e.SocketPath
	cfg.Timeout = 2 * time.Second
	cfg.ConflictBackoff = time.Millisecond
	return cfg
}

// Calls returns a copy of the requests received so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallsTo returns the recorded requests with the given method and path.
func (e *Engine) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	e.mu.Lock()
	e.calls = append(e.calls, Call{Method: r.Method, Path: r.URL.RequestURI(), Body: body})
	e.mu.Unlock()

	e.handler.ServeHTTP(w, r)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status writes an empty reply with the given status.
func Status(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// Routes maps "METHOD path?query" keys to handlers and answers 404 otherwise.
type Routes map[string]http.HandlerFunc

func (rt Routes) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := rt[r.Method+" "+r.URL.RequestURI()]; ok {
		h(w, r)
		return
	}
	JSON(w, http.StatusNotFound, map[string]string{"message": "no such route"})
}
