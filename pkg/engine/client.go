package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/config"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/cuemby/vassal-bridge/pkg/metrics"
	"github.com/rs/zerolog"
)

// The host part is ignored, every connection goes to the unix socket.
const baseURL = "http://docker"

// Response is a buffered engine reply.
type Response struct {
	StatusCode int

	// Body is nil when the reply was empty or not a JSON document.
	Body json.RawMessage
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Client talks to the container engine's REST API over its unix socket.
// Every call opens a fresh connection.
type Client struct {
	socketPath string
	timeout    time.Duration
	debug      bool
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates an engine client from the bridge configuration
func NewClient(cfg *config.Config) *Client {
	c := &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
		debug:      cfg.Debug,
		logger:     log.WithComponent("engine"),
	}

	c.httpClient = &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return c.Dial(ctx)
			},
			DisableKeepAlives: true,
		},
		Timeout: cfg.Timeout,
	}

	return c
}

// Dial opens a raw connection to the engine socket, bounded by the
// configured timeout.
func (c *Client) Dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	return d.DialContext(ctx, "unix", c.socketPath)
}

// Call sends one request and buffers the whole reply. A non-nil body is
// sent as JSON. Any status is returned as-is; the caller decides which ones
// it accepts.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var payload []byte
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body for %s %s: %w", method, path, err)
		}
		payload = data
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	timer := metrics.NewTimer()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.EngineRequestsTotal.WithLabelValues(method, "error").Inc()
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("error sending engine request")
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	timer.ObserveDurationVec(metrics.EngineRequestDuration, method)
	if err != nil {
		metrics.EngineRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	metrics.EngineRequestsTotal.WithLabelValues(method, strconv.Itoa(httpResp.StatusCode)).Inc()

	// --docker-debug output ignores the log level.
	if c.debug {
		c.logger.Info().
			Str("method", method).
			Str("path", path).
			Int("status", httpResp.StatusCode).
			Bytes("request", payload).
			Bytes("response", raw).
			Msg("engine debug")
	}

	resp := &Response{StatusCode: httpResp.StatusCode}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && json.Valid(raw) {
		resp.Body = raw
	}
	return resp, nil
}
