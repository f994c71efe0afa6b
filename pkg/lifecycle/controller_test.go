package lifecycle

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/engine"
	"github.com/cuemby/vassal-bridge/pkg/engine/enginetest"
	"github.com/cuemby/vassal-bridge/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// happyEngine answers a clean create (201, Id "abc") and start (204).
func happyEngine() enginetest.Routes {
	return enginetest.Routes{
		"POST /containers/create?name=w1": func(w http.ResponseWriter, r *http.Request) {
			enginetest.JSON(w, http.StatusCreated, map[string]interface{}{"Id": "abc", "Warnings": nil})
		},
		"POST /containers/abc/start": func(w http.ResponseWriter, r *http.Request) {
			enginetest.Status(w, http.StatusNoContent)
		},
	}
}

func newTestController(eng *enginetest.Engine) *Controller {
	cfg := eng.Config()
	client := engine.NewClient(cfg)
	return NewController(cfg, client, NewDestroyer(client))
}

func TestCreateAndStart_EndToEnd(t *testing.T) {
	eng := enginetest.New(t, happyEngine())
	ctrl := newTestController(eng)

	w := testWorkload()
	w.Ports = []string{"9000:80"}

	handle, err := ctrl.CreateAndStart(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "abc", handle.ID)
	assert.Equal(t, "w1", handle.Name)

	calls := eng.Calls()
	require.Len(t, calls, 2)

	var create map[string]interface{}
	require.NoError(t, calls[0].Decode(&create))
	assert.Equal(t, "x", create["Image"])
	assert.Equal(t, map[string]interface{}{"80/tcp": map[string]interface{}{}}, create["ExposedPorts"])
	assert.Equal(t, true, create["Tty"])

	assert.Equal(t, "/containers/abc/start", calls[1].Path)
	var start map[string]interface{}
	require.NoError(t, calls[1].Decode(&start))
	assert.Equal(t, map[string]interface{}{
		"80/tcp": []interface{}{map[string]interface{}{"HostPort": "9000"}},
	}, start["PortBindings"])
}

func TestCreateAndStart_ConflictDestroysExistingOnce(t *testing.T) {
	var creates atomic.Int32
	routes := happyEngine()
	routes["POST /containers/create?name=w1"] = func(w http.ResponseWriter, r *http.Request) {
		if creates.Add(1) == 1 {
			enginetest.JSON(w, http.StatusConflict, map[string]string{"message": "name in use"})
			return
		}
		enginetest.JSON(w, http.StatusCreated, map[string]string{"Id": "abc"})
	}
	routes["GET /containers/json?all=1"] = func(w http.ResponseWriter, r *http.Request) {
		enginetest.JSON(w, http.StatusOK, []map[string]interface{}{
			{"Id": "stale", "Names": []string{"/w1"}},
		})
	}
	routes["POST /containers/stale/stop?t=3"] = func(w http.ResponseWriter, r *http.Request) {
		enginetest.Status(w, http.StatusNoContent)
	}
	routes["DELETE /containers/stale"] = func(w http.ResponseWriter, r *http.Request) {
		enginetest.Status(w, http.StatusNoContent)
	}

	eng := enginetest.New(t, routes)
	ctrl := newTestController(eng)

	handle, err := ctrl.CreateAndStart(context.Background(), testWorkload())
	require.NoError(t, err)
	assert.Equal(t, "abc", handle.ID)

	var paths []string
	for _, c := range eng.Calls() {
		paths = append(paths, c.Method+" "+c.Path)
	}
	assert.Equal(t, []string{
		"POST /containers/create?name=w1",
		"GET /containers/json?all=1",
		"POST /containers/stale/stop?t=3",
		"DELETE /containers/stale",
		"POST /containers/create?name=w1",
		"POST /containers/abc/start",
	}, paths)
}

func TestCreateAndStart_ConflictDestroyFailureIsFatal(t *testing.T) {
	routes := enginetest.Routes{
		"POST /containers/create?name=w1": func(w http.ResponseWriter, r *http.Request) {
			enginetest.Status(w, http.StatusConflict)
		},
		"GET /containers/json?all=1": func(w http.ResponseWriter, r *http.Request) {
			enginetest.JSON(w, http.StatusOK, []map[string]interface{}{
				{"Id": "stale", "Names": []string{"/w1"}},
			})
		},
		"POST /containers/stale/stop?t=3": func(w http.ResponseWriter, r *http.Request) {
			enginetest.Status(w, http.StatusInternalServerError)
		},
	}
	eng := enginetest.New(t, routes)
	ctrl := newTestController(eng)

	handle, err := ctrl.CreateAndStart(context.Background(), testWorkload())
	require.Error(t, err)
	assert.Nil(t, handle)
	assert.Len(t, eng.CallsTo(http.MethodPost, "/containers/create?name=w1"), 1)
}

func TestCreateAndStart_ConflictRetryCap(t *testing.T) {
	routes := enginetest.Routes{
		"POST /containers/create?name=w1": func(w http.ResponseWriter, r *http.Request) {
			enginetest.Status(w, http.StatusConflict)
		},
		"GET /containers/json?all=1": func(w http.ResponseWriter, r *http.Request) {
			enginetest.JSON(w, http.StatusOK, []map[string]interface{}{
				{"Id": "stale", "Names": []string{"/w1"}},
			})
		},
		"POST /containers/stale/stop?t=3": func(w http.ResponseWriter, r *http.Request) {
			enginetest.Status(w, http.StatusNotModified)
		},
		"DELETE /containers/stale": func(w http.ResponseWriter, r *http.Request) {
			enginetest.Status(w, http.StatusNoContent)
		},
	}
	eng := enginetest.New(t, routes)
	cfg := eng.Config()
	cfg.MaxConflictRetries = 3
	client := engine.NewClient(cfg)
	ctrl := NewController(cfg, client, NewDestroyer(client))

	_, err := ctrl.CreateAndStart(context.Background(), testWorkload())
	assert.ErrorIs(t, err, ErrTooManyConflicts)
	assert.Len(t, eng.CallsTo(http.MethodPost, "/containers/create?name=w1"), 4)
	assert.Len(t, eng.CallsTo(http.MethodDelete, "/containers/stale"), 3)
}

func TestCreateAndStart_CreateFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
	}{
		{name: "server error", status: http.StatusInternalServerError, body: map[string]string{"message": "boom"}},
		{name: "image missing", status: http.StatusNotFound, body: map[string]string{"message": "no such image"}},
		{name: "created without id", status: http.StatusCreated, body: map[string]string{}},
		{name: "created with empty body", status: http.StatusCreated, body: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New(t, enginetest.Routes{
				"POST /containers/create?name=w1": func(w http.ResponseWriter, r *http.Request) {
					if tt.body == nil {
						enginetest.Status(w, tt.status)
						return
					}
					enginetest.JSON(w, tt.status, tt.body)
				},
			})
			ctrl := newTestController(eng)

			handle, err := ctrl.CreateAndStart(context.Background(), testWorkload())
			assert.Error(t, err)
			assert.Nil(t, handle)
			assert.Len(t, eng.Calls(), 1)
		})
	}
}

func TestCreateAndStart_StartFailureReturnsHandle(t *testing.T) {
	routes := happyEngine()
	routes["POST /containers/abc/start"] = func(w http.ResponseWriter, r *http.Request) {
		enginetest.JSON(w, http.StatusInternalServerError, map[string]string{"message": "port taken"})
	}
	eng := enginetest.New(t, routes)
	ctrl := newTestController(eng)

	handle, err := ctrl.CreateAndStart(context.Background(), testWorkload())
	require.Error(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, "abc", handle.ID)
	assert.True(t, engine.HasStatus(err, http.StatusInternalServerError))
}

func TestCreateAndStart_CancelDuringCreateReturnsHandle(t *testing.T) {
	routes := happyEngine()
	routes["POST /containers/create?name=w1"] = func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		enginetest.JSON(w, http.StatusCreated, map[string]string{"Id": "abc"})
	}
	eng := enginetest.New(t, routes)
	ctrl := newTestController(eng)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	handle, err := ctrl.CreateAndStart(ctx, testWorkload())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, handle)
	assert.Equal(t, "abc", handle.ID)
	assert.Empty(t, eng.CallsTo(http.MethodPost, "/containers/abc/start"))
}

func TestCreateAndStart_CancelledBeforeCreateSendsNothing(t *testing.T) {
	eng := enginetest.New(t, happyEngine())
	ctrl := newTestController(eng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handle, err := ctrl.CreateAndStart(ctx, testWorkload())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, handle)
	assert.Empty(t, eng.Calls())
}

func TestCreateAndStart_WritesCIDFileBeforeStart(t *testing.T) {
	cidFile := filepath.Join(t.TempDir(), "w1.cid")

	routes := happyEngine()
	var seenAtStart atomic.Value
	routes["POST /containers/abc/start"] = func(w http.ResponseWriter, r *http.Request) {
		data, _ := os.ReadFile(cidFile)
		seenAtStart.Store(string(data))
		enginetest.Status(w, http.StatusNoContent)
	}
	eng := enginetest.New(t, routes)
	ctrl := newTestController(eng)

	w := testWorkload()
	w.CIDFile = cidFile

	_, err := ctrl.CreateAndStart(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", seenAtStart.Load())
}

func TestCreateAndStart_CIDFileFailureReturnsHandle(t *testing.T) {
	eng := enginetest.New(t, happyEngine())
	ctrl := newTestController(eng)

	w := testWorkload()
	w.CIDFile = filepath.Join(t.TempDir(), "missing", "w1.cid")

	handle, err := ctrl.CreateAndStart(context.Background(), w)
	require.Error(t, err)
	require.NotNil(t, handle)
	assert.Empty(t, eng.CallsTo(http.MethodPost, "/containers/abc/start"))
}

func TestCreateAndStart_InvalidPortCreatesNothing(t *testing.T) {
	eng := enginetest.New(t, happyEngine())
	ctrl := newTestController(eng)

	w := testWorkload()
	w.Ports = []string{"not-a-port"}

	_, err := ctrl.CreateAndStart(context.Background(), w)
	assert.Error(t, err)
	assert.Empty(t, eng.Calls())
}

func TestCreateAndStart_RecordsLedger(t *testing.T) {
	eng := enginetest.New(t, happyEngine())
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	ctrl := newTestController(eng).WithLedger(&StoreLedger{Store: store, SessionID: "s1"})

	_, err = ctrl.CreateAndStart(context.Background(), testWorkload())
	require.NoError(t, err)

	rec, err := store.Get("w1")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ContainerID)
	assert.Equal(t, "x", rec.Image)
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, storage.StateStarted, rec.State)
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestConflictDelay(t *testing.T) {
	ctrl := &Controller{backoff: 500 * time.Millisecond}

	assert.Zero(t, ctrl.conflictDelay(0))
	assert.Equal(t, ctrl.backoff, ctrl.conflictDelay(1))
	assert.Equal(t, 2*ctrl.backoff, ctrl.conflictDelay(2))
	assert.Equal(t, maxConflictDelay, ctrl.conflictDelay(100))
}
