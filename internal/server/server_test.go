package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/STEEPR/internal/config"
	"github.com/copyleftdev/STEEPR/internal/logging"
	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/ascent"
	"github.com/copyleftdev/STEEPR/internal/optimization/fields"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"

	cfg.Ascent.MaxIterations = 25
	cfg.Ascent.GradLimit = 1e-4
	cfg.Ascent.StepSize = 1.0

	cfg.Grid.MaxResolution = 128

	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.NewLogger(&logging.Config{
		Level:  "error",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

func testRouter(t *testing.T) (*Server, chi.Router) {
	t.Helper()

	srv := NewServer(testConfig(t), testLogger(t))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

// waitForTerminal polls the status endpoint until the job leaves the
// running states.
func waitForTerminal(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var status map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))

		switch status["status"] {
		case "completed", "failed", "cancelled":
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	assert.NotNil(t, srv, "Server should be created")
}

func TestRegisterRoutes(t *testing.T) {
	_, r := testRouter(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"GET", "/api/v1/fields", true},
		{"GET", "/api/v1/fields/sincos/grid", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			// Match probes the routing table directly; serving a request
			// would conflate a router 404 with a handler's own 404 (e.g.
			// status of an unknown job).
			rctx := chi.NewRouteContext()
			assert.Equal(t, tt.shouldExist, r.Match(rctx, tt.method, tt.path))
		})
	}
}

func TestOptimizeEndToEnd(t *testing.T) {
	_, r := testRouter(t)

	body := bytes.NewBufferString(`{"field": "sincos"}`)
	req := httptest.NewRequest("POST", "/api/v1/optimize", body)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&accepted))
	id, ok := accepted["optimization_id"].(string)
	require.True(t, ok, "response should carry an optimization_id")

	status := waitForTerminal(t, r, id)
	assert.Equal(t, "completed", status["status"])
	assert.Equal(t, "sincos", status["field"])

	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok, "terminal status should carry a result")
	assert.Equal(t, true, result["converged"])

	history, ok := status["history"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, history)
}

func TestOptimizeQuadraticReachesMaximum(t *testing.T) {
	_, r := testRouter(t)

	body := bytes.NewBufferString(`{"field": "quadratic", "seed": [0, 0, 0], "step_size": 0.1}`)
	req := httptest.NewRequest("POST", "/api/v1/optimize", body)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&accepted))

	status := waitForTerminal(t, r, accepted["optimization_id"].(string))
	require.Equal(t, "completed", status["status"])

	result := status["result"].(map[string]interface{})
	final := result["final"].(map[string]interface{})
	components := final["vector"].([]interface{})
	require.Len(t, components, 3)
	for i, want := range []float64{1, 1, 2} {
		assert.InDelta(t, want, components[i].(float64), 1e-3)
	}
}

func TestOptimizeRejectsBadRequests(t *testing.T) {
	_, r := testRouter(t)

	for name, body := range map[string]string{
		"unknown field":      `{"field": "nope"}`,
		"wrong seed dim":     `{"field": "sincos", "seed": [1]}`,
		"negative step size": `{"field": "sincos", "step_size": -1}`,
		"not json":           `{"field"`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := testRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/status/run_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelUnknownJob(t *testing.T) {
	_, r := testRouter(t)

	req := httptest.NewRequest("DELETE", "/api/v1/optimization/run_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelTerminalJobFails(t *testing.T) {
	srv, r := testRouter(t)

	result, err := srv.startJob(startRequest{Field: "sincos"})
	require.NoError(t, err)
	id := result["optimization_id"].(string)
	waitForTerminal(t, r, id)

	err = srv.cancelJob(id)
	assert.Error(t, err, "terminal jobs cannot be cancelled")
}

func TestCancelRecordsSingleFinish(t *testing.T) {
	srv, _ := testRouter(t)

	// A slow field keeps the run alive long enough to cancel it mid-flight.
	slow := func(x vector.Vector) float64 {
		time.Sleep(2 * time.Millisecond)
		return x.At(0)
	}
	engine, err := ascent.New(optimization.Config{Field: slow, Seed: vector.Of(0)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:            "run_cancel_once",
		FieldName:     "slope",
		Status:        "pending",
		StartTime:     time.Now(),
		MaxIterations: 25,
		CancelFunc:    cancel,
		LastUpdated:   time.Now(),
	}
	srv.jobsMu.Lock()
	srv.jobs[job.ID] = job
	srv.jobsMu.Unlock()

	before := testutil.ToFloat64(jobsFinished.WithLabelValues("cancelled"))

	done := make(chan struct{})
	go func() {
		srv.runJob(ctx, job, engine)
		close(done)
	}()

	require.Eventually(t, func() bool {
		srv.jobsMu.RLock()
		defer srv.jobsMu.RUnlock()
		return job.Status == "running"
	}, time.Second, time.Millisecond)

	require.NoError(t, srv.cancelJob(job.ID))
	<-done

	assert.Equal(t, "cancelled", job.Status)
	assert.Equal(t, before+1, testutil.ToFloat64(jobsFinished.WithLabelValues("cancelled")),
		"one cancelled run must count once")
}

func TestStepSizeDefaults(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))

	spec := fields.Spec{StepSize: 0.5}
	assert.Equal(t, 2.0, srv.stepSizeFor(startRequest{StepSize: 2}, spec))
	assert.Equal(t, 0.5, srv.stepSizeFor(startRequest{}, spec))

	// A field without a reference step falls back to the configured default.
	assert.Equal(t, 1.0, srv.stepSizeFor(startRequest{}, fields.Spec{}))
}

func TestFieldsEndpoint(t *testing.T) {
	_, r := testRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/fields", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Fields []struct {
			Name     string    `json:"name"`
			Dim      int       `json:"dim"`
			Seed     []float64 `json:"seed"`
			StepSize float64   `json:"step_size"`
		} `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.Len(t, response.Fields, 2)
	assert.Equal(t, "quadratic", response.Fields[0].Name)
	assert.Equal(t, "sincos", response.Fields[1].Name)
	assert.Equal(t, []float64{0.2, -2.1}, response.Fields[1].Seed)
}

func TestGridEndpoint(t *testing.T) {
	_, r := testRouter(t)

	t.Run("defaults", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/fields/sincos/grid", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var grid struct {
			Resolution int         `json:"resolution"`
			Tick       float64     `json:"tick"`
			Values     [][]float64 `json:"values"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&grid))
		assert.Equal(t, 64, grid.Resolution)
		assert.Len(t, grid.Values, 64)
	})

	t.Run("custom center and resolution", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/fields/sincos/grid?cx=1.5&cy=-0.5&resolution=16&tick=0.1", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var grid struct {
			OriginX    float64 `json:"origin_x"`
			Resolution int     `json:"resolution"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&grid))
		assert.Equal(t, 16, grid.Resolution)
		assert.InDelta(t, 1.5-8*0.1, grid.OriginX, 1e-12)
	})

	t.Run("3-D field rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/fields/quadratic/grid", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/fields/nope/grid", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("oversized resolution rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/fields/sincos/grid?resolution=4096", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestJSONRPCStartAndStatus(t *testing.T) {
	_, r := testRouter(t)

	body := bytes.NewBufferString(`{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "optimization.start",
		"params": [{"field": "quadratic"}]
	}`)
	req := httptest.NewRequest("POST", "/rpc", body)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Result map[string]interface{} `json:"result"`
		Error  map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.Nil(t, response.Error)
	id := response.Result["optimization_id"].(string)

	waitForTerminal(t, r, id)

	body = bytes.NewBufferString(`{
		"jsonrpc": "2.0",
		"id": 2,
		"method": "optimization.status",
		"params": [{"optimization_id": "` + id + `"}]
	}`)
	req = httptest.NewRequest("POST", "/rpc", body)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.Nil(t, response.Error)
	assert.Equal(t, "completed", response.Result["status"])
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := testRouter(t)

	for name, body := range map[string]string{
		"wrong version":  `{"jsonrpc": "1.0", "id": 1, "method": "optimization.start"}`,
		"unknown method": `{"jsonrpc": "2.0", "id": 1, "method": "optimization.nope"}`,
		"missing params": `{"jsonrpc": "2.0", "id": 1, "method": "optimization.start"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/rpc", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
			assert.Contains(t, response, "error")
		})
	}
}

func TestRespondWithError(t *testing.T) {
	srv, _ := testRouter(t)

	rr := httptest.NewRecorder()
	srv.respondWithError(rr, -32600, "Invalid Request", "abc")

	assert.Equal(t, http.StatusOK, rr.Code, "JSON-RPC errors ride on 200 responses")

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response should contain error object")
	assert.Equal(t, float64(-32600), errObj["code"])
	assert.Equal(t, "Invalid Request", errObj["message"])
	assert.Equal(t, "abc", response["id"])
}

func TestClose(t *testing.T) {
	srv, _ := testRouter(t)
	assert.NoError(t, srv.Close())
}
