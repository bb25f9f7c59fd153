package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/STEEPR/internal/config"
	"github.com/copyleftdev/STEEPR/internal/logging"
	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/ascent"
	"github.com/copyleftdev/STEEPR/internal/optimization/fields"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

// Logger defines the logging interface used by the server.
// This allows us to be flexible with our logging implementation.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job tracks one gradient-ascent run started through the API. It is guarded
// by the server's job mutex.
type Job struct {
	ID            string
	FieldName     string
	Status        string // "pending", "running", "completed", "failed", "cancelled"
	StartTime     time.Time
	EndTime       *time.Time
	Progress      float64
	MaxIterations int
	Result        *optimization.Result
	Err           string
	CancelFunc    context.CancelFunc
	LastUpdated   time.Time
}

// Server implements the HTTP and JSON-RPC API of the optimization service.
// It manages ascent jobs and provides endpoints to start, monitor, and
// cancel them, plus field metadata and heatmap sampling for display shells.
type Server struct {
	cfg    *config.Config
	logger Logger

	jobs   map[string]*Job
	jobsMu sync.RWMutex // Protects the jobs map
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*Job),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/fields", s.handleFields)
		r.Get("/fields/{name}/grid", s.handleGrid)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startRequest carries the parameters of a run-start request. Zero values
// fall back to the field's reference run and the configured defaults.
type startRequest struct {
	Field         string    `json:"field"`
	Seed          []float64 `json:"seed,omitempty"`
	StepSize      float64   `json:"step_size,omitempty"`
	MaxIterations int       `json:"max_iterations,omitempty"`
	GradLimit     float64   `json:"grad_limit,omitempty"`
}

// startJob validates a start request, creates the engine and launches the
// run in a goroutine.
func (s *Server) startJob(req startRequest) (map[string]interface{}, error) {
	spec, err := fields.Lookup(req.Field)
	if err != nil {
		return nil, err
	}

	seed := spec.Seed
	if len(req.Seed) > 0 {
		if len(req.Seed) != spec.Dim {
			return nil, fmt.Errorf("field %q needs a %d-dimensional seed, got %d components",
				spec.Name, spec.Dim, len(req.Seed))
		}
		seed = vector.Of(req.Seed...)
	}

	runConfig := optimization.Config{
		Field:         spec.Field,
		Seed:          seed,
		StepSize:      s.stepSizeFor(req, spec),
		MaxIterations: req.MaxIterations,
		GradLimit:     req.GradLimit,
	}
	if runConfig.MaxIterations == 0 {
		runConfig.MaxIterations = s.cfg.Ascent.MaxIterations
	}
	if runConfig.GradLimit == 0 {
		runConfig.GradLimit = s.cfg.Ascent.GradLimit
	}

	engine, err := ascent.New(runConfig)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("run_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	job := &Job{
		ID:            id,
		FieldName:     spec.Name,
		Status:        "pending",
		StartTime:     time.Now(),
		MaxIterations: runConfig.MaxIterations,
		CancelFunc:    cancel,
		LastUpdated:   time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[id] = job
	s.jobsMu.Unlock()

	jobsStarted.Inc()
	s.logger.Info("Optimization started", map[string]interface{}{
		"optimization_id": id,
		"field":           spec.Name,
		"step_size":       runConfig.StepSize,
	})

	go s.runJob(ctx, job, engine)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          "pending",
	}, nil
}

// stepSizeFor resolves the initial step size of a run: the request wins,
// then the field's reference step, then the configured default.
func (s *Server) stepSizeFor(req startRequest, spec fields.Spec) float64 {
	if req.StepSize != 0 {
		return req.StepSize
	}
	if spec.StepSize != 0 {
		return spec.StepSize
	}
	return s.cfg.Ascent.StepSize
}

// runJob executes one ascent run in a goroutine and records its outcome.
func (s *Server) runJob(ctx context.Context, job *Job, engine *ascent.Engine) {
	s.jobsMu.Lock()
	job.Status = "running"
	job.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	engine.Observer = func(state ascent.State) {
		s.jobsMu.Lock()
		job.Progress = float64(state.Index) / float64(job.MaxIterations)
		job.LastUpdated = time.Now()
		s.jobsMu.Unlock()

		s.logger.Debug("Iteration", map[string]interface{}{
			"optimization_id": job.ID,
			"index":           state.Index,
			"step_size":       state.StepSize,
			"value":           state.Current.Value,
			"grad_norm":       state.CurrentGrad.Norm(),
		})
	}

	result, err := engine.Optimize(ctx, optimization.Config{})

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	switch {
	case err == nil:
		job.Status = "completed"
		job.Result = result
		job.Progress = 1
		jobsFinished.WithLabelValues("completed").Inc()
		jobIterations.Observe(float64(result.Iterations))
		s.logger.Info("Optimization completed", map[string]interface{}{
			"optimization_id": job.ID,
			"iterations":      result.Iterations,
			"converged":       result.Converged,
			"value":           result.Final.Value,
		})
	case errors.Is(err, context.Canceled):
		job.Status = "cancelled"
		jobsFinished.WithLabelValues("cancelled").Inc()
	default:
		job.Status = "failed"
		job.Err = err.Error()
		jobsFinished.WithLabelValues("failed").Inc()
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": job.ID,
			"error":           err.Error(),
		})
	}
}

// jobStatus builds the status payload of a job. Result and history are only
// included once the run reached a terminal state.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	response := map[string]interface{}{
		"optimization_id": job.ID,
		"field":           job.FieldName,
		"status":          job.Status,
		"progress":        job.Progress,
		"start_time":      job.StartTime.Format(time.RFC3339),
		"last_update":     job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		response["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Err != "" {
		response["error"] = job.Err
	}
	if job.Result != nil {
		response["result"] = map[string]interface{}{
			"final":      job.Result.Final,
			"best":       job.Result.Best,
			"iterations": job.Result.Iterations,
			"converged":  job.Result.Converged,
		}
		response["history"] = job.Result.History
	}

	return response, nil
}

// cancelJob cancels a running job. Terminal jobs cannot be cancelled.
func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}

	switch job.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel optimization with status: %s", job.Status)
	}

	if job.CancelFunc != nil {
		job.CancelFunc()
	}

	// runJob observes the cancelled context and records the finished-jobs
	// metric once the engine returns.
	job.Status = "cancelled"
	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})

	return nil
}

// handleOptimize handles POST /api/v1/optimize for starting a new run.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startJob(req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}

// handleFields handles GET /api/v1/fields: the registered objectives and
// their reference runs.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	list := make([]map[string]interface{}, 0, len(fields.Names()))
	for _, name := range fields.Names() {
		spec, err := fields.Lookup(name)
		if err != nil {
			continue
		}
		list = append(list, map[string]interface{}{
			"name":      spec.Name,
			"dim":       spec.Dim,
			"seed":      spec.Seed,
			"step_size": spec.StepSize,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"fields": list,
	})
}

// handleGrid handles GET /api/v1/fields/{name}/grid: samples a 2-D field
// over a grid for heatmap rendering. Query parameters cx, cy, resolution
// and tick override the defaults.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	spec, err := fields.Lookup(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if spec.Dim != 2 {
		http.Error(w, fmt.Sprintf("field %q is %d-dimensional, heatmap sampling needs 2", name, spec.Dim), http.StatusBadRequest)
		return
	}

	center := spec.Seed
	query := r.URL.Query()
	if query.Get("cx") != "" || query.Get("cy") != "" {
		cx, errX := strconv.ParseFloat(query.Get("cx"), 64)
		cy, errY := strconv.ParseFloat(query.Get("cy"), 64)
		if errX != nil || errY != nil {
			http.Error(w, "cx and cy must both be numbers", http.StatusBadRequest)
			return
		}
		center = vector.Of(cx, cy)
	}

	resolution := 0
	if raw := query.Get("resolution"); raw != "" {
		resolution, err = strconv.Atoi(raw)
		if err != nil || resolution < 1 {
			http.Error(w, "resolution must be a positive integer", http.StatusBadRequest)
			return
		}
		if resolution > s.cfg.Grid.MaxResolution {
			http.Error(w, fmt.Sprintf("resolution exceeds maximum of %d", s.cfg.Grid.MaxResolution), http.StatusBadRequest)
			return
		}
	}

	tick := 0.0
	if raw := query.Get("tick"); raw != "" {
		tick, err = strconv.ParseFloat(raw, 64)
		if err != nil || tick <= 0 {
			http.Error(w, "tick must be a positive number", http.StatusBadRequest)
			return
		}
	}

	grid, err := fields.Sample(spec.Field, center, resolution, tick)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	gridsSampled.Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(grid)
}

// Close cleans up resources
func (s *Server) Close() error {
	// Cancel all running jobs
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}
