// Package server exposes the path optimizer as an HTTP and JSON-RPC job
// service. Jobs run asynchronously; clients poll for status and fetch the
// interpolated energy profile once a job reaches a terminal state.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mitric-lab/NEB/internal/config"
	"github.com/mitric-lab/NEB/internal/logging"
	"github.com/mitric-lab/NEB/internal/neb"
	"github.com/mitric-lab/NEB/internal/neb/band"
	"github.com/mitric-lab/NEB/internal/neb/surfaces"
)

// Logger is the logging surface the server needs. It matches
// *logging.Logger but keeps the server testable with lighter fakes.
type Logger interface {
	Debug(msg string, fields ...logging.Fields)
	Info(msg string, fields ...logging.Fields)
	Warn(msg string, fields ...logging.Fields)
	Error(msg string, fields ...logging.Fields)
	WithFields(fields logging.Fields) *logging.Logger
}

// PathJob tracks one asynchronous path optimization. Access is guarded by
// the server's job mutex.
type PathJob struct {
	ID          string
	Status      string // "pending", "running", "converged", "exhausted", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Step        int
	Result      *neb.Result
	Error       string
	LastUpdated time.Time

	optimizer *band.PathOptimizer
	cancel    context.CancelFunc
}

// Server manages path optimization jobs.
type Server struct {
	cfg    *config.Config
	logger Logger

	jobsMu sync.RWMutex
	jobs   map[string]*PathJob
}

// NewServer creates a server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*PathJob),
	}
}

// RegisterRoutes mounts the REST and JSON-RPC endpoints.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/paths", s.handleSubmit)
		r.Get("/paths/{id}", s.handleStatus)
		r.Get("/paths/{id}/profile", s.handleProfile)
		r.Delete("/paths/{id}", s.handleCancel)
	})
	r.Post("/rpc", s.handleJSONRPC)
}

// findRequest is the submission payload for a path optimization job.
type findRequest struct {
	// Surface names a built-in potential-energy surface.
	Surface string `json:"surface"`
	// Images are the seed configurations, at least educt and product.
	Images [][]float64 `json:"images"`
	// States are the electronic state labels, one per image.
	States []int `json:"states"`
	// ImagesPerSegment, when >= 2, seeds the chain by linear interpolation.
	ImagesPerSegment int `json:"images_per_segment,omitempty"`

	Tolerance         float64 `json:"tolerance"`
	MaxSteps          int     `json:"max_steps"`
	TimeStep          float64 `json:"time_step"`
	Friction          float64 `json:"friction"`
	OptimizeEndpoints bool    `json:"optimize_endpoints"`
}

// countingEvaluator wraps an evaluator with a prometheus counter.
type countingEvaluator struct {
	inner neb.Evaluator
}

func (c countingEvaluator) Evaluate(ctx context.Context, conf []float64, state int, res neb.Resources) (float64, []float64, error) {
	evaluatorCalls.Inc()
	return c.inner.Evaluate(ctx, conf, state, res)
}

// startJob validates the request, registers a job and launches the
// relaxation in a goroutine.
func (s *Server) startJob(req findRequest) (*PathJob, error) {
	surface, err := surfaces.Lookup(req.Surface)
	if err != nil {
		return nil, err
	}
	if req.MaxSteps > s.cfg.NEB.MaxSteps {
		return nil, fmt.Errorf("max_steps %d exceeds the configured cap %d", req.MaxSteps, s.cfg.NEB.MaxSteps)
	}

	job := &PathJob{
		ID:          uuid.NewString(),
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}

	observer := neb.ObserverFunc(func(step int, images [][]float64, energies []float64) {
		relaxationSteps.Inc()
		s.jobsMu.Lock()
		job.Step = step + 1
		job.LastUpdated = time.Now()
		s.jobsMu.Unlock()
	})

	optimizer, err := band.New(band.Config{
		ForceConstant:       s.cfg.NEB.ForceConstant,
		SwitchForceConstant: s.cfg.NEB.SwitchForceConstant,
		Mass:                s.cfg.NEB.Mass,
		Workers:             s.cfg.NEB.Workers,
		Resources: neb.Resources{
			Procs:  s.cfg.NEB.ProcsPerImage,
			Memory: s.cfg.NEB.MemPerImage,
		},
		Observer: observer,
		Logger:   logging.NewZapLogger(s.logger.WithFields(logging.Fields{"path_id": job.ID})),
	}, countingEvaluator{inner: surface})
	if err != nil {
		return nil, err
	}
	if err := optimizer.SetImages(req.Images, req.States); err != nil {
		return nil, err
	}
	if req.ImagesPerSegment > 0 {
		if err := optimizer.AddImagesLinearly(req.ImagesPerSegment); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.optimizer = optimizer
	job.cancel = cancel

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	jobsStarted.Inc()
	go s.runJob(ctx, job, band.Options{
		Tolerance:         req.Tolerance,
		MaxSteps:          req.MaxSteps,
		TimeStep:          req.TimeStep,
		Friction:          req.Friction,
		OptimizeEndpoints: req.OptimizeEndpoints,
	})
	return job, nil
}

// runJob executes the relaxation and records the terminal state.
func (s *Server) runJob(ctx context.Context, job *PathJob, opts band.Options) {
	s.jobsMu.Lock()
	job.Status = "running"
	job.LastUpdated = time.Now()
	s.jobsMu.Unlock()
	runningJobs.Inc()
	defer runningJobs.Dec()

	result, err := job.optimizer.FindPath(ctx, opts)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	switch {
	case err != nil && ctx.Err() != nil:
		job.Status = "cancelled"
		s.logger.Info("path optimization cancelled", logging.Fields{"path_id": job.ID})
	case err != nil:
		job.Status = "failed"
		job.Error = err.Error()
		s.logger.Error("path optimization failed", logging.Fields{
			"path_id": job.ID,
			"error":   err.Error(),
		})
	default:
		job.Status = result.Status.String()
		job.Result = result
		s.logger.Info("path optimization finished", logging.Fields{
			"path_id":   job.ID,
			"status":    job.Status,
			"steps":     result.Steps,
			"avg_force": result.AvgForce,
		})
	}
	jobsFinished.WithLabelValues(job.Status).Inc()
}

// jobStatus builds the status response for a job. Caller holds jobsMu.
func (s *Server) jobStatus(job *PathJob) map[string]interface{} {
	response := map[string]interface{}{
		"path_id":     job.ID,
		"status":      job.Status,
		"step":        job.Step,
		"start_time":  job.StartTime.Format(time.RFC3339),
		"last_update": job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		response["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Error != "" {
		response["error"] = job.Error
	}
	if job.Result != nil {
		response["result"] = map[string]interface{}{
			"status":    job.Result.Status.String(),
			"images":    job.Result.Images,
			"states":    job.Result.States,
			"energies":  job.Result.Energies,
			"avg_force": job.Result.AvgForce,
			"steps":     job.Result.Steps,
		}
	}
	return response
}

// lookupJob returns the job by ID.
func (s *Server) lookupJob(id string) (*PathJob, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// cancelJob cancels a pending or running job.
func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("path %s not found", id)
	}
	switch job.Status {
	case "pending", "running":
	default:
		return fmt.Errorf("cannot cancel path with status %s", job.Status)
	}
	if job.cancel != nil {
		job.cancel()
	}
	return nil
}

// profile samples the interpolated energy profile of a finished job.
func (s *Server) profile(id string, samples int) (map[string]interface{}, error) {
	// runJob writes Result and Status under jobsMu; reading them under the
	// same lock orders this read after the terminal write.
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	var (
		result    *neb.Result
		status    string
		optimizer *band.PathOptimizer
	)
	if ok {
		result = job.Result
		status = job.Status
		optimizer = job.optimizer
	}
	s.jobsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("path %s not found", id)
	}
	if result == nil {
		return nil, fmt.Errorf("path %s has no result yet (status %s)", id, status)
	}
	if samples < 2 {
		samples = 100
	}

	energy, err := optimizer.EnergyProfile()
	if err != nil {
		return nil, err
	}
	geometry, err := optimizer.Path()
	if err != nil {
		return nil, err
	}

	coords := make([]float64, samples)
	energies := make([]float64, samples)
	for i := 0; i < samples; i++ {
		r := float64(i) / float64(samples-1)
		e, err := energy.Energy(r)
		if err != nil {
			return nil, err
		}
		coords[i] = r
		energies[i] = e
	}
	// The interpolated geometry at the highest-energy sample approximates
	// the transition state.
	peak := 0
	for i, e := range energies {
		if e > energies[peak] {
			peak = i
		}
	}
	tsGeom, err := geometry.Geometry(coords[peak])
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"path_id":             id,
		"reaction_coordinate": coords,
		"energies":            energies,
		"barrier":             energies[peak] - energies[0],
		"transition_state":    tsGeom,
	}, nil
}

// handleSubmit handles POST /api/v1/paths.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req findRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	job, err := s.startJob(req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"path_id": job.ID,
		"status":  job.Status,
	})
}

// handleStatus handles GET /api/v1/paths/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.lookupJob(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Errorf("path %s not found", id))
		return
	}

	s.jobsMu.RLock()
	response := s.jobStatus(job)
	s.jobsMu.RUnlock()
	s.respondJSON(w, http.StatusOK, response)
}

// handleProfile handles GET /api/v1/paths/{id}/profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	samples := 0
	if raw := r.URL.Query().Get("samples"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid samples %q", raw))
			return
		}
		samples = v
	}

	result, err := s.profile(chi.URLParam(r, "id"), samples)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleCancel handles DELETE /api/v1/paths/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cancelJob(id); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// handleJSONRPC handles JSON-RPC 2.0 requests at /rpc.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondRPCError(w, -32700, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondRPCError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "path.find":
		var req findRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			var job *PathJob
			if job, err = s.startJob(req); err == nil {
				result = map[string]interface{}{"path_id": job.ID, "status": job.Status}
			}
		}
	case "path.status":
		var params struct {
			PathID string `json:"path_id"`
		}
		if err = json.Unmarshal(request.Params, &params); err == nil {
			job, ok := s.lookupJob(params.PathID)
			if !ok {
				err = fmt.Errorf("path %s not found", params.PathID)
			} else {
				s.jobsMu.RLock()
				result = s.jobStatus(job)
				s.jobsMu.RUnlock()
			}
		}
	case "path.profile":
		var params struct {
			PathID  string `json:"path_id"`
			Samples int    `json:"samples"`
		}
		if err = json.Unmarshal(request.Params, &params); err == nil {
			result, err = s.profile(params.PathID, params.Samples)
		}
	case "path.cancel":
		var params struct {
			PathID string `json:"path_id"`
		}
		if err = json.Unmarshal(request.Params, &params); err == nil {
			if err = s.cancelJob(params.PathID); err == nil {
				result = map[string]string{"status": "cancellation requested"}
			}
		}
	default:
		s.respondRPCError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondRPCError(w, -32000, err.Error(), request.ID)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.logger.Error("request error", logging.Fields{
		"status": status,
		"error":  err.Error(),
	})
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) respondRPCError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("rpc error", logging.Fields{
		"code":    code,
		"message": message,
	})
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   map[string]interface{}{"code": code, "message": message},
		"id":      id,
	})
}

// Close cancels all running jobs.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	return nil
}
