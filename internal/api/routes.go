package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/biomarker-io/worker/internal/api/middleware"
	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/facade"
	"github.com/biomarker-io/worker/internal/job"
)

const healthCheckTimeout = 2 * time.Second

// handlers bundles the dependencies routes.go's HTTP handlers close over.
type handlers struct {
	logger  *slog.Logger
	gateway domain.Gateway
	facade  *facade.Facade
	runner  *job.Runner
}

// setupRoutes registers every route the worker's HTTP surface exposes:
// health/readiness probes, synchronous prediction, and the debug
// run-once endpoint.
func (s *Server) setupRoutes(mux *http.ServeMux, svc *facade.Facade, runner *job.Runner) {
	h := &handlers{logger: s.logger, gateway: s.gateway, facade: svc, runner: runner}

	mux.HandleFunc("GET /health", h.handleHealth(s))
	mux.HandleFunc("GET /ready", h.handleReady)
	mux.HandleFunc("POST /v1/predict", h.handlePredict)
	mux.HandleFunc("POST /v1/predict/batch", h.handlePredictBatch)
	mux.HandleFunc("POST /internal/run-once", h.handleRunOnce)
	mux.HandleFunc("/", h.handleNotFound)
}

// handleHealth returns detailed health status information, including uptime.
func (h *handlers) handleHealth(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var uptime string

		if !s.startTime.IsZero() {
			uptime = time.Since(s.startTime).Round(time.Second).String()
		}

		writeJSON(w, r, h.logger, http.StatusOK, HealthStatus{
			Status:      "healthy",
			ServiceName: "biomarker-worker",
			Version:     "v1.0.0",
			Uptime:      uptime,
		})
	}
}

// handleReady responds to readiness probes with a storage backend health check.
func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.gateway.HealthCheck(ctx); err != nil {
		h.logger.Error("storage health check failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handlePredict handles POST /v1/predict (component I, single-sample path).
func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, r, h.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	if req.OrgID == "" || req.SampleID == "" || req.ModelID == "" {
		WriteErrorResponse(w, r, h.logger, BadRequest("org_id, sample_id and model_id are required"))

		return
	}

	result, err := h.facade.Predict(r.Context(), req.OrgID, req.SampleID, req.ModelID)
	if err != nil {
		h.writePredictError(w, r, err)

		return
	}

	writeJSON(w, r, h.logger, http.StatusOK, PredictResponse{
		SampleID:       result.SampleID,
		ModelID:        result.ModelID,
		YHat:           result.YHat,
		Threshold:      result.Threshold,
		PredictedClass: result.PredictedClass,
		NumTrees:       result.NumTrees,
	})
}

// handlePredictBatch handles POST /v1/predict/batch (component I, batch path).
func (h *handlers) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req PredictBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, r, h.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	if req.OrgID == "" || req.ModelID == "" || len(req.SampleIDs) == 0 {
		WriteErrorResponse(w, r, h.logger, BadRequest("org_id, model_id and a non-empty sample_ids are required"))

		return
	}

	outcomes, err := h.facade.PredictBatch(r.Context(), req.OrgID, req.ModelID, req.SampleIDs)
	if err != nil {
		h.writePredictError(w, r, err)

		return
	}

	resp := PredictBatchResponse{
		TotalSamples: len(outcomes),
		Results:      make([]PredictBatchResult, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		result := PredictBatchResult{SampleID: o.SampleID}

		if o.Error != "" {
			result.Error = o.Error
			resp.Failed++
		} else {
			result.YHat = o.Result.YHat
			result.Threshold = o.Result.Threshold
			result.PredictedClass = o.Result.PredictedClass
			result.NumTrees = o.Result.NumTrees
			resp.Successful++
		}

		resp.Results = append(resp.Results, result)
	}

	writeJSON(w, r, h.logger, http.StatusOK, resp)
}

// handleRunOnce handles POST /internal/run-once: it processes a single
// job payload synchronously, bypassing the queue. Intended for local
// verification and CI smoke tests, not production traffic.
func (h *handlers) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	var req RunOnceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, r, h.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	if req.JobID == "" || req.OrgID == "" || req.ArtifactID == "" {
		WriteErrorResponse(w, r, h.logger, BadRequest("job_id, org_id and artifact_id are required"))

		return
	}

	h.runner.Run(r.Context(), req.Payload)

	j, err := h.gateway.GetJob(r.Context(), req.JobID)
	if err != nil {
		WriteErrorResponse(w, r, h.logger, NotFound("job not found after running: "+err.Error()))

		return
	}

	writeJSON(w, r, h.logger, http.StatusOK, RunOnceResponse{
		JobID:  j.ID,
		Status: string(j.Status),
		Output: j.Output,
		Error:  j.Error,
	})
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (h *handlers) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, h.logger, NotFound("no such endpoint: "+r.URL.Path))
}

// writePredictError maps domain sentinel errors to the appropriate HTTP
// status, falling back to 500 for anything unexpected.
func (h *handlers) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteErrorResponse(w, r, h.logger, NotFound(err.Error()))
	case errors.Is(err, domain.ErrValidation):
		WriteErrorResponse(w, r, h.logger, BadRequest(err.Error()))
	default:
		h.logger.Error("prediction failed", slog.String("error", err.Error()))
		WriteErrorResponse(w, r, h.logger, InternalServerError(err.Error()))
	}
}

// writeJSON encodes v as the JSON response body. Encode failures are
// logged and answered with a problem detail instead of a partial body.
func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, logger, InternalServerError("failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		logger.Error("failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
