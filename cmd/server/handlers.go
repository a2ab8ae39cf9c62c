package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/HammerCheck/internal/anomaly"
	"github.com/himanishpuri/HammerCheck/internal/trackio"
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck"
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck/storage"
	"github.com/himanishpuri/HammerCheck/pkg/logger"
	"github.com/himanishpuri/HammerCheck/pkg/models"
	"github.com/himanishpuri/HammerCheck/pkg/utils"
)

// maxBodyBytes limits the size of an analyze request body.
const maxBodyBytes = 64 << 20

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service  hammercheck.Service
	config   *ServerConfig
	log      hammercheck.Logger
	started  time.Time
	analyses atomic.Uint64
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service hammercheck.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("server"),
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, hammercheck.ErrHistoryDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, hammercheck.ErrEmptyRequest),
		errors.Is(err, hammercheck.ErrFilteredEvent),
		errors.Is(err, trackio.ErrNoEvents),
		errors.Is(err, anomaly.ErrIndexOutOfRange),
		errors.Is(err, anomaly.ErrIndexReused),
		errors.Is(err, anomaly.ErrEventMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "HammerCheck API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"metrics":   "GET /api/health/metrics",
			"analyze":   "POST /api/analyze",
			"listRuns":  "GET /api/runs",
			"getRun":    "GET /api/runs/{id}",
			"deleteRun": "DELETE /api/runs/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		Analyses:     s.analyses.Load(),
		Started:      humanize.Time(s.started),
		Uptime:       time.Since(s.started).Round(time.Second).String(),
	}

	runs, err := s.service.ListRuns(0)
	switch {
	case errors.Is(err, hammercheck.ErrHistoryDisabled):
		resp.DatabasePath = ""
	case err != nil:
		s.log.Errorf("Failed to get run count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	default:
		resp.RunCount = len(runs)
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleAnalyze handles POST /api/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var body AnalyzeRequestDTO
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.log.Warnf("Invalid analyze request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := body.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := body.ToRequest()
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	report, err := s.service.Analyze(r.Context(), req)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			s.log.Errorf("Analysis failed: %v", err)
			s.respondError(w, code, "Analysis failed")
			return
		}
		s.respondError(w, code, err.Error())
		return
	}
	s.analyses.Add(1)

	s.log.Infof("Run %s: %s of %s record events matched (%.1f%%)",
		report.RunID,
		humanize.Comma(int64(report.Summary.MatchedCount)),
		humanize.Comma(int64(report.Summary.RecordCount)),
		report.Summary.SuccessRate*100)

	code := http.StatusCreated
	if report.Existing {
		code = http.StatusOK
	}
	s.respondJSON(w, code, newReportDTO(report))
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.service.ListRuns(limit)
	if err != nil {
		s.log.Errorf("Failed to list runs: %v", err)
		s.respondError(w, statusFor(err), "Failed to retrieve runs")
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = newRunDTO(run)
	}
	s.respondJSON(w, http.StatusOK, ListRunsResponse{Runs: dtos, Count: len(dtos)})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.service.GetRun(runID)
	if err != nil {
		s.log.Warnf("Run not found: %s", runID)
		s.respondError(w, statusFor(err), fmt.Sprintf("Run %s not found", runID))
		return
	}

	anomalies, err := s.service.RunAnomalies(runID)
	if err != nil {
		s.log.Errorf("Failed to load anomalies of %s: %v", runID, err)
		s.respondError(w, statusFor(err), "Failed to retrieve anomalies")
		return
	}

	resp := RunDetailResponse{
		Run:       newRunDTO(*run),
		Anomalies: make([]StoredAnomalyDTO, len(anomalies)),
	}
	for i, a := range anomalies {
		resp.Anomalies[i] = StoredAnomalyDTO{
			Kind:       string(a.Kind),
			Status:     string(a.Status),
			Failure:    string(a.Failure),
			EventIndex: a.EventIndex,
			KeyID:      a.KeyID,
			KeyOn:      a.KeyOn,
			KeyOff:     a.KeyOff,
			Reason:     a.Reason,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleDeleteRun handles DELETE /api/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if err := s.service.DeleteRun(runID); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			s.log.Errorf("Failed to delete run %s: %v", runID, err)
			s.respondError(w, code, "Failed to delete run")
			return
		}
		s.respondError(w, code, fmt.Sprintf("Run %s not found", runID))
		return
	}

	s.log.Infof("Deleted run %s", runID)
	s.respondJSON(w, http.StatusOK, DeleteRunResponse{
		Message: "Run deleted successfully",
		ID:      runID,
	})
}

// handleRuns routes /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRun routes /api/runs/{id}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if !utils.ValidRunID(runID) {
		s.respondError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRun(w, r, runID)
	case http.MethodDelete:
		s.handleDeleteRun(w, r, runID)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func newRunDTO(run models.RunSummary) RunDTO {
	return RunDTO{
		ID:              run.ID,
		Name:            run.Name,
		Digest:          run.Digest,
		RecordCount:     run.RecordCount,
		ReplayCount:     run.ReplayCount,
		MatchedCount:    run.MatchedCount,
		DroppedCount:    run.DroppedCount,
		DuplicatedCount: run.DuplicatedCount,
		SuccessRate:     run.SuccessRate,
		MeanError:       run.MeanError,
		MAE:             run.MAE,
		StdDev:          run.StdDev,
		CreatedAt:       run.CreatedAt.Format(time.RFC3339),
		Age:             humanize.Time(run.CreatedAt),
	}
}
