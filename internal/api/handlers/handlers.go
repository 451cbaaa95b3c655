package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-parser/internal/api/middleware"
	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/jobs"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/pipeline"
)

// StatementRunner runs one statement through the pipeline.
type StatementRunner interface {
	Run(ctx context.Context, in pipeline.Input) (domain.Artifact, error)
}

// StatementsHandler handles statement parsing endpoints.
type StatementsHandler struct {
	runner    StatementRunner
	publisher jobs.Publisher
	maxBytes  int64
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. publisher may be
// nil, which disables background jobs.
func NewStatementsHandler(runner StatementRunner, publisher jobs.Publisher, maxBytes int64, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		runner:    runner,
		publisher: publisher,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// Parse handles POST /api/statements/parse. The body is the raw document;
// ?filename= names it and ?test=true returns the fixture artifact.
func (h *StatementsHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, ok := h.readInput(w, r)
	if !ok {
		return
	}

	artifact, err := h.runner.Run(ctx, in)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, artifact)
}

// EnqueueParse handles POST /api/statements/jobs. It accepts the same input
// as Parse and answers 202 with a job id to poll.
func (h *StatementsHandler) EnqueueParse(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Background parsing is disabled")
		return
	}

	in, ok := h.readInput(w, r)
	if !ok {
		return
	}

	job := &jobs.ParseJob{
		Filename: in.Name,
		Data:     in.Data,
		TestMode: in.TestMode,
	}
	// The queue owns job after Publish; only its immutable fields are read below.
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to enqueue parsing job")
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Parsing queue is unavailable, retry later")
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parsing job")
		return
	}

	log := logger.FromContext(r.Context())

	log.Info().
		Str("job_id", job.JobID).
		Str("filename", job.Filename).
		Msg("Parsing job enqueued")

	w.Header().Set("Location", "/api/jobs/"+job.JobID)
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.JobID,
		"filename": job.Filename,
		"status":   string(jobs.JobStatusPending),
	})
}

// ProcessJob runs a queued job. Unsupported documents fail permanently.
func (h *StatementsHandler) ProcessJob(ctx context.Context, job *jobs.ParseJob) (domain.Artifact, error) {
	artifact, err := h.runner.Run(ctx, pipeline.Input{
		Name:     job.Filename,
		Data:     job.Data,
		TestMode: job.TestMode,
	})
	if err != nil {
		var unsupported *document.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			return domain.Artifact{}, jobs.Permanent(err)
		}
		return domain.Artifact{}, err
	}
	return artifact, nil
}

func (h *StatementsHandler) readInput(w http.ResponseWriter, r *http.Request) (pipeline.Input, bool) {
	query := r.URL.Query()

	testMode := false
	if v := query.Get("test"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid test parameter")
			return pipeline.Input{}, false
		}
		testMode = b
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Document exceeds the upload limit")
			return pipeline.Input{}, false
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return pipeline.Input{}, false
	}
	if len(data) == 0 && !testMode {
		middleware.WriteError(w, http.StatusBadRequest, "Request body must contain a PDF or image")
		return pipeline.Input{}, false
	}

	return pipeline.Input{
		Name:     cleanFilename(query.Get("filename")),
		Data:     data,
		TestMode: testMode,
	}, true
}

func (h *StatementsHandler) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var unsupported *document.UnsupportedFormatError
	switch {
	case errors.As(err, &unsupported):
		middleware.WriteError(w, http.StatusUnsupportedMediaType, unsupported.Error())
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusGatewayTimeout, "Parsing timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		h.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Request canceled")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to parse statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to parse statement")
	}
}

// cleanFilename drops any path or query parts of a client-supplied name.
func cleanFilename(name string) string {
	if idx := strings.Index(name, "?"); idx > 0 {
		name = name[:idx]
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs. Artifacts are omitted from the listing.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	for _, j := range jobsList {
		j.Artifact = nil
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
