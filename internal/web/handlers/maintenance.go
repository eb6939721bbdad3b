package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/sigboard/internal/config"
	"github.com/kozaktomas/sigboard/internal/content"
	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/maintenance"
)

// MaintenanceHandler runs recompute jobs in the background.
type MaintenanceHandler struct {
	jobs    *JobManager
	repo    database.SignatureWriter
	content content.Store
	cfg     config.MaintenanceConfig
}

// NewMaintenanceHandler creates a new maintenance handler. contentStore may
// be nil, which disables recomputing signatures.
func NewMaintenanceHandler(jobs *JobManager, repo database.SignatureWriter, contentStore content.Store, cfg config.MaintenanceConfig) *MaintenanceHandler {
	return &MaintenanceHandler{
		jobs:    jobs,
		repo:    repo,
		content: contentStore,
		cfg:     cfg,
	}
}

// recomputeSignaturesRequest optionally overrides the configured worker settings.
type recomputeSignaturesRequest struct {
	Concurrency int     `json:"concurrency"`
	Rate        float64 `json:"rate"`
}

// Stats returns signature totals.
func (h *MaintenanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		log.Printf("Failed to get signature stats: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// RecomputeWords starts a job regenerating the words of all posts.
func (h *MaintenanceHandler) RecomputeWords(w http.ResponseWriter, r *http.Request) {
	h.startJob(w, JobKindRecomputeWords, func(ctx context.Context, progress maintenance.ProgressFunc) (*maintenance.Result, error) {
		return maintenance.RecomputeWords(ctx, h.repo, maintenance.WordsOptions{
			BatchSize:  h.cfg.BatchSize,
			OnProgress: progress,
		})
	})
}

// RecomputeSignatures starts a job recomputing all signatures from post content.
func (h *MaintenanceHandler) RecomputeSignatures(w http.ResponseWriter, r *http.Request) {
	if h.content == nil {
		respondError(w, http.StatusConflict, "no content store configured")
		return
	}

	opts := maintenance.SignatureOptions{
		Concurrency: h.cfg.Concurrency,
		Rate:        h.cfg.Rate,
	}
	if r.ContentLength != 0 {
		var req recomputeSignaturesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Concurrency > 0 {
			opts.Concurrency = req.Concurrency
		}
		if req.Rate > 0 {
			opts.Rate = req.Rate
		}
	}

	h.startJob(w, JobKindRecomputeSignatures, func(ctx context.Context, progress maintenance.ProgressFunc) (*maintenance.Result, error) {
		opts.OnProgress = progress
		return maintenance.RecomputeSignatures(ctx, h.repo, h.content, opts)
	})
}

func (h *MaintenanceHandler) startJob(w http.ResponseWriter, kind JobKind, run func(context.Context, maintenance.ProgressFunc) (*maintenance.Result, error)) {
	job, err := h.jobs.CreateJob(kind)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	// The job outlives the request.
	ctx, cancel := context.WithCancel(context.Background())
	job.start(cancel)

	go func() {
		defer cancel()
		log.Printf("Maintenance job %s (%s) started", job.ID(), kind)
		res, err := run(ctx, job.reportProgress)
		job.finish(res, err)
		if err != nil {
			log.Printf("Maintenance job %s (%s) stopped: %v", job.ID(), kind, err)
			return
		}
		log.Printf("Maintenance job %s (%s) finished: %d updated, %d failed in %s",
			job.ID(), kind, res.Updated, res.Failed, res.Duration)
	}()

	respondJSON(w, http.StatusAccepted, job.View())
}

// ListJobs returns all maintenance jobs, newest first.
func (h *MaintenanceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.ListJobs()
	views := make([]JobView, len(jobs))
	for i, job := range jobs {
		views[i] = job.View()
	}
	respondJSON(w, http.StatusOK, views)
}

// GetJob returns the status of a maintenance job.
func (h *MaintenanceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.View())
}

// CancelJob cancels a running maintenance job.
func (h *MaintenanceHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, job.View())
}

// Events streams job events via SSE.
func (h *MaintenanceHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobs.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(job SSEJob) any {
			return job.(*Job).View()
		},
	)
}
