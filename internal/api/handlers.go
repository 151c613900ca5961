package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/clipcaptions/internal/db"
	"github.com/bobarin/clipcaptions/internal/models"
	"github.com/bobarin/clipcaptions/internal/queue"
	"github.com/bobarin/clipcaptions/internal/services"
	"github.com/bobarin/clipcaptions/internal/subtitles"
)

const maxRequestBytes = 10 << 20

// JobStore is the persistence the handlers need; *db.DB implements it.
type JobStore interface {
	CreateCaptionJob(ctx context.Context, job *models.CaptionJob) error
	GetCaptionJob(ctx context.Context, id uuid.UUID) (*models.CaptionJob, error)
	GetCaptionDocument(ctx context.Context, id uuid.UUID) (string, error)
	UpdateCaptionJobError(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// Enqueuer hands jobs to the worker; *queue.Queue implements it.
type Enqueuer interface {
	EnqueueRenderCaptions(ctx context.Context, jobID uuid.UUID) error
	GetQueueLength(ctx context.Context, queueName string) (int64, error)
}

// URLBuilder turns storage paths into URLs; *storage.Storage implements it.
type URLBuilder interface {
	GetPublicURL(objectPath string) string
}

type Handler struct {
	store    JobStore
	queue    Enqueuer
	storage  URLBuilder
	captions *services.CaptionService
}

func NewHandler(store JobStore, q Enqueuer, stor URLBuilder, captions *services.CaptionService) *Handler {
	return &Handler{
		store:    store,
		queue:    q,
		storage:  stor,
		captions: captions,
	}
}

// RenderCaptions handles POST /v1/captions/render
func (h *Handler) RenderCaptions(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := req.Validate(false); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	words, err := services.InlineWords(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.captions.Render(&req, words, "")
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, subtitles.ErrStyleReference) {
			status = http.StatusInternalServerError
		}
		respondError(w, status, err.Error())
		return
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []subtitles.Warning{}
	}
	respondJSON(w, http.StatusOK, models.RenderResponse{
		Document: result.Text,
		Events:   result.Document.Events,
		Warnings: warnings,
	})
}

// CreateCaptionJob handles POST /v1/caption-jobs
func (h *Handler) CreateCaptionJob(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := req.Validate(true); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := services.InlineWords(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &models.CaptionJob{
		ID:      uuid.New(),
		Status:  models.JobStatusQueued,
		Request: req,
	}
	if err := h.store.CreateCaptionJob(r.Context(), job); err != nil {
		log.Printf("[API] Failed to create caption job: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	if err := h.queue.EnqueueRenderCaptions(r.Context(), job.ID); err != nil {
		log.Printf("[API] Failed to enqueue caption job %s: %v", job.ID, err)
		h.store.UpdateCaptionJobError(r.Context(), job.ID, "failed to enqueue job")
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateCaptionJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetCaptionJob handles GET /v1/caption-jobs/{id}
func (h *Handler) GetCaptionJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetCaptionJob(r.Context(), jobID)
	if err != nil {
		respondStoreError(w, err, "Caption job not found")
		return
	}

	response := models.CaptionJobResponse{CaptionJob: *job}
	if job.StoragePath != nil {
		url := h.storage.GetPublicURL(*job.StoragePath)
		response.DocumentURL = &url
	}

	respondJSON(w, http.StatusOK, response)
}

// GetCaptionDocument handles GET /v1/caption-jobs/{id}/document
func (h *Handler) GetCaptionDocument(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	document, err := h.store.GetCaptionDocument(r.Context(), jobID)
	if err != nil {
		respondStoreError(w, err, "Caption document not ready")
		return
	}

	w.Header().Set("Content-Type", "text/x-ssa; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="captions.ass"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(document))
}

// Helper methods
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}

func respondStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFound)
		return
	}
	log.Printf("[API] store error: %v", err)
	respondError(w, http.StatusInternalServerError, "Internal error")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health reports the render queue depth. An unreachable queue makes the
// service unhealthy since new jobs could not be accepted.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	queued, err := h.queue.GetQueueLength(r.Context(), queue.QueueRenderCaptions)
	if err != nil {
		log.Printf("[Health] queue unavailable: %v", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "queued": queued})
}
