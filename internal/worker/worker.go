package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/clipcaptions/internal/models"
	"github.com/bobarin/clipcaptions/internal/queue"
	"github.com/bobarin/clipcaptions/internal/services"
	"github.com/bobarin/clipcaptions/internal/storage"
	"github.com/bobarin/clipcaptions/internal/subtitles"
)

const (
	maxAttempts = 3

	// outcomeTimeout bounds the store and queue writes that record a job's
	// outcome; they run on a fresh context so shutdown cannot cancel them.
	outcomeTimeout = 10 * time.Second
)

// JobStore is the persistence the worker needs; *db.DB implements it.
type JobStore interface {
	GetCaptionJob(ctx context.Context, id uuid.UUID) (*models.CaptionJob, error)
	UpdateCaptionJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	CompleteCaptionJob(ctx context.Context, id uuid.UUID, storagePath, document string, eventCount int, warnings models.Warnings, hookSuggested *string) error
	UpdateCaptionJobError(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// JobQueue is the queue the worker consumes; *queue.Queue implements it.
type JobQueue interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error)
	Enqueue(ctx context.Context, queueName string, job *queue.Job) error
	Retry(ctx context.Context, queueName string, job *queue.Job) error
}

// ObjectStore is the object storage the worker reads audio from and writes
// documents to; *storage.Storage implements it.
type ObjectStore interface {
	Download(ctx context.Context, objectPath string) ([]byte, error)
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	UploadDocument(ctx context.Context, jobID uuid.UUID, document string) (string, error)
}

type Worker struct {
	store       JobStore
	queue       JobQueue
	storage     ObjectStore
	captions    *services.CaptionService
	transcriber services.Transcriber   // nil when OPENAI_API_KEY is not set
	hooks       services.HookSuggester // nil when GEMINI_API_KEY is not set
	uploadSem   chan struct{}          // limits concurrent storage uploads across workers
}

func New(
	store JobStore,
	q JobQueue,
	stor ObjectStore,
	captions *services.CaptionService,
	transcriber services.Transcriber,
	hooks services.HookSuggester,
) *Worker {
	return &Worker{
		store:       store,
		queue:       q,
		storage:     stor,
		captions:    captions,
		transcriber: transcriber,
		hooks:       hooks,
		uploadSem:   make(chan struct{}, 4),
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// uploadWithLimit wraps an upload call with a semaphore so a burst of jobs
// cannot open unbounded connections to storage.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start runs concurrency consumers of the render queue until ctx is done.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("[Worker] started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueRenderCaptions, w.handleRenderCaptions)
	}

	<-ctx.Done()
	log.Println("[Worker] shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing from %s: %v", queueName, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			w.runJob(ctx, queueName, job, handler)
		}
	}
}

// runJob executes one job and records its outcome. Transient failures are
// re-queued until maxAttempts is reached.
func (w *Worker) runJob(ctx context.Context, queueName string, job *queue.Job, handler func(context.Context, *queue.Job) error) {
	log.Printf("[Worker] Processing job %s (type: %s, attempt: %d)", job.ID, job.Type, job.Attempt+1)

	if err := w.store.UpdateCaptionJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
		log.Printf("[Worker] Failed to update job status: %v", err)
	}

	err := handler(ctx, job)
	if err == nil {
		log.Printf("[Worker] Job %s completed successfully", job.ID)
		return
	}

	octx, cancel := context.WithTimeout(context.Background(), outcomeTimeout)
	defer cancel()

	// Dequeue already removed the job from Redis; a job cut short by shutdown
	// goes back on the queue without using up an attempt.
	if ctx.Err() != nil {
		log.Printf("[Worker] Job %s interrupted by shutdown, re-queueing: %v", job.ID, err)
		if serr := w.store.UpdateCaptionJobStatus(octx, job.ID, models.JobStatusQueued); serr != nil {
			log.Printf("[Worker] Failed to reset job %s: %v", job.ID, serr)
		}
		if qerr := w.queue.Enqueue(octx, queueName, job); qerr != nil {
			log.Printf("[Worker] Failed to re-queue interrupted job %s: %v", job.ID, qerr)
		}
		return
	}

	if !isPermanent(err) && job.Attempt+1 < maxAttempts {
		log.Printf("[Worker] Job %s failed (attempt %d/%d), re-queueing: %v", job.ID, job.Attempt+1, maxAttempts, err)
		qerr := w.queue.Retry(octx, queueName, job)
		if qerr == nil {
			return
		}
		log.Printf("[Worker] Failed to re-queue job %s: %v", job.ID, qerr)
	}

	log.Printf("[Worker] Job %s failed: %v", job.ID, err)
	if uerr := w.store.UpdateCaptionJobError(octx, job.ID, err.Error()); uerr != nil {
		log.Printf("[Worker] Failed to record job error: %v", uerr)
	}
}

// handleRenderCaptions resolves the clip's words, optionally asks for a hook
// title, renders the document and stores it.
func (w *Worker) handleRenderCaptions(ctx context.Context, job *queue.Job) error {
	record, err := w.store.GetCaptionJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to get caption job: %w", err)
	}
	req := &record.Request

	if err := req.Validate(true); err != nil {
		return permanent(fmt.Errorf("invalid request: %w", err))
	}

	words, err := w.resolveWords(ctx, req)
	if err != nil {
		return err
	}

	var hookSuggested *string
	if req.SuggestHook && (req.Hook == nil || req.Hook.Text == "") {
		if hook := w.suggestHook(ctx, job.ID, req, words); hook != "" {
			hookSuggested = &hook
		}
	}

	var hookText string
	if hookSuggested != nil {
		hookText = *hookSuggested
	}
	result, err := w.captions.Render(req, words, hookText)
	if err != nil {
		return permanent(fmt.Errorf("failed to render captions: %w", err))
	}
	for _, warning := range result.Warnings {
		log.Printf("[Captions] job %s: %s", job.ID, warning)
	}

	manifest, err := json.Marshal(struct {
		Events   []subtitles.Event   `json:"events"`
		Warnings []subtitles.Warning `json:"warnings"`
	}{result.Document.Events, result.Warnings})
	if err != nil {
		return permanent(fmt.Errorf("failed to marshal event manifest: %w", err))
	}

	// Document and manifest are independent objects; upload them in parallel.
	var documentPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.uploadWithLimit(gctx, fmt.Sprintf("job_%s_document", job.ID), func() error {
			p, err := w.storage.UploadDocument(gctx, job.ID, result.Text)
			documentPath = p
			return err
		})
	})
	g.Go(func() error {
		manifestPath := path.Join(path.Dir(storage.DocumentPath(job.ID)), "events.json")
		return w.uploadWithLimit(gctx, fmt.Sprintf("job_%s_manifest", job.ID), func() error {
			return w.storage.Upload(gctx, manifestPath, manifest, "application/json")
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to upload captions: %w", err)
	}

	if err := w.store.CompleteCaptionJob(ctx, job.ID, documentPath, result.Text,
		len(result.Document.Events), models.Warnings(result.Warnings), hookSuggested); err != nil {
		return fmt.Errorf("failed to store caption document: %w", err)
	}

	log.Printf("[Worker] Job %s: %d events, %d warnings -> %s",
		job.ID, len(result.Document.Events), len(result.Warnings), documentPath)
	return nil
}

// resolveWords returns the request's inline words, or transcribes the
// referenced audio with Whisper.
func (w *Worker) resolveWords(ctx context.Context, req *models.RenderRequest) ([]subtitles.RawWord, error) {
	if req.AudioPath == "" {
		words, err := services.InlineWords(req)
		if err != nil {
			return nil, permanent(err)
		}
		return words, nil
	}

	if w.transcriber == nil {
		return nil, permanent(fmt.Errorf("audio transcription is not configured (OPENAI_API_KEY)"))
	}

	audio, err := w.storage.Download(ctx, req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}

	words, err := w.transcriber.TranscribeAudio(ctx, audio, req.AudioPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return words, nil
}

// suggestHook never fails the job; without a suggestion the hook overlay is
// simply omitted.
func (w *Worker) suggestHook(ctx context.Context, jobID uuid.UUID, req *models.RenderRequest, words []subtitles.RawWord) string {
	if w.hooks == nil {
		log.Printf("[Hook] job %s: hook suggestion requested but GEMINI_API_KEY is not set", jobID)
		return ""
	}

	clipped, _, err := services.ClipWords(req, words)
	if err != nil {
		return ""
	}
	text := services.PlainText(clipped)
	if text == "" {
		return ""
	}

	hook, err := w.hooks.SuggestHook(ctx, text)
	if err != nil {
		log.Printf("[Hook] job %s: suggestion failed, continuing without hook: %v", jobID, err)
		return ""
	}
	return hook
}
