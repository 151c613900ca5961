package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bobarin/clipcaptions/internal/db"
	"github.com/bobarin/clipcaptions/internal/models"
	"github.com/bobarin/clipcaptions/internal/services"
	"github.com/bobarin/clipcaptions/internal/subtitles"
)

type memoryStore struct {
	jobs      map[uuid.UUID]*models.CaptionJob
	documents map[uuid.UUID]string
	failed    map[uuid.UUID]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		jobs:      make(map[uuid.UUID]*models.CaptionJob),
		documents: make(map[uuid.UUID]string),
		failed:    make(map[uuid.UUID]string),
	}
}

func (m *memoryStore) CreateCaptionJob(ctx context.Context, job *models.CaptionJob) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *memoryStore) GetCaptionJob(ctx context.Context, id uuid.UUID) (*models.CaptionJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("caption job %w", db.ErrNotFound)
	}
	return job, nil
}

func (m *memoryStore) GetCaptionDocument(ctx context.Context, id uuid.UUID) (string, error) {
	doc, ok := m.documents[id]
	if !ok {
		return "", fmt.Errorf("caption document %w", db.ErrNotFound)
	}
	return doc, nil
}

func (m *memoryStore) UpdateCaptionJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	m.failed[id] = errorMessage
	return nil
}

type memoryQueue struct {
	enqueued  []uuid.UUID
	err       error
	lengthErr error
}

func (q *memoryQueue) EnqueueRenderCaptions(ctx context.Context, jobID uuid.UUID) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, jobID)
	return nil
}

func (q *memoryQueue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	if q.lengthErr != nil {
		return 0, q.lengthErr
	}
	return int64(len(q.enqueued)), nil
}

type staticURLs struct{}

func (staticURLs) GetPublicURL(objectPath string) string {
	return "https://cdn.example.com/" + objectPath
}

func newTestRouter(store *memoryStore, q *memoryQueue, apiKey string) http.Handler {
	h := NewHandler(store, q, staticURLs{}, services.NewCaptionService(subtitles.DefaultOptions()))
	return NewRouter(h, RouterConfig{BackendAPIKey: apiKey})
}

func do(t *testing.T, router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const scenarioBody = `{
	"words": [
		{"word": "Hello", "start": 0.00, "end": 0.30},
		{"word": "world", "start": 0.35, "end": 0.70},
		{"word": "today", "start": 0.72, "end": 1.00}
	],
	"clip_duration": 10,
	"hook": {"text": "Wait for it"},
	"cta": {"text": "Follow for part 2"}
}`

func TestRenderCaptions(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &memoryQueue{}, "")

	rec := do(t, router, http.MethodPost, "/v1/captions/render", scenarioBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.RenderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(resp.Events))
	}
	if resp.Events[0].Layer != subtitles.LayerCaption || resp.Events[1].Layer != subtitles.LayerHookTitle {
		t.Errorf("unexpected event order: %+v", resp.Events[:2])
	}
	if !strings.Contains(resp.Document, `Dialogue: 0,0:00:00.00,0:00:00.35,Caption,,0,0,0,,{\rHighlight}Hello{\r} world today`) {
		t.Errorf("document missing first caption:\n%s", resp.Document)
	}
	if resp.Warnings == nil {
		t.Error("warnings should be an empty array, not null")
	}
}

func TestRenderCaptionsTranscriptWindow(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &memoryQueue{}, "")

	body := `{
		"transcript": {"segments": [{"start": 59.5, "end": 62, "text": "a b", "words": [
			{"word": "before", "start": 59.5, "end": 59.9},
			{"word": "inside", "start": 60.2, "end": 60.8}
		]}]},
		"clip_start": 60, "clip_end": 75
	}`
	rec := do(t, router, http.MethodPost, "/v1/captions/render", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.RenderResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Events) != 1 || resp.Events[0].Start < 0.19 || resp.Events[0].Start > 0.21 {
		t.Errorf("expected one rebased caption, got %+v", resp.Events)
	}
}

func TestRenderCaptionsRejectsBadRequests(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &memoryQueue{}, "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"words": [`, http.StatusBadRequest},
		{"no duration", `{}`, http.StatusBadRequest},
		{"audio on sync path", `{"audio_path": "a.mp3", "clip_duration": 5}`, http.StatusBadRequest},
		{"bad transcript", `{"transcript": {"segments": 7}}`, http.StatusBadRequest},
		{"words without positive duration", `{"words": [{"word": "a", "start": 0, "end": 0}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/v1/captions/render", tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCaptionJobLifecycle(t *testing.T) {
	store := newMemoryStore()
	q := &memoryQueue{}
	router := newTestRouter(store, q, "")

	rec := do(t, router, http.MethodPost, "/v1/caption-jobs", `{"audio_path": "audio/clip.mp3", "clip_duration": 30, "suggest_hook": true}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.CreateCaptionJobResponse
	json.NewDecoder(rec.Body).Decode(&created)
	if created.Status != models.JobStatusQueued || len(q.enqueued) != 1 || q.enqueued[0] != created.JobID {
		t.Fatalf("job not enqueued: %+v %v", created, q.enqueued)
	}

	// Document not rendered yet
	rec = do(t, router, http.MethodGet, "/v1/caption-jobs/"+created.JobID.String()+"/document", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before render, got %d", rec.Code)
	}

	// Simulate the worker finishing the job
	path := "captions/" + created.JobID.String() + "/captions.ass"
	job := store.jobs[created.JobID]
	job.Status = models.JobStatusSucceeded
	job.StoragePath = &path
	store.documents[created.JobID] = "[Script Info]\n"

	rec = do(t, router, http.MethodGet, "/v1/caption-jobs/"+created.JobID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.CaptionJobResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if got.DocumentURL == nil || *got.DocumentURL != "https://cdn.example.com/"+path {
		t.Errorf("unexpected document url: %v", got.DocumentURL)
	}
	if got.Request.AudioPath != "audio/clip.mp3" || !got.Request.SuggestHook {
		t.Errorf("request not echoed: %+v", got.Request)
	}

	rec = do(t, router, http.MethodGet, "/v1/caption-jobs/"+created.JobID.String()+"/document", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "[Script Info]\n" {
		t.Fatalf("unexpected document response %d: %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/x-ssa") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestCaptionJobEnqueueFailure(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store, &memoryQueue{err: errors.New("redis down")}, "")

	rec := do(t, router, http.MethodPost, "/v1/caption-jobs", scenarioBody, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(store.failed) != 1 {
		t.Errorf("job should be marked failed, got %v", store.failed)
	}
}

func TestGetCaptionJobErrors(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &memoryQueue{}, "")

	if rec := do(t, router, http.MethodGet, "/v1/caption-jobs/not-a-uuid", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/v1/caption-jobs/"+uuid.NewString(), "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	router := newTestRouter(newMemoryStore(), &memoryQueue{}, "secret")

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"header key", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/v1/captions/render", scenarioBody, tt.headers)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if rec := do(t, router, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health should be public, got %d", rec.Code)
	}
}

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); len(got) != 1 || got[0] != "*" {
		t.Errorf("empty list should allow any origin, got %v", got)
	}
	if got := parseOrigins(" https://a.example , ,https://b.example"); len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", got)
	}
}

func TestHealth(t *testing.T) {
	q := &memoryQueue{enqueued: []uuid.UUID{uuid.New(), uuid.New()}}
	rec := do(t, newTestRouter(newMemoryStore(), q, ""), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Queued int64  `json:"queued"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Queued != 2 {
		t.Errorf("unexpected health body: %+v", body)
	}

	q.lengthErr = errors.New("redis down")
	rec = do(t, newTestRouter(newMemoryStore(), q, ""), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when the queue is unreachable, got %d", rec.Code)
	}
}
