package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJobPayload(t *testing.T) {
	job := &Job{ID: uuid.New(), Type: JobTypeRenderCaptions, Attempt: 1, CreatedAt: time.Unix(1700000000, 0).UTC()}

	data, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encodeJob failed: %v", err)
	}
	got, err := decodeJob(data)
	if err != nil {
		t.Fatalf("decodeJob failed: %v", err)
	}
	if got.ID != job.ID || got.Type != job.Type || got.Attempt != 1 || !got.CreatedAt.Equal(job.CreatedAt) {
		t.Errorf("got %+v, want %+v", got, job)
	}
}

func TestDecodeJobRejectsBadPayloads(t *testing.T) {
	for _, payload := range []string{`not json`, `{"type":"render_captions"}`} {
		if _, err := decodeJob([]byte(payload)); err == nil {
			t.Errorf("decodeJob(%q) should fail", payload)
		}
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-redis-url"); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}
