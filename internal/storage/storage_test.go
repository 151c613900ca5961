package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStorage(url string) *Storage {
	s := New(url, "service-key", "captions-bucket")
	s.baseDelay = time.Millisecond
	return s
}

func TestUploadDocumentRetriesTransientFailures(t *testing.T) {
	jobID := uuid.MustParse("6f1c2b7e-4a44-4c4e-9a43-3d2f2a1b0c11")
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/storage/v1/object/captions-bucket/captions/"+jobID.String()+"/captions.ass" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer service-key" || r.Header.Get("x-upsert") != "true" {
			t.Errorf("missing headers: %v", r.Header)
		}
		if r.Header.Get("Content-Type") != DocumentContentType {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "[Script Info]\n" {
			t.Errorf("unexpected body %q", body)
		}
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := newTestStorage(srv.URL).UploadDocument(context.Background(), jobID, "[Script Info]\n")
	if err != nil {
		t.Fatalf("UploadDocument failed: %v", err)
	}
	if p != "captions/"+jobID.String()+"/captions.ass" {
		t.Errorf("unexpected path %s", p)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestUploadDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	if err := newTestStorage(srv.URL).Upload(context.Background(), "a.ass", []byte("x"), DocumentContentType); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
}

func TestUploadGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := newTestStorage(srv.URL)
	s.retries = 2
	if err := s.Upload(context.Background(), "a.ass", []byte("x"), DocumentContentType); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/storage/v1/object/captions-bucket/audio/clip.mp3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	data, err := newTestStorage(srv.URL).Download(context.Background(), "audio/clip.mp3")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("unexpected data %q", data)
	}
}

func TestGetPublicURL(t *testing.T) {
	s := New("https://example.supabase.co/", "k", "bucket")
	want := "https://example.supabase.co/storage/v1/object/public/bucket/captions/x/captions.ass"
	if got := s.GetPublicURL("captions/x/captions.ass"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
