package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

// Enums
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the job will not change status again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Warnings is the JSONB column holding a job's render warnings.
type Warnings []subtitles.Warning

func (w Warnings) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w)
}

func (w *Warnings) Scan(value interface{}) error {
	return scanJSON(value, w)
}

func scanJSON(value interface{}, dst interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
}

// Models

type CaptionJob struct {
	ID            uuid.UUID     `json:"id"`
	Status        JobStatus     `json:"status"`
	Attempts      int           `json:"attempts"`
	Request       RenderRequest `json:"request"`
	StoragePath   *string       `json:"storage_path,omitempty"`
	EventCount    *int          `json:"event_count,omitempty"`
	Warnings      Warnings      `json:"warnings"`
	HookSuggested *string       `json:"hook_suggested,omitempty"`
	ErrorMessage  *string       `json:"error_message,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Requests

type OverlayRequest struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"` // seconds; 0 = configured default
}

// RenderRequest describes one clip to caption. Words come from exactly one of
// Words, Transcript or AudioPath (async jobs only). Times in Words and
// Transcript are source-relative when ClipStart/ClipEnd are set and
// clip-relative otherwise.
type RenderRequest struct {
	Title      string              `json:"title,omitempty"`
	Words      []subtitles.RawWord `json:"words,omitempty"`
	Transcript json.RawMessage     `json:"transcript,omitempty"` // WhisperX or verbose JSON payload
	AudioPath  string              `json:"audio_path,omitempty"` // object path in storage

	ClipStart    *float64 `json:"clip_start,omitempty"`
	ClipEnd      *float64 `json:"clip_end,omitempty"`
	ClipDuration *float64 `json:"clip_duration,omitempty"`

	Hook        *OverlayRequest `json:"hook,omitempty"`
	CTA         *OverlayRequest `json:"cta,omitempty"`
	SuggestHook bool            `json:"suggest_hook,omitempty"`

	// Per-request overrides of the engine configuration
	MaxWordsPerGroup *int     `json:"max_words_per_group,omitempty"`
	MaxGapFillMs     *int     `json:"max_gap_fill_ms,omitempty"`
	Terminators      *string  `json:"terminators,omitempty"`
	Uppercase        *bool    `json:"uppercase,omitempty"`
	PowerWords       []string `json:"power_words,omitempty"`
}

func (r RenderRequest) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RenderRequest) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// Validate checks the request shape. allowAudio is false for synchronous renders.
func (r *RenderRequest) Validate(allowAudio bool) error {
	sources := 0
	if len(r.Words) > 0 {
		sources++
	}
	if len(r.Transcript) > 0 {
		sources++
	}
	if r.AudioPath != "" {
		if !allowAudio {
			return fmt.Errorf("audio_path is only supported for caption jobs")
		}
		sources++
	}
	if sources > 1 {
		return fmt.Errorf("provide only one of words, transcript or audio_path")
	}

	if err := r.ValidateSettings(); err != nil {
		return err
	}
	if sources == 0 && r.ClipDuration == nil && r.ClipStart == nil {
		return fmt.Errorf("clip_duration is required when no words are given")
	}
	return nil
}

// ValidateSettings checks the clip window and the render overrides, leaving
// out the word source. The CLI reads words from files and validates only this.
func (r *RenderRequest) ValidateSettings() error {
	if (r.ClipStart == nil) != (r.ClipEnd == nil) {
		return fmt.Errorf("clip_start and clip_end must be given together")
	}
	if r.ClipStart != nil && *r.ClipEnd <= *r.ClipStart {
		return fmt.Errorf("clip_end must be after clip_start")
	}
	if r.ClipDuration != nil && *r.ClipDuration <= 0 {
		return fmt.Errorf("clip_duration must be positive")
	}
	if r.MaxWordsPerGroup != nil && *r.MaxWordsPerGroup <= 0 {
		return fmt.Errorf("max_words_per_group must be positive")
	}
	if r.MaxGapFillMs != nil && *r.MaxGapFillMs < 0 {
		return fmt.Errorf("max_gap_fill_ms must not be negative")
	}
	return nil
}

// DTOs for API responses
type RenderResponse struct {
	Document string              `json:"document"`
	Events   []subtitles.Event   `json:"events"`
	Warnings []subtitles.Warning `json:"warnings"`
}

type CaptionJobResponse struct {
	CaptionJob
	DocumentURL *string `json:"document_url,omitempty"`
}

type CreateCaptionJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}
