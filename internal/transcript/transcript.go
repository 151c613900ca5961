// Package transcript adapts upstream transcription payloads into the raw word
// sequence consumed by the subtitle engine.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

var ErrEmptyTranscript = errors.New("transcript payload is empty")

// Entry is one element of a transcript payload. It is either a word (Word set)
// or a segment (Text and optionally Words set). Timestamps are pointers because
// aligners leave them out for words they could not place.
type Entry struct {
	Word     string   `json:"word,omitempty"`
	Text     string   `json:"text,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	End      *float64 `json:"end,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Words    []Entry  `json:"words,omitempty"`
}

// Transcript is a parsed payload: WhisperX segments, OpenAI verbose JSON words,
// or a bare array of either.
type Transcript struct {
	Language string  `json:"language,omitempty"`
	Text     string  `json:"text,omitempty"`
	Segments []Entry `json:"segments,omitempty"`
	Words    []Entry `json:"words,omitempty"`
}

// Parse decodes a transcript payload. Objects may carry "segments", "words" or
// both; a top-level array is treated as a list of words or segments.
func Parse(data []byte) (*Transcript, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyTranscript
	}

	if data[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse transcript array: %w", err)
		}
		t := &Transcript{}
		for _, e := range entries {
			if e.isSegment() {
				t.Segments = append(t.Segments, e)
			} else {
				t.Words = append(t.Words, e)
			}
		}
		return t, nil
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	return &t, nil
}

// ReadFile parses the transcript stored at path.
func ReadFile(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (e Entry) isSegment() bool {
	return e.Word == "" && (e.Text != "" || len(e.Words) > 0)
}

// RawWords flattens the transcript into source-relative raw words. Segment
// words win over top-level words when both are present. Words without a start
// and end are skipped; a segment with no word alignment at all contributes a
// single word spanning the segment.
func (t *Transcript) RawWords() []subtitles.RawWord {
	var out []subtitles.RawWord

	if len(t.Segments) > 0 {
		for _, seg := range t.Segments {
			if len(seg.Words) == 0 {
				if w, ok := seg.segmentWord(); ok {
					out = append(out, w)
				}
				continue
			}
			for _, w := range seg.Words {
				if rw, ok := w.rawWord(); ok {
					out = append(out, rw)
				}
			}
		}
		return out
	}

	for _, w := range t.Words {
		if rw, ok := w.rawWord(); ok {
			out = append(out, rw)
		}
	}
	return out
}

func (e Entry) rawWord() (subtitles.RawWord, bool) {
	text := e.Word
	if text == "" {
		text = e.Text
	}
	if e.Start == nil || e.End == nil || strings.TrimSpace(text) == "" {
		return subtitles.RawWord{}, false
	}
	return subtitles.RawWord{Text: strings.TrimSpace(text), Start: *e.Start, End: *e.End}, true
}

func (e Entry) segmentWord() (subtitles.RawWord, bool) {
	if e.Start == nil || strings.TrimSpace(e.Text) == "" {
		return subtitles.RawWord{}, false
	}
	end := *e.Start
	switch {
	case e.End != nil:
		end = *e.End
	case e.Duration != nil:
		end = *e.Start + *e.Duration
	}
	return subtitles.RawWord{Text: strings.TrimSpace(e.Text), Start: *e.Start, End: end}, true
}

// Window is a clip's range within the source media, in seconds.
type Window struct {
	Start float64 `json:"clip_start"`
	End   float64 `json:"clip_end"`
}

func (w Window) Duration() float64 {
	return w.End - w.Start
}

func (w Window) Validate() error {
	if math.IsNaN(w.Start) || math.IsNaN(w.End) || w.Start < 0 || w.End <= w.Start {
		return fmt.Errorf("invalid clip window [%v, %v)", w.Start, w.End)
	}
	return nil
}

// Clip selects the words that overlap the window and rebases them to
// clip-relative time. Words straddling an edge are cut to the window.
func Clip(words []subtitles.RawWord, w Window) ([]subtitles.RawWord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	out := make([]subtitles.RawWord, 0, len(words))
	for _, rw := range words {
		if rw.End <= w.Start || rw.Start >= w.End {
			continue
		}
		start := math.Max(rw.Start, w.Start) - w.Start
		end := math.Min(rw.End, w.End) - w.Start
		out = append(out, subtitles.RawWord{Text: rw.Text, Start: start, End: end})
	}
	return out, nil
}

// Span returns the window covering every word, starting at zero. It is used
// when a caller supplies a whole-clip transcript without explicit bounds.
func Span(words []subtitles.RawWord) Window {
	var end float64
	for _, w := range words {
		if w.End > end {
			end = w.End
		}
	}
	return Window{Start: 0, End: end}
}
