package subtitles

import (
	"errors"
	"fmt"
)

// WarningKind classifies a recoverable anomaly that was corrected in place.
type WarningKind string

const (
	WarnInvalidWordTiming  WarningKind = "invalid_word_timing"
	WarnEmptyWord          WarningKind = "empty_word"
	WarnDegenerateOverlay  WarningKind = "degenerate_overlay_window"
	WarnCaptionOutsideClip WarningKind = "caption_outside_clip"
)

// Warning reports a correction applied while rendering a clip. Index is the
// position in the raw input of the offending word (for a caption confined to
// the clip, the word that caption highlights), or -1 when the warning is about
// an overlay.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Index   int         `json:"index"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Index < 0 {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s (word %d): %s", w.Kind, w.Index, w.Message)
}

var (
	// ErrStyleReference is matched by every *StyleReferenceError.
	ErrStyleReference = errors.New("style reference error")

	ErrInvalidClipDuration = errors.New("clip duration must be positive")
)

// StyleReferenceError means an event names a style missing from the style table.
// The document cannot be interpreted by a renderer, so serialization is aborted.
type StyleReferenceError struct {
	Event int
	Style string
}

func (e *StyleReferenceError) Error() string {
	return fmt.Sprintf("event %d references undefined style %q", e.Event, e.Style)
}

func (e *StyleReferenceError) Is(target error) bool {
	return target == ErrStyleReference
}
