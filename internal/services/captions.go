package services

import (
	"fmt"
	"strings"

	"github.com/bobarin/clipcaptions/internal/models"
	"github.com/bobarin/clipcaptions/internal/subtitles"
	"github.com/bobarin/clipcaptions/internal/transcript"
)

// CaptionService turns render requests into subtitle documents using the
// configured engine options as defaults.
type CaptionService struct {
	base subtitles.Options
}

func NewCaptionService(base subtitles.Options) *CaptionService {
	return &CaptionService{base: base}
}

// InlineWords returns the words carried by the request itself: the words
// array or a parsed transcript payload. It returns nil when the request
// refers to audio or carries no words.
func InlineWords(req *models.RenderRequest) ([]subtitles.RawWord, error) {
	if len(req.Words) > 0 {
		return append([]subtitles.RawWord(nil), req.Words...), nil
	}
	if len(req.Transcript) > 0 {
		t, err := transcript.Parse(req.Transcript)
		if err != nil {
			return nil, fmt.Errorf("invalid transcript: %w", err)
		}
		return t.RawWords(), nil
	}
	return nil, nil
}

// Options applies the request's overrides over the engine defaults.
func (s *CaptionService) Options(req *models.RenderRequest) subtitles.Options {
	opts := s.base
	opts.Text.PowerWords = append([]string(nil), s.base.Text.PowerWords...)

	if req.Title != "" {
		opts.Title = req.Title
	}
	if req.MaxWordsPerGroup != nil {
		opts.Grouping.MaxWords = *req.MaxWordsPerGroup
	}
	if req.Terminators != nil {
		opts.Grouping.Terminators = *req.Terminators
	}
	if req.MaxGapFillMs != nil {
		opts.Timing.MaxGapFillMs = *req.MaxGapFillMs
	}
	if req.Uppercase != nil {
		opts.Text.Uppercase = *req.Uppercase
	}
	opts.Text.PowerWords = append(opts.Text.PowerWords, req.PowerWords...)

	opts.Overlays.Hook.Text = ""
	opts.Overlays.CallToAction.Text = ""
	if req.Hook != nil {
		opts.Overlays.Hook.Text = req.Hook.Text
		if req.Hook.Duration > 0 {
			opts.Overlays.Hook.Duration = req.Hook.Duration
		}
	}
	if req.CTA != nil {
		opts.Overlays.CallToAction.Text = req.CTA.Text
		if req.CTA.Duration > 0 {
			opts.Overlays.CallToAction.Duration = req.CTA.Duration
		}
	}
	return opts
}

// ClipWords windows source-relative words to the request's clip and returns
// them with the clip duration. Without a window the words are taken as
// clip-relative and the duration defaults to the end of the last word.
func ClipWords(req *models.RenderRequest, words []subtitles.RawWord) ([]subtitles.RawWord, float64, error) {
	var duration float64

	if req.ClipStart != nil && req.ClipEnd != nil {
		window := transcript.Window{Start: *req.ClipStart, End: *req.ClipEnd}
		clipped, err := transcript.Clip(words, window)
		if err != nil {
			return nil, 0, err
		}
		words = clipped
		duration = window.Duration()
	} else {
		duration = transcript.Span(words).End
	}

	if req.ClipDuration != nil {
		duration = *req.ClipDuration
	}
	return words, duration, nil
}

// Render captions one clip. suggestedHook is used only when the request has
// no hook text of its own.
func (s *CaptionService) Render(req *models.RenderRequest, words []subtitles.RawWord, suggestedHook string) (*subtitles.Result, error) {
	clipped, duration, err := ClipWords(req, words)
	if err != nil {
		return nil, err
	}

	opts := s.Options(req)
	opts.ClipDuration = duration
	if strings.TrimSpace(opts.Overlays.Hook.Text) == "" && suggestedHook != "" {
		opts.Overlays.Hook.Text = suggestedHook
	}

	return subtitles.Render(clipped, opts)
}

// PlainText joins the words into a transcript string for prompts.
func PlainText(words []subtitles.RawWord) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
