package subtitles

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Options is the full configuration of one clip's render.
type Options struct {
	Title        string
	ClipDuration float64 // seconds, must be positive
	Grouping     GroupOptions
	Timing       TimingOptions
	Text         TextOptions
	Overlays     OverlayOptions
	Style        StyleConfig
}

func DefaultOptions() Options {
	return Options{
		Title:    DefaultTitle,
		Grouping: DefaultGroupOptions(),
		Timing:   DefaultTimingOptions(),
		Style:    DefaultStyleConfig(),
		Overlays: OverlayOptions{
			Hook:         OverlaySpec{Duration: DefaultHookDuration},
			CallToAction: OverlaySpec{Duration: DefaultCallToActionDuration},
		},
	}
}

// Result is the outcome of rendering one clip.
type Result struct {
	Document *Document
	Groups   []Group
	Warnings []Warning
	Text     string // serialized document
}

// Render runs the whole pipeline for one clip: normalize, group, resolve timing,
// compose overlays and serialize. Timing and overlay anomalies are corrected and
// reported in Result.Warnings; only an invalid clip duration, an invalid style
// configuration or a dangling style reference fail the clip.
func Render(raw []RawWord, opts Options) (*Result, error) {
	if !finite(opts.ClipDuration) || opts.ClipDuration <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidClipDuration, opts.ClipDuration)
	}

	styles, err := BuildStyles(opts.Style)
	if err != nil {
		return nil, fmt.Errorf("invalid style configuration: %w", err)
	}

	words, warnings := Normalize(raw)
	groups := GroupWords(words, opts.Grouping)
	captions := ResolveTiming(groups, opts.Timing, opts.Text)
	events, overlayWarnings := ComposeEvents(captions, opts.ClipDuration, opts.Overlays)
	warnings = append(warnings, overlayWarnings...)

	doc := &Document{
		Title:        opts.Title,
		CanvasWidth:  opts.Style.CanvasWidth,
		CanvasHeight: opts.Style.CanvasHeight,
		Styles:       styles,
		Events:       events,
	}

	text, err := doc.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize subtitles: %w", err)
	}

	return &Result{
		Document: doc,
		Groups:   groups,
		Warnings: warnings,
		Text:     text,
	}, nil
}

// Clip is one unit of batch work.
type Clip struct {
	ID      string
	Words   []RawWord
	Options Options
}

// BatchResult pairs a clip with its outcome. Exactly one of Result and Err is set.
type BatchResult struct {
	ID     string
	Result *Result
	Err    error
}

// RenderBatch renders clips concurrently, at most concurrency at a time.
// A failing clip never affects its siblings. Clips not yet started when ctx is
// cancelled report ctx.Err(). Results keep the input order.
func RenderBatch(ctx context.Context, clips []Clip, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]BatchResult, len(clips))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range clips {
		g.Go(func() error {
			clip := clips[i]
			results[i].ID = clip.ID
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = Render(clip.Words, clip.Options)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
