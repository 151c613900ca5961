package subtitles

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultHookDuration         = 2.0
	DefaultCallToActionDuration = 8.0
)

// OverlaySpec describes a fixed-position overlay. Empty Text means the overlay
// is not configured; a non-positive Duration falls back to the overlay's default.
type OverlaySpec struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

// OverlayOptions holds the opening title and the closing call to action.
type OverlayOptions struct {
	Hook         OverlaySpec `json:"hook"`
	CallToAction OverlaySpec `json:"cta"`
}

// ComposeEvents merges caption events with the HookTitle ([0, hook]) and
// CallToAction ([clip-cta, clip]) overlays and sorts the union by (start, layer).
// Overlays longer than the clip are clamped to [0, clip]. Caption events are
// confined to the clip: events starting at or after its end are dropped and
// events running past it are trimmed. Overlap between layers is left to the renderer.
func ComposeEvents(captions []Event, clipDuration float64, overlays OverlayOptions) ([]Event, []Warning) {
	var warnings []Warning
	events := make([]Event, 0, len(captions)+2)

	for _, ev := range captions {
		if ev.Start >= clipDuration {
			warnings = append(warnings, Warning{
				Kind:    WarnCaptionOutsideClip,
				Index:   ev.word,
				Message: fmt.Sprintf("caption at %.3fs starts after clip end %.3fs; dropped", ev.Start, clipDuration),
			})
			continue
		}
		if ev.End > clipDuration {
			warnings = append(warnings, Warning{
				Kind:    WarnCaptionOutsideClip,
				Index:   ev.word,
				Message: fmt.Sprintf("caption end %.3fs trimmed to clip end %.3fs", ev.End, clipDuration),
			})
			ev.End = clipDuration
		}
		events = append(events, ev)
	}

	if hook, ok, w := overlayEvent("hook title", overlays.Hook, DefaultHookDuration, clipDuration, false); ok {
		hook.Layer = LayerHookTitle
		hook.Style = StyleHookTitle
		events = append(events, hook)
		warnings = append(warnings, w...)
	}
	if cta, ok, w := overlayEvent("call to action", overlays.CallToAction, DefaultCallToActionDuration, clipDuration, true); ok {
		cta.Layer = LayerCallToAction
		cta.Style = StyleCallToAction
		events = append(events, cta)
		warnings = append(warnings, w...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start != events[j].Start {
			return events[i].Start < events[j].Start
		}
		return events[i].Layer < events[j].Layer
	})

	return events, warnings
}

func overlayEvent(name string, spec OverlaySpec, defaultDuration, clipDuration float64, anchorEnd bool) (Event, bool, []Warning) {
	if strings.TrimSpace(spec.Text) == "" {
		return Event{}, false, nil
	}

	duration := spec.Duration
	if duration <= 0 {
		duration = defaultDuration
	}

	var warnings []Warning
	ev := Event{Text: overlayText(spec.Text)}
	switch {
	case duration >= clipDuration:
		warnings = append(warnings, Warning{
			Kind:    WarnDegenerateOverlay,
			Index:   -1,
			Message: fmt.Sprintf("%s duration %.3fs covers clip duration %.3fs; clamped to whole clip", name, duration, clipDuration),
		})
		ev.Start, ev.End = 0, clipDuration
	case anchorEnd:
		ev.Start, ev.End = clipDuration-duration, clipDuration
	default:
		ev.Start, ev.End = 0, duration
	}

	return ev, true, warnings
}

// overlayText turns author line breaks into hard breaks.
func overlayText(s string) string {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = sanitizeText(strings.TrimSpace(l))
	}
	return strings.Join(lines, `\N`)
}
