package subtitles

import (
	"math"
	"strings"
	"unicode"
)

const DefaultMaxGapFillMs = 2000

// Layer is the stacking order of an event; higher layers paint over lower ones.
type Layer int

const (
	LayerCaption      Layer = 0
	LayerHookTitle    Layer = 1
	LayerCallToAction Layer = 2
)

// Event is one line of the events section: a caption (layer 0, one per word)
// or an overlay (HookTitle on layer 1, CallToAction on layer 2).
type Event struct {
	Layer Layer   `json:"layer"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Style string  `json:"style"`
	Text  string  `json:"text"`

	word int // raw index of the highlighted word; caption events only
}

// TimingOptions controls gap filling between consecutive words of a group.
// A gap shorter than MaxGapFillMs is closed; zero or a negative value disables
// gap filling.
type TimingOptions struct {
	MaxGapFillMs int
}

func DefaultTimingOptions() TimingOptions {
	return TimingOptions{MaxGapFillMs: DefaultMaxGapFillMs}
}

// TextOptions controls how word text is cased in rendered captions.
type TextOptions struct {
	Uppercase  bool
	PowerWords []string // case-insensitive; always rendered upper case
}

// ResolveTiming emits one caption event per word. Within a group, a word whose
// successor starts less than MaxGapFillMs after its end is held on screen until
// that successor starts; otherwise it ends at its own end and a blank interval
// remains. The last word of a group keeps its natural end, trimmed only when the
// next group starts before it so that caption windows never overlap.
func ResolveTiming(groups []Group, timing TimingOptions, text TextOptions) []Event {
	power := powerWordSet(text.PowerWords)

	var events []Event
	for gi, g := range groups {
		for wi, w := range g.Words {
			end := w.End
			if wi+1 < len(g.Words) {
				// An overlapping successor always cuts the word short, whatever
				// the threshold, so events within a group never overlap.
				next := g.Words[wi+1]
				if next.Start < end || gapMillis(w.End, next.Start) < float64(timing.MaxGapFillMs) {
					end = next.Start
				}
			} else if gi+1 < len(groups) {
				if nextStart := groups[gi+1].Start(); nextStart < end {
					end = nextStart
				}
			}
			if end < w.Start {
				end = w.Start
			}

			events = append(events, Event{
				Layer: LayerCaption,
				Start: w.Start,
				End:   end,
				Style: StyleCaption,
				Text:  highlightedText(g, wi, text.Uppercase, power),
				word:  w.Index,
			})
		}
	}

	return events
}

// gapMillis is rounded to whole milliseconds so threshold comparisons are not
// thrown off by float noise (3.0-0.5 must be exactly 2500).
func gapMillis(end, nextStart float64) float64 {
	return math.Round((nextStart - end) * 1000)
}

// highlightedText renders the group in word order with the active word switched
// to the highlight style and reset to the event's base style afterwards.
func highlightedText(g Group, active int, uppercase bool, power map[string]struct{}) string {
	parts := make([]string, len(g.Words))
	for i, w := range g.Words {
		t := sanitizeText(w.Text)
		if uppercase || isPowerWord(t, power) {
			t = strings.ToUpper(t)
		}
		if i == active {
			t = `{\r` + StyleHighlight + `}` + t + `{\r}`
		}
		parts[i] = t
	}
	return strings.Join(parts, " ")
}

func powerWordSet(words []string) map[string]struct{} {
	if len(words) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if key := powerKey(w); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func isPowerWord(text string, power map[string]struct{}) bool {
	if power == nil {
		return false
	}
	_, ok := power[powerKey(text)]
	return ok
}

func powerKey(s string) string {
	return strings.ToLower(strings.TrimFunc(strings.TrimSpace(s), unicode.IsPunct))
}

// sanitizeText keeps recognised text from opening override blocks or escapes.
func sanitizeText(s string) string {
	return textReplacer.Replace(s)
}

var textReplacer = strings.NewReplacer(
	"{", "(",
	"}", ")",
	`\`, "/",
	"\r", "",
	"\n", " ",
)
