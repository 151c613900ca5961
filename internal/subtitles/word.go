package subtitles

import (
	"fmt"
	"math"
	"strings"
)

// RawWord is a recognised word exactly as the transcription collaborator delivered it.
type RawWord struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Word is a validated word: Start <= End, and Start never decreases along a
// normalized sequence. Times are clip-relative seconds.
type Word struct {
	Text  string
	Start float64
	End   float64
	Index int // position in the raw input
}

// Normalize turns raw words into a canonical sequence. Timing violations are
// clamped rather than rejected so a single bad timestamp cannot abort a clip:
//   - a start that regresses before the previous word's start moves to the previous word's end
//   - a negative or non-finite start moves to the previous word's end (0 for the first word)
//   - an end before its own start collapses onto the start
//
// Words with no visible text are dropped. Each correction is reported as a Warning.
// An empty input yields an empty sequence.
func Normalize(raw []RawWord) ([]Word, []Warning) {
	words := make([]Word, 0, len(raw))
	var warnings []Warning

	for i, rw := range raw {
		text := strings.Join(strings.Fields(rw.Text), " ")
		if text == "" {
			warnings = append(warnings, Warning{Kind: WarnEmptyWord, Index: i, Message: "dropped word with no text"})
			continue
		}

		floor := 0.0
		prevStart := 0.0
		if n := len(words); n > 0 {
			floor = words[n-1].End
			prevStart = words[n-1].Start
		}

		w := Word{Text: text, Start: rw.Start, End: rw.End, Index: i}

		switch {
		case !finite(w.Start) || w.Start < 0:
			warnings = append(warnings, timingWarning(i, "start %v is invalid; clamped to %.3fs", rw.Start, floor))
			w.Start = floor
		case len(words) > 0 && w.Start < prevStart:
			warnings = append(warnings, timingWarning(i, "start %.3fs regresses before previous start %.3fs; clamped to %.3fs", w.Start, prevStart, floor))
			w.Start = floor
		}

		if !finite(w.End) || w.End < w.Start {
			warnings = append(warnings, timingWarning(i, "end %v precedes start %.3fs; clamped", rw.End, w.Start))
			w.End = w.Start
		}

		words = append(words, w)
	}

	return words, warnings
}

func timingWarning(index int, format string, args ...interface{}) Warning {
	return Warning{Kind: WarnInvalidWordTiming, Index: index, Message: fmt.Sprintf(format, args...)}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
