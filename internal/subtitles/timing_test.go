package subtitles

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
)

var markup = regexp.MustCompile(`\{[^}]*\}`)

func stripMarkup(s string) string {
	return markup.ReplaceAllString(s, "")
}

func resolve(words []Word) []Event {
	return ResolveTiming(GroupWords(words, DefaultGroupOptions()), DefaultTimingOptions(), TextOptions{})
}

func TestResolveTimingScenarioA(t *testing.T) {
	events := resolve([]Word{
		{Text: "Hello", Start: 0.00, End: 0.30},
		{Text: "world", Start: 0.35, End: 0.70},
		{Text: "today", Start: 0.72, End: 1.00},
	})

	want := []struct {
		start, end float64
		text       string
	}{
		{0.00, 0.35, `{\rHighlight}Hello{\r} world today`},
		{0.35, 0.72, `Hello {\rHighlight}world{\r} today`},
		{0.72, 1.00, `Hello world {\rHighlight}today{\r}`},
	}

	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, w := range want {
		ev := events[i]
		if ev.Start != w.start || ev.End != w.end {
			t.Errorf("event %d: got [%v,%v], want [%v,%v]", i, ev.Start, ev.End, w.start, w.end)
		}
		if ev.Text != w.text {
			t.Errorf("event %d: got text %q, want %q", i, ev.Text, w.text)
		}
		if stripMarkup(ev.Text) != "Hello world today" {
			t.Errorf("event %d: plain text %q", i, stripMarkup(ev.Text))
		}
		if ev.Layer != LayerCaption || ev.Style != StyleCaption {
			t.Errorf("event %d: got layer %d style %s", i, ev.Layer, ev.Style)
		}
	}
}

func TestResolveTimingScenarioB(t *testing.T) {
	events := resolve([]Word{
		{Text: "Hello", Start: 0.00, End: 0.30},
		{Text: "world", Start: 0.35, End: 0.70},
		{Text: "today", Start: 3.50, End: 3.80},
	})
	if events[1].End != 0.70 {
		t.Errorf("expected world to end at its natural end 0.70, got %v", events[1].End)
	}
	if events[2].Start != 3.50 {
		t.Errorf("expected today to start at 3.50, got %v", events[2].Start)
	}
}

func TestResolveTimingGapThreshold(t *testing.T) {
	tests := []struct {
		name      string
		nextStart float64
		wantEnd   float64
	}{
		{"1000ms gap filled", 1.5, 1.5},
		{"1999ms gap filled", 2.499, 2.499},
		{"2000ms gap kept", 2.5, 0.5},
		{"2500ms gap kept", 3.0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := resolve([]Word{
				{Text: "first", Start: 0, End: 0.5},
				{Text: "second", Start: tt.nextStart, End: tt.nextStart + 0.4},
			})
			if events[0].End != tt.wantEnd {
				t.Errorf("got end %v, want %v", events[0].End, tt.wantEnd)
			}
		})
	}
}

func TestResolveTimingGapFillDisabled(t *testing.T) {
	groups := GroupWords([]Word{
		{Text: "a", Start: 0, End: 0.5},
		{Text: "b", Start: 0.6, End: 1.0},
	}, DefaultGroupOptions())
	events := ResolveTiming(groups, TimingOptions{MaxGapFillMs: 0}, TextOptions{})
	if events[0].End != 0.5 {
		t.Errorf("expected no gap fill, got end %v", events[0].End)
	}
}

func TestResolveTimingNeverOverlapsWithinGroup(t *testing.T) {
	words := []Word{
		{Text: "one", Start: 0, End: 1.0},
		{Text: "two", Start: 0.9, End: 2.0},
		{Text: "three", Start: 2.0, End: 3.0},
	}
	for _, threshold := range []int{-500, 0, DefaultMaxGapFillMs} {
		events := ResolveTiming(GroupWords(words, DefaultGroupOptions()), TimingOptions{MaxGapFillMs: threshold}, TextOptions{})
		if len(events) != 3 {
			t.Fatalf("threshold %d: expected 3 events, got %d", threshold, len(events))
		}
		if events[0].End != 0.9 {
			t.Errorf("threshold %d: expected one to end where two starts (0.9), got %v", threshold, events[0].End)
		}
		for i := 1; i < len(events); i++ {
			if events[i].Start < events[i-1].End {
				t.Errorf("threshold %d: event %d starts at %v before event %d ends at %v",
					threshold, i, events[i].Start, i-1, events[i-1].End)
			}
		}
	}
}

func TestResolveTimingNegativeThresholdDisablesGapFill(t *testing.T) {
	groups := GroupWords([]Word{
		{Text: "a", Start: 0, End: 0.5},
		{Text: "b", Start: 0.6, End: 1.0},
	}, DefaultGroupOptions())
	events := ResolveTiming(groups, TimingOptions{MaxGapFillMs: -500}, TextOptions{})
	if events[0].End != 0.5 {
		t.Errorf("expected no gap fill, got end %v", events[0].End)
	}
}

func TestResolveTimingNoFillAcrossGroups(t *testing.T) {
	events := resolve([]Word{
		{Text: "End.", Start: 0, End: 0.4},
		{Text: "Next", Start: 0.6, End: 0.9},
	})
	if events[0].End != 0.4 {
		t.Errorf("expected last word of group to keep end 0.4, got %v", events[0].End)
	}
	if events[1].Text != `{\rHighlight}Next{\r}` {
		t.Errorf("expected next group rendered alone, got %q", events[1].Text)
	}
}

func TestResolveTimingTrimsOverlapAcrossGroups(t *testing.T) {
	events := resolve([]Word{
		{Text: "one", Start: 0, End: 0.3},
		{Text: "two", Start: 0.3, End: 0.6},
		{Text: "three", Start: 0.6, End: 1.2},
		{Text: "four", Start: 1.0, End: 1.5},
	})
	if events[2].End != 1.0 {
		t.Errorf("expected overlap trimmed to next group start 1.0, got %v", events[2].End)
	}
}

func TestResolveTimingCasing(t *testing.T) {
	groups := GroupWords([]Word{
		{Text: "this", Start: 0, End: 0.2},
		{Text: "changes", Start: 0.2, End: 0.5},
		{Text: "everything!", Start: 0.5, End: 0.9},
	}, DefaultGroupOptions())

	events := ResolveTiming(groups, DefaultTimingOptions(), TextOptions{PowerWords: []string{"Everything"}})
	if got := stripMarkup(events[0].Text); got != "this changes EVERYTHING!" {
		t.Errorf("power word not upper-cased: %q", got)
	}

	events = ResolveTiming(groups, DefaultTimingOptions(), TextOptions{Uppercase: true})
	if got := events[1].Text; got != `THIS {\rHighlight}CHANGES{\r} EVERYTHING!` {
		t.Errorf("unexpected upper-case rendering: %q", got)
	}
}

func TestResolveTimingSanitizesWordText(t *testing.T) {
	groups := GroupWords([]Word{{Text: `{\b1}bold`, Start: 0, End: 1}}, DefaultGroupOptions())
	events := ResolveTiming(groups, DefaultTimingOptions(), TextOptions{})
	if events[0].Text != `{\rHighlight}(/b1)bold{\r}` {
		t.Errorf("markup leaked from word text: %q", events[0].Text)
	}
}

func TestResolveTimingPartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(30)
		raw := make([]RawWord, n)
		cursor := 0.0
		for i := range raw {
			cursor += rng.Float64() * 3
			raw[i] = RawWord{
				Text:  []string{"go", "fast.", "and", "why?", "build", "it!"}[rng.Intn(6)],
				Start: cursor - rng.Float64()*0.4,
				End:   cursor + rng.Float64()*1.5,
			}
		}

		words, _ := Normalize(raw)
		groups := GroupWords(words, GroupOptions{MaxWords: 1 + rng.Intn(5)})
		events := ResolveTiming(groups, DefaultTimingOptions(), TextOptions{})

		if len(events) != len(words) {
			t.Fatalf("trial %d: %d events for %d words", trial, len(events), len(words))
		}

		first, last := words[0].Start, words[len(words)-1].End
		for i, ev := range events {
			if ev.End < ev.Start {
				t.Fatalf("trial %d: event %d ends before it starts: %+v", trial, i, ev)
			}
			if ev.Start < first || ev.End > last {
				t.Fatalf("trial %d: event %d [%v,%v] outside [%v,%v]", trial, i, ev.Start, ev.End, first, last)
			}
			if i > 0 && ev.Start < events[i-1].End {
				t.Fatalf("trial %d: event %d overlaps previous: %v < %v", trial, i, ev.Start, events[i-1].End)
			}
			if got := strings.Count(ev.Text, `{\r`+StyleHighlight+`}`); got != 1 {
				t.Fatalf("trial %d: event %d has %d highlighted words", trial, i, got)
			}
		}
	}
}
