package subtitles

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const DefaultTitle = "Short Clip Captions"

const (
	styleFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"
	eventFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"
)

// inlineStyleRef finds `\rName` style switches inside override blocks; a bare
// `{\r}` reset has no name and is not matched.
var inlineStyleRef = regexp.MustCompile(`\\r([^\\}]+)`)

// Document is a complete styled subtitle document for one clip.
type Document struct {
	Title        string
	CanvasWidth  int
	CanvasHeight int
	Styles       []Style
	Events       []Event // sorted by (Start, Layer)
}

// Validate checks that every event, and every inline style switch in its text,
// names a style defined in the document.
func (d *Document) Validate() error {
	defined := make(map[string]struct{}, len(d.Styles))
	for _, s := range d.Styles {
		defined[s.Name] = struct{}{}
	}

	for i, ev := range d.Events {
		if _, ok := defined[ev.Style]; !ok {
			return &StyleReferenceError{Event: i, Style: ev.Style}
		}
		for _, m := range inlineStyleRef.FindAllStringSubmatch(ev.Text, -1) {
			if _, ok := defined[m[1]]; !ok {
				return &StyleReferenceError{Event: i, Style: m[1]}
			}
		}
	}
	return nil
}

// Serialize renders the document in Advanced SubStation Alpha (v4.00+) form.
// It is a pure function of the document: identical documents serialize to
// identical bytes.
func (d *Document) Serialize() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	title := d.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	fmt.Fprintf(&sb, "Title: %s\n", strings.ReplaceAll(title, "\n", " "))
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", d.CanvasWidth)
	fmt.Fprintf(&sb, "PlayResY: %d\n", d.CanvasHeight)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString(styleFormat + "\n")
	for _, s := range d.Styles {
		sb.WriteString(s.line() + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString(eventFormat + "\n")
	for _, ev := range d.Events {
		start := centiseconds(ev.Start)
		end := centiseconds(ev.End)
		if end < start {
			end = start
		}
		fmt.Fprintf(&sb, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s\n",
			ev.Layer, formatCentiseconds(start), formatCentiseconds(end), ev.Style, ev.Text)
	}

	return sb.String(), nil
}

// FormatTimestamp converts seconds to H:MM:SS.cc, rounding to the nearest
// centisecond. Negative times format as zero.
func FormatTimestamp(seconds float64) string {
	return formatCentiseconds(centiseconds(seconds))
}

func centiseconds(seconds float64) int64 {
	if !finite(seconds) || seconds <= 0 {
		return 0
	}
	return int64(math.Round(seconds * 100))
}

func formatCentiseconds(cs int64) string {
	hours := cs / 360000
	minutes := (cs / 6000) % 60
	secs := (cs / 100) % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, cs%100)
}
