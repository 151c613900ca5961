package subtitles

import (
	"fmt"
	"strconv"
	"strings"
)

// Names of the four styles every document defines.
const (
	StyleCaption      = "Caption"
	StyleHighlight    = "Highlight"
	StyleHookTitle    = "Hook"
	StyleCallToAction = "CTA"
)

// Color is an RGB colour with ASS transparency (0 opaque, 255 invisible).
type Color struct {
	R, G, B, A uint8
}

var (
	ColorWhite         = Color{R: 0xFF, G: 0xFF, B: 0xFF}
	ColorBlack         = Color{}
	ColorYellow        = Color{R: 0xFF, G: 0xFF}
	ColorTranslucentBg = Color{A: 0x80}
)

// ParseColor accepts "#RRGGBB", "#RRGGBBAA" (AA is opacity, CSS style) or a
// native "&HAABBGGRR" value.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		if len(hex) != 6 && len(hex) != 8 {
			return Color{}, fmt.Errorf("invalid colour %q: want #RRGGBB or #RRGGBBAA", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		if len(hex) == 6 {
			return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
		}
		return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: 0xFF - uint8(v)}, nil
	case strings.HasPrefix(strings.ToUpper(s), "&H"):
		hex := strings.TrimSuffix(s[2:], "&")
		if len(hex) != 8 && len(hex) != 6 {
			return Color{}, fmt.Errorf("invalid colour %q: want &HAABBGGRR", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		return Color{A: uint8(v >> 24), B: uint8(v >> 16), G: uint8(v >> 8), R: uint8(v)}, nil
	}
	return Color{}, fmt.Errorf("invalid colour %q", s)
}

// ASS renders the colour in &HAABBGGRR form.
func (c Color) ASS() string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", c.A, c.B, c.G, c.R)
}

// Style is one entry of the styles section.
type Style struct {
	Name         string
	FontName     string
	FontSize     int
	Primary      Color
	Secondary    Color
	Outline      Color
	Back         Color
	Bold         bool
	OutlineWidth float64
	Shadow       float64
	Alignment    int // numpad layout: 1-3 bottom, 4-6 middle, 7-9 top
	MarginL      int
	MarginR      int
	MarginV      int
}

func (s Style) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "" || strings.ContainsAny(s.Name, ",\\{}"):
		return fmt.Errorf("invalid style name %q", s.Name)
	case strings.TrimSpace(s.FontName) == "" || strings.Contains(s.FontName, ","):
		return fmt.Errorf("style %s: invalid font name %q", s.Name, s.FontName)
	case s.FontSize <= 0:
		return fmt.Errorf("style %s: font size must be positive, got %d", s.Name, s.FontSize)
	case s.Alignment < 1 || s.Alignment > 9:
		return fmt.Errorf("style %s: alignment must be 1-9, got %d", s.Name, s.Alignment)
	case s.OutlineWidth < 0 || s.Shadow < 0:
		return fmt.Errorf("style %s: outline and shadow must not be negative", s.Name)
	case s.MarginL < 0 || s.MarginR < 0 || s.MarginV < 0:
		return fmt.Errorf("style %s: margins must not be negative", s.Name)
	}
	return nil
}

// StyleConfig is the caller-facing style configuration. BuildStyles derives
// the four named styles from it.
type StyleConfig struct {
	FontName          string
	FontSize          int
	HighlightFontSize int
	Color             Color
	HighlightColor    Color
	OutlineColor      Color
	BackColor         Color
	OutlineWidth      float64
	Shadow            float64
	Bold              bool
	Alignment         int
	MarginV           int
	MarginH           int

	HookFontSize  int
	HookAlignment int
	HookMarginV   int

	CTAFontSize  int
	CTAAlignment int
	CTAMarginV   int
	CTABackColor Color

	CanvasWidth  int
	CanvasHeight int
}

// DefaultStyleConfig targets a 1080x1920 portrait short: captions in the lower
// third, the hook title at the top and the call to action above the captions.
func DefaultStyleConfig() StyleConfig {
	return StyleConfig{
		FontName:          "Montserrat",
		FontSize:          72,
		HighlightFontSize: 80,
		Color:             ColorWhite,
		HighlightColor:    ColorYellow,
		OutlineColor:      ColorBlack,
		BackColor:         ColorTranslucentBg,
		OutlineWidth:      4,
		Shadow:            2,
		Bold:              true,
		Alignment:         2,
		MarginV:           420,
		MarginH:           60,

		HookFontSize:  88,
		HookAlignment: 8,
		HookMarginV:   260,

		CTAFontSize:  76,
		CTAAlignment: 2,
		CTAMarginV:   640,
		CTABackColor: ColorTranslucentBg,

		CanvasWidth:  1080,
		CanvasHeight: 1920,
	}
}

// BuildStyles validates cfg and returns the Caption, Highlight, Hook and CTA styles.
func BuildStyles(cfg StyleConfig) ([]Style, error) {
	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %dx%d", cfg.CanvasWidth, cfg.CanvasHeight)
	}

	base := Style{
		Name:         StyleCaption,
		FontName:     cfg.FontName,
		FontSize:     cfg.FontSize,
		Primary:      cfg.Color,
		Secondary:    cfg.Color,
		Outline:      cfg.OutlineColor,
		Back:         cfg.BackColor,
		Bold:         cfg.Bold,
		OutlineWidth: cfg.OutlineWidth,
		Shadow:       cfg.Shadow,
		Alignment:    cfg.Alignment,
		MarginL:      cfg.MarginH,
		MarginR:      cfg.MarginH,
		MarginV:      cfg.MarginV,
	}

	highlight := base
	highlight.Name = StyleHighlight
	highlight.FontSize = orDefault(cfg.HighlightFontSize, cfg.FontSize)
	highlight.Primary = cfg.HighlightColor
	highlight.Secondary = cfg.HighlightColor

	hook := base
	hook.Name = StyleHookTitle
	hook.FontSize = orDefault(cfg.HookFontSize, cfg.FontSize)
	hook.Alignment = orDefault(cfg.HookAlignment, 8)
	hook.MarginV = orDefault(cfg.HookMarginV, cfg.MarginV)

	cta := base
	cta.Name = StyleCallToAction
	cta.FontSize = orDefault(cfg.CTAFontSize, cfg.FontSize)
	cta.Alignment = orDefault(cfg.CTAAlignment, cfg.Alignment)
	cta.MarginV = orDefault(cfg.CTAMarginV, cfg.MarginV)
	cta.Back = cfg.CTABackColor

	styles := []Style{base, highlight, hook, cta}
	for _, s := range styles {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return styles, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (s Style) line() string {
	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%s,%s,%d,%d,%d,%d,1",
		s.Name, s.FontName, s.FontSize,
		s.Primary.ASS(), s.Secondary.ASS(), s.Outline.ASS(), s.Back.ASS(),
		assBool(s.Bold),
		formatNumber(s.OutlineWidth), formatNumber(s.Shadow),
		s.Alignment, s.MarginL, s.MarginR, s.MarginV,
	)
}

func assBool(b bool) int {
	if b {
		return -1
	}
	return 0
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
