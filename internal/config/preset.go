package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

// StylePreset is the YAML form of a caption style. Fields left out keep the
// engine defaults.
type StylePreset struct {
	Font              string   `yaml:"font"`
	FontSize          int      `yaml:"font_size"`
	HighlightFontSize int      `yaml:"highlight_font_size"`
	Color             string   `yaml:"color"`
	HighlightColor    string   `yaml:"highlight_color"`
	OutlineColor      string   `yaml:"outline_color"`
	BackColor         string   `yaml:"back_color"`
	OutlineWidth      *float64 `yaml:"outline_width"`
	Shadow            *float64 `yaml:"shadow"`
	Bold              *bool    `yaml:"bold"`
	Alignment         int      `yaml:"alignment"`
	MarginV           *int     `yaml:"margin_v"`
	MarginH           *int     `yaml:"margin_h"`

	Hook   OverlayPreset `yaml:"hook"`
	CTA    OverlayPreset `yaml:"cta"`
	Canvas CanvasPreset  `yaml:"canvas"`
}

type OverlayPreset struct {
	FontSize  int    `yaml:"font_size"`
	Alignment int    `yaml:"alignment"`
	MarginV   int    `yaml:"margin_v"`
	BackColor string `yaml:"back_color"`
}

type CanvasPreset struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func LoadStylePreset(path string) (*StylePreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style preset: %w", err)
	}

	var p StylePreset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse style preset: %w", err)
	}
	return &p, nil
}

// StyleConfig applies the preset over the default style and validates the result.
func (p *StylePreset) StyleConfig() (subtitles.StyleConfig, error) {
	cfg := subtitles.DefaultStyleConfig()

	if p.Font != "" {
		cfg.FontName = p.Font
	}
	if p.FontSize > 0 {
		cfg.FontSize = p.FontSize
	}
	if p.HighlightFontSize > 0 {
		cfg.HighlightFontSize = p.HighlightFontSize
	}
	if p.OutlineWidth != nil {
		cfg.OutlineWidth = *p.OutlineWidth
	}
	if p.Shadow != nil {
		cfg.Shadow = *p.Shadow
	}
	if p.Bold != nil {
		cfg.Bold = *p.Bold
	}
	if p.Alignment != 0 {
		cfg.Alignment = p.Alignment
	}
	if p.MarginV != nil {
		cfg.MarginV = *p.MarginV
	}
	if p.MarginH != nil {
		cfg.MarginH = *p.MarginH
	}

	if p.Hook.FontSize > 0 {
		cfg.HookFontSize = p.Hook.FontSize
	}
	if p.Hook.Alignment != 0 {
		cfg.HookAlignment = p.Hook.Alignment
	}
	if p.Hook.MarginV > 0 {
		cfg.HookMarginV = p.Hook.MarginV
	}
	if p.CTA.FontSize > 0 {
		cfg.CTAFontSize = p.CTA.FontSize
	}
	if p.CTA.Alignment != 0 {
		cfg.CTAAlignment = p.CTA.Alignment
	}
	if p.CTA.MarginV > 0 {
		cfg.CTAMarginV = p.CTA.MarginV
	}

	if p.Canvas.Width > 0 {
		cfg.CanvasWidth = p.Canvas.Width
	}
	if p.Canvas.Height > 0 {
		cfg.CanvasHeight = p.Canvas.Height
	}

	colors := []struct {
		field string
		value string
		dst   *subtitles.Color
	}{
		{"color", p.Color, &cfg.Color},
		{"highlight_color", p.HighlightColor, &cfg.HighlightColor},
		{"outline_color", p.OutlineColor, &cfg.OutlineColor},
		{"back_color", p.BackColor, &cfg.BackColor},
		{"cta.back_color", p.CTA.BackColor, &cfg.CTABackColor},
	}
	for _, c := range colors {
		if c.value == "" {
			continue
		}
		parsed, err := subtitles.ParseColor(c.value)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", c.field, err)
		}
		*c.dst = parsed
	}

	if _, err := subtitles.BuildStyles(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
