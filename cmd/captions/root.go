package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobarin/clipcaptions/internal/config"
	"github.com/bobarin/clipcaptions/internal/models"
	"github.com/bobarin/clipcaptions/internal/services"
	"github.com/bobarin/clipcaptions/internal/subtitles"
	"github.com/bobarin/clipcaptions/internal/transcript"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "captions",
		Short:         "Render karaoke-style ASS captions from word timestamps",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// clipFlags are the per-clip settings shared by render, inspect and watch.
type clipFlags struct {
	preset       string
	title        string
	clipStart    float64
	clipEnd      float64
	duration     float64
	hook         string
	cta          string
	hookDuration float64
	ctaDuration  float64
	maxWords     int
	gapMs        int
	uppercase    bool
	powerWords   string
}

func (f *clipFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.preset, "preset", "", "YAML style preset (overrides STYLE_PRESET_PATH)")
	fs.StringVar(&f.title, "title", "", "Script title")
	fs.Float64Var(&f.clipStart, "clip-start", 0, "Clip start within the transcript, in seconds")
	fs.Float64Var(&f.clipEnd, "clip-end", 0, "Clip end within the transcript, in seconds")
	fs.Float64Var(&f.duration, "duration", 0, "Clip duration in seconds (default: clip window or last word)")
	fs.StringVar(&f.hook, "hook", "", `Hook title text; "\n" breaks lines`)
	fs.StringVar(&f.cta, "cta", "", `Call to action text; "\n" breaks lines`)
	fs.Float64Var(&f.hookDuration, "hook-duration", 0, "Hook title duration in seconds")
	fs.Float64Var(&f.ctaDuration, "cta-duration", 0, "Call to action duration in seconds")
	fs.IntVar(&f.maxWords, "max-words", 0, "Maximum words per caption group")
	fs.IntVar(&f.gapMs, "gap-ms", 0, "Fill gaps shorter than this many milliseconds (0 disables)")
	fs.BoolVar(&f.uppercase, "uppercase", false, "Render all captions in upper case")
	fs.StringVar(&f.powerWords, "power-words", "", "Comma-separated words always rendered in upper case")
}

// request turns the flags into the same render request the HTTP API accepts.
func (f *clipFlags) request(cmd *cobra.Command) (*models.RenderRequest, error) {
	fs := cmd.Flags()
	req := &models.RenderRequest{Title: f.title}

	if fs.Changed("clip-start") || fs.Changed("clip-end") {
		start, end := f.clipStart, f.clipEnd
		req.ClipStart, req.ClipEnd = &start, &end
	}
	if fs.Changed("duration") {
		d := f.duration
		req.ClipDuration = &d
	}
	if f.hook != "" {
		req.Hook = &models.OverlayRequest{Text: lineBreaks(f.hook), Duration: f.hookDuration}
	}
	if f.cta != "" {
		req.CTA = &models.OverlayRequest{Text: lineBreaks(f.cta), Duration: f.ctaDuration}
	}
	if fs.Changed("max-words") {
		n := f.maxWords
		req.MaxWordsPerGroup = &n
	}
	if fs.Changed("gap-ms") {
		n := f.gapMs
		req.MaxGapFillMs = &n
	}
	if fs.Changed("uppercase") {
		u := f.uppercase
		req.Uppercase = &u
	}
	for _, w := range strings.Split(f.powerWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			req.PowerWords = append(req.PowerWords, w)
		}
	}

	if (req.ClipStart == nil) != (req.ClipEnd == nil) {
		return nil, fmt.Errorf("--clip-start and --clip-end must be given together")
	}
	if err := req.ValidateSettings(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return req, nil
}

// lineBreaks turns a literal \n typed on the command line into a line break.
func lineBreaks(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// engine loads the engine configuration from the environment and the
// --preset flag.
func (f *clipFlags) engine() (*services.CaptionService, config.Engine, error) {
	e := config.LoadEngine()
	if f.preset != "" {
		e.StylePresetPath = f.preset
	}
	opts, err := e.Options()
	if err != nil {
		return nil, e, err
	}
	return services.NewCaptionService(opts), e, nil
}

// loadClip reads a transcript file and prepares it for rendering.
func loadClip(svc *services.CaptionService, req *models.RenderRequest, path string) (subtitles.Clip, error) {
	t, err := transcript.ReadFile(path)
	if err != nil {
		return subtitles.Clip{}, err
	}

	words, duration, err := services.ClipWords(req, t.RawWords())
	if err != nil {
		return subtitles.Clip{}, fmt.Errorf("%s: %w", path, err)
	}

	opts := svc.Options(req)
	opts.ClipDuration = duration
	return subtitles.Clip{ID: path, Words: words, Options: opts}, nil
}
