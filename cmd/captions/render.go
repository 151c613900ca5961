package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

func newRenderCommand() *cobra.Command {
	var flags clipFlags
	var output string
	var outDir string

	cmd := &cobra.Command{
		Use:   "render <transcript.json>...",
		Short: "Render transcripts to .ass documents",
		Long: `Render one or more transcript files (WhisperX segments, OpenAI verbose JSON
or a plain word array) to ASS subtitle documents. A single input is written
to --output or stdout; several inputs are rendered concurrently into --out-dir.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 && outDir == "" {
				return fmt.Errorf("--out-dir is required when rendering several transcripts")
			}
			if len(args) > 1 && output != "" {
				return fmt.Errorf("--output only applies to a single transcript")
			}

			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			svc, engine, err := flags.engine()
			if err != nil {
				return err
			}

			clips := make([]subtitles.Clip, 0, len(args))
			for _, path := range args {
				clip, err := loadClip(svc, req, path)
				if err != nil {
					return err
				}
				clips = append(clips, clip)
			}

			results := subtitles.RenderBatch(cmd.Context(), clips, engine.BatchConcurrency)

			var failed int
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.ID, res.Err)
					continue
				}
				for _, w := range res.Result.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: warning: %s\n", res.ID, w)
				}

				switch {
				case outDir != "":
					dst := filepath.Join(outDir, documentName(res.ID))
					if err := writeDocument(dst, res.Result.Text); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d events)\n", res.ID, dst, len(res.Result.Document.Events))
				case output != "":
					if err := writeDocument(output, res.Result.Text); err != nil {
						return err
					}
				default:
					fmt.Fprint(cmd.OutOrStdout(), res.Result.Text)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d transcripts failed to render", failed, len(results))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for a single transcript (default: stdout)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory; documents are named after their transcripts")

	return cmd
}

// documentName maps clip.json to clip.ass.
func documentName(transcriptPath string) string {
	base := filepath.Base(transcriptPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".ass"
}

// writeDocument writes through a temporary file so readers never see a
// partial document.
func writeDocument(path, document string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(document), 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
