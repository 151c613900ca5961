package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

var (
	overrideBlock = regexp.MustCompile(`\{[^}]*\}`)
	activeMarker  = strings.NewReplacer(`{\r`+subtitles.StyleHighlight+`}`, "[", `{\r}`, "]")
)

func newInspectCommand() *cobra.Command {
	var flags clipFlags

	cmd := &cobra.Command{
		Use:   "inspect <transcript.json>",
		Short: "Show the groups, events and warnings a transcript renders to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			svc, _, err := flags.engine()
			if err != nil {
				return err
			}
			clip, err := loadClip(svc, req, args[0])
			if err != nil {
				return err
			}

			res, err := subtitles.Render(clip.Words, clip.Options)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %.2fs, %d words in %d groups, %d events\n",
				args[0], clip.Options.ClipDuration, len(clip.Words), len(res.Groups), len(res.Document.Events))
			fmt.Fprintln(out, renderTable(eventTable(res.Document.Events)))

			if len(res.Warnings) > 0 {
				rows := make([][]string, len(res.Warnings))
				for i, w := range res.Warnings {
					index := "-"
					if w.Index >= 0 {
						index = strconv.Itoa(w.Index)
					}
					rows[i] = []string{string(w.Kind), index, w.Message}
				}
				fmt.Fprintln(out, renderTable([]string{"Warning", "Word", "Detail"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func eventTable(events []subtitles.Event) ([]string, [][]string, []columnAlignment) {
	headers := []string{"#", "Layer", "Start", "End", "Style", "Text"}
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(int(ev.Layer)),
			subtitles.FormatTimestamp(ev.Start),
			subtitles.FormatTimestamp(ev.End),
			ev.Style,
			overrideBlock.ReplaceAllString(activeMarker.Replace(ev.Text), ""),
		}
	}
	return headers, rows, []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft}
}
