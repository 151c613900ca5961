package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/bobarin/clipcaptions/internal/models"
	"github.com/bobarin/clipcaptions/internal/services"
	"github.com/bobarin/clipcaptions/internal/subtitles"
)

const settleDelay = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var flags clipFlags
	var outDir string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Render every transcript dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			svc, engine, err := flags.engine()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = args[0]
			}
			if concurrency <= 0 {
				concurrency = engine.BatchConcurrency
			}

			w := &dirWatcher{
				dir:       args[0],
				outDir:    outDir,
				svc:       svc,
				req:       req,
				out:       cmd.OutOrStdout(),
				settle:    settleDelay,
				semaphore: make(chan struct{}, max(concurrency, 1)),
			}
			return w.run(cmd.Context())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Where documents are written (default: the watched directory)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Transcripts rendered at once (default: CAPTION_BATCH_CONCURRENCY)")

	return cmd
}

type dirWatcher struct {
	dir       string
	outDir    string
	svc       *services.CaptionService
	req       *models.RenderRequest
	out       io.Writer
	settle    time.Duration
	semaphore chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex // guards out
}

// run watches dir for new .json transcripts until ctx is done. In-flight
// renders are finished before it returns.
func (w *dirWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logf("Watching %s for transcripts (output: %s)", w.dir, w.outDir)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isTranscript(event.Name) {
				continue
			}

			select {
			case w.semaphore <- struct{}{}:
			case <-ctx.Done():
				w.wg.Wait()
				return nil
			}
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				defer func() { <-w.semaphore }()

				// Give the writer a moment to finish the file
				select {
				case <-time.After(w.settle):
				case <-ctx.Done():
					return
				}
				w.handle(path)
			}(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logf("Watcher error: %v", err)
		}
	}
}

func (w *dirWatcher) handle(path string) {
	if _, err := os.Stat(path); err != nil {
		return // renamed away or deleted before it settled
	}

	clip, err := loadClip(w.svc, w.req, path)
	if err != nil {
		w.logf("Failed to load %s: %v", path, err)
		return
	}

	res, err := subtitles.Render(clip.Words, clip.Options)
	if err != nil {
		w.logf("Failed to render %s: %v", path, err)
		return
	}

	dst := filepath.Join(w.outDir, documentName(path))
	if err := writeDocument(dst, res.Text); err != nil {
		w.logf("Failed to write %s: %v", dst, err)
		return
	}
	w.logf("%s -> %s (%d events, %d warnings)", path, dst, len(res.Document.Events), len(res.Warnings))
}

func (w *dirWatcher) logf(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "[Watch] "+format+"\n", args...)
}

func isTranscript(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
