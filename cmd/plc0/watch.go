package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/miniplc0/manifest"
)

const watchDebounce = 100 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		outputDir string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "watch FILE...",
		Short: "Recompile source files whenever they change",
		Long: `Compile each file once, then watch it and recompile on every write.
Diagnostics are printed to stderr. Stop with Ctrl-C.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := getManifest(cmd.Context())
			if cmd.Flags().Changed("output") {
				m.Build.OutputDir = outputDir
			}
			if cmd.Flags().Changed("format") {
				m.Build.Format = format
			}
			if err := m.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return watchFiles(ctx, args, m, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for artifacts (default: next to each source)")
	cmd.Flags().StringVar(&format, "format", manifest.FormatText, "artifact format (text|cbor)")

	return cmd
}

// watchFiles compiles sources once and again after each change, until ctx
// is cancelled.
func watchFiles(ctx context.Context, sources []string, m *manifest.Manifest, errOut io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace files, so watch the directories and filter.
	watched := make(map[string]string) // absolute path → argument
	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		watched[abs] = src
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("cannot watch %s: %w", src, err)
		}
	}

	changes := make(chan string, len(sources))
	report := func(src string) {
		r := compileFile(src, m)
		if r.err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", src, r.err)
			return
		}
		fmt.Fprintf(errOut, "%s: ok, %d instructions -> %s\n", src, r.program.Len(), r.artifact)
	}
	for _, src := range sources {
		report(src)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()

		for {
			select {
			case <-gctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				src, ok := watched[filepath.Clean(event.Name)]
				if !ok {
					continue
				}

				// Debounce
				if t := timers[src]; t != nil {
					t.Stop()
				}
				timers[src] = time.AfterFunc(watchDebounce, func() {
					select {
					case changes <- src:
					case <-gctx.Done():
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Errorf("watcher error: %v", err)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case src := <-changes:
				log.Debugf("%s changed", src)
				report(src)
			}
		}
	})

	return g.Wait()
}
