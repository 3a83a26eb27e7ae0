package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

func NewWatchCmd() *cobra.Command {
	opts := &RunOptions{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline whenever the input CSV file changes",
		RunE: func(c *cobra.Command, args []string) error {
			if opts.Source != sourceCSV {
				return errors.New("watch only supports the csv source")
			}
			r, err := newRunner(c.Context(), opts)
			if err != nil {
				return err
			}
			defer r.Close()

			return runWatch(c.Context(), r, opts.InputFile, debounce)
		},
	}

	opts.bind(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", time.Second, "Quiet period after the last change before a run starts")
	return cmd
}

// runWatch watches the directory holding path, since editors and exporters
// often replace the file rather than write to it, and runs the pipeline once
// the file has been quiet for debounce.
func runWatch(ctx context.Context, r *runner, path string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Infof("Watching %s for changes", abs)

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isInputChange(ev, abs) {
				continue
			}
			logger.Debugf("Input changed: %s", ev)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Watcher error: %v", err)

		case <-timer.C:
			if _, err := r.runOnce(ctx); err != nil {
				logger.Errorf("Triggered run failed: %v", err)
			}
		}
	}
}

func isInputChange(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
