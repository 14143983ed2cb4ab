package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skillminer/skillminer/pkg/aggregator"
	"github.com/skillminer/skillminer/pkg/ingest"
	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
	"github.com/skillminer/skillminer/pkg/store"
)

// fileEvent represents a file system event with its observation time
type fileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and ingest telemetry files as they land",
	Long: `Continuously monitors a telemetry drop directory and ingests every
JSONL or YAML file that is created or modified, merging the mined
candidates into the store. Providers can simply write files into the
directory; rapid successive writes to the same file are debounced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := loadConfig()
		if err != nil {
			return err
		}

		debounceMs, _ := cmd.Flags().GetInt("debounce")
		if debounceMs < 0 {
			return errors.Errorf("debounce time cannot be negative: %d", debounceMs)
		}

		st, err := openStore(ctx, config)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.G(ctx).WithError(closeErr).Error("failed to close candidate store")
			}
		}()

		return runWatch(ctx, st, config, args[0], time.Duration(debounceMs)*time.Millisecond)
	},
}

func init() {
	watchCmd.Flags().IntP("debounce", "d", 500, "Debounce time in milliseconds for file change events")
}

func runWatch(ctx context.Context, st store.CandidateStore, config *Config, dir string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch directory %s", dir)
	}

	events := make(chan fileEvent)
	debouncedEvents := make(chan fileEvent)

	go debounceFileEvents(ctx, events, debouncedEvents, debounce)

	agg := aggregator.New(config.Aggregator)

	go func() {
		for {
			select {
			case event, ok := <-debouncedEvents:
				if !ok {
					return
				}
				presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
				ingestFile(ctx, st, agg, event.Path)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !isTelemetryFile(event.Name) {
					logger.G(ctx).WithField("file", event.Name).Debug("ignoring non-telemetry file")
					continue
				}
				events <- fileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.G(ctx).WithError(err).Error("error watching telemetry directory")
			case <-ctx.Done():
				return
			}
		}
	}()

	presenter.Info(fmt.Sprintf("Watching %s for telemetry files... Press Ctrl+C to stop", dir))
	logger.G(ctx).WithField("directory", dir).Info("telemetry watcher initialized")

	<-ctx.Done()
	return nil
}

func isTelemetryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func ingestFile(ctx context.Context, st store.CandidateStore, agg *aggregator.Aggregator, path string) {
	records, stats, err := ingest.ReadPaths(ctx, []string{path})
	if err != nil {
		presenter.Error(err, fmt.Sprintf("Failed to read telemetry file: %s", path))
		logger.G(ctx).WithError(err).WithField("file", path).Error("failed to read telemetry file")
		return
	}

	result, err := agg.Run(ctx, st, records)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("Failed to merge candidates from: %s", path))
		logger.G(ctx).WithError(err).WithField("file", path).Error("failed to merge candidates")
		return
	}

	presenter.Success(fmt.Sprintf("%s: %d records, %d candidates merged, %d skipped",
		path, stats.Records, result.Merged, stats.Skipped+result.Skipped))
}

// debounceFileEvents coalesces rapid successive changes to the same
// file into a single event after the delay elapses.
func debounceFileEvents(ctx context.Context, input <-chan fileEvent, output chan<- fileEvent, delay time.Duration) {
	pending := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				for _, timer := range pending {
					timer.Stop()
				}
				return
			}
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
				delete(pending, event.Path)
			}

			eventCopy := event
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}
