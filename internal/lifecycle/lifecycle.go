// Package lifecycle emits the process signals that trigger repository
// discovery: once when the agent is ready, and again whenever an install or
// update finishes in the watched project.
package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"podrepo-agent/internal/constants"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Signal is a lifecycle notification
type Signal int

const (
	SignalReady Signal = iota
	SignalInstallCompleted
)

// String returns the human-readable name of the signal.
func (s Signal) String() string {
	switch s {
	case SignalReady:
		return "ready"
	case SignalInstallCompleted:
		return "install-completed"
	default:
		return "unknown"
	}
}

// DefaultDebounce is how long the lockfile must stay quiet before an
// install is considered complete
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports SignalReady on start and SignalInstallCompleted whenever
// the project's Podfile.lock is written, which is the last thing an install
// or update does.
type Watcher struct {
	logger     *logrus.Logger
	projectDir string
	debounce   time.Duration
}

// NewWatcher creates a watcher for the project in projectDir
func NewWatcher(logger *logrus.Logger, projectDir string) *Watcher {
	return &Watcher{
		logger:     logger,
		projectDir: projectDir,
		debounce:   DefaultDebounce,
	}
}

// SetDebounce overrides the quiet period
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. The returned channel is closed when ctx is done or
// the underlying watcher fails.
func (w *Watcher) Start(ctx context.Context) (<-chan Signal, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// The directory is watched rather than the file so that lockfiles
	// replaced by rename are still seen.
	if err := fsw.Add(w.projectDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.projectDir, err)
	}

	w.logger.WithField("dir", w.projectDir).Debug("Watching project for install completion")

	signals := make(chan Signal, 1)
	signals <- SignalReady

	go w.loop(ctx, fsw, signals)
	return signals, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, signals chan<- Signal) {
	defer close(signals)
	defer fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !isLockfileWrite(event) {
				continue
			}
			w.logger.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("Lockfile changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.logger.Info("Install completed, requesting repository discovery")
			select {
			case signals <- SignalInstallCompleted:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("File watcher error")
		}
	}
}

func isLockfileWrite(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != constants.PodfileLockName {
		return false
	}
	// Ignore certain events
	if event.Op&fsnotify.Chmod == fsnotify.Chmod && event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
