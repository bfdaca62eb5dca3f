// This file watches the download root and reconciles tasks from files that
// appear on disk.

package statussync

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/pipeline"
)

// Watcher triggers ReconcileFromExistingFiles when videos or the video
// config change under the download root.
type Watcher struct {
	sync          *Synchronizer
	watcher       *fsnotify.Watcher
	mu            sync.Mutex
	pending       bool
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	// reconciled is signalled after each reconcile, for tests.
	reconciled chan int
}

// NewWatcher creates a watcher for the synchronizer's download root.
func NewWatcher(s *Synchronizer) *Watcher {
	return &Watcher{
		sync:          s,
		debounceDelay: 2 * time.Second, // Wait 2 seconds after the last change
		stopChan:      make(chan struct{}),
	}
}

// Start watches the download root and every directory below it. The root
// is created when missing.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.sync.root, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	err = filepath.WalkDir(w.sync.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "seed" {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	log.Info().Str("path", w.sync.root).Msg("Download watcher started")
	go w.processEvents()
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Download watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	info, err := os.Stat(event.Name)
	isDir := err == nil && info.IsDir()

	if isDir {
		if event.Has(fsnotify.Create) && filepath.Base(event.Name) != "seed" {
			w.watcher.Add(event.Name)
			w.schedule()
		}
		return
	}
	if w.isRelevantFile(event.Name) {
		w.schedule()
	}
}

// isRelevantFile reports whether a file can change the outcome of a
// reconcile: the video config or a video inside an anime directory.
func (w *Watcher) isRelevantFile(path string) bool {
	name := filepath.Base(path)
	if name == pipeline.VideoConfigName {
		return true
	}
	if strings.HasPrefix(name, ".") || subtitleExtensions[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	return animeDirPattern.MatchString(filepath.Base(filepath.Dir(path)))
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reconcile)
}

func (w *Watcher) reconcile() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	n, err := w.sync.ReconcileFromExistingFiles(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Reconcile from files failed")
	} else if n > 0 {
		log.Info().Int("inserted", n).Msg("Download watcher recovered tasks")
	}
	if w.reconciled != nil {
		select {
		case w.reconciled <- n:
		default:
		}
	}
}
