// Package notify watches the dataset directory so a running server picks up
// republished files without waiting for the cache TTL.
package notify

import (
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuiet is how long the directory must stay unchanged before a batch
// of changes is dispatched.
const DefaultQuiet = 500 * time.Millisecond

// Options configures a DatasetWatcher.
type Options struct {
	// Match selects the files that trigger the callback. Nil matches all.
	Match func(name string) bool

	// Quiet is the debounce window (default: DefaultQuiet).
	Quiet time.Duration
}

// DatasetWatcher watches a directory and reports changed files in batches.
// A publisher usually rewrites several datasets at once, so changes are
// collected until the directory has been quiet for the debounce window.
type DatasetWatcher struct {
	dir      string
	opts     Options
	callback func(files []string)
	watcher  *fsnotify.Watcher
	done     chan struct{}

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
}

// NewDatasetWatcher creates a watcher for dir. callback receives the sorted
// base names of the files that changed.
func NewDatasetWatcher(dir string, callback func(files []string), opts Options) *DatasetWatcher {
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	return &DatasetWatcher{
		dir:      dir,
		opts:     opts,
		callback: callback,
		done:     make(chan struct{}),
		pending:  make(map[string]struct{}),
	}
}

// Start begins watching. Call Stop() to clean up.
func (dw *DatasetWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dw.dir); err != nil {
		_ = w.Close()
		return err
	}
	dw.watcher = w

	go dw.loop()
	log.Printf("notify: watching %s for dataset changes", dw.dir)
	return nil
}

// Stop shuts down the watcher and drops any undelivered batch.
func (dw *DatasetWatcher) Stop() {
	dw.mu.Lock()
	dw.stopped = true
	if dw.timer != nil {
		dw.timer.Stop()
	}
	dw.mu.Unlock()

	if dw.watcher != nil {
		_ = dw.watcher.Close()
		<-dw.done
	}
}

func (dw *DatasetWatcher) loop() {
	defer close(dw.done)
	for {
		select {
		case evt, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(evt.Name)
			if dw.opts.Match != nil && !dw.opts.Match(name) {
				continue
			}
			dw.touch(name)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

// touch records a change and restarts the debounce timer.
func (dw *DatasetWatcher) touch(name string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stopped {
		return
	}
	dw.pending[name] = struct{}{}
	if dw.timer != nil {
		dw.timer.Stop()
	}
	dw.timer = time.AfterFunc(dw.opts.Quiet, dw.flush)
}

func (dw *DatasetWatcher) flush() {
	dw.mu.Lock()
	if dw.stopped || len(dw.pending) == 0 {
		dw.mu.Unlock()
		return
	}
	files := make([]string, 0, len(dw.pending))
	for name := range dw.pending {
		files = append(files, name)
	}
	dw.pending = make(map[string]struct{})
	dw.mu.Unlock()

	sort.Strings(files)
	if dw.callback != nil {
		dw.callback(files)
	}
}
