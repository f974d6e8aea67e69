// Package watcher provides recursive filesystem watching for the mirror daemon.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"vertebrae-go/internal/vertebrae"
)

// FileWatcher watches a set of source roots recursively and emits ChangeEvents.
// It uses fsnotify for cross-platform file system event monitoring. fsnotify
// watches are per-directory, so subdirectories are registered on start and new
// directories are registered as their create events arrive.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan vertebrae.ChangeEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	roots   []string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan vertebrae.ChangeEvent, 256),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the given roots and all of their subdirectories.
// Returns an error if any root cannot be watched.
func (fw *FileWatcher) Start(roots []string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	fw.roots = roots

	for _, root := range roots {
		if err := fw.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	// Closing the underlying watcher unblocks the event loop.
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits change notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan vertebrae.ChangeEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// addRecursive registers root and every subdirectory under it.
func (fw *FileWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("adding watch for %s: %w", path, err)
		}
		return nil
	})
}

// processEvents is the main event loop that converts fsnotify events to
// ChangeEvent notifications.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if changeEvent, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- changeEvent:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}

			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent converts an fsnotify event to a ChangeEvent.
// Returns (ChangeEvent{}, false) if the event should be ignored.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (vertebrae.ChangeEvent, bool) {
	var kind vertebrae.ChangeKind
	switch {
	case event.Has(fsnotify.Create):
		kind = vertebrae.ChangeCreate
		// New directories need their own watch before events inside them
		// can be seen.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.watcher.Add(event.Name); err != nil {
				select {
				case fw.errors <- fmt.Errorf("adding watch for %s: %w", event.Name, err):
				default:
				}
			}
		}
	case event.Has(fsnotify.Write):
		kind = vertebrae.ChangeModify
	case event.Has(fsnotify.Remove):
		kind = vertebrae.ChangeRemove
	case event.Has(fsnotify.Rename):
		kind = vertebrae.ChangeRename
	default:
		// Ignore chmod and other events.
		return vertebrae.ChangeEvent{}, false
	}

	return vertebrae.ChangeEvent{
		Path: event.Name,
		Kind: kind,
	}, true
}
