package watcher

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"norsetinge-images/common"
)

// Watcher reconverts source images whenever they change on disk
type Watcher struct {
	opts     common.Options
	debounce time.Duration
	watcher  *fsnotify.Watcher
	events   chan Event
	done     chan struct{}
	quit     chan struct{}

	mu       sync.Mutex
	started  bool
	closed   bool
	pending  map[string]*time.Timer
	locks    map[string]*pathLock
	inflight sync.WaitGroup
}

// pathLock serializes work on one source and is dropped once idle
type pathLock struct {
	sync.Mutex
	refs int
}

// Event reports the outcome of handling one source file
type Event struct {
	Type     EventType
	Source   string
	Artifact string // empty when nothing was written
	Err      error
}

// EventType represents the type of file event
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// NewWatcher creates a new file watcher
func NewWatcher(opts common.Options, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		opts:     opts,
		debounce: debounce,
		watcher:  fsWatcher,
		events:   make(chan Event, 100),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
		locks:    make(map[string]*pathLock),
	}, nil
}

// Start begins monitoring dirs and all of their subdirectories
func (w *Watcher) Start(dirs ...string) error {
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.processEvents()

	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", path, err)
		}
		log.Printf("Watching folder: %s", path)
		return nil
	})
}

// processEvents debounces fsnotify events per path
func (w *Watcher) processEvents() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Printf("Watcher error: %v", err)
					}
					continue
				}
			}

			if !common.IsSourceImage(event.Name) {
				continue
			}
			w.schedule(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// schedule runs handleEvent once event.Name has been quiet for the
// debounce interval
func (w *Watcher) schedule(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, exists := w.pending[event.Name]; exists {
		timer.Stop()
	}

	w.pending[event.Name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		delete(w.pending, event.Name)
		w.inflight.Add(1)
		w.mu.Unlock()

		defer w.inflight.Done()
		w.handleEvent(event)
	})
}

// handleEvent converts or cleans up after a single source file. Work on
// the same source never overlaps, so two conversions never race for one
// artifact.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.lock(event.Name)
	defer w.unlock(event.Name)

	dir, name := filepath.Split(event.Name)
	var eventType EventType

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, err := os.Stat(event.Name); err == nil {
			// Replaced in place, treat as a modification
			eventType = EventModified
			break
		}
		log.Printf("File deleted: %s", event.Name)
		common.RemoveArtifacts(dir, name)
		w.emit(Event{Type: EventDeleted, Source: event.Name})
		return
	case event.Has(fsnotify.Create):
		eventType = EventCreated
		log.Printf("File created: %s", event.Name)
	case event.Has(fsnotify.Write):
		eventType = EventModified
		log.Printf("File modified: %s", event.Name)
	default:
		return // Ignore other events
	}

	artifact, ok, err := common.ConvertImage(dir, name, w.opts)
	if err != nil {
		log.Printf("Failed to convert %s: %v", event.Name, err)
	}

	ev := Event{Type: eventType, Source: event.Name, Err: err}
	if ok {
		ev.Artifact = filepath.Join(dir, artifact)
	}
	w.emit(ev)
}

// emit delivers ev unless the watcher is stopping, so a consumer that
// stopped reading never blocks Stop
func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.quit:
		log.Printf("Watcher stopping, dropped %v event for %s", ev.Type, ev.Source)
	}
}

func (w *Watcher) lock(path string) {
	w.mu.Lock()
	l, ok := w.locks[path]
	if !ok {
		l = &pathLock{}
		w.locks[path] = l
	}
	l.refs++
	w.mu.Unlock()

	l.Lock()
}

func (w *Watcher) unlock(path string) {
	w.mu.Lock()
	l := w.locks[path]
	l.refs--
	if l.refs == 0 {
		delete(w.locks, path)
	}
	w.mu.Unlock()

	l.Unlock()
}

// Events returns the event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher, waits for in-flight conversions and closes
// the event channel. Calling it again is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	started := w.started
	w.closed = true
	close(w.quit)
	for name, timer := range w.pending {
		timer.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	if started {
		<-w.done
	}
	w.inflight.Wait()
	close(w.events)
	return err
}
