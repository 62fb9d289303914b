package prefabs

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/milk9111/sandbox/logger"
)

// debounce collapses the burst of events an editor save produces.
const debounce = 100 * time.Millisecond

type ChangeKind int

const (
	TemplateChanged ChangeKind = iota
	ScriptChanged
)

// Change is one template or script file that was written, created,
// renamed or removed.
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher reports template and script files that changed on disk.
type Watcher struct {
	fs      *fsnotify.Watcher
	Changes chan Change
	Errors  chan error

	done chan struct{}
	once sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		fs:      fw,
		Changes: make(chan Change, 16),
		Errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.Changes)
	defer close(w.Errors)

	seen := make(map[string]time.Time)
	for {
		select {
		case <-w.done:
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			change, ok := classify(ev)
			if !ok {
				continue
			}
			if at, dup := seen[ev.Name]; dup && time.Since(at) < debounce {
				continue
			}
			seen[ev.Name] = time.Now()

			select {
			case w.Changes <- change:
			case <-w.done:
				return
			}
		}
	}
}

func classify(ev fsnotify.Event) (Change, bool) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return Change{}, false
	}
	switch {
	case isSpecFile(ev.Name):
		return Change{Path: ev.Name, Kind: TemplateChanged}, true
	case isScriptFile(ev.Name):
		return Change{Path: ev.Name, Kind: ScriptChanged}, true
	}
	return Change{}, false
}

// Watch drops cached templates as their files change until ctx ends or w
// closes. Any template may load a script, so a script change drops them all.
func (l *Library) Watch(ctx context.Context, w *Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-w.Changes:
			if !ok {
				return
			}
			if c.Kind == ScriptChanged {
				for _, name := range l.Names() {
					l.Reload(name)
				}
				continue
			}
			l.Reload(TemplateName(c.Path))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Log.WithError(err).Warn("prefabs: watcher error")
		}
	}
}

func isSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func isScriptFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".tengo")
}
