package config

import (
	"context"
	"path/filepath"
	"reflect"
	"sort"

	"mcpaggregator/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a configuration change event per §6.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// Change describes one upstream's configuration change between two loads.
type Change struct {
	Kind          ChangeKind
	Name          string
	Upstream      UpstreamConfig // the new definition; zero value when Kind == ChangeRemoved
	FieldsChanged []string       // populated only for ChangeModified
}

// Watcher watches a configuration directory and emits a Change for every
// upstream that was added, removed, or modified between reloads.
type Watcher struct {
	dir     string
	current Config
	fsw     *fsnotify.Watcher
	changes chan Change
}

// NewWatcher loads the initial configuration from dir and starts watching
// it for changes. Callers must call Close when done.
func NewWatcher(dir string) (*Watcher, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:     dir,
		current: cfg,
		fsw:     fsw,
		changes: make(chan Change, 32),
	}, nil
}

// Initial returns the configuration as loaded at construction time.
func (w *Watcher) Initial() Config { return w.current }

// Changes returns the channel of configuration changes. It is closed when
// Run returns.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Run blocks, reloading the configuration and emitting Changes on every
// relevant filesystem event, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if !(event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0) {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Error("config.watcher", err, "fsnotify error watching %s", w.dir)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	next, err := Load(w.dir)
	if err != nil {
		logging.Error("config.watcher", err, "reload of %s failed, keeping previous configuration", w.dir)
		return
	}

	for _, change := range diffUpstreams(w.current.Upstreams, next.Upstreams) {
		select {
		case w.changes <- change:
		case <-ctx.Done():
			return
		}
	}
	w.current = next
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// diffUpstreams computes Added/Removed/Modified changes between two
// upstream maps, in deterministic name order. A Modified event's
// FieldsChanged names exactly which top-level fields differ, so callers can
// implement the "tags-only change needs no restart" rule (P10) without
// re-deriving it themselves.
func diffUpstreams(old, next map[string]UpstreamConfig) []Change {
	names := make(map[string]bool, len(old)+len(next))
	for n := range old {
		names[n] = true
	}
	for n := range next {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var changes []Change
	for _, name := range sorted {
		oldU, hadOld := old[name]
		newU, hasNew := next[name]
		switch {
		case !hadOld && hasNew:
			changes = append(changes, Change{Kind: ChangeAdded, Name: name, Upstream: newU})
		case hadOld && !hasNew:
			changes = append(changes, Change{Kind: ChangeRemoved, Name: name})
		default:
			if fields := changedFields(oldU, newU); len(fields) > 0 {
				changes = append(changes, Change{Kind: ChangeModified, Name: name, Upstream: newU, FieldsChanged: fields})
			}
		}
	}
	return changes
}

func changedFields(a, b UpstreamConfig) []string {
	var fields []string
	if !reflect.DeepEqual(a.Tags, b.Tags) {
		fields = append(fields, "tags")
	}
	if a.Disabled != b.Disabled {
		fields = append(fields, "disabled")
	}
	if a.Type != b.Type ||
		!reflect.DeepEqual(a.Local, b.Local) ||
		!reflect.DeepEqual(a.StreamableHTTP, b.StreamableHTTP) ||
		!reflect.DeepEqual(a.SSE, b.SSE) {
		fields = append(fields, "transport")
	}
	if a.TimeoutMs != b.TimeoutMs || a.ConnectionTimeoutMs != b.ConnectionTimeoutMs || a.RequestTimeoutMs != b.RequestTimeoutMs {
		fields = append(fields, "timeouts")
	}
	return fields
}
