// Package master implements the master-object hot-reload subsystem:
// update(path), reload_changed(), and (in server mode) a push-based
// fsnotify watcher that calls the same update path interactive
// development relies on.
package master

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/worldstore"
)

// FileLoader reads mudlib source files from disk, resolving canonical
// paths against root. It implements object.Loader.
type FileLoader struct {
	Root string
}

func (l *FileLoader) ReadSource(canonicalPath string) (string, time.Time, error) {
	full := filepath.Join(l.Root, canonicalPath+".c")
	data, err := os.ReadFile(full)
	if err != nil {
		return "", time.Time{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", time.Time{}, err
	}
	return string(data), info.ModTime(), nil
}

// NotifyAdmin is implemented by the interpreter to surface a LoadError
// during hot reload to the master blueprint's notify_admin hook, per
// spec §7 and SPEC_FULL.md §4's admin-notification supplement.
type NotifyAdmin interface {
	NotifyAdmin(masterObj *object.Object, reason string, failedPath string, cause error)
}

// Master drives hot reload over an object.Table.
type Master struct {
	table   *object.Table
	loader  *FileLoader
	store   *worldstore.Store
	log     *zap.Logger
	notify  NotifyAdmin
	masterO *object.Object

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]bool
}

// New constructs a Master bound to table, whose blueprints are read from
// loader and whose mtime bookkeeping is recorded in store.
func New(table *object.Table, loader *FileLoader, store *worldstore.Store, log *zap.Logger) *Master {
	if log == nil {
		log = zap.NewNop()
	}
	return &Master{table: table, loader: loader, store: store, log: log}
}

// SetNotifyAdmin wires the admin-notification callback after construction.
func (m *Master) SetNotifyAdmin(n NotifyAdmin) { m.notify = n }

// MasterObject returns the master blueprint's master instance, the
// object consulted for valid_read/valid_write/valid_admin capability
// hooks by the efun surface, or nil if no master blueprint is loaded.
func (m *Master) MasterObject() *object.Object { return m.masterO }

// Root returns the mudlib root directory.
func (m *Master) Root() string { return m.loader.Root }

// LoadMasterBlueprint loads the designated master blueprint first at
// startup, per spec §4.6, and remembers its master instance for
// admin-notification callbacks.
func (m *Master) LoadMasterBlueprint(path string) (*object.Blueprint, error) {
	bp, err := m.table.LoadBlueprint(path)
	if err != nil {
		return nil, err
	}
	m.masterO = bp.Master
	m.recordMtime(bp)
	return bp, nil
}

func (m *Master) recordMtime(bp *object.Blueprint) {
	if m.store == nil {
		return
	}
	if err := m.store.RecordBlueprintMtime(bp.Path, bp.Mtime); err != nil {
		m.log.Warn("failed to record blueprint mtime", zap.String("path", bp.Path), zap.Error(err))
	}
}

// dependents returns every currently loaded blueprint whose inheritance
// chain transitively references path, parents appearing before children
// (topological order), per spec §4.6.
func (m *Master) dependents(path string) []string {
	children := map[string][]string{}
	for _, p := range m.table.Blueprints() {
		bp, ok := m.table.Blueprint(p)
		if !ok || bp.Parent == nil {
			continue
		}
		children[bp.Parent.Path] = append(children[bp.Parent.Path], p)
	}

	var order []string
	var walk func(p string)
	seen := map[string]bool{}
	walk = func(p string) {
		kids := append([]string(nil), children[p]...)
		sort.Strings(kids)
		for _, k := range kids {
			if seen[k] {
				continue
			}
			seen[k] = true
			order = append(order, k)
			walk(k)
		}
	}
	walk(path)
	return order
}

// Update implements update(path) per spec §4.6: unload and recompile
// path, then every blueprint transitively inheriting from it, parents
// before children. On a mid-wave failure, previously recompiled
// blueprints in the wave keep their new code; the failing blueprint
// keeps its old code; the error is surfaced to the caller. Returns the
// count of successfully recompiled blueprints.
func (m *Master) Update(path string) (int, error) {
	wave := append([]string{path}, m.dependents(path)...)
	count := 0
	for _, p := range wave {
		bp, err := m.table.ForceReload(p)
		if err != nil {
			if m.notify != nil && m.masterO != nil {
				m.notify.NotifyAdmin(m.masterO, "update failed mid-wave", p, err)
			} else {
				m.log.Error("hot reload failed", zap.String("path", p), zap.Error(err))
			}
			return count, err
		}
		m.recordMtime(bp)
		count++
	}
	m.log.Info("hot reload wave complete", zap.String("root", path), zap.Int("recompiled", count))
	return count, nil
}

// ReloadChanged implements reload_changed() per spec §4.6: for every
// registered blueprint whose source mtime exceeds its compile-time
// mtime, call Update. Returns the list of root paths that triggered a
// recompilation wave.
//
// A blueprint loaded by an earlier process run but not yet touched by
// this one only exists in worldstore's mtime table, not in the live
// table.Blueprints() set; those paths are checked against their
// persisted mtime too, so a restart doesn't silently stop noticing
// on-disk changes to code nothing has loaded yet this run. This is the
// sqlite-backed bootstrap SPEC_FULL.md §3.4 describes — it bounds the
// check to previously-known paths instead of a full mudlib directory
// walk.
func (m *Master) ReloadChanged() ([]string, error) {
	var changed []string
	seen := map[string]bool{}
	for _, p := range m.table.Blueprints() {
		seen[p] = true
		bp, ok := m.table.Blueprint(p)
		if !ok {
			continue
		}
		_, mtime, err := m.loader.ReadSource(p)
		if err != nil {
			continue // file removed from disk; leave blueprint as-is
		}
		if mtime.After(bp.Mtime) {
			if _, err := m.Update(p); err != nil {
				return changed, err
			}
			changed = append(changed, p)
		}
	}
	if m.store == nil {
		return changed, nil
	}
	known, err := m.store.AllBlueprintPaths()
	if err != nil {
		m.log.Warn("failed to list persisted blueprint paths", zap.Error(err))
		return changed, nil
	}
	for _, p := range known {
		if seen[p] {
			continue
		}
		recorded, ok, err := m.store.BlueprintMtime(p)
		if err != nil || !ok {
			continue
		}
		_, mtime, err := m.loader.ReadSource(p)
		if err != nil {
			continue // file removed from disk since the run that recorded it
		}
		if mtime.After(recorded) {
			if _, err := m.Update(p); err != nil {
				return changed, err
			}
			changed = append(changed, p)
		}
	}
	return changed, nil
}

// queueReload records path as having a pending reload, coalescing
// repeated events for the same file between ticks. Safe to call from
// the fsnotify watcher goroutine: it only ever touches the pending set,
// never the object table.
func (m *Master) queueReload(path string) {
	m.pendingMu.Lock()
	if m.pending == nil {
		m.pending = map[string]bool{}
	}
	m.pending[path] = true
	m.pendingMu.Unlock()
}

// DrainPending applies every mudlib file-change event queued since the
// last call, each through the same Update path reload_changed uses.
// Per spec §5's single-threaded scripting contract, this must only ever
// be called from the scheduler's tick-loop goroutine — the fsnotify
// watcher goroutine itself never touches the object table, only the
// pending set guarded by pendingMu.
func (m *Master) DrainPending() {
	m.pendingMu.Lock()
	paths := make([]string, 0, len(m.pending))
	for p := range m.pending {
		paths = append(paths, p)
	}
	m.pending = map[string]bool{}
	m.pendingMu.Unlock()

	sort.Strings(paths)
	for _, p := range paths {
		if _, err := m.Update(p); err != nil {
			m.log.Warn("fsnotify-triggered reload failed", zap.String("path", p), zap.Error(err))
		}
	}
}

// WatchMudlib starts an fsnotify watcher over the mudlib root so a saved
// file queues the same Update path reload_changed uses, for interactive
// development in server mode. It is pure enrichment per SPEC_FULL.md
// §1 — no spec behavior changes. The watcher goroutine only queues
// events via queueReload; DrainPending applies them from the scheduler's
// tick loop so the object table is never touched off that one goroutine.
func (m *Master) WatchMudlib(root string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = w

	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Write == 0 || !strings.HasSuffix(ev.Name, ".c") {
					continue
				}
				rel := strings.TrimPrefix(strings.TrimPrefix(ev.Name, root), string(filepath.Separator))
				canon, err := m.table.Canonicalize("", "/"+rel)
				if err != nil {
					continue
				}
				m.queueReload(canon)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Warn("fsnotify watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the fsnotify watcher, if running.
func (m *Master) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
