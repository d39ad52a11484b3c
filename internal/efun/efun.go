// Package efun implements the closed set of host operations scripts can
// call per spec §4.9: a Registry of Category values, modeled on the
// teacher's providers.Registry (Get/Current/List/Reload), repurposed so
// that every registered category is always active rather than selecting
// one current provider.
package efun

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/master"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/scheduler"
	"github.com/kythorn/lpgo/internal/value"
	"github.com/kythorn/lpgo/internal/worldstore"
)

// Output is implemented by the telnet front-end to carry write/
// tell_object/tell_room efun traffic to per-connection buffers without
// this package depending on internal/telnet.
type Output interface {
	Write(player *object.Object, text string)
	TellObject(obj *object.Object, text string)
	TellRoom(room *object.Object, text string, except []*object.Object)
	Command(player *object.Object, line string)
}

// Users is implemented by the telnet front-end to list connected and
// linkdead interactive objects.
type Users interface {
	Users() []*object.Object
	LinkdeadUsers() []*object.Object
}

// Shutdown is implemented by cmd/lpgo's entrypoint to stop the process
// cleanly from the shutdown() efun.
type Shutdown interface {
	RequestShutdown()
}

// Category groups a slice of the efun surface, mirroring spec §4.9's
// table layout (Objects, IO, Strings, Collections, Time/Sched, Hot
// reload, Control).
type Category string

const (
	CategoryObjects     Category = "objects"
	CategoryIO          Category = "io"
	CategoryStrings     Category = "strings"
	CategoryCollections Category = "collections"
	CategoryTimeSched   Category = "time_sched"
	CategoryHotReload   Category = "hot_reload"
	CategoryControl     Category = "control"
)

// Registry dispatches efun calls by name to the category that owns
// them. Unlike the teacher's registry there is no "current" selection:
// every category is always reachable. There is no reload step: the
// capability-check hooks are looked up on the master blueprint at each
// gated call.
type Registry struct {
	table     *object.Table
	master    *master.Master
	scheduler *scheduler.Scheduler
	store     *worldstore.Store
	output    Output
	users     Users
	shutdown  Shutdown
	log       *zap.Logger
	rng       *rand.Rand

	byName map[string]Category
}

// New constructs a Registry bound to table. Output, Users, Shutdown, and
// the hot-reload/scheduler collaborators are optional and wired later
// via their setters, since --eval and --test modes don't need a telnet
// front-end.
func New(table *object.Table, log *zap.Logger, seed int64) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		table: table,
		log:   log,
		rng:   rand.New(rand.NewSource(seed)),
	}
	r.byName = buildNameIndex()
	return r
}

func buildNameIndex() map[string]Category {
	idx := map[string]Category{}
	for name := range objectEfuns {
		idx[name] = CategoryObjects
	}
	for name := range ioEfuns {
		idx[name] = CategoryIO
	}
	for name := range stringEfuns {
		idx[name] = CategoryStrings
	}
	for name := range collectionEfuns {
		idx[name] = CategoryCollections
	}
	for name := range timeSchedEfuns {
		idx[name] = CategoryTimeSched
	}
	for name := range hotReloadEfuns {
		idx[name] = CategoryHotReload
	}
	for name := range controlEfuns {
		idx[name] = CategoryControl
	}
	return idx
}

// SetMaster wires the hot-reload/capability-check collaborator.
func (r *Registry) SetMaster(m *master.Master) { r.master = m }

// SetScheduler wires call_out/set_heart_beat.
func (r *Registry) SetScheduler(s *scheduler.Scheduler) { r.scheduler = s }

// SetStore wires the sqlite-backed restore-path bookkeeping consulted by
// restore_object; optional, since --test mode's registry is built
// without one.
func (r *Registry) SetStore(s *worldstore.Store) { r.store = s }

// SetOutput wires write/tell_object/tell_room/command to the telnet
// front-end.
func (r *Registry) SetOutput(o Output) { r.output = o }

// SetUsers wires users()/linkdead_users().
func (r *Registry) SetUsers(u Users) { r.users = u }

// SetShutdown wires shutdown().
func (r *Registry) SetShutdown(s Shutdown) { r.shutdown = s }

// List returns every registered efun name grouped by category, mirroring
// the teacher registry's listing ergonomics.
func (r *Registry) List() map[Category][]string {
	out := map[Category][]string{}
	for name, cat := range r.byName {
		out[cat] = append(out[cat], name)
	}
	return out
}

// Call implements interp.Efuns: dispatches name to its owning category's
// handler table. The bool return distinguishes "not an efun" from "efun
// returned nil".
func (r *Registry) Call(it *interp.Interp, act *interp.Activation, name string, args []value.Value) (value.Value, bool, error) {
	cat, ok := r.byName[name]
	if !ok {
		return value.NilValue, false, nil
	}
	var fn func(*Registry, *interp.Interp, *interp.Activation, []value.Value) (value.Value, error)
	switch cat {
	case CategoryObjects:
		fn = objectEfuns[name]
	case CategoryIO:
		fn = ioEfuns[name]
	case CategoryStrings:
		fn = stringEfuns[name]
	case CategoryCollections:
		fn = collectionEfuns[name]
	case CategoryTimeSched:
		fn = timeSchedEfuns[name]
	case CategoryHotReload:
		fn = hotReloadEfuns[name]
	case CategoryControl:
		fn = controlEfuns[name]
	}
	if fn == nil {
		return value.NilValue, false, nil
	}
	v, err := fn(r, it, act, args)
	return v, true, err
}

// checkCapability consults the master blueprint's valid_<verb> hook, per
// spec §4.9's "capability-checked via the master blueprint where noted".
// A master with no such function defined defaults to allow, since a
// driver run without mudlib policy code (--eval, --repl, tests) should
// not be locked out of its own efuns.
func (r *Registry) checkCapability(it *interp.Interp, act *interp.Activation, verb, subject string) bool {
	if r.master == nil {
		return true
	}
	masterObj := r.master.MasterObject()
	if masterObj == nil {
		return true
	}
	bp := masterObj.Blueprint()
	fnName := "valid_" + verb
	if fn, _ := bp.FindFunction(fnName); fn == nil {
		return true
	}
	callerRef := value.NilValue
	if act.Object != nil {
		callerRef = value.NewObject(object.RefFor(act.Object))
	}
	result, err := it.Invoke(masterObj, fnName, []value.Value{value.NewString(subject), callerRef})
	if err != nil {
		r.log.Warn("capability hook failed", zap.String("hook", fnName), zap.Error(err))
		return false
	}
	return result.Truthy()
}

func nowTime() time.Time { return time.Now() }
