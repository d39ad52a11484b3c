// Package object implements blueprints, live objects and clones, the
// object table, and path canonicalization against a mudlib root.
package object

import (
	"fmt"
	"time"

	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/value"
)

// VarSlot is one declared variable's static description: its type (for
// computing the typed zero) and its name.
type VarSlot struct {
	Type ast.Type
	Name string
}

// Blueprint is the compiled form of one source file.
type Blueprint struct {
	Path      string // canonical, no ".c"
	Mtime     time.Time
	File      *ast.File
	Functions map[string]*ast.FuncDecl
	Vars      []VarSlot // flattened parent-first
	Parent    *Blueprint
	Master    *Object
}

// VarIndex returns the slot index for a declared variable name. If the
// name is redeclared along the inheritance chain the child's slot (the
// later entry in the parent-first flattening) wins.
func (b *Blueprint) VarIndex(name string) (int, bool) {
	idx, found := -1, false
	for i, v := range b.Vars {
		if v.Name == name {
			idx, found = i, true
		}
	}
	return idx, found
}

// FindFunction walks the inheritance chain from this blueprint toward the
// root, returning the first function matching name.
func (b *Blueprint) FindFunction(name string) (*ast.FuncDecl, *Blueprint) {
	for bp := b; bp != nil; bp = bp.Parent {
		if fn, ok := bp.Functions[name]; ok {
			return fn, bp
		}
	}
	return nil, nil
}

// Object is a live master instance or clone.
type Object struct {
	id        string
	blueprint *Blueprint
	slots     []value.Value
	env       *Object
	inventory []*Object
	destructed bool
	heartbeat  bool
	callouts   []*Callout
	cwd        string // per-session working directory, interactive objects only
	actions    map[string]ActionEntry

	table *Table
	index int
	gen   uint64
}

// ActionEntry records one add_action registration: the verb handler fn,
// defined on registrant, to run when this object types verb.
type ActionEntry struct {
	Registrant *Object
	Fn         string
}

// AddAction registers fn (defined on registrant) as the handler for verb
// on o, per the init protocol described in spec §4.5/§4.8. A later
// add_action for the same verb replaces the earlier one, matching the
// classic rule that the most recently registered handler wins.
func (o *Object) AddAction(verb string, registrant *Object, fn string) {
	if o.destructed || verb == "" {
		return
	}
	if o.actions == nil {
		o.actions = map[string]ActionEntry{}
	}
	o.actions[verb] = ActionEntry{Registrant: registrant, Fn: fn}
}

// RemoveAction cancels a previously registered verb handler on o.
func (o *Object) RemoveAction(verb string) {
	delete(o.actions, verb)
}

// ActionFor returns the registered handler for verb on o, if any.
func (o *Object) ActionFor(verb string) (ActionEntry, bool) {
	e, ok := o.actions[verb]
	return e, ok
}

// ClearActions drops every registered verb handler on o. Called before
// the init protocol re-fires on a move, since a stale handler from the
// object's previous environment must not survive the transition.
func (o *Object) ClearActions() {
	o.actions = nil
}

// ID returns the object's canonical id.
func (o *Object) ID() string { return o.id }

// Live reports whether the object has not been destructed.
func (o *Object) Live() bool { return o != nil && !o.destructed }

// Equal compares identity against another value.ObjectRef.
func (o *Object) Equal(other value.ObjectRef) bool {
	oo, ok := other.(*Object)
	if !ok {
		return false
	}
	return o == oo
}

// Blueprint returns the object's blueprint. A destructed object still
// reports its last blueprint; callers must check Live() first.
func (o *Object) Blueprint() *Blueprint { return o.blueprint }

// Slots returns the object's flat variable slot vector.
func (o *Object) Slots() []value.Value { return o.slots }

// Slot returns slot i, or nil-typed-zero if the object is destructed or i
// is out of range.
func (o *Object) Slot(i int) value.Value {
	if o.destructed || i < 0 || i >= len(o.slots) {
		return value.NilValue
	}
	return o.slots[i]
}

// SetSlot assigns slot i if the object is live and i is in range.
func (o *Object) SetSlot(i int, v value.Value) {
	if o.destructed || i < 0 || i >= len(o.slots) {
		return
	}
	o.slots[i] = v
}

func (o *Object) Environment() *Object   { return o.env }
func (o *Object) Inventory() []*Object   { return append([]*Object(nil), o.inventory...) }
func (o *Object) Destructed() bool       { return o.destructed }
func (o *Object) HeartbeatEnabled() bool { return o.heartbeat }
func (o *Object) Cwd() string            { return o.cwd }
func (o *Object) SetCwd(cwd string)      { o.cwd = cwd }

// Callout is one pending deferred call, owned by its object.
type Callout struct {
	ID       string
	Object   *Object
	Func     string
	Args     []value.Value
	Deadline time.Time
	Seq      uint64 // insertion order, for deadline ties
}

// Evaluator is implemented by the interpreter; the object table calls
// into it to run create() and other lifecycle hooks without importing
// the interpreter package.
type Evaluator interface {
	CallCreate(obj *Object) error
	Invoke(obj *Object, fn string, args []value.Value) (value.Value, error)
}

type slotEntry struct {
	obj  *Object
	gen  uint64
	free bool
}

// Table is the process-wide object table: blueprint registry plus the
// live-object arena.
type Table struct {
	root       string
	blueprints map[string]*Blueprint
	cloneSeq   map[string]uint64
	arena      []slotEntry
	freeList   []int
	eval       Evaluator
	loader     Loader
	calloutSeq uint64
}

// Loader reads and resolves source for a canonical path; implemented by
// the master package's filesystem loader (or a test fixture).
type Loader interface {
	ReadSource(canonicalPath string) (src string, mtime time.Time, err error)
}

// NewTable creates an object table rooted at root, reading source via
// loader.
func NewTable(root string, loader Loader) *Table {
	return &Table{
		root:       root,
		blueprints: make(map[string]*Blueprint),
		cloneSeq:   make(map[string]uint64),
		loader:     loader,
	}
}

// SetEvaluator wires the interpreter after construction, breaking the
// import cycle between object and interp.
func (t *Table) SetEvaluator(e Evaluator) { t.eval = e }

// Root returns the mudlib root path.
func (t *Table) Root() string { return t.root }

// Canonicalize resolves p against the table's root and an optional cwd.
func (t *Table) Canonicalize(cwd, p string) (string, error) {
	return Canonicalize(t.root, cwd, p)
}

// Blueprint returns the currently loaded blueprint at path, if any.
func (t *Table) Blueprint(path string) (*Blueprint, bool) {
	bp, ok := t.blueprints[path]
	return bp, ok
}

// Blueprints returns every currently registered canonical path.
func (t *Table) Blueprints() []string {
	out := make([]string, 0, len(t.blueprints))
	for p := range t.blueprints {
		out = append(out, p)
	}
	return out
}

func (t *Table) alloc(bp *Blueprint, id string) *Object {
	obj := &Object{id: id, blueprint: bp, table: t, slots: defaultSlots(bp)}
	for i, e := range t.arena {
		if e.free {
			obj.index = i
			obj.gen = e.gen + 1
			t.arena[i] = slotEntry{obj: obj, gen: obj.gen}
			return obj
		}
	}
	obj.index = len(t.arena)
	obj.gen = 1
	t.arena = append(t.arena, slotEntry{obj: obj, gen: obj.gen})
	return obj
}

func defaultSlots(bp *Blueprint) []value.Value {
	slots := make([]value.Value, len(bp.Vars))
	for i, v := range bp.Vars {
		slots[i] = value.ZeroFor(string(v.Type))
	}
	return slots
}

// RefFor returns a value.ObjectRef for obj usable in Value containers.
// The ref is a genRef (arena index plus generation), never a raw
// pointer, so a ref captured before a destruct-and-reuse cycle observes
// the tombstone instead of the new occupant.
func RefFor(obj *Object) value.ObjectRef {
	if obj == nil {
		return nil
	}
	return &genRef{table: obj.table, index: obj.index, gen: obj.gen, id: obj.id}
}

// genRef is the arena-index+generation handle described in spec §9: it
// never holds a raw pointer across a destruct/reuse boundary.
type genRef struct {
	table *Table
	index int
	gen   uint64
	id    string
}

func (r *genRef) resolve() *Object {
	if r.table == nil || r.index < 0 || r.index >= len(r.table.arena) {
		return nil
	}
	e := r.table.arena[r.index]
	if e.free || e.gen != r.gen || e.obj.destructed {
		return nil
	}
	return e.obj
}

func (r *genRef) Live() bool { o := r.resolve(); return o != nil }
func (r *genRef) ID() string { return r.id }
func (r *genRef) Equal(other value.ObjectRef) bool {
	o, ok := other.(*genRef)
	if !ok {
		return false
	}
	return r.table == o.table && r.index == o.index && r.gen == o.gen
}

// Resolve returns the live *Object behind a value.ObjectRef produced by
// this table, or nil.
func (t *Table) Resolve(ref value.ObjectRef) *Object {
	gr, ok := ref.(*genRef)
	if !ok {
		return nil
	}
	return gr.resolve()
}

// FindObject returns the live object whose id matches, or nil.
func (t *Table) FindObject(id string) *Object {
	for _, e := range t.arena {
		if !e.free && !e.obj.destructed && e.obj.id == id {
			return e.obj
		}
	}
	return nil
}

// LoadBlueprint implements load_blueprint(path) per spec §4.4.
func (t *Table) LoadBlueprint(path string) (*Blueprint, error) {
	return t.loadBlueprint(path, map[string]bool{})
}

// ForceReload implements the unconditional recompile half of update(path)
// per spec §4.6: unlike LoadBlueprint, it recompiles even if the source
// mtime matches the cached blueprint's.
func (t *Table) ForceReload(path string) (*Blueprint, error) {
	old, hadOld := t.blueprints[path]
	delete(t.blueprints, path)
	bp, err := t.loadBlueprint(path, map[string]bool{})
	if err != nil {
		if hadOld {
			t.blueprints[path] = old
		}
		return nil, err
	}
	// Only the master instance is replaced; existing clones keep their
	// original blueprint reference and are untouched here. Retire the
	// old master instance so two live objects never share this id.
	if hadOld && old.Master != nil && old.Master != bp.Master {
		old.Master.destructed = true
		old.Master.callouts = nil
		old.Master.heartbeat = false
		if old.Master.env != nil {
			removeFromInventory(old.Master.env, old.Master)
			old.Master.env = nil
		}
		for _, child := range old.Master.inventory {
			child.env = nil
		}
		old.Master.inventory = nil
		if old.Master.index >= 0 && old.Master.index < len(t.arena) {
			t.arena[old.Master.index] = slotEntry{free: true, gen: old.Master.gen}
		}
	}
	return bp, nil
}

func (t *Table) loadBlueprint(path string, inProgress map[string]bool) (*Blueprint, error) {
	if inProgress[path] {
		return nil, &LoadError{Path: path, Reason: "circular inherit"}
	}
	src, mtime, err := t.loader.ReadSource(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read source failed", Cause: err}
	}
	if existing, ok := t.blueprints[path]; ok && !mtime.After(existing.Mtime) {
		return existing, nil
	}
	return t.compile(path, src, mtime, inProgress)
}

func (t *Table) compile(path, src string, mtime time.Time, inProgress map[string]bool) (*Blueprint, error) {
	inProgress[path] = true
	defer delete(inProgress, path)

	f, err := parseSource(path, src)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "parse failed", Cause: err}
	}

	bp := &Blueprint{Path: path, Mtime: mtime, File: f, Functions: make(map[string]*ast.FuncDecl)}

	if f.Inherit != "" {
		parentPath, err := t.Canonicalize("", f.Inherit)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "bad inherit path", Cause: err}
		}
		parent, err := t.loadBlueprint(parentPath, inProgress)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "inherited blueprint failed", Cause: err}
		}
		bp.Parent = parent
		bp.Vars = append(bp.Vars, parent.Vars...)
	}
	for _, v := range f.Variables {
		bp.Vars = append(bp.Vars, VarSlot{Type: v.Type, Name: v.Name})
	}
	for _, fn := range f.Functions {
		bp.Functions[fn.Name] = fn
	}

	t.blueprints[path] = bp
	master := t.alloc(bp, path)
	bp.Master = master

	if t.eval != nil {
		if err := t.eval.CallCreate(master); err != nil {
			return nil, &LoadError{Path: path, Reason: "create() failed", Cause: err}
		}
	}
	return bp, nil
}

// CloneObject implements clone_object(path) per spec §4.4.
func (t *Table) CloneObject(path string) (*Object, error) {
	bp, err := t.LoadBlueprint(path)
	if err != nil {
		return nil, err
	}
	t.cloneSeq[path]++
	id := fmt.Sprintf("%s#%d", path, t.cloneSeq[path])
	clone := t.alloc(bp, id)
	if t.eval != nil {
		if err := t.eval.CallCreate(clone); err != nil {
			return nil, &LoadError{Path: path, Reason: "create() failed", Cause: err}
		}
	}
	return clone, nil
}

// Destruct implements destruct(obj) per spec §4.4.
func (t *Table) Destruct(obj *Object) {
	if obj == nil || obj.destructed {
		return
	}
	obj.destructed = true
	obj.callouts = nil
	obj.heartbeat = false
	if obj.env != nil {
		removeFromInventory(obj.env, obj)
		obj.env = nil
	}
	for _, child := range obj.inventory {
		child.env = nil
	}
	obj.inventory = nil
	if obj.blueprint != nil && obj.blueprint.Master == obj {
		delete(t.blueprints, obj.blueprint.Path)
	}
	t.arena[obj.index] = slotEntry{free: true, gen: obj.gen}
}

func removeFromInventory(env, who *Object) {
	out := env.inventory[:0]
	for _, o := range env.inventory {
		if o != who {
			out = append(out, o)
		}
	}
	env.inventory = out
}

// MoveObject implements move_object(what, dest) per spec §4.4. It does
// not itself invoke init(); callers (the interpreter's efun surface)
// fire the init protocol afterward per spec §4.5.
func (t *Table) MoveObject(what, dest *Object) error {
	if what == nil || what.destructed {
		return &PathError{Reason: "move_object on destructed object"}
	}
	if what.env != nil {
		removeFromInventory(what.env, what)
	}
	what.env = dest
	if dest != nil {
		dest.inventory = append(dest.inventory, what)
	}
	return nil
}

// EnableHeartbeat toggles an object's heartbeat membership.
func (t *Table) EnableHeartbeat(obj *Object, on bool) {
	if obj == nil || obj.destructed {
		return
	}
	obj.heartbeat = on
}

// Callouts returns obj's pending callouts.
func (o *Object) Callouts() []*Callout { return o.callouts }

// AddCallout appends a new pending callout and returns it.
func (t *Table) AddCallout(obj *Object, fn string, deadline time.Time, args []value.Value) *Callout {
	t.calloutSeq++
	c := &Callout{ID: fmt.Sprintf("co-%d", t.calloutSeq), Object: obj, Func: fn, Args: args, Deadline: deadline, Seq: t.calloutSeq}
	obj.callouts = append(obj.callouts, c)
	return c
}

// RemoveCallout drops a fired or cancelled callout from its object.
func (t *Table) RemoveCallout(obj *Object, c *Callout) {
	out := obj.callouts[:0]
	for _, e := range obj.callouts {
		if e != c {
			out = append(out, e)
		}
	}
	obj.callouts = out
}

// AllHeartbeatObjects returns every live heartbeat-enabled object in
// stable arena order.
func (t *Table) AllHeartbeatObjects() []*Object {
	var out []*Object
	for _, e := range t.arena {
		if !e.free && !e.obj.destructed && e.obj.heartbeat {
			out = append(out, e.obj)
		}
	}
	return out
}

// AllLiveObjects returns every live object in stable arena order, used by
// reload bookkeeping and admin introspection.
func (t *Table) AllLiveObjects() []*Object {
	var out []*Object
	for _, e := range t.arena {
		if !e.free && !e.obj.destructed {
			out = append(out, e.obj)
		}
	}
	return out
}
