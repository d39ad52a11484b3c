package efun

import (
	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

type efunFunc = func(*Registry, *interp.Interp, *interp.Activation, []value.Value) (value.Value, error)

var objectEfuns = map[string]efunFunc{
	"clone_object":   efunCloneObject,
	"load_object":    efunLoadObject,
	"destruct":       efunDestruct,
	"find_object":    efunFindObject,
	"object_name":    efunObjectName,
	"file_name":      efunFileName,
	"environment":    efunEnvironment,
	"all_inventory":  efunAllInventory,
	"present":        efunPresent,
	"move_object":    efunMoveObject,
	"this_object":    efunThisObject,
	"this_player":    efunThisPlayer,
	"previous_object": efunPreviousObject,
	"users":          efunUsers,
	"linkdead_users": efunLinkdeadUsers,
	"add_action":     efunAddAction,
	"remove_action":  efunRemoveAction,
}

func objRefValue(obj *object.Object) value.Value {
	if obj == nil || obj.Destructed() {
		return value.NilValue
	}
	return value.NewObject(object.RefFor(obj))
}

func resolveArg(t *object.Table, v value.Value) *object.Object {
	if v.Kind() != value.Object {
		return nil
	}
	ref := v.Obj()
	if ref == nil {
		return nil
	}
	return t.Resolve(ref)
}

func efunCloneObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NilValue, nil
	}
	path, err := r.table.Canonicalize(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NilValue, err
	}
	obj, err := r.table.CloneObject(path)
	if err != nil {
		return value.NilValue, err
	}
	return objRefValue(obj), nil
}

func efunLoadObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NilValue, nil
	}
	path, err := r.table.Canonicalize(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NilValue, err
	}
	bp, err := r.table.LoadBlueprint(path)
	if err != nil {
		return value.NilValue, err
	}
	return objRefValue(bp.Master), nil
}

func efunDestruct(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.NilValue, nil
	}
	obj := resolveArg(r.table, args[0])
	r.table.Destruct(obj)
	return value.NilValue, nil
}

func efunFindObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NilValue, nil
	}
	return objRefValue(r.table.FindObject(args[0].Str())), nil
}

func efunObjectName(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.NewString(""), nil
	}
	obj := resolveArg(r.table, args[0])
	if obj == nil {
		return value.NewString(""), nil
	}
	return value.NewString(obj.ID()), nil
}

func efunFileName(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.NewString(""), nil
	}
	obj := resolveArg(r.table, args[0])
	if obj == nil {
		return value.NewString(""), nil
	}
	return value.NewString(obj.Blueprint().Path), nil
}

func efunEnvironment(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	obj := act.Object
	if len(args) >= 1 {
		obj = resolveArg(r.table, args[0])
	}
	if obj == nil {
		return value.NilValue, nil
	}
	return objRefValue(obj.Environment()), nil
}

func efunAllInventory(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	obj := act.Object
	if len(args) >= 1 {
		obj = resolveArg(r.table, args[0])
	}
	if obj == nil {
		return value.NewArray(nil), nil
	}
	inv := obj.Inventory()
	out := make([]value.Value, len(inv))
	for i, o := range inv {
		out[i] = objRefValue(o)
	}
	return value.NewArray(out), nil
}

// efunPresent implements present(id, env) per spec §4.9: matches by the
// target's id() method result, falling back to its short description
// whenever id() is undefined or returns a false value.
func efunPresent(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.String {
		return value.NilValue, nil
	}
	env := resolveArg(r.table, args[1])
	if env == nil {
		return value.NilValue, nil
	}
	want := args[0].Str()
	for _, cand := range env.Inventory() {
		v, err := it.Invoke(cand, "id", []value.Value{value.NewString(want)})
		if err != nil {
			return value.NilValue, err
		}
		if v.Truthy() {
			return objRefValue(cand), nil
		}
		short, err := it.Invoke(cand, "short", nil)
		if err != nil {
			return value.NilValue, err
		}
		if short.Kind() == value.String && short.Str() == want {
			return objRefValue(cand), nil
		}
	}
	return value.NilValue, nil
}

func efunMoveObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.NilValue, nil
	}
	what := resolveArg(r.table, args[0])
	var dest *object.Object
	if len(args) >= 2 {
		dest = resolveArg(r.table, args[1])
	}
	var existing []*object.Object
	if dest != nil {
		existing = dest.Inventory()
	}
	if err := r.table.MoveObject(what, dest); err != nil {
		return value.NilValue, err
	}
	if err := fireInitProtocol(it, what, existing); err != nil {
		return value.NewInt(1), err
	}
	return value.NewInt(1), nil
}

// fireInitProtocol implements the init protocol described in spec
// §4.5/§4.8. move_object itself never calls init(); this runs
// afterward, once per object that already occupied dest when what
// arrived: init() is invoked on that occupant so it can add_action
// against the newcomer, and on the newcomer so it can add_action
// against that occupant.
func fireInitProtocol(it *interp.Interp, what *object.Object, existing []*object.Object) error {
	if what == nil || what.Destructed() {
		return nil
	}
	what.ClearActions()
	for _, occ := range existing {
		if occ == what || occ.Destructed() {
			continue
		}
		if _, err := it.Invoke(occ, "init", nil); err != nil {
			return err
		}
		if _, err := it.Invoke(what, "init", nil); err != nil {
			return err
		}
	}
	return nil
}

// efunAddAction implements add_action(verb, fn) per the init protocol:
// the calling object registers fn as the handler for verb on
// this_player(), the object in whose context init() is running.
func efunAddAction(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.String || args[1].Kind() != value.String {
		return value.NilValue, nil
	}
	target := it.ThisPlayer()
	if target == nil {
		return value.NilValue, nil
	}
	target.AddAction(args[0].Str(), act.Object, args[1].Str())
	return value.NewInt(1), nil
}

// efunRemoveAction implements remove_action(verb): cancels a handler
// previously registered against this_player().
func efunRemoveAction(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NilValue, nil
	}
	target := it.ThisPlayer()
	if target == nil {
		return value.NilValue, nil
	}
	target.RemoveAction(args[0].Str())
	return value.NewInt(1), nil
}

func efunThisObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	return objRefValue(act.Object), nil
}

func efunThisPlayer(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	return objRefValue(it.ThisPlayer()), nil
}

func efunPreviousObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	return objRefValue(it.PreviousObject()), nil
}

func efunUsers(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if r.users == nil {
		return value.NewArray(nil), nil
	}
	list := r.users.Users()
	out := make([]value.Value, len(list))
	for i, o := range list {
		out[i] = objRefValue(o)
	}
	return value.NewArray(out), nil
}

func efunLinkdeadUsers(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if r.users == nil {
		return value.NewArray(nil), nil
	}
	list := r.users.LinkdeadUsers()
	out := make([]value.Value, len(list))
	for i, o := range list {
		out[i] = objRefValue(o)
	}
	return value.NewArray(out), nil
}
