package efun

import (
	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/value"
)

var hotReloadEfuns = map[string]efunFunc{
	"update":         efunUpdate,
	"reload_changed": efunReloadChanged,
}

func efunUpdate(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String || r.master == nil {
		return value.NewInt(0), nil
	}
	if !r.checkCapability(it, act, "admin", "update") {
		return value.NewInt(0), nil
	}
	path, err := r.table.Canonicalize(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NewInt(0), nil
	}
	n, err := r.master.Update(path)
	if err != nil {
		return value.NewInt(0), err
	}
	return value.NewInt(int64(n)), nil
}

func efunReloadChanged(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if r.master == nil {
		return value.NewArray(nil), nil
	}
	if !r.checkCapability(it, act, "admin", "reload_changed") {
		return value.NewArray(nil), nil
	}
	changed, err := r.master.ReloadChanged()
	if err != nil {
		return value.NewArray(nil), err
	}
	out := make([]value.Value, len(changed))
	for i, p := range changed {
		out[i] = value.NewString(p)
	}
	return value.NewArray(out), nil
}
