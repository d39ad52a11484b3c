package efun

import (
	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/value"
)

var controlEfuns = map[string]efunFunc{
	"assert":   efunAssert,
	"random":   efunRandom,
	"shutdown": efunShutdown,
}

func efunAssert(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Truthy() {
		return value.NilValue, nil
	}
	msg := "assertion failed"
	if len(args) >= 2 && args[1].Kind() == value.String {
		msg = args[1].Str()
	}
	return value.NilValue, &interp.RuntimeError{
		Kind:     "AssertError",
		Message:  msg,
		ObjectID: act.Object.ID(),
		Path:     act.Blueprint.Path,
	}
}

// random(n) returns an int in [0, n), per spec §4.9.
func efunRandom(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.Int || args[0].Int() <= 0 {
		return value.NewInt(0), nil
	}
	return value.NewInt(r.rng.Int63n(args[0].Int())), nil
}

func efunShutdown(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if !r.checkCapability(it, act, "admin", "shutdown") {
		return value.NewInt(0), nil
	}
	if r.shutdown != nil {
		r.shutdown.RequestShutdown()
	}
	return value.NewInt(1), nil
}
