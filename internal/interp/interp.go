// Package interp implements the tree-walking evaluator: activations, the
// call stack, inheritance-aware function dispatch, and the instruction
// budget.
package interp

import (
	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

// Efuns is implemented by the efun registry; the interpreter calls into
// it for any function name not resolved within the inheritance chain.
// The bool return reports whether name was recognized as an efun at all
// (distinguishing "efun returned nil" from "not an efun").
type Efuns interface {
	Call(it *Interp, act *Activation, name string, args []value.Value) (value.Value, bool, error)
}

// Interp evaluates AST within activations bound to objects in a shared
// object.Table.
type Interp struct {
	Table  *object.Table
	Efuns  Efuns
	Log    *zap.Logger
	Budget int

	thisPlayer *object.Object
	steps      int
	stack      *Activation
}

// New constructs an interpreter over table with the given default
// per-dispatch instruction budget.
func New(table *object.Table, budget int, log *zap.Logger) *Interp {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interp{Table: table, Budget: budget, Log: log}
}

// ThisPlayer returns the interactive object that initiated the current
// top-level dispatch.
func (it *Interp) ThisPlayer() *object.Object { return it.thisPlayer }

// PreviousObject returns the calling object of the current activation, or
// nil at the top of the stack.
func (it *Interp) PreviousObject() *object.Object {
	if it.stack == nil || it.stack.Prev == nil {
		return nil
	}
	return it.stack.Prev.Object
}

// ThisObject returns the object executing the current activation.
func (it *Interp) ThisObject() *object.Object {
	if it.stack == nil {
		return nil
	}
	return it.stack.Object
}

// Dispatch runs fn on obj as a new top-level command dispatch: resets the
// instruction budget and this_player, per spec §4.5/§4.8.
func (it *Interp) Dispatch(obj *object.Object, player *object.Object, fn string, args []value.Value) (value.Value, error) {
	it.steps = 0
	it.thisPlayer = player
	it.stack = nil
	return it.Invoke(obj, fn, args)
}

// CallCreate implements object.Evaluator: invokes create() once, ignoring
// a missing definition (a bare "object" base has none).
func (it *Interp) CallCreate(obj *object.Object) error {
	_, err := it.Invoke(obj, "create", nil)
	return err
}

// NotifyAdmin implements master.NotifyAdmin: a failed hot reload is
// surfaced to the master blueprint's notify_admin(reason, path, error)
// hook rather than left to crash the reload goroutine.
func (it *Interp) NotifyAdmin(masterObj *object.Object, reason string, failedPath string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := it.Dispatch(masterObj, nil, "notify_admin", []value.Value{
		value.NewString(reason), value.NewString(failedPath), value.NewString(msg),
	}); err != nil {
		it.Log.Warn("notify_admin hook failed", zap.String("path", failedPath), zap.Error(err))
	}
}

// Invoke implements inheritance-aware function lookup for obj->func(args)
// and the call_other efun, per spec §4.5: destructed or missing target
// returns nil rather than erroring.
func (it *Interp) Invoke(obj *object.Object, name string, args []value.Value) (value.Value, error) {
	if obj == nil || obj.Destructed() {
		return value.NilValue, nil
	}
	fn, bp := obj.Blueprint().FindFunction(name)
	if fn == nil {
		return value.NilValue, nil
	}
	return it.call(obj, bp, fn, args)
}

// InvokeFromParent implements ::name(args): lookup begins at the current
// activation's defining blueprint's parent link.
func (it *Interp) InvokeFromParent(name string, args []value.Value) (value.Value, error) {
	if it.stack == nil || it.stack.Blueprint.Parent == nil {
		return value.NilValue, nil
	}
	fn, bp := it.stack.Blueprint.Parent.FindFunction(name)
	if fn == nil {
		return value.NilValue, nil
	}
	return it.call(it.stack.Object, bp, fn, args)
}

func (it *Interp) call(obj *object.Object, bp *object.Blueprint, fn *ast.FuncDecl, args []value.Value) (value.Value, error) {
	act := newActivation(obj, bp, fn, it.stack)
	bindParams(act, fn, args)
	it.stack = act
	defer func() { it.stack = act.Prev }()

	ret, returned, err := it.execBlock(act, fn.Body)
	if err != nil {
		return value.NilValue, err
	}
	if returned {
		return ret, nil
	}
	return value.NilValue, nil
}

// bindParams honors varargs: missing trailing arguments receive the
// typed zero of their declared type, per spec §4.2/§4.5.
func bindParams(act *Activation, fn *ast.FuncDecl, args []value.Value) {
	for i, p := range fn.Params {
		if i < len(args) {
			act.Locals[p.Name] = args[i]
		} else {
			act.Locals[p.Name] = value.ZeroFor(string(p.Type))
		}
	}
}

func (it *Interp) step(act *Activation, line int) error {
	it.steps++
	if it.steps > it.Budget {
		oid := "?"
		if act != nil && act.Object != nil {
			oid = act.Object.ID()
		}
		return &EvalBudgetExceeded{Budget: it.Budget, Object: oid}
	}
	return nil
}
