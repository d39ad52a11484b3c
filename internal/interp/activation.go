package interp

import (
	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

// Activation is one frame on the interpreter's call stack: an object,
// the function currently executing on it, and its local variables.
type Activation struct {
	Object    *object.Object
	Blueprint *object.Blueprint // the blueprint that defines Func, for "::" resolution
	Func      *ast.FuncDecl
	Locals    map[string]value.Value
	Prev      *Activation
}

func newActivation(obj *object.Object, bp *object.Blueprint, fn *ast.FuncDecl, prev *Activation) *Activation {
	return &Activation{Object: obj, Blueprint: bp, Func: fn, Locals: make(map[string]value.Value), Prev: prev}
}

func (a *Activation) lookupLocal(name string) (value.Value, bool) {
	v, ok := a.Locals[name]
	return v, ok
}
