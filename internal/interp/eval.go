package interp

import (
	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/lpfmt"
	"github.com/kythorn/lpgo/internal/value"
)

func (it *Interp) eval(act *Activation, e ast.Expr) (value.Value, error) {
	if err := it.step(act, exprLine(e)); err != nil {
		return value.NilValue, err
	}
	switch n := e.(type) {
	case *ast.IntLit:
		return value.NewInt(n.Value), nil
	case *ast.StringLit:
		return value.NewString(n.Value), nil
	case *ast.Ident:
		return it.resolveVar(act, n.Name), nil
	case *ast.ArrayLit:
		elems := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := it.eval(act, el)
			if err != nil {
				return value.NilValue, err
			}
			elems[i] = v
		}
		return value.NewArray(elems), nil
	case *ast.MappingLit:
		m := value.NewMapping()
		for _, entry := range n.Entries {
			k, err := it.eval(act, entry.Key)
			if err != nil {
				return value.NilValue, err
			}
			v, err := it.eval(act, entry.Val)
			if err != nil {
				return value.NilValue, err
			}
			if err := m.MappingSet(k, v); err != nil {
				return value.NilValue, err
			}
		}
		return m, nil
	case *ast.UnaryExpr:
		return it.evalUnary(act, n)
	case *ast.BinaryExpr:
		return it.evalBinary(act, n)
	case *ast.AssignExpr:
		return it.evalAssign(act, n)
	case *ast.IndexExpr:
		x, err := it.eval(act, n.X)
		if err != nil {
			return value.NilValue, err
		}
		idx, err := it.eval(act, n.Index)
		if err != nil {
			return value.NilValue, err
		}
		if x.Kind() == value.Mapping {
			return x.MappingGet(idx), nil
		}
		return x.Index(idx.Int())
	case *ast.SliceExpr:
		x, err := it.eval(act, n.X)
		if err != nil {
			return value.NilValue, err
		}
		from, err := it.eval(act, n.From)
		if err != nil {
			return value.NilValue, err
		}
		to, err := it.eval(act, n.To)
		if err != nil {
			return value.NilValue, err
		}
		return x.Slice(from.Int(), to.Int())
	case *ast.CallExpr:
		return it.evalCall(act, n)
	case *ast.ArrowCallExpr:
		return it.evalArrowCall(act, n)
	case *ast.ScopeCallExpr:
		args, err := it.evalArgs(act, n.Args)
		if err != nil {
			return value.NilValue, err
		}
		return it.InvokeFromParent(n.Name, args)
	default:
		return value.NilValue, nil
	}
}

func exprLine(e ast.Expr) int {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Line
	case *ast.StringLit:
		return n.Line
	case *ast.Ident:
		return n.Line
	case *ast.BinaryExpr:
		return n.Line
	case *ast.UnaryExpr:
		return n.Line
	case *ast.AssignExpr:
		return n.Line
	case *ast.CallExpr:
		return n.Line
	case *ast.ArrowCallExpr:
		return n.Line
	case *ast.ScopeCallExpr:
		return n.Line
	case *ast.IndexExpr:
		return n.Line
	case *ast.SliceExpr:
		return n.Line
	default:
		return 0
	}
}

func (it *Interp) resolveVar(act *Activation, name string) value.Value {
	if v, ok := act.lookupLocal(name); ok {
		return v
	}
	if idx, ok := act.Blueprint.VarIndex(name); ok {
		return act.Object.Slot(idx)
	}
	return value.NilValue
}

func (it *Interp) assignVar(act *Activation, name string, v value.Value) {
	if _, ok := act.lookupLocal(name); ok {
		act.Locals[name] = v
		return
	}
	if idx, ok := act.Blueprint.VarIndex(name); ok {
		act.Object.SetSlot(idx, v)
		return
	}
	act.Locals[name] = v
}

func (it *Interp) evalUnary(act *Activation, n *ast.UnaryExpr) (value.Value, error) {
	x, err := it.eval(act, n.X)
	if err != nil {
		return value.NilValue, err
	}
	switch n.Op {
	case "!":
		if x.Truthy() {
			return value.NewInt(0), nil
		}
		return value.NewInt(1), nil
	case "-":
		return value.ArithBinary("-", value.NewInt(0), x)
	default:
		return value.NilValue, &value.TypeError{Op: n.Op, Detail: "unknown unary operator"}
	}
}

func (it *Interp) evalBinary(act *Activation, n *ast.BinaryExpr) (value.Value, error) {
	switch n.Op {
	case "&&":
		l, err := it.eval(act, n.Left)
		if err != nil {
			return value.NilValue, err
		}
		if !l.Truthy() {
			return value.NewInt(0), nil
		}
		r, err := it.eval(act, n.Right)
		if err != nil {
			return value.NilValue, err
		}
		if r.Truthy() {
			return value.NewInt(1), nil
		}
		return value.NewInt(0), nil
	case "||":
		l, err := it.eval(act, n.Left)
		if err != nil {
			return value.NilValue, err
		}
		if l.Truthy() {
			return value.NewInt(1), nil
		}
		r, err := it.eval(act, n.Right)
		if err != nil {
			return value.NilValue, err
		}
		if r.Truthy() {
			return value.NewInt(1), nil
		}
		return value.NewInt(0), nil
	}

	l, err := it.eval(act, n.Left)
	if err != nil {
		return value.NilValue, err
	}
	r, err := it.eval(act, n.Right)
	if err != nil {
		return value.NilValue, err
	}
	switch n.Op {
	case "+":
		return value.Add(l, r)
	case "-", "*", "/", "%":
		return value.ArithBinary(n.Op, l, r)
	case "==":
		return boolValue(l.Equal(r)), nil
	case "!=":
		return boolValue(!l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		return compareInts(n.Op, l, r)
	default:
		return value.NilValue, &value.TypeError{Op: n.Op, Detail: "unknown binary operator"}
	}
}

func boolValue(b bool) value.Value {
	if b {
		return value.NewInt(1)
	}
	return value.NewInt(0)
}

func compareInts(op string, l, r value.Value) (value.Value, error) {
	if l.Kind() != value.Int || r.Kind() != value.Int {
		return value.NilValue, &value.TypeError{Op: op, Detail: "relational operators require int operands"}
	}
	a, b := l.Int(), r.Int()
	var result bool
	switch op {
	case "<":
		result = a < b
	case "<=":
		result = a <= b
	case ">":
		result = a > b
	case ">=":
		result = a >= b
	}
	return boolValue(result), nil
}

func (it *Interp) evalAssign(act *Activation, n *ast.AssignExpr) (value.Value, error) {
	rhs, err := it.eval(act, n.Value)
	if err != nil {
		return value.NilValue, err
	}

	switch target := n.Target.(type) {
	case *ast.Ident:
		newVal := rhs
		if n.Op != "=" {
			cur := it.resolveVar(act, target.Name)
			newVal, err = applyCompound(n.Op, cur, rhs)
			if err != nil {
				return value.NilValue, err
			}
		}
		it.assignVar(act, target.Name, newVal)
		return newVal, nil

	case *ast.IndexExpr:
		container, err := it.eval(act, target.X)
		if err != nil {
			return value.NilValue, err
		}
		idx, err := it.eval(act, target.Index)
		if err != nil {
			return value.NilValue, err
		}
		newVal := rhs
		if n.Op != "=" {
			var cur value.Value
			if container.Kind() == value.Mapping {
				cur = container.MappingGet(idx)
			} else {
				cur, _ = container.Index(idx.Int())
			}
			newVal, err = applyCompound(n.Op, cur, rhs)
			if err != nil {
				return value.NilValue, err
			}
		}
		if container.Kind() == value.Mapping {
			if err := container.MappingSet(idx, newVal); err != nil {
				return value.NilValue, err
			}
			return newVal, nil
		}
		if err := container.SetIndex(idx.Int(), newVal); err != nil {
			return value.NilValue, err
		}
		return newVal, nil

	default:
		return value.NilValue, &value.TypeError{Op: "assign", Detail: "invalid assignment target"}
	}
}

func applyCompound(op string, cur, rhs value.Value) (value.Value, error) {
	switch op {
	case "+=":
		return value.Add(cur, rhs)
	case "-=":
		return value.ArithBinary("-", cur, rhs)
	default:
		return value.NilValue, &value.TypeError{Op: op, Detail: "unknown compound assignment"}
	}
}

func (it *Interp) evalArgs(act *Activation, exprs []ast.Expr) ([]value.Value, error) {
	args := make([]value.Value, len(exprs))
	for i, e := range exprs {
		v, err := it.eval(act, e)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// evalCall resolves a bare name(args) call: first the current object's own
// inheritance chain, then the efun surface.
func (it *Interp) evalCall(act *Activation, n *ast.CallExpr) (value.Value, error) {
	// sscanf's output parameters are assigned by reference, so its
	// trailing arguments must stay unevaluated ASTExprs rather than
	// values — handled before the normal eager-argument path below.
	if n.Name == "sscanf" && act.Object.Blueprint().FindFunction("sscanf") == nil {
		return it.evalSscanf(act, n)
	}
	args, err := it.evalArgs(act, n.Args)
	if err != nil {
		return value.NilValue, err
	}
	if fn, bp := act.Object.Blueprint().FindFunction(n.Name); fn != nil {
		return it.call(act.Object, bp, fn, args)
	}
	if it.Efuns != nil {
		v, ok, err := it.Efuns.Call(it, act, n.Name, args)
		if ok {
			return v, err
		}
	}
	return value.NilValue, nil
}

// evalSscanf implements the sscanf efun's by-reference output
// parameters per spec §4.9/§8: subject and format are evaluated
// normally, but every trailing argument is treated as an assignment
// target (a plain local/global identifier) rather than a value.
func (it *Interp) evalSscanf(act *Activation, n *ast.CallExpr) (value.Value, error) {
	if len(n.Args) < 2 {
		return value.NewInt(0), nil
	}
	subj, err := it.eval(act, n.Args[0])
	if err != nil {
		return value.NilValue, err
	}
	format, err := it.eval(act, n.Args[1])
	if err != nil {
		return value.NilValue, err
	}
	results := lpfmt.Sscanf(subj.Str(), format.Str())
	kinds := lpfmt.DirectiveKinds(format.Str())
	outs := n.Args[2:]
	for i, target := range outs {
		id, ok := target.(*ast.Ident)
		if !ok {
			continue
		}
		var v value.Value
		switch {
		case i < len(results) && results[i].Kind == 'd':
			v = value.NewInt(results[i].Int)
		case i < len(results):
			v = value.NewString(results[i].Str)
		case i < len(kinds) && kinds[i] == 'd':
			v = value.NewInt(0)
		case i < len(kinds):
			v = value.NewString("")
		default:
			v = value.NilValue
		}
		it.assignVar(act, id.Name, v)
	}
	return value.NewInt(int64(len(results))), nil
}

func (it *Interp) evalArrowCall(act *Activation, n *ast.ArrowCallExpr) (value.Value, error) {
	recv, err := it.eval(act, n.Recv)
	if err != nil {
		return value.NilValue, err
	}
	args, err := it.evalArgs(act, n.Args)
	if err != nil {
		return value.NilValue, err
	}
	if recv.Kind() != value.Object {
		return value.NilValue, nil
	}
	ref := recv.Obj()
	if ref == nil {
		return value.NilValue, nil
	}
	obj := it.Table.Resolve(ref)
	return it.Invoke(obj, n.Name, args)
}
