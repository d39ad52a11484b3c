package interp

import (
	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/value"
)

// execBlock runs a block's statements in sequence, stopping at the first
// return. The bool result reports whether a return was hit.
func (it *Interp) execBlock(act *Activation, blk *ast.BlockStmt) (value.Value, bool, error) {
	for _, s := range blk.Stmts {
		ret, returned, err := it.execStmt(act, s)
		if err != nil || returned {
			return ret, returned, err
		}
	}
	return value.NilValue, false, nil
}

func (it *Interp) execStmt(act *Activation, s ast.Stmt) (value.Value, bool, error) {
	switch n := s.(type) {
	case *ast.BlockStmt:
		if err := it.step(act, n.Line); err != nil {
			return value.NilValue, false, err
		}
		return it.execBlock(act, n)

	case *ast.VarDeclStmt:
		if err := it.step(act, n.Line); err != nil {
			return value.NilValue, false, err
		}
		v := value.ZeroFor(string(n.Decl.Type))
		if n.Decl.Init != nil {
			ev, err := it.eval(act, n.Decl.Init)
			if err != nil {
				return value.NilValue, false, err
			}
			v = ev
		}
		act.Locals[n.Decl.Name] = v
		return value.NilValue, false, nil

	case *ast.ExprStmt:
		if err := it.step(act, n.Line); err != nil {
			return value.NilValue, false, err
		}
		_, err := it.eval(act, n.X)
		return value.NilValue, false, err

	case *ast.IfStmt:
		if err := it.step(act, n.Line); err != nil {
			return value.NilValue, false, err
		}
		cond, err := it.eval(act, n.Cond)
		if err != nil {
			return value.NilValue, false, err
		}
		if cond.Truthy() {
			return it.execStmt(act, n.Then)
		}
		if n.Else != nil {
			return it.execStmt(act, n.Else)
		}
		return value.NilValue, false, nil

	case *ast.WhileStmt:
		for {
			if err := it.step(act, n.Line); err != nil {
				return value.NilValue, false, err
			}
			cond, err := it.eval(act, n.Cond)
			if err != nil {
				return value.NilValue, false, err
			}
			if !cond.Truthy() {
				return value.NilValue, false, nil
			}
			ret, returned, err := it.execStmt(act, n.Body)
			if err != nil || returned {
				return ret, returned, err
			}
		}

	case *ast.ForStmt:
		if n.Init != nil {
			if _, _, err := it.execStmt(act, n.Init); err != nil {
				return value.NilValue, false, err
			}
		}
		for {
			if err := it.step(act, n.Line); err != nil {
				return value.NilValue, false, err
			}
			if n.Cond != nil {
				cond, err := it.eval(act, n.Cond)
				if err != nil {
					return value.NilValue, false, err
				}
				if !cond.Truthy() {
					return value.NilValue, false, nil
				}
			}
			ret, returned, err := it.execStmt(act, n.Body)
			if err != nil || returned {
				return ret, returned, err
			}
			if n.Step != nil {
				if _, _, err := it.execStmt(act, n.Step); err != nil {
					return value.NilValue, false, err
				}
			}
		}

	case *ast.ReturnStmt:
		if err := it.step(act, n.Line); err != nil {
			return value.NilValue, false, err
		}
		if n.Value == nil {
			return value.NilValue, true, nil
		}
		v, err := it.eval(act, n.Value)
		if err != nil {
			return value.NilValue, false, err
		}
		return v, true, nil

	default:
		return value.NilValue, false, nil
	}
}
