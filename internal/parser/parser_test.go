package parser

import (
	"testing"

	"github.com/kythorn/lpgo/internal/ast"
)

func TestParseSimpleFunction(t *testing.T) {
	src := `
inherit "/std/object";

int counter = 0;

int increment(int by) {
    counter += by;
    return counter;
}
`
	f, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Inherit != "/std/object" {
		t.Errorf("Inherit = %q, want /std/object", f.Inherit)
	}
	if len(f.Variables) != 1 || f.Variables[0].Name != "counter" {
		t.Fatalf("Variables = %v", f.Variables)
	}
	if len(f.Functions) != 1 || f.Functions[0].Name != "increment" {
		t.Fatalf("Functions = %v", f.Functions)
	}
	fn := f.Functions[0]
	if len(fn.Params) != 1 || fn.Params[0].Name != "by" {
		t.Fatalf("Params = %v", fn.Params)
	}
	if len(fn.Body.Stmts) != 2 {
		t.Fatalf("Body.Stmts = %v", fn.Body.Stmts)
	}
}

func TestParseControlFlow(t *testing.T) {
	src := `
void test() {
    int i;
    for (i = 0; i < 10; i += 1) {
        if (i == 5) {
            return;
        } else {
            write("x");
        }
    }
    while (i > 0) {
        i -= 1;
    }
}
`
	f, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := f.Functions[0]
	if _, ok := fn.Body.Stmts[0].(*ast.VarDeclStmt); !ok {
		t.Errorf("first stmt = %T, want *ast.VarDeclStmt", fn.Body.Stmts[0])
	}
	if _, ok := fn.Body.Stmts[1].(*ast.ForStmt); !ok {
		t.Errorf("second stmt = %T, want *ast.ForStmt", fn.Body.Stmts[1])
	}
	if _, ok := fn.Body.Stmts[2].(*ast.WhileStmt); !ok {
		t.Errorf("third stmt = %T, want *ast.WhileStmt", fn.Body.Stmts[2])
	}
}

func TestParseArrowAndScopeCalls(t *testing.T) {
	src := `
void test(object ob) {
    ob->move(this_object());
    ::create();
}
`
	f, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt0 := f.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	if _, ok := stmt0.X.(*ast.ArrowCallExpr); !ok {
		t.Errorf("stmt0.X = %T, want *ast.ArrowCallExpr", stmt0.X)
	}
	stmt1 := f.Functions[0].Body.Stmts[1].(*ast.ExprStmt)
	if _, ok := stmt1.X.(*ast.ScopeCallExpr); !ok {
		t.Errorf("stmt1.X = %T, want *ast.ScopeCallExpr", stmt1.X)
	}
}

func TestParseIndexAndSlice(t *testing.T) {
	src := `
void test(mixed a) {
    int x = a[0];
    mixed y = a[1..3];
}
`
	f, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vd0 := f.Functions[0].Body.Stmts[0].(*ast.VarDeclStmt)
	if _, ok := vd0.Decl.Init.(*ast.IndexExpr); !ok {
		t.Errorf("Init = %T, want *ast.IndexExpr", vd0.Decl.Init)
	}
	vd1 := f.Functions[0].Body.Stmts[1].(*ast.VarDeclStmt)
	if _, ok := vd1.Decl.Init.(*ast.SliceExpr); !ok {
		t.Errorf("Init = %T, want *ast.SliceExpr", vd1.Decl.Init)
	}
}

func TestParseArrayAndMappingLiterals(t *testing.T) {
	src := `
mixed a = ({ 1, 2, 3 });
mapping m = ([ "x":1, "y":2 ]);
`
	f, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, ok := f.Variables[0].Init.(*ast.ArrayLit)
	if !ok || len(arr.Elems) != 3 {
		t.Fatalf("Init = %v", f.Variables[0].Init)
	}
	m, ok := f.Variables[1].Init.(*ast.MappingLit)
	if !ok || len(m.Entries) != 2 {
		t.Fatalf("Init = %v", f.Variables[1].Init)
	}
}

func TestParseVarargsFunction(t *testing.T) {
	src := `
varargs void log(string fmt, mixed args) {
    write(fmt);
}
`
	f, err := Parse("test.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Functions[0].Varargs {
		t.Errorf("Varargs = false, want true")
	}
}

func TestParseErrorReporting(t *testing.T) {
	src := `int x = ;`
	_, err := Parse("broken.c", src)
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("got %T, want *ParseError", err)
	}
	if pe.File != "broken.c" {
		t.Errorf("File = %q, want broken.c", pe.File)
	}
	if pe.Excerpt == "" {
		t.Error("expected non-empty Excerpt")
	}
}

func TestParsePrecedence(t *testing.T) {
	src := `int x = 1 + 2 * 3;`
	f, err := Parse("t.c", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bin, ok := f.Variables[0].Init.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("top-level op = %v, want +", f.Variables[0].Init)
	}
	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("right operand should be the multiplicative subexpr")
	}
}
