package interp

import (
	"testing"
	"time"

	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

type fixtureLoader struct {
	sources map[string]string
}

func (f *fixtureLoader) ReadSource(p string) (string, time.Time, error) {
	src, ok := f.sources[p]
	if !ok {
		return "", time.Time{}, &object.LoadError{Path: p, Reason: "not found"}
	}
	return src, time.Unix(1000, 0), nil
}

func newFixture(t *testing.T, sources map[string]string, budget int) (*object.Table, *Interp) {
	t.Helper()
	tbl := object.NewTable("/", &fixtureLoader{sources: sources})
	it := New(tbl, budget, nil)
	tbl.SetEvaluator(it)
	return tbl, it
}

func TestInterpArithmeticAndLocals(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/calc": `
int add(int a, int b) {
    int total = a + b;
    return total;
}
`,
	}, 10000)
	bp, err := tbl.LoadBlueprint("/calc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "add", []value.Value{value.NewInt(2), value.NewInt(3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Int() != 5 {
		t.Errorf("add(2,3) = %d, want 5", ret.Int())
	}
}

func TestInterpVariableSlotsAndAssignment(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/counter": `
int count = 0;

int bump() {
    count += 1;
    return count;
}
`,
	}, 10000)
	bp, err := tbl.LoadBlueprint("/counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i <= 3; i++ {
		ret, err := it.Dispatch(bp.Master, nil, "bump", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ret.Int() != int64(i) {
			t.Errorf("bump() iteration %d = %d, want %d", i, ret.Int(), i)
		}
	}
}

func TestInterpControlFlow(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/math": `
int sum_to(int n) {
    int total = 0;
    int i = 1;
    while (i <= n) {
        total += i;
        i += 1;
    }
    return total;
}
`,
	}, 100000)
	bp, err := tbl.LoadBlueprint("/math")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "sum_to", []value.Value{value.NewInt(10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Int() != 55 {
		t.Errorf("sum_to(10) = %d, want 55", ret.Int())
	}
}

func TestInterpInheritanceAndScopeCall(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/std/base": `
int tag = 1;

int identify() {
    return tag;
}
`,
		"/child": `
inherit "/std/base";

int identify() {
    return ::identify() + 10;
}
`,
	}, 10000)
	bp, err := tbl.LoadBlueprint("/child")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "identify", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Int() != 11 {
		t.Errorf("identify() = %d, want 11", ret.Int())
	}
}

func TestInterpCallOtherOnDestructedReturnsNil(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/thing": `
int ping() {
    return 1;
}
`,
	}, 10000)
	clone, err := tbl.CloneObject("/thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl.Destruct(clone)
	ret, err := it.Invoke(clone, "ping", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ret.IsNil() {
		t.Errorf("expected nil from call on destructed object, got %v", ret)
	}
}

func TestInterpMissingFunctionReturnsNil(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/thing": `int n;`,
	}, 10000)
	bp, err := tbl.LoadBlueprint("/thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Invoke(bp.Master, "no_such_function", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ret.IsNil() {
		t.Errorf("expected nil for missing function, got %v", ret)
	}
}

func TestInterpBudgetExceeded(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/loop": `
void spin() {
    while (1) {
        int x = 1;
    }
}
`,
	}, 50)
	bp, err := tbl.LoadBlueprint("/loop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = it.Dispatch(bp.Master, nil, "spin", nil)
	if err == nil {
		t.Fatal("expected EvalBudgetExceeded")
	}
	if _, ok := err.(*EvalBudgetExceeded); !ok {
		t.Fatalf("got %T, want *EvalBudgetExceeded", err)
	}
}

func TestInterpArrayAndMappingLiterals(t *testing.T) {
	tbl, it := newFixture(t, map[string]string{
		"/data": `
mixed make_array() {
    return ({ 1, 2, 3 });
}

mixed make_mapping() {
    return ([ "a":1, "b":2 ]);
}
`,
	}, 10000)
	bp, err := tbl.LoadBlueprint("/data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, err := it.Dispatch(bp.Master, nil, "make_array", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arr.Len() != 3 {
		t.Errorf("make_array() len = %d, want 3", arr.Len())
	}
	m, err := it.Dispatch(bp.Master, nil, "make_mapping", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.MappingGet(value.NewString("a")); got.Int() != 1 {
		t.Errorf("make_mapping()[a] = %d, want 1", got.Int())
	}
}
