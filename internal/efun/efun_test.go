package efun

import (
	"testing"
	"time"

	"github.com/kythorn/lpgo/internal/interp"
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

func newFixture(t *testing.T, sources map[string]string) (*object.Table, *interp.Interp, *Registry) {
	t.Helper()
	tbl := object.NewTable("/", &fixtureLoader{sources: sources})
	it := interp.New(tbl, 100000, nil)
	tbl.SetEvaluator(it)
	reg := New(tbl, nil, 1)
	it.Efuns = reg
	return tbl, it, reg
}

func TestCloneObjectAndFindObject(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/thing": `int n;`,
		"/user": `
mixed run() {
    object a = clone_object("/thing");
    object b = clone_object("/thing");
    return find_object(object_name(b));
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Kind() != value.Object || ret.Obj().ID() != "/thing#2" {
		t.Errorf("run() = %v, want ref to /thing#2", ret)
	}
}

func TestMoveObjectAndEnvironment(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/room": `int n;`,
		"/ball": `int n;`,
		"/user": `
mixed run() {
    object r = clone_object("/room");
    object b = clone_object("/ball");
    move_object(b, r);
    return environment(b);
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Kind() != value.Object || ret.Obj().ID() != "/room#1" {
		t.Errorf("environment(ball) = %v, want ref to /room#1", ret)
	}
}

func TestStringEfuns(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/user": `
mixed run() {
    string* parts = explode("a,b,c", ",");
    string joined = implode(parts, "-");
    return joined;
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Str() != "a-b-c" {
		t.Errorf("run() = %q, want \"a-b-c\"", ret.Str())
	}
}

func TestSscanfFromExample(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/user": `
mixed run() {
    string item;
    string container;
    int n = sscanf("sword 2 from bag", "%s from %s", item, container);
    return ({ n, item, container });
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elems := ret.Elems()
	if elems[0].Int() != 2 || elems[1].Str() != "sword 2" || elems[2].Str() != "bag" {
		t.Errorf("run() = %v, want [2 \"sword 2\" \"bag\"]", elems)
	}
}

func TestSizeofBoundaries(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/user": `
mixed run() {
    return ({ sizeof(0), sizeof(""), sizeof(({})), sizeof(([]) ) });
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, e := range ret.Elems() {
		if e.Int() != 0 {
			t.Errorf("sizeof case %d = %d, want 0", i, e.Int())
		}
	}
}

func TestCallOutRequiresScheduler(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/user": `
mixed run() {
    return call_out("later", 1);
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, nil, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ret.IsNil() {
		t.Errorf("call_out without a wired scheduler should return nil, got %v", ret)
	}
}

func TestRandomBounds(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/user": `
mixed run() {
    return random(10);
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		ret, err := it.Dispatch(bp.Master, nil, "run", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ret.Int() < 0 || ret.Int() >= 10 {
			t.Fatalf("random(10) = %d, out of range", ret.Int())
		}
	}
}

func TestInitProtocolRegistersActions(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/sign": `
void init() {
    add_action("read", "do_read");
}
int do_read(string arg) {
    return 1;
}
`,
		"/room": `int n;`,
		"/user": `
mixed run() {
    object r = clone_object("/room");
    object s = clone_object("/sign");
    move_object(s, r);
    move_object(this_object(), r);
    return 1;
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret, err := it.Dispatch(bp.Master, bp.Master, "run", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.Int() != 1 {
		t.Fatalf("run() = %v, want 1", ret)
	}
	entry, ok := bp.Master.ActionFor("read")
	if !ok {
		t.Fatal("expected \"read\" action registered on this_player() after entering the room")
	}
	if entry.Fn != "do_read" {
		t.Errorf("registered handler = %q, want \"do_read\"", entry.Fn)
	}
}

func TestAssertFailurePropagates(t *testing.T) {
	_, it, _ := newFixture(t, map[string]string{
		"/user": `
mixed run() {
    assert(0, "boom");
    return 1;
}
`,
	})
	tbl := it.Table
	bp, err := tbl.LoadBlueprint("/user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = it.Dispatch(bp.Master, nil, "run", nil)
	if err == nil {
		t.Fatal("expected assert failure to propagate as an error")
	}
	if _, ok := err.(*interp.RuntimeError); !ok {
		t.Fatalf("got %T, want *interp.RuntimeError", err)
	}
}
