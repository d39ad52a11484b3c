package object

import (
	"testing"
	"time"

	"github.com/kythorn/lpgo/internal/value"
)

type fakeLoader struct {
	sources map[string]string
	mtimes  map[string]time.Time
}

func (f *fakeLoader) ReadSource(p string) (string, time.Time, error) {
	src, ok := f.sources[p]
	if !ok {
		return "", time.Time{}, &LoadError{Path: p, Reason: "not found"}
	}
	mt := f.mtimes[p]
	if mt.IsZero() {
		mt = time.Unix(1000, 0)
	}
	return src, mt, nil
}

type noopEval struct{}

func (noopEval) CallCreate(obj *Object) error { return nil }
func (noopEval) Invoke(obj *Object, fn string, args []value.Value) (value.Value, error) {
	return value.NilValue, nil
}

func newTestTable(sources map[string]string) *Table {
	tbl := NewTable("/", &fakeLoader{sources: sources, mtimes: map[string]time.Time{}})
	tbl.SetEvaluator(noopEval{})
	return tbl
}

func TestLoadBlueprintBasic(t *testing.T) {
	tbl := newTestTable(map[string]string{
		"/room": "int width = 10;\nvoid create() { width = 10; }\n",
	})
	bp, err := tbl.LoadBlueprint("/room")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp.Path != "/room" {
		t.Errorf("Path = %s, want /room", bp.Path)
	}
	if bp.Master == nil || bp.Master.ID() != "/room" {
		t.Fatalf("Master = %v", bp.Master)
	}
}

func TestLoadBlueprintCaching(t *testing.T) {
	tbl := newTestTable(map[string]string{"/room": "int w;\n"})
	bp1, err := tbl.LoadBlueprint("/room")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bp2, err := tbl.LoadBlueprint("/room")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp1 != bp2 {
		t.Error("expected cached blueprint to be returned unchanged")
	}
}

func TestLoadBlueprintInheritance(t *testing.T) {
	tbl := newTestTable(map[string]string{
		"/std/object": "int base = 1;\n",
		"/room":       "inherit \"/std/object\";\nint width = 10;\n",
	})
	bp, err := tbl.LoadBlueprint("/room")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.Vars) != 2 {
		t.Fatalf("Vars = %v, want 2 (parent-first)", bp.Vars)
	}
	if bp.Vars[0].Name != "base" || bp.Vars[1].Name != "width" {
		t.Errorf("Vars order = %v, want [base width]", bp.Vars)
	}
}

func TestCloneObjectSequence(t *testing.T) {
	tbl := newTestTable(map[string]string{"/item": "int n;\n"})
	c1, err := tbl.CloneObject("/item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := tbl.CloneObject("/item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1.ID() != "/item#1" || c2.ID() != "/item#2" {
		t.Errorf("clone ids = %s, %s; want /item#1, /item#2", c1.ID(), c2.ID())
	}
}

func TestDestructSemantics(t *testing.T) {
	tbl := newTestTable(map[string]string{
		"/room": "int w;\n",
		"/item": "int n;\n",
	})
	room, _ := tbl.LoadBlueprint("/room")
	item, err := tbl.CloneObject("/item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tbl.MoveObject(item, room.Master); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(room.Master.Inventory()) != 1 {
		t.Fatalf("expected 1 item in room inventory, got %d", len(room.Master.Inventory()))
	}

	ref := RefFor(item)
	tbl.Destruct(item)

	if ref.Live() {
		t.Error("expected ref to report dead after destruct")
	}
	if len(room.Master.Inventory()) != 0 {
		t.Errorf("expected empty inventory after destruct, got %d", len(room.Master.Inventory()))
	}
	if got := item.Slot(0); !got.IsNil() && got.Int() != 0 {
		t.Errorf("expected type-zero on destructed slot read")
	}
}

func TestFindObject(t *testing.T) {
	tbl := newTestTable(map[string]string{"/room": "int w;\n"})
	bp, _ := tbl.LoadBlueprint("/room")
	found := tbl.FindObject("/room")
	if found != bp.Master {
		t.Error("FindObject did not return the master instance")
	}
	if tbl.FindObject("/nope") != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestGenRefReuseDoesNotAlias(t *testing.T) {
	tbl := newTestTable(map[string]string{"/item": "int n;\n"})
	a, _ := tbl.CloneObject("/item")
	refA := RefFor(a)
	tbl.Destruct(a)
	b, _ := tbl.CloneObject("/item")
	_ = b
	if refA.Live() {
		t.Error("stale ref must not resolve to the object that reused its arena slot")
	}
}
