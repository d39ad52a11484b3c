package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

type fakeLoader struct{ sources map[string]string }

func (f *fakeLoader) ReadSource(p string) (string, time.Time, error) {
	src, ok := f.sources[p]
	if !ok {
		return "", time.Time{}, &object.LoadError{Path: p, Reason: "not found"}
	}
	return src, time.Unix(1000, 0), nil
}

type noopEval struct{}

func (noopEval) CallCreate(obj *object.Object) error { return nil }
func (noopEval) Invoke(obj *object.Object, fn string, args []value.Value) (value.Value, error) {
	return value.NilValue, nil
}

func newTable(sources map[string]string) *object.Table {
	tbl := object.NewTable("/", &fakeLoader{sources: sources})
	tbl.SetEvaluator(noopEval{})
	return tbl
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	tbl := newTable(map[string]string{
		"/player": `
string name = "";
int hp = 0;
mixed inventory = ({});
mapping aliases = ([]);
`,
	})
	bp, err := tbl.LoadBlueprint("/player")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj := bp.Master
	byName := map[string]int{}
	for i, v := range bp.Vars {
		byName[v.Name] = i
	}
	obj.SetSlot(byName["name"], value.NewString("alice"))
	obj.SetSlot(byName["hp"], value.NewInt(42))
	obj.SetSlot(byName["inventory"], value.NewArray([]value.Value{value.NewInt(1), value.NewString("sword")}))
	m := value.NewMapping()
	m.MappingSet(value.NewString("n"), value.NewString("north"))
	obj.SetSlot(byName["aliases"], m)

	path := filepath.Join(t.TempDir(), "alice.o")
	if err := Save(obj, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	clone, err := tbl.CloneObject("/player")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Restore(clone, path, tbl); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := clone.Slot(byName["name"]).Str(); got != "alice" {
		t.Errorf("name = %q, want alice", got)
	}
	if got := clone.Slot(byName["hp"]).Int(); got != 42 {
		t.Errorf("hp = %d, want 42", got)
	}
	inv := clone.Slot(byName["inventory"])
	if inv.Len() != 2 || inv.Elems()[1].Str() != "sword" {
		t.Errorf("inventory = %v", inv)
	}
	al := clone.Slot(byName["aliases"])
	if al.MappingGet(value.NewString("n")).Str() != "north" {
		t.Errorf("aliases[n] = %v, want north", al.MappingGet(value.NewString("n")))
	}
}

func TestRestoreFillsMissingWithTypedZero(t *testing.T) {
	tbl := newTable(map[string]string{
		"/thing": `
int a = 0;
string b = "";
`,
	})
	bp, err := tbl.LoadBlueprint("/thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "thing.o")
	if err := Save(bp.Master, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tbl2 := newTable(map[string]string{
		"/thing2": `
int a = 0;
string b = "";
string c = "unset";
`,
	})
	bp2, err := tbl2.LoadBlueprint("/thing2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Restore(bp2.Master, path, tbl2); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := bp2.Master.Slot(2).Str(); got != "" {
		t.Errorf("unknown-in-file var c = %q, want typed zero \"\"", got)
	}
}

func TestRestoreIntZeroRoundTrips(t *testing.T) {
	tbl := newTable(map[string]string{"/counter": "int xp = 0;"})
	bp, err := tbl.LoadBlueprint("/counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj := bp.Master
	obj.SetSlot(0, value.NewInt(0))

	path := filepath.Join(t.TempDir(), "counter.o")
	if err := Save(obj, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	clone, err := tbl.CloneObject("/counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Restore(clone, path, tbl); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	xp := clone.Slot(0)
	if xp.Kind() != value.Int || xp.Int() != 0 {
		t.Fatalf("xp = %v (kind %v), want Int(0)", xp, xp.Kind())
	}
	sum, err := value.Add(xp, value.NewInt(1))
	if err != nil {
		t.Fatalf("xp + 1 failed: %v", err)
	}
	if sum.Int() != 1 {
		t.Errorf("xp + 1 = %v, want 1", sum)
	}
}

func TestRestoreIgnoresUnknownVariableNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.o")
	content := "ghost \"boo\"\nhp 10\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	tbl := newTable(map[string]string{"/thing": "int hp = 0;"})
	bp, err := tbl.LoadBlueprint("/thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Restore(bp.Master, path, tbl); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := bp.Master.Slot(0).Int(); got != 10 {
		t.Errorf("hp = %d, want 10", got)
	}
}
