package object

import "testing"

func TestCanonicalizeAbsolute(t *testing.T) {
	got, err := Canonicalize("/mudlib", "", "/std/object.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/std/object" {
		t.Errorf("got %s, want /std/object", got)
	}
}

func TestCanonicalizeRelativeToCwd(t *testing.T) {
	got, err := Canonicalize("/mudlib", "/rooms", "item.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/rooms/item" {
		t.Errorf("got %s, want /rooms/item", got)
	}
}

func TestCanonicalizeEscapeRejected(t *testing.T) {
	_, err := Canonicalize("/mudlib", "/rooms", "../../../etc/passwd")
	if err == nil {
		t.Fatal("expected PathError for escaping path")
	}
	if _, ok := err.(*PathError); !ok {
		t.Errorf("got %T, want *PathError", err)
	}
}

func TestCanonicalizeDotDotWithinRoot(t *testing.T) {
	got, err := Canonicalize("/mudlib", "/rooms/sub", "../item.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/rooms/item" {
		t.Errorf("got %s, want /rooms/item", got)
	}
}

func TestCanonicalizeEmptyRejected(t *testing.T) {
	if _, err := Canonicalize("/mudlib", "", ""); err == nil {
		t.Fatal("expected PathError for empty path")
	}
}
