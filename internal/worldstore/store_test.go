package worldstore

import (
	"path/filepath"
	"testing"
	"time"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "world.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBlueprintMtimeRoundtrip(t *testing.T) {
	s := setupStore(t)
	if _, ok, err := s.BlueprintMtime("/room"); err != nil || ok {
		t.Fatalf("expected no recorded mtime yet, ok=%v err=%v", ok, err)
	}
	want := time.Unix(123456, 0)
	if err := s.RecordBlueprintMtime("/room", want); err != nil {
		t.Fatalf("RecordBlueprintMtime failed: %v", err)
	}
	got, ok, err := s.BlueprintMtime("/room")
	if err != nil || !ok {
		t.Fatalf("expected recorded mtime, ok=%v err=%v", ok, err)
	}
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := s.RecordBlueprintMtime("/room", want.Add(time.Hour)); err != nil {
		t.Fatalf("re-record failed: %v", err)
	}
	got2, _, _ := s.BlueprintMtime("/room")
	if got2.Equal(got) {
		t.Errorf("expected mtime to update on re-record")
	}
}

func TestConnectionLog(t *testing.T) {
	s := setupStore(t)
	if err := s.LogConnect("conn-1", "127.0.0.1:5000"); err != nil {
		t.Fatalf("LogConnect failed: %v", err)
	}
	if err := s.LogBindPlayer("conn-1", "/secure/players/alice#1"); err != nil {
		t.Fatalf("LogBindPlayer failed: %v", err)
	}
	if err := s.LogDisconnect("conn-1", true); err != nil {
		t.Fatalf("LogDisconnect failed: %v", err)
	}
}

func TestCommandAuditAndTestRuns(t *testing.T) {
	s := setupStore(t)
	if err := s.LogCommand("/secure/players/alice", "look", "", true, ""); err != nil {
		t.Fatalf("LogCommand failed: %v", err)
	}
	if err := s.RecordTestRun("/mudlib/tests", "combat_test.c", false, 4); err != nil {
		t.Fatalf("RecordTestRun failed: %v", err)
	}
}

func TestAllBlueprintPaths(t *testing.T) {
	s := setupStore(t)
	s.RecordBlueprintMtime("/a", time.Unix(1, 0))
	s.RecordBlueprintMtime("/b", time.Unix(2, 0))
	paths, err := s.AllBlueprintPaths()
	if err != nil {
		t.Fatalf("AllBlueprintPaths failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %v, want 2 paths", paths)
	}
}
