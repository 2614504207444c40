package storage

import (
	"path/filepath"
	"testing"
)

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var name string
	err = s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='chunk_vectors'`).Scan(&name)
	if err != nil {
		t.Fatalf("chunk_vectors table missing: %v", err)
	}
}

func TestOpen_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("applied versions = %v, want [1 ...]", versions)
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	first, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s.Close()

	second, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations after reopen: %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("migrations reapplied: first %v, second %v", first, second)
	}
}
