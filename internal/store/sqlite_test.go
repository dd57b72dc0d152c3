package store

import (
	"path/filepath"
	"testing"
)

func TestLoadBeforeAnySave(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "learning.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	data, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if data != nil {
		t.Errorf("fresh store returned %d bytes, want nil", len(data))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "learning.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	blob := []byte(`{"ledger":{"reject":{"correct":3,"corrected":1}}}`)
	if err := s.Save(blob); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "learning.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	s.Save([]byte("first"))
	s.Save([]byte("second"))

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want latest write", got)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learning.db")

	s1, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Save([]byte("durable")); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Load()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "durable" {
		t.Errorf("got %q after reopen, want %q", got, "durable")
	}
}

func TestMemoryStoreIsIndependentCopy(t *testing.T) {
	m := NewMemoryStore()
	src := []byte("hello")
	m.Save(src)
	src[0] = 'X'

	got, _ := m.Load()
	if string(got) != "hello" {
		t.Errorf("store shared the caller's buffer: %q", got)
	}
}
