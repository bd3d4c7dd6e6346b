package store

import (
	"testing"

	"github.com/meshstore/meshnode/pkg/merkle"
)

func TestInsertFetchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := merkle.LeafHash(0, []byte("hello"))
	if err := s.Insert(h, []byte("hello")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !s.Has(h) {
		t.Fatalf("expected Has to report true after Insert")
	}
	got, err := s.Fetch(h)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestFetchMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := merkle.LeafHash(0, []byte("missing"))
	if _, err := s.Fetch(h); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := merkle.LeafHash(0, []byte("data"))
	if err := s.Insert(h, []byte("data")); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := s.Insert(h, []byte("data")); err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	got, err := s.Fetch(h)
	if err != nil || string(got) != "data" {
		t.Fatalf("Fetch after re-insert: %q, %v", got, err)
	}
}

func TestReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := merkle.LeafHash(0, []byte("persist"))
	if err := s1.Insert(h, []byte("persist")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	got, err := s2.Fetch(h)
	if err != nil || string(got) != "persist" {
		t.Fatalf("Fetch after reopen: %q, %v", got, err)
	}
}
