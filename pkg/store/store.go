// Package store implements the on-disk content-addressed backend the
// blockstore façade sits on top of: a flat directory of files named by
// the hex-encoded hash of their contents, written via a temp file and
// atomic rename so a reader never observes a partially written blob.
//
// The temp-then-rename commit pattern is grounded in the pack's Tessera
// POSIX storage implementation (other_examples/...tessera...posix-files.go),
// whose createExclusive helper writes to a sibling temp path before
// renaming into place.
package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshstore/meshnode/pkg/merkle"
)

// ErrNotFound is returned when no blob is stored under the given hash.
var ErrNotFound = errors.New("store: not found")

// Store is a content-addressed blob store rooted at a directory.
type Store struct {
	root string
}

// Open returns a Store rooted at dir, creating dir if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create tmp dir: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(h merkle.Hash) string {
	name := hex.EncodeToString(h[:])
	return filepath.Join(s.root, name)
}

// Has reports whether a blob is stored under hash h.
func (s *Store) Has(h merkle.Hash) bool {
	_, err := os.Stat(s.path(h))
	return err == nil
}

// Fetch returns the blob stored under hash h.
func (s *Store) Fetch(h merkle.Hash) ([]byte, error) {
	data, err := os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read %x: %w", h, err)
	}
	return data, nil
}

// Insert stores data under hash h, atomically. Re-inserting the same
// hash is a no-op success: content-addressed writes are idempotent.
func (s *Store) Insert(h merkle.Hash, data []byte) error {
	if s.Has(h) {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "insert-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(h)); err != nil {
		return fmt.Errorf("store: commit %x: %w", h, err)
	}
	return nil
}

// Root returns the directory the store is rooted at.
func (s *Store) Root() string {
	return s.root
}
