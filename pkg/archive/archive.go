// Package archive implements a thin read-only index over a blockstore's
// on-disk directory, for operator tooling (listing committed records,
// spotting orphaned chunk files left by aborted verify-mode Putters).
// It reads the store directory but never writes to it: the blockstore
// façade (pkg/blockstore) is the only writer, so the core's commit and
// lifecycle rules in spec §5 stay intact.
package archive

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"time"
)

// Entry describes one committed record file in a store directory. Kind
// is not decoded here — archive only reports what the directory
// listing itself can tell it (name, size, modification time); deciding
// whether a hash is a Tree or a Chunk is the façade's job.
type Entry struct {
	Hash    [32]byte
	Size    int64
	ModTime time.Time
}

// Index lists the committed records under a store's root directory.
type Index struct {
	root string
}

// Open returns an Index over the store rooted at dir. It does not
// create dir: an archive index is read-only tooling over a store the
// blockstore façade already owns.
func Open(dir string) *Index {
	return &Index{root: dir}
}

// List returns every committed record in the store directory, skipping
// the temp subdirectory rename targets land in. Non-hex-named or
// wrong-length-named entries are skipped rather than failing the whole
// listing — an operator tool should degrade gracefully on an unexpected
// file dropped into the store directory.
func (idx *Index) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(idx.root)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		raw, err := hex.DecodeString(de.Name())
		if err != nil || len(raw) != 32 {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		var e Entry
		copy(e.Hash[:], raw)
		e.Size = info.Size()
		e.ModTime = info.ModTime()
		out = append(out, e)
	}
	return out, nil
}

// Stats summarizes the committed record count and total bytes on disk.
func (idx *Index) Stats() (count int, totalBytes int64, err error) {
	entries, err := idx.List()
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		totalBytes += e.Size
	}
	return len(entries), totalBytes, nil
}

// TempPath reports the temp subdirectory (storeRoot/tmp) a Store writes
// in-progress files into, per spec §6 ("safe to delete on startup").
// archive only reports the path; deletion is operator-driven, never
// automatic.
func TempPath(storeRoot string) string {
	return filepath.Join(storeRoot, "tmp")
}
