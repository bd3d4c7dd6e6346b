// Package chunk splits content into fixed-size chunks for the blockstore.
//
// The algorithm mirrors the teacher's flat ChunkReader/ChunkData slicing
// loop (pkg/content/chunker.go), narrowed to a single fixed chunk size:
// the blockstore's tree addressing depends on every chunk but the last
// being exactly Size bytes.
package chunk

import (
	"fmt"
	"io"
)

// Size is the fixed chunk size, 256 KiB.
const Size = 256 * 1024

// Split reads r to completion and returns its content split into
// fixed-Size chunks, the final chunk possibly shorter. An empty input
// yields a nil slice, not a single zero-length chunk.
func Split(r io.Reader) ([][]byte, error) {
	var chunks [][]byte
	buf := make([]byte, Size)

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			chunks = append(chunks, data)
		}
		switch err {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			return chunks, nil
		default:
			return nil, fmt.Errorf("chunk: read failed: %w", err)
		}
	}
}

// ForEach streams r in fixed-Size chunks, invoking fn with each chunk's
// zero-based index and bytes in order. It never buffers more than one
// chunk at a time, so it is the path the Putter uses for large content.
func ForEach(r io.Reader, fn func(index uint64, data []byte) error) error {
	buf := make([]byte, Size)
	var index uint64

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if cbErr := fn(index, buf[:n]); cbErr != nil {
				return cbErr
			}
			index++
		}
		switch err {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return fmt.Errorf("chunk: read failed: %w", err)
		}
	}
}

// Count returns the number of fixed-Size chunks a stream of the given
// byte length would produce.
func Count(totalBytes uint64) uint64 {
	if totalBytes == 0 {
		return 0
	}
	return (totalBytes + Size - 1) / Size
}
