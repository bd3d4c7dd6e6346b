// Package wire implements the Blockstore Transfer Protocol's framing
// (spec §4.5/§6): a stream of Proof/Chunk frames, each a 1-byte tag
// followed by a 4-byte big-endian length and that many payload bytes.
// This is a distinct, narrower wire format from pkg/wire's signed
// BaseFrame envelopes used by the rest of the constellation (DHT,
// gossip, control) — the transfer protocol has no version byte, no
// signature, and no envelope beyond the frames themselves.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/chunk"
	"github.com/meshstore/meshnode/pkg/merkle"
)

// Tag identifies a frame's payload kind.
type Tag byte

const (
	// TagProof marks a frame carrying proof material for the next chunk.
	TagProof Tag = 0x00
	// TagChunk marks a frame carrying one chunk's bytes.
	TagChunk Tag = 0x01
)

// MaxProofFrameSize bounds a Proof frame's payload length. The encoder
// never approaches this cap at the content sizes the store supports —
// a proof is at most one sibling hash per tree level, and 64 KiB covers
// far more levels than fit a realistic tree — but the cap still bounds
// what the decoder will allocate for a hostile or corrupt stream.
const MaxProofFrameSize = 64 * 1024

// Frame is one decoded frame: a tag and its raw payload bytes.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// Encoder writes a tree's chunks to a destination in Bao-streaming
// order: for each chunk, the proof segment a verifier needs before it,
// then the chunk itself. It is constructed with the tree structure so
// it can compute each chunk's proof by walking entries rather than
// resending the whole tree.
type Encoder struct {
	w       io.Writer
	entries []merkle.Hash
	total   uint64
}

// NewEncoder returns an Encoder for a tree of total chunks described by
// entries (the flat array a Tree record stores).
func NewEncoder(w io.Writer, entries []merkle.Hash, total uint64) *Encoder {
	return &Encoder{w: w, entries: entries, total: total}
}

// EncodeChunk writes chunk i's proof frame followed by its chunk frame.
// Two Encoders constructed over the same tree and fed the same chunks
// in order emit byte-identical output.
func (e *Encoder) EncodeChunk(i uint64, data []byte) error {
	sibs := merkle.Siblings(e.entries, e.total, i)
	proof := blockstore.EncodeProof(e.total, sibs)
	if err := e.writeFrame(TagProof, proof); err != nil {
		return fmt.Errorf("wire: encode proof frame: %w", err)
	}
	if err := e.writeFrame(TagChunk, data); err != nil {
		return fmt.Errorf("wire: encode chunk frame: %w", err)
	}
	return nil
}

func (e *Encoder) writeFrame(tag Tag, payload []byte) error {
	var hdr [5]byte
	hdr[0] = byte(tag)
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(payload)))
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := e.w.Write(payload)
	return err
}

// Decoder yields frames lazily from a byte stream, validating tag and
// length before handing back a payload. A clean end of stream between
// frames returns io.EOF; any error while a frame header or payload is
// partially read is a malformed-stream error, never silent truncation.
type Decoder struct {
	r io.Reader
}

// NewDecoder returns a Decoder reading frames from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next reads and validates the next frame, or returns io.EOF if the
// stream ended cleanly between frames.
func (d *Decoder) Next() (Frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(d.r, hdr[:1]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("wire: read frame tag: %w", err)
	}
	tag := Tag(hdr[0])
	switch tag {
	case TagProof, TagChunk:
	default:
		return Frame{}, fmt.Errorf("wire: unknown frame tag %#x", hdr[0])
	}

	if _, err := io.ReadFull(d.r, hdr[1:5]); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame length: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[1:5])

	if err := validateLength(tag, length); err != nil {
		return Frame{}, err
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return Frame{}, fmt.Errorf("wire: read frame payload: %w", err)
		}
	}
	return Frame{Tag: tag, Payload: payload}, nil
}

func validateLength(tag Tag, length uint32) error {
	switch tag {
	case TagProof:
		if length > MaxProofFrameSize {
			return fmt.Errorf("wire: proof frame length %d exceeds cap %d", length, MaxProofFrameSize)
		}
	case TagChunk:
		if length == 0 || length > chunk.Size {
			return fmt.Errorf("wire: chunk frame length %d out of range 1..%d", length, chunk.Size)
		}
	}
	return nil
}
