package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meshstore/meshnode/pkg/codec/cborcanon"
)

// maxHelloSize bounds a single Hello message. ClientHello/ServerHello
// are small signed structures; 16 KiB is far more than either needs but
// still bounds what a decoder will allocate for a hostile peer.
const maxHelloSize = 16 * 1024

// WriteHello writes v (a ClientHello or ServerHello) as canonical CBOR
// behind a 4-byte big-endian length prefix, one message per direction
// of this protocol's handshake exchange.
func WriteHello(w io.Writer, v interface{}) error {
	data, err := cborcanon.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal hello: %w", err)
	}
	if len(data) > maxHelloSize {
		return fmt.Errorf("wire: hello message %d bytes exceeds cap %d", len(data), maxHelloSize)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write hello length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wire: write hello payload: %w", err)
	}
	return nil
}

// ReadHello reads a length-prefixed Hello message into v.
func ReadHello(r io.Reader, v interface{}) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("wire: read hello length: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length == 0 || length > maxHelloSize {
		return fmt.Errorf("wire: hello message length %d out of range 1..%d", length, maxHelloSize)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("wire: read hello payload: %w", err)
	}
	if err := cborcanon.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal hello: %w", err)
	}
	return nil
}
