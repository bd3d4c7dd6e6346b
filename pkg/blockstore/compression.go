package blockstore

// CompressionTag is accepted at the Putter.Write interface for forward
// compatibility with a future compressed-chunk codec. The core only
// implements Uncompressed; any other tag is rejected.
type CompressionTag uint8

// Uncompressed is the only CompressionTag the core implements.
const Uncompressed CompressionTag = 0
