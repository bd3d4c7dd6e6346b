package chunk

import (
	"bytes"
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	chunks, err := Split(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSplitExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, Size*2)
	chunks, err := Split(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) != Size {
			t.Fatalf("expected full-size chunk, got %d bytes", len(c))
		}
	}
}

func TestSplitShortFinalChunk(t *testing.T) {
	data := append(bytes.Repeat([]byte{1}, Size), bytes.Repeat([]byte{2}, 17)...)
	chunks, err := Split(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != Size {
		t.Fatalf("expected first chunk full size, got %d", len(chunks[0]))
	}
	if len(chunks[1]) != 17 {
		t.Fatalf("expected short final chunk of 17 bytes, got %d", len(chunks[1]))
	}
	got := append(append([]byte{}, chunks[0]...), chunks[1]...)
	if !bytes.Equal(got, data) {
		t.Fatalf("reassembled data mismatch")
	}
}

func TestForEachMatchesSplit(t *testing.T) {
	data := bytes.Repeat([]byte{7}, Size+100)
	want, err := Split(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	var got [][]byte
	err = ForEach(bytes.NewReader(data), func(index uint64, d []byte) error {
		if index != uint64(len(got)) {
			t.Fatalf("unexpected index %d, want %d", index, len(got))
		}
		cp := make([]byte, len(d))
		copy(cp, d)
		got = append(got, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("chunk count mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("chunk %d mismatch", i)
		}
	}
}

func TestCount(t *testing.T) {
	cases := []struct {
		bytes uint64
		want  uint64
	}{
		{0, 0},
		{1, 1},
		{Size, 1},
		{Size + 1, 2},
		{Size * 5, 5},
	}
	for _, c := range cases {
		if got := Count(c.bytes); got != c.want {
			t.Errorf("Count(%d) = %d, want %d", c.bytes, got, c.want)
		}
	}
}
