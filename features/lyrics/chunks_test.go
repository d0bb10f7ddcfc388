package lyrics

import (
	"strings"
	"testing"
)

func TestChunksShortStringSinglePiece(t *testing.T) {
	got := Chunks("hello", 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestChunksEmptyString(t *testing.T) {
	got := Chunks("", 10)
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("got %v", got)
	}
}

func TestChunksExactBoundary(t *testing.T) {
	got := Chunks("abcdef", 3)
	if len(got) != 2 || got[0] != "abc" || got[1] != "def" {
		t.Fatalf("got %v", got)
	}
}

func TestChunksConcatenationReproducesInput(t *testing.T) {
	in := strings.Repeat("verse line\n", 1200)
	got := Chunks(in, ChunkSize)

	want := (len([]rune(in)) + ChunkSize - 1) / ChunkSize
	if len(got) != want {
		t.Fatalf("chunks = %d, want %d", len(got), want)
	}
	for i, chunk := range got[:len(got)-1] {
		if n := len([]rune(chunk)); n != ChunkSize {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if strings.Join(got, "") != in {
		t.Fatal("concatenation does not reproduce input")
	}
}

func TestChunksCountsRunesNotBytes(t *testing.T) {
	in := strings.Repeat("é", 7)
	got := Chunks(in, 3)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	if got[0] != "ééé" || got[2] != "é" {
		t.Fatalf("got %q", got)
	}
	if strings.Join(got, "") != in {
		t.Fatal("concatenation does not reproduce input")
	}
}
