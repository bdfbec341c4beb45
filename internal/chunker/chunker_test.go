package chunker

import (
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace collapsed", "a\t\tb\n\nc", "a b c"},
		{"control chars removed", "he\x00ll\x08o", "hello"},
		{"smart quotes normalized", "“quoted” and ‘single’", `"quoted" and 'single'`},
		{"trimmed", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if got := Chunk("", 1000, 200); len(got) != 0 {
		t.Errorf("Chunk(\"\") = %d chunks, want 0", len(got))
	}
	if got := Chunk("   \n\t ", 1000, 200); len(got) != 0 {
		t.Errorf("Chunk(whitespace) = %d chunks, want 0", len(got))
	}
}

func TestChunkSingleShortText(t *testing.T) {
	chunks := Chunk("Just one short sentence.", 1000, 200)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "Just one short sentence." {
		t.Errorf("Text = %q", chunks[0].Text)
	}
	if chunks[0].ChunkIndex != 0 {
		t.Errorf("ChunkIndex = %d, want 0", chunks[0].ChunkIndex)
	}
}

func TestChunkOversizedSentenceEmittedWhole(t *testing.T) {
	long := strings.Repeat("word ", 100) // no sentence boundaries, ~500 chars
	chunks := Chunk(long, 50, 10)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != strings.TrimSpace(long) {
		t.Errorf("oversized sentence was not emitted whole")
	}
}

func TestChunkOverlapCarry(t *testing.T) {
	chunks := Chunk("one two three. four five six.", 20, 5)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "one two three." {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
	// The seam carries a raw 5-char suffix of the previous buffer.
	if chunks[1].Text != "hree. four five six." {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
}

func TestChunkIndicesDense(t *testing.T) {
	text := strings.Repeat("A sentence about the refund policy. ", 50)
	chunks := Chunk(text, 120, 30)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
}

func TestChunkPreservesAllSentencesInOrder(t *testing.T) {
	sentences := []string{
		"The refund policy allows returns within thirty days.",
		"Employees receive twenty days of annual leave!",
		"Is remote work permitted?",
		"Office hours are nine to five with exceptions needing approval.",
		"The final clause covers termination.",
	}
	text := strings.Join(sentences, " ")
	chunks := Chunk(text, 80, 20)

	lastFound := -1
	for _, sentence := range sentences {
		found := -1
		for i, c := range chunks {
			if strings.Contains(c.Text, sentence) {
				found = i
				break
			}
		}
		if found == -1 {
			t.Errorf("sentence %q missing from all chunks", sentence)
			continue
		}
		if found < lastFound {
			t.Errorf("sentence %q appears out of order (chunk %d after %d)", sentence, found, lastFound)
		}
		lastFound = found
	}
}

func TestChunkDegenerateOverlapTerminates(t *testing.T) {
	text := strings.Repeat("Short sentence here. ", 30)

	// overlap >= chunkSize must be capped internally, not loop forever
	chunks := Chunk(text, 50, 50)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	chunks = Chunk(text, 50, 500)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
}
