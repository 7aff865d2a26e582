package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestChunk_Empty(t *testing.T) {
	c := New(Config{})
	for _, content := range []string{"", "   \n\t", "---\ntags: [a]\n---\n"} {
		if chunks := c.Chunk(Document{ID: "a.md", Content: content}); len(chunks) != 0 {
			t.Errorf("Chunk(%q) = %d chunks, want 0", content, len(chunks))
		}
	}
}

func TestChunk_SmallDocumentIsOneChunk(t *testing.T) {
	c := New(Config{MaxChars: 200})
	content := "# Title\n\nShort body.\n"

	chunks := c.Chunk(Document{ID: "note.md", Content: content})
	if len(chunks) != 1 {
		t.Fatalf("Got %d chunks, want 1", len(chunks))
	}
	want := Chunk{SourceDocID: "note.md", Ordinal: 0, Heading: "Title", Text: content}
	if diff := cmp.Diff(want, chunks[0]); diff != "" {
		t.Errorf("chunk mismatch (-want +got):\n%s", diff)
	}
}

func TestChunk_SplitsAtHeadings(t *testing.T) {
	c := New(Config{MaxChars: 60})
	content := "# One\n" + strings.Repeat("a", 40) + "\n\n# Two\n" + strings.Repeat("b", 40) + "\n\n# Three\n" + strings.Repeat("c", 40) + "\n"

	chunks := c.Chunk(Document{ID: "doc.md", Content: content})
	if len(chunks) != 3 {
		t.Fatalf("Got %d chunks, want 3: %+v", len(chunks), chunks)
	}
	for i, heading := range []string{"One", "Two", "Three"} {
		if chunks[i].Heading != heading {
			t.Errorf("chunk[%d].Heading = %q, want %q", i, chunks[i].Heading, heading)
		}
		if chunks[i].Ordinal != i {
			t.Errorf("chunk[%d].Ordinal = %d", i, chunks[i].Ordinal)
		}
		if !strings.HasPrefix(chunks[i].Text, "# "+heading) {
			t.Errorf("chunk[%d] does not start at its heading: %q", i, chunks[i].Text)
		}
	}
}

func TestChunk_HeadingInCodeBlockIsNotABoundary(t *testing.T) {
	c := New(Config{MaxChars: 80})
	content := "# Real\n```\n# not a heading\n```\n" + strings.Repeat("x", 70) + "\n"

	secs := splitSections(content)
	if len(secs) != 1 || secs[0].heading != "Real" {
		t.Errorf("splitSections() = %+v, want one section under Real", secs)
	}
	for _, ch := range c.Chunk(Document{ID: "a.md", Content: content}) {
		if ch.Heading != "Real" {
			t.Errorf("chunk heading = %q, want Real", ch.Heading)
		}
	}
}

func TestChunk_PacksSmallSections(t *testing.T) {
	c := New(Config{MaxChars: 100})
	content := "## A\nx\n## B\ny\n## C\nz\n" + strings.Repeat("w ", 60)

	chunks := c.Chunk(Document{ID: "a.md", Content: content})
	if len(chunks) < 2 {
		t.Fatalf("Got %d chunks, want at least 2", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "## A") || !strings.Contains(chunks[0].Text, "## B") {
		t.Errorf("small sections were not packed: %q", chunks[0].Text)
	}
	if chunks[0].Heading != "A" {
		t.Errorf("packed chunk heading = %q, want A", chunks[0].Heading)
	}
}

func TestChunk_BoundedAndOverlapping(t *testing.T) {
	c := New(Config{MaxChars: 100, Overlap: 0.2})
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("word")
		sb.WriteString(string(rune('a' + i%26)))
		sb.WriteString(" ")
	}
	content := sb.String()

	chunks := c.Chunk(Document{ID: "long.md", Content: content})
	if len(chunks) < 3 {
		t.Fatalf("Got %d chunks, want at least 3", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Text == "" {
			t.Errorf("chunk[%d] is empty", i)
		}
		if len(ch.Text) > 100 {
			t.Errorf("chunk[%d] length %d exceeds MaxChars", i, len(ch.Text))
		}
	}
	// The start of each window repeats the tail of the previous one.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		head := strings.Fields(chunks[i].Text)[0]
		if !strings.Contains(prev, head) {
			t.Errorf("chunk[%d] does not overlap chunk[%d]: %q / %q", i, i-1, head, prev)
		}
	}
}

func TestChunk_MultibyteSafe(t *testing.T) {
	c := New(Config{MaxChars: 10, Overlap: 0.3})
	content := strings.Repeat("日本語", 20)

	for i, ch := range c.Chunk(Document{ID: "jp.md", Content: content}) {
		if !utf8.ValidString(ch.Text) {
			t.Errorf("chunk[%d] is not valid UTF-8: %q", i, ch.Text)
		}
		if len(ch.Text) > 10 {
			t.Errorf("chunk[%d] length %d exceeds MaxChars", i, len(ch.Text))
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := New(Config{MaxChars: 120, Overlap: 0.1})
	doc := Document{
		ID:      "d.md",
		Content: "Intro line.\n\n# H1\n" + strings.Repeat("alpha beta gamma. ", 20) + "\n## H2\n" + strings.Repeat("delta ", 30),
	}

	first := c.Chunk(doc)
	second := c.Chunk(doc)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("chunking is not deterministic (-first +second):\n%s", diff)
	}
}

func TestChunk_StripsFrontmatter(t *testing.T) {
	c := New(Config{})
	chunks := c.Chunk(Document{ID: "a.md", Content: "---\ntags: [x]\n---\nBody text"})
	if len(chunks) != 1 || chunks[0].Text != "Body text" {
		t.Errorf("Chunk() = %+v, want front matter stripped", chunks)
	}
}

func TestChunkAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).ChunkAll(ctx, []Document{{ID: "a", Content: "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ChunkAll() error = %v, want context.Canceled", err)
	}
}

func TestChunkAll_KeepsSourceOrder(t *testing.T) {
	chunks, err := New(Config{}).ChunkAll(context.Background(), []Document{
		{ID: "b.md", Content: "second"},
		{ID: "empty.md", Content: ""},
		{ID: "a.md", Content: "first"},
	})
	if err != nil {
		t.Fatalf("ChunkAll() error = %v", err)
	}
	var ids []string
	for _, ch := range chunks {
		ids = append(ids, ch.SourceDocID)
	}
	if diff := cmp.Diff([]string{"b.md", "a.md"}, ids); diff != "" {
		t.Errorf("source order mismatch (-want +got):\n%s", diff)
	}
}
