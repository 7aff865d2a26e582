// Package chunker splits documents into bounded, overlapping segments for embedding.
package chunker

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chunk is one segment of a source document.
type Chunk struct {
	SourceDocID string
	Ordinal     int    // position within the source document, from 0
	Heading     string // nearest heading above the chunk, if any
	Text        string
}

// Document is the input to the chunker.
type Document struct {
	ID      string
	Content string
}

// Config controls chunk sizes.
type Config struct {
	// MaxChars bounds the length of every chunk in bytes. Default: 1000
	MaxChars int
	// Overlap is the fraction of MaxChars repeated at the start of the next
	// window when a section has to be split. Default: 0.1
	Overlap float64
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChars: 1000,
		Overlap:  0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxChars <= 0 {
		c.MaxChars = d.MaxChars
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		c.Overlap = d.Overlap
	}
	return c
}

// Chunker splits markdown documents, preferring heading boundaries and
// falling back to fixed-size windows. Output depends only on the input.
type Chunker struct {
	cfg Config
}

// New creates a chunker. Zero config fields take their defaults.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// ChunkAll chunks every document in order. It stops between documents when
// ctx is done and returns the context error.
func (c *Chunker) ChunkAll(ctx context.Context, docs []Document) ([]Chunk, error) {
	var out []Chunk
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, c.Chunk(d)...)
	}
	return out, nil
}

// Chunk splits one document. Empty documents produce no chunks and documents
// no longer than MaxChars produce exactly one chunk holding the whole body.
func (c *Chunker) Chunk(doc Document) []Chunk {
	body := stripFrontmatter(doc.Content)
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if len(body) <= c.cfg.MaxChars {
		return []Chunk{{SourceDocID: doc.ID, Ordinal: 0, Heading: firstHeading(body), Text: body}}
	}

	var chunks []Chunk
	emit := func(heading, s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		chunks = append(chunks, Chunk{
			SourceDocID: doc.ID,
			Ordinal:     len(chunks),
			Heading:     heading,
			Text:        s,
		})
	}

	// Adjacent small sections are packed together while they fit.
	var pending strings.Builder
	pendingHeading := ""
	flush := func() {
		emit(pendingHeading, pending.String())
		pending.Reset()
	}

	for _, sec := range splitSections(body) {
		if strings.TrimSpace(sec.text) == "" {
			continue
		}
		if len(sec.text) > c.cfg.MaxChars {
			flush()
			for _, w := range c.windows(sec.text) {
				emit(sec.heading, w)
			}
			continue
		}
		if pending.Len() > 0 && pending.Len()+len(sec.text) > c.cfg.MaxChars {
			flush()
		}
		if pending.Len() == 0 {
			pendingHeading = sec.heading
		}
		pending.WriteString(sec.text)
	}
	flush()

	return chunks
}

// windows splits s into MaxChars windows, backing each cut up to a paragraph,
// line, sentence or word break found in the last 10% of the window.
func (c *Chunker) windows(s string) []string {
	maxChars := c.cfg.MaxChars
	overlap := int(float64(maxChars) * c.cfg.Overlap)

	var out []string
	start := 0
	for start < len(s) {
		end := start + maxChars
		if end >= len(s) {
			out = append(out, s[start:])
			break
		}
		end = runeFloor(s, end)
		if end <= start {
			_, size := utf8.DecodeRuneInString(s[start:])
			end = start + size
		}
		end = breakPoint(s, start, end, maxChars/10)
		out = append(out, s[start:end])

		next := runeFloor(s, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

var breakSeparators = []string{"\n\n", "\n", ". ", " "}

// breakPoint looks back from end for a clean break within lookback bytes.
func breakPoint(s string, start, end, lookback int) int {
	floor := end - lookback
	if floor <= start {
		floor = start + 1
	}
	if floor >= end {
		return end
	}
	window := s[floor:end]
	for _, sep := range breakSeparators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return floor + i + len(sep)
		}
	}
	return end
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

type section struct {
	heading string
	text    string
}

// splitSections cuts body at the start of every ATX or setext heading line.
// Headings inside code blocks are not boundaries.
func splitSections(body string) []section {
	src := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	type mark struct {
		offset  int
		heading string
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		marks = append(marks, mark{
			offset:  lineStart(src, seg.Start),
			heading: strings.TrimSpace(string(seg.Value(src))),
		})
	}

	if len(marks) == 0 {
		return []section{{text: body}}
	}

	var out []section
	if marks[0].offset > 0 {
		out = append(out, section{text: body[:marks[0].offset]})
	}
	for i, m := range marks {
		end := len(body)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		if end <= m.offset {
			continue
		}
		out = append(out, section{heading: m.heading, text: body[m.offset:end]})
	}
	return out
}

func firstHeading(body string) string {
	secs := splitSections(body)
	for _, s := range secs {
		if s.heading != "" {
			return s.heading
		}
	}
	return ""
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	i := bytes.LastIndexByte(src[:pos], '\n')
	return i + 1
}

// stripFrontmatter drops a leading YAML front-matter block.
func stripFrontmatter(s string) string {
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return s
	}
	rest := s[strings.Index(s, "\n")+1:]
	for off := 0; off < len(rest); {
		nl := strings.Index(rest[off:], "\n")
		line := rest[off:]
		if nl >= 0 {
			line = rest[off : off+nl]
		}
		if strings.TrimRight(line, "\r") == "---" {
			if nl < 0 {
				return ""
			}
			return rest[off+nl+1:]
		}
		if nl < 0 {
			break
		}
		off += nl + 1
	}
	return s
}
