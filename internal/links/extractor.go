// Package links finds the documents a piece of text refers to.
package links

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Resolver maps a textual reference to a document identity.
type Resolver interface {
	// Resolve returns the document a reference written in from points to.
	Resolve(ctx context.Context, ref, from string) (string, bool)
}

// LinkedDocument is a document referenced by the text being processed.
type LinkedDocument struct {
	ID   string // resolved document path, relative to the corpus root
	Name string // display name, the base name without extension
	Ref  string // reference as written
}

// wikiLinkPattern matches [[target]], [[target|alias]], [[target#heading]] and ![[embeds]].
var wikiLinkPattern = regexp.MustCompile(`!?\[\[([^\[\]|#^]*)(?:[#^][^\[\]|]*)?(?:\|[^\[\]]*)?\]\]`)

// References returns the raw document references in body, in source order and
// without duplicates. Links inside code blocks and code spans are ignored.
func References(body string) []string {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	src := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	masked := make([]byte, len(src))
	copy(masked, src)

	type found struct {
		pos int
		ref string
	}
	var refs []found
	// last source offset seen, for links without text of their own
	last := 0

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
			last = n.Lines().At(0).Start
		}
		switch node := n.(type) {
		case *ast.Text:
			last = node.Segment.Stop
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			maskLines(masked, node.Lines())
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					maskSegment(masked, t.Segment)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if ref, ok := localDestination(string(node.Destination)); ok {
				refs = append(refs, found{pos: linkPosition(node, last), ref: ref})
			}
		case *ast.Image:
			if ref, ok := localDestination(string(node.Destination)); ok {
				refs = append(refs, found{pos: linkPosition(node, last), ref: ref})
			}
		}
		return ast.WalkContinue, nil
	})

	for _, m := range wikiLinkPattern.FindAllSubmatchIndex(masked, -1) {
		target := strings.TrimSpace(string(masked[m[2]:m[3]]))
		if target == "" {
			continue
		}
		refs = append(refs, found{pos: m[0], ref: target})
	}

	// Markdown and wiki links were collected separately; restore source order.
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].pos < refs[j].pos })

	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if seen[r.ref] {
			continue
		}
		seen[r.ref] = true
		out = append(out, r.ref)
	}
	return out
}

// Extract resolves the references in body and returns the deduplicated set of
// linked documents, excluding the active document. No references is the
// common case and yields an empty result.
func Extract(ctx context.Context, body, active string, resolver Resolver) []LinkedDocument {
	refs := References(body)
	if len(refs) == 0 || resolver == nil {
		return nil
	}

	seen := make(map[string]bool, len(refs))
	var docs []LinkedDocument
	for _, ref := range refs {
		if ctx.Err() != nil {
			return docs
		}
		id, ok := resolver.Resolve(ctx, ref, active)
		if !ok || id == active || seen[id] {
			continue
		}
		seen[id] = true
		docs = append(docs, LinkedDocument{ID: id, Name: DisplayName(id), Ref: ref})
	}
	return docs
}

// DisplayName returns the base name of a document path without its extension.
func DisplayName(id string) string {
	name := id
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

// localDestination reports whether a markdown link destination points at a
// local document and returns it unescaped, without fragment.
func localDestination(dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") {
		return "", false
	}
	if u, err := url.Parse(dest); err == nil && u.Scheme != "" {
		return "", false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if unescaped, err := url.PathUnescape(dest); err == nil {
		dest = unescaped
	}
	dest = strings.TrimPrefix(dest, "./")
	if dest == "" {
		return "", false
	}
	return dest, true
}

// linkPosition approximates a link's offset with its first text segment,
// searching nested emphasis. A link without text falls back to the end of
// the text before it.
func linkPosition(n ast.Node, fallback int) int {
	pos := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			pos = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if pos < 0 {
		return fallback
	}
	return pos
}

func maskLines(buf []byte, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		maskSegment(buf, lines.At(i))
	}
}

func maskSegment(buf []byte, seg text.Segment) {
	for i := seg.Start; i < seg.Stop && i < len(buf); i++ {
		if buf[i] != '\n' {
			buf[i] = ' '
		}
	}
}
