package vault

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var inlineTagPattern = regexp.MustCompile(`(?:^|[\s(])#([\p{L}\p{N}_/-]+)`)

// ScanTags returns the tags of every document, keyed by document ID.
// Documents without tags are omitted.
func (v *Vault) ScanTags(ctx context.Context) (map[string][]string, error) {
	docs, err := v.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := v.Read(ctx, d)
		if err != nil {
			v.logger.Debug("skipping unreadable document", zap.String("doc", d), zap.Error(err))
			continue
		}
		if tags := ParseTags(body); len(tags) > 0 {
			out[d] = tags
		}
	}
	return out, nil
}

// DocumentTags returns the sorted tags of one document.
func (v *Vault) DocumentTags(ctx context.Context, id string) ([]string, error) {
	body, err := v.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	return ParseTags(body), nil
}

// ParseTags collects front-matter and inline tags, without the leading '#',
// sorted and deduplicated. Tags inside code are ignored.
func ParseTags(body string) []string {
	front, rest := splitFrontmatter(body)
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || isNumeric(tag) {
			return
		}
		seen[tag] = true
	}

	if front != "" {
		var meta struct {
			Tags any `yaml:"tags"`
			Tag  any `yaml:"tag"`
		}
		if err := yaml.Unmarshal([]byte(front), &meta); err == nil {
			for _, t := range flattenTags(meta.Tags) {
				add(t)
			}
			for _, t := range flattenTags(meta.Tag) {
				add(t)
			}
		}
	}

	for _, m := range inlineTagPattern.FindAllStringSubmatch(stripCode(rest), -1) {
		add(m[1])
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func flattenTags(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' })
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// stripCode blanks fenced code blocks and inline code spans.
func stripCode(s string) string {
	var sb strings.Builder
	inFence := false
	for _, line := range strings.SplitAfter(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			sb.WriteString("\n")
			continue
		}
		if inFence {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(stripCodeSpans(line))
	}
	return sb.String()
}

func stripCodeSpans(line string) string {
	if !strings.Contains(line, "`") {
		return line
	}
	var sb strings.Builder
	inSpan := false
	for _, r := range line {
		if r == '`' {
			inSpan = !inSpan
			sb.WriteRune(' ')
			continue
		}
		if inSpan {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitFrontmatter separates a leading YAML front-matter block from the body.
func splitFrontmatter(s string) (front, body string) {
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return "", s
	}
	start := strings.Index(s, "\n") + 1
	for off := start; off < len(s); {
		nl := strings.Index(s[off:], "\n")
		line := s[off:]
		if nl >= 0 {
			line = s[off : off+nl]
		}
		if strings.TrimRight(line, "\r") == "---" {
			if nl < 0 {
				return s[start:off], ""
			}
			return s[start:off], s[off+nl+1:]
		}
		if nl < 0 {
			break
		}
		off += nl + 1
	}
	return "", s
}
