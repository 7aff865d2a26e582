package prompts

import (
	"regexp"
	"strings"
	"time"
)

// Flags carries the display directives found in a template.
// A nil field means the template did not mention the directive.
type Flags struct {
	ShowModelInfo   *bool
	ShowPerformance *bool
}

// Result is the outcome of resolving one template.
type Result struct {
	Prompt string
	Flags
}

var (
	showModelInfoPattern   = controlPattern(MarkerShowModelInfo)
	showPerformancePattern = controlPattern(MarkerShowPerformance)
)

// controlPattern matches a control marker followed by an exact =true / =false value.
// Anything else after the marker leaves it untouched.
func controlPattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(marker) + `=(true|false)\b`)
}

// ResolveControl strips the show-model-info and show-performance directives
// and reports the values they carried. The first occurrence of each directive
// decides the flag; every well-formed occurrence is removed.
func ResolveControl(template string) (string, Flags) {
	var flags Flags
	template, flags.ShowModelInfo = stripControl(template, showModelInfoPattern)
	template, flags.ShowPerformance = stripControl(template, showPerformancePattern)
	return template, flags
}

func stripControl(template string, pattern *regexp.Regexp) (string, *bool) {
	match := pattern.FindStringSubmatch(template)
	if match == nil {
		return template, nil
	}
	value := match[1] == "true"
	return pattern.ReplaceAllString(template, ""), &value
}

// ResolveConditional handles CONTEXT_START ... CONTEXT_END blocks. With a
// non-blank context the markers are dropped and the inner text kept; with a
// blank context the whole block, markers included, is removed. Pairs are
// processed left to right. A start marker with no end marker after it stops
// processing and stays in the output verbatim.
func ResolveConditional(template, contextText string) string {
	if !strings.Contains(template, MarkerContextStart) {
		return template
	}

	keep := strings.TrimSpace(contextText) != ""

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		start := strings.Index(rest, MarkerContextStart)
		if start < 0 {
			break
		}
		innerStart := start + len(MarkerContextStart)
		endOffset := strings.Index(rest[innerStart:], MarkerContextEnd)
		if endOffset < 0 {
			break
		}
		end := innerStart + endOffset

		b.WriteString(rest[:start])
		if keep {
			// One newline right after the start marker belongs to the delimiter.
			b.WriteString(strings.TrimPrefix(rest[innerStart:end], "\n"))
		}
		rest = rest[end+len(MarkerContextEnd):]
	}
	b.WriteString(rest)

	return b.String()
}

// ResolveSelectionAndContext substitutes the selection and context markers.
// Every occurrence is replaced in a single pass, so inserted text is not
// rescanned for selection or context markers. Time and tag markers resolve
// after this step and do apply to inserted text. When the template lacks a marker, a non-empty
// selection is appended after a blank line, and a non-blank context is
// appended as a labeled block after that.
func ResolveSelectionAndContext(template, selectedText, contextText string) string {
	hasSelection := strings.Contains(template, MarkerSelection)
	hasContext := strings.Contains(template, MarkerContext)

	out := strings.NewReplacer(
		MarkerSelection, selectedText,
		MarkerContext, contextText,
	).Replace(template)

	if !hasSelection && selectedText != "" {
		out += "\n\n" + selectedText
	}
	if !hasContext && strings.TrimSpace(contextText) != "" {
		out += "\n\n" + contextLabel + contextText
	}
	return out
}

// FormatTime renders the CURRENT_TIME value: weekday, date and 24-hour clock
// in the location carried by t.
func FormatTime(t time.Time) string {
	return t.Format("Monday, January 2, 2006 15:04:05")
}

// ResolveTime replaces every CURRENT_TIME marker with now.
func ResolveTime(template string, now time.Time) string {
	if !strings.Contains(template, MarkerCurrentTime) {
		return template
	}
	return strings.ReplaceAll(template, MarkerCurrentTime, FormatTime(now))
}

// Resolve runs every synchronous marker in the required order: control
// directives, conditional blocks, selection and context, then time. Tag
// markers are left for the pipeline. The prompt is not trimmed.
func Resolve(template, selectedText, contextText string, now time.Time) Result {
	prompt, flags := ResolveControl(template)
	prompt = ResolveConditional(prompt, contextText)
	prompt = ResolveSelectionAndContext(prompt, selectedText, contextText)
	prompt = ResolveTime(prompt, now)
	return Result{Prompt: prompt, Flags: flags}
}
