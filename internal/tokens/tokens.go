// Package tokens estimates token counts for prompts and model output.
package tokens

import "strings"

// Counter counts tokens in text for a model.
type Counter interface {
	Count(text, model string) int
}

// Estimate returns a rough token count: runes/4 plus whitespace/6, at least
// 1 for non-empty text. It never decreases as text is appended.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}

	runes := 0
	whitespace := 0
	for _, r := range text {
		runes++
		if r == ' ' || r == '\n' || r == '\t' {
			whitespace++
		}
	}

	estimated := runes/4 + whitespace/6
	if estimated < 1 {
		return 1
	}
	return estimated
}

// Estimator implements Counter with Estimate for every model.
type Estimator struct{}

// Count implements Counter.
func (Estimator) Count(text, _ string) int {
	return Estimate(text)
}

// Usage summarizes the token cost of one action run.
type Usage struct {
	PromptTokens int
	OutputTokens int
}

// Total returns prompt plus output tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.OutputTokens
}

// EstimateUsage counts the system prompt, user prompt and output of a run.
func EstimateUsage(c Counter, model, system, prompt, output string) Usage {
	if c == nil {
		c = Estimator{}
	}
	return Usage{
		PromptTokens: c.Count(strings.TrimSpace(system), model) + c.Count(prompt, model),
		OutputTokens: c.Count(output, model),
	}
}
