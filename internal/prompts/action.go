package prompts

import "strings"

// Action is a named prompt the user can run against a selection.
type Action struct {
	Name        string  `json:"name" yaml:"name"`
	Prompt      string  `json:"prompt,omitempty" yaml:"prompt,omitempty"` // user template
	System      string  `json:"system,omitempty" yaml:"system,omitempty"` // system template
	Replace     bool    `json:"replace,omitempty" yaml:"replace,omitempty"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Builtin     bool    `json:"-" yaml:"-"`
}

// key normalizes an action name for lookups.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

const assistantSystem = "You are an assistant helping a user write a document. Output in markdown format. Do not use links. Do not include literal content from the original document."

// BuiltinActions returns the actions that ship with quill.
func BuiltinActions() []Action {
	return []Action{
		{
			Name:    "Continue writing",
			Prompt:  "Act as a professional editor with many years of experience as a writer. Carefully finalize the following text, add details, use facts and make sure that the meaning and original style are preserved. Purposely write in detail, with examples, so that your reader is comfortable, even if they don't understand the specifics. Don't use clericalisms, evaluations without proof with facts, passive voice. Use Markdown markup language for formatting. Answer only content and nothing else, no introductory words, only substance.",
			System:  "You are an assistant helping a user write more content in a document based on a prompt. Output in markdown format. Do not use links. Do not include literal content from the original document.",
			Builtin: true,
		},
		{
			Name:    "Summarize",
			Prompt:  "Make a concise summary of the key points of the following text.",
			System:  "You are an assistant helping a user summarize a document. Output in markdown format. Do not use links. Do not include literal content from the original document.",
			Builtin: true,
		},
		{
			Name:    "Fix spelling and grammar",
			Prompt:  "Proofread the below for spelling and grammar.",
			System:  assistantSystem,
			Replace: true,
			Builtin: true,
		},
		{
			Name:    "Find action items",
			Prompt:  "Create a bullet list of action items from the following text.",
			System:  assistantSystem,
			Builtin: true,
		},
		{
			Name:    "General help",
			Prompt:  "",
			System:  assistantSystem,
			Builtin: true,
		},
	}
}
