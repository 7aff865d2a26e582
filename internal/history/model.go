// Package history persists the runs of actions, scoped per vault.
package history

import (
	"time"

	"github.com/ChamsBouzaiene/quill/internal/tokens"
)

// Run is one executed action.
type Run struct {
	ID        string        `json:"id"`
	VaultPath string        `json:"vault_path"`
	VaultHash string        `json:"vault_hash"` // Used for directory scoping
	Action    string        `json:"action"`
	Document  string        `json:"document,omitempty"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Prompt    string        `json:"prompt"`
	Context   string        `json:"context,omitempty"` // retrieved from linked documents
	Output    string        `json:"output"`
	Error     string        `json:"error,omitempty"`
	Usage     tokens.Usage  `json:"usage"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RunMeta is a lightweight representation for listing.
type RunMeta struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Document  string    `json:"document,omitempty"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
	Excerpt   string    `json:"excerpt"`
	Failed    bool      `json:"failed,omitempty"`
}

const excerptLen = 80

// Meta summarizes r for listing.
func (r *Run) Meta() RunMeta {
	return RunMeta{
		ID:        r.ID,
		Action:    r.Action,
		Document:  r.Document,
		Model:     r.Model,
		StartedAt: r.StartedAt,
		Excerpt:   excerpt(r.Output, excerptLen),
		Failed:    r.Error != "",
	}
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' || r == '\r' || r == '\t' {
			runes[i] = ' '
		}
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-1]) + "…"
}
