package links

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, ref, _ string) (string, bool) {
	id, ok := m[strings.ToLower(ref)]
	return id, ok
}

func TestReferences(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"empty", "", nil},
		{"no links", "Just some prose without references.", []string{}},
		{"wiki", "See [[Project Plan]] and [[Ideas|my ideas]].", []string{"Project Plan", "Ideas"}},
		{"heading and embed", "![[Diagram]] then [[Notes#Part 2]]", []string{"Diagram", "Notes"}},
		{"same doc heading", "Jump to [[#Summary]].", []string{}},
		{"markdown", "Read [the plan](plans/q3%20plan.md#goals) or [site](https://example.com).",
			[]string{"plans/q3 plan.md"}},
		{"dedupe keeps first", "[[A]] [[B]] [[A|again]]", []string{"A", "B"}},
		{"source order", "[md](b.md) then [[A]]", []string{"b.md", "A"}},
		{"emphasized label keeps order", "[[A]] then [**bold**](b.md)", []string{"A", "b.md"}},
		{"empty label keeps order", "[[A]] then [](b.md) and [[C]]", []string{"A", "b.md", "C"}},
		{"later paragraph", "[[A]]\n\n[](b.md)", []string{"A", "b.md"}},
		{"code ignored", "Inline `[[Hidden]]` and\n\n```\n[[AlsoHidden]]\n```\n\n[[Visible]]", []string{"Visible"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := References(tt.body)
			if tt.want == nil {
				if got != nil {
					t.Errorf("References() = %v, want nil", got)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("References() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	resolver := mapResolver{
		"project plan": "work/Project Plan.md",
		"plan":         "work/Project Plan.md",
		"today":        "daily/Today.md",
		"ideas":        "Ideas.md",
	}

	body := "Today I reviewed [[Project Plan]], [[Plan|the same plan]], [[Missing]], [[Ideas]] and [[Today]]."
	got := Extract(context.Background(), body, "daily/Today.md", resolver)

	want := []LinkedDocument{
		{ID: "work/Project Plan.md", Name: "Project Plan", Ref: "Project Plan"},
		{ID: "Ideas.md", Name: "Ideas", Ref: "Ideas"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_NoReferences(t *testing.T) {
	got := Extract(context.Background(), "Some example text.", "a.md", mapResolver{})
	if len(got) != 0 {
		t.Errorf("Extract() = %v, want empty", got)
	}
}

func TestDisplayName(t *testing.T) {
	for in, want := range map[string]string{
		"a/b/Note.md": "Note",
		"Note":        "Note",
		".hidden":     ".hidden",
		"dir/v1.2.md": "v1.2",
	} {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
