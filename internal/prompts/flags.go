package prompts

// Display is the final, defaulted view of the display directives.
type Display struct {
	ShowModelInfo   bool `json:"show_model_info"`
	ShowPerformance bool `json:"show_performance"`
}

// MergeFlags merges scopes given in priority order (highest first).
// For each directive the first scope that set it wins.
func MergeFlags(scopes ...Flags) Flags {
	var merged Flags
	for _, s := range scopes {
		if merged.ShowModelInfo == nil && s.ShowModelInfo != nil {
			merged.ShowModelInfo = s.ShowModelInfo
		}
		if merged.ShowPerformance == nil && s.ShowPerformance != nil {
			merged.ShowPerformance = s.ShowPerformance
		}
	}
	return merged
}

// WithDefaults fills unset directives from the global defaults.
func (f Flags) WithDefaults(defaults Display) Display {
	d := defaults
	if f.ShowModelInfo != nil {
		d.ShowModelInfo = *f.ShowModelInfo
	}
	if f.ShowPerformance != nil {
		d.ShowPerformance = *f.ShowPerformance
	}
	return d
}

// overlay copies the directives set in next over f.
func (f Flags) overlay(next Flags) Flags {
	if next.ShowModelInfo != nil {
		f.ShowModelInfo = next.ShowModelInfo
	}
	if next.ShowPerformance != nil {
		f.ShowPerformance = next.ShowPerformance
	}
	return f
}
