package prompts

// Template markers. User templates depend on these exact strings.
const (
	MarkerSelection       = "{{=SELECTION=}}"
	MarkerContext         = "{{=CONTEXT=}}"
	MarkerContextStart    = "{{=CONTEXT_START=}}"
	MarkerContextEnd      = "{{=CONTEXT_END=}}"
	MarkerCurrentTime     = "{{=CURRENT_TIME=}}"
	MarkerShowModelInfo   = "{{=SHOW_MODEL_INFO=}}"
	MarkerShowPerformance = "{{=SHOW_PERFORMANCE=}}"
	MarkerAllTags         = "{{=ALL_TAGS=}}"
	MarkerCurrentTags     = "{{=CURRENT_TAGS=}}"
)

// contextLabel prefixes context appended to templates without a context marker.
const contextLabel = "Context:\n"
