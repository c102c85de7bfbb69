package models

// Tool names the retrieval and adjustment operations an [ExecutionPlan] may
// reference. The vocabulary is closed: anything outside it is dropped during
// plan repair rather than dispatched.
type Tool string

const (
	ToolArtistCatalog Tool = "artist-catalog-lookup"
	ToolCollaboration Tool = "collaboration-lookup"
	ToolSimilarStyle  Tool = "similar-style-lookup"
	ToolCreative      Tool = "creative-generation"
	ToolCatalogSearch Tool = "catalog-search"
	ToolDiversity     Tool = "diversity-adjustment"
)

// Tools returns the closed tool vocabulary in a stable order.
func Tools() []Tool {
	return []Tool{
		ToolArtistCatalog,
		ToolCollaboration,
		ToolSimilarStyle,
		ToolCreative,
		ToolCatalogSearch,
		ToolDiversity,
	}
}

// Valid reports whether t belongs to the closed vocabulary.
func (t Tool) Valid() bool {
	switch t {
	case ToolArtistCatalog, ToolCollaboration, ToolSimilarStyle,
		ToolCreative, ToolCatalogSearch, ToolDiversity:
		return true
	}
	return false
}

// ToolCall is one step of an ExecutionPlan: an operation from the closed
// vocabulary, its parameter bag, and a human-readable rationale.
type ToolCall struct {
	Tool   Tool           `json:"tool"`
	Params map[string]any `json:"params"`
	Reason string         `json:"reason"`
}

// IntParam reads an integer parameter, tolerating the float64 values JSON
// decoding produces.
func (c ToolCall) IntParam(key string, fallback int) int {
	v, ok := c.Params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return fallback
}

// StringParam reads a string parameter with a fallback.
func (c ToolCall) StringParam(key, fallback string) string {
	if v, ok := c.Params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// BoolParam reads a boolean parameter with a fallback.
func (c ToolCall) BoolParam(key string, fallback bool) bool {
	if v, ok := c.Params[key].(bool); ok {
		return v
	}
	return fallback
}

// ExecutionPlan is the ordered, bounded sequence of tool calls derived from an
// Intent, plus rationale strings surfaced to the user. Plans are produced once
// per request and never mutated afterward; a faulty plan is replaced, not
// patched in place.
type ExecutionPlan struct {
	Thinking    []string   `json:"thinking"`
	Calls       []ToolCall `json:"execution_plan"`
	TotalTarget int        `json:"total_target"`
}
