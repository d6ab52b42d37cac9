package llm

import "time"

// Session holds a cached instruction block reused across calls for a
// single document. Hit/Miss track
// whether the cached context was actually prepended on a given call.
type Session struct {
	ID            string
	CachedContext string
	Hits          int
	Misses        int
	lastUsedAt    time.Time
}

// CallResult is the parsed JSON object a call produced, alongside the
// token counts the provider reported for tracker accounting.
type CallResult struct {
	Parsed       map[string]any
	PromptTokens int
	OutputTokens int
}
