package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a generation request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for one generation call.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// Empty reports whether no tokens were accounted for (cache hit, fallback, or no call).
func (m AgentMeta) Empty() bool {
	return m.Usage.PromptTokens == 0 && m.Usage.CompletionTokens == 0
}
