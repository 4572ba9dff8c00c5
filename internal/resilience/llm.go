package resilience

import (
	"context"

	"github.com/skald-ai/skald/pkg/provider/llm"
)

// LLM implements [llm.Provider] with automatic failover across several
// backends. Each backend sits behind its own breaker, so a primary that keeps
// timing out stops being tried until its cooldown elapses.
type LLM struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface check.
var _ llm.Provider = (*LLM)(nil)

// NewLLM creates an [LLM] with primary as the preferred backend.
func NewLLM(primaryName string, primary llm.Provider, cfg FallbackConfig) *LLM {
	return &LLM{group: NewFallbackGroup(primaryName, primary, cfg)}
}

// AddFallback registers another provider to try when earlier ones fail.
func (l *LLM) AddFallback(name string, p llm.Provider) {
	l.group.Add(name, p)
}

// Complete sends req to the first healthy backend.
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(l.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary backend's capabilities. Capabilities are
// static metadata and do not participate in failover.
func (l *LLM) Capabilities() llm.Capabilities {
	return l.group.Primary().Capabilities()
}
