package providers

import (
	"context"
	"time"
)

// CompletionRequest is the provider-agnostic shape the Executor sends to a
// Sender. Prompt already has any guidance context folded in by the caller.
type CompletionRequest struct {
	ModelID     string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResult is what a Sender returns on success.
type CompletionResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
}

// Sender is the interface every provider adapter implements: availability
// probing (checked by the Executor before each call; a failed check counts
// as a circuit breaker failure) plus the actual completion call.
type Sender interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// Registry maps provider id to its Sender implementation.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register adds or replaces the Sender for a provider id.
func (r *Registry) Register(providerID string, s Sender) {
	r.senders[providerID] = s
}

// Get returns the Sender for a provider id, or false if unregistered.
func (r *Registry) Get(providerID string) (Sender, bool) {
	s, ok := r.senders[providerID]
	return s, ok
}

// nowFunc is overridable in tests; defaults to time.Now.
var nowFunc = time.Now
