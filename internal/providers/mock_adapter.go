package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// MockAdapter is the default Sender used when no real provider credentials
// are configured (local dev, tests, the Mock-provider-as-real-interface
// design note). It never calls out over the network; it derives a
// deterministic response from a hash of the prompt so the same input always
// produces the same output, which keeps classifier/validator fixtures and
// golden tests stable without a live model behind them.
type MockAdapter struct {
	ProviderName string
	Latency      int64 // simulated latency in ms; 0 uses a small deterministic value
	Unavailable  bool
}

// Name returns the provider id this adapter answers for.
func (m *MockAdapter) Name() string { return m.ProviderName }

// IsAvailable reports whether the mock should simulate being reachable.
func (m *MockAdapter) IsAvailable(ctx context.Context) bool { return !m.Unavailable }

// Complete returns a deterministic JSON-ish completion derived from the
// prompt's hash, plus a token count estimated the same way quickClassify
// estimates input tokens (ceil(len/4)).
func (m *MockAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	sum := sha256.Sum256([]byte(req.ModelID + "|" + req.Prompt))
	seed := binary.BigEndian.Uint32(sum[:4])

	content := fmt.Sprintf(`{"mock_model":%q,"seed":%d,"echo_len":%d}`, req.ModelID, seed, len(req.Prompt))
	inputTokens := (len(req.Prompt) + 3) / 4
	outputTokens := (len(content) + 3) / 4

	latency := m.Latency
	if latency == 0 {
		latency = int64(50 + seed%150)
	}

	return CompletionResult{
		Content:      content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		LatencyMs:    latency,
	}, nil
}
