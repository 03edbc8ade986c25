package classify

import (
	"context"
	"testing"
	"time"

	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/providers"
)

func TestQuickClassifyCode(t *testing.T) {
	r := QuickClassify("please fix this ```func main() { }``` it has a stack trace")
	if r.TaskType != TaskCodeGeneration {
		t.Errorf("expected code_generation, got %s", r.TaskType)
	}
}

func TestQuickClassifyShortQuestion(t *testing.T) {
	r := QuickClassify("what time is it?")
	if r.TaskType != TaskSimpleQA || r.ComplexityTier != 1 {
		t.Errorf("expected simple_qa tier 1, got %s tier %d", r.TaskType, r.ComplexityTier)
	}
}

func TestQuickClassifyAlwaysTerminates(t *testing.T) {
	r := QuickClassify("")
	if r.InputTokenEstimate != 0 {
		t.Errorf("expected 0 token estimate for empty input, got %d", r.InputTokenEstimate)
	}
}

func TestNormalizeUnknownTaskType(t *testing.T) {
	r := normalize(llmReply{TaskType: "bogus", ComplexityTier: 2, ConfidenceScore: 0.8}, "hi")
	if r.TaskType != TaskSimpleQA {
		t.Errorf("expected fallback to simple_qa, got %s", r.TaskType)
	}
}

func TestNormalizeTierOutOfRange(t *testing.T) {
	r := normalize(llmReply{TaskType: "simple_qa", ComplexityTier: 9, ConfidenceScore: 0.5}, "hi")
	if r.ComplexityTier != 2 {
		t.Errorf("expected out-of-range tier to map to 2, got %d", r.ComplexityTier)
	}
}

func TestNormalizeConfidenceClamp(t *testing.T) {
	over := normalize(llmReply{TaskType: "simple_qa", ComplexityTier: 1, ConfidenceScore: 1.5}, "hi")
	if over.ConfidenceScore != 1 {
		t.Errorf("expected clamp to 1, got %v", over.ConfidenceScore)
	}
	under := normalize(llmReply{TaskType: "simple_qa", ComplexityTier: 1, ConfidenceScore: -0.5}, "hi")
	if under.ConfidenceScore != 0 {
		t.Errorf("expected clamp to 0, got %v", under.ConfidenceScore)
	}
}

func TestNormalizeMissingTokenEstimateFallsBackToLengthHeuristic(t *testing.T) {
	input := "fix my go function please"
	r := normalize(llmReply{TaskType: "simple_qa", ComplexityTier: 1, ConfidenceScore: 0.5}, input)
	want := (len(input) + 3) / 4
	if r.InputTokenEstimate != want {
		t.Errorf("expected fallback estimate %d, got %d", want, r.InputTokenEstimate)
	}
}

func newClassifyExecutor() *providers.Executor {
	m := models.New()
	m.Register(models.Model{ID: "classifier-model", ProviderID: "mock", Tier: 1, Enabled: true})
	p := providers.NewRegistry()
	p.Register("mock", &MockJSONAdapter{})
	return providers.NewExecutor(m, p)
}

// MockJSONAdapter returns a fixed, well-formed classifier reply so Classify
// can be exercised without a live model behind it.
type MockJSONAdapter struct{}

func (m *MockJSONAdapter) Name() string                                   { return "mock" }
func (m *MockJSONAdapter) IsAvailable(ctx context.Context) bool           { return true }
func (m *MockJSONAdapter) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	return providers.CompletionResult{
		Content: `{"taskType":"code_generation","complexityTier":3,"confidenceScore":0.9,"requiredContext":["style_guide"],"reasoning":"looks like code","inputTokenEstimate":42}`,
	}, nil
}

func TestClassifyLLMPath(t *testing.T) {
	exec := newClassifyExecutor()
	r, err := Classify(context.Background(), exec, "fix my go function", Config{
		ClassifierModelID:      "classifier-model",
		ClassificationTimeoutMs: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TaskType != TaskCodeGeneration || r.ComplexityTier != 3 {
		t.Errorf("unexpected result: %+v", r)
	}
}

// zeroTokenEstimateAdapter returns a classifier reply that omits
// inputTokenEstimate (it defaults to the JSON zero value).
type zeroTokenEstimateAdapter struct{}

func (m *zeroTokenEstimateAdapter) Name() string                         { return "mock" }
func (m *zeroTokenEstimateAdapter) IsAvailable(ctx context.Context) bool { return true }
func (m *zeroTokenEstimateAdapter) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	return providers.CompletionResult{
		Content: `{"taskType":"simple_qa","complexityTier":1,"confidenceScore":0.7,"reasoning":"short"}`,
	}, nil
}

func TestClassifyLLMPathMissingTokenEstimateFallsBack(t *testing.T) {
	mm := models.New()
	mm.Register(models.Model{ID: "classifier-model", ProviderID: "mock", Tier: 1, Enabled: true})
	p := providers.NewRegistry()
	p.Register("mock", &zeroTokenEstimateAdapter{})
	exec := providers.NewExecutor(mm, p)

	input := "what time is it in Tokyo"
	r, err := Classify(context.Background(), exec, input, Config{
		ClassifierModelID:       "classifier-model",
		ClassificationTimeoutMs: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (len(input) + 3) / 4
	if r.InputTokenEstimate != want {
		t.Errorf("expected fallback estimate %d, got %d", want, r.InputTokenEstimate)
	}
}

type malformedAdapter struct{}

func (m *malformedAdapter) Name() string                         { return "mock" }
func (m *malformedAdapter) IsAvailable(ctx context.Context) bool { return true }
func (m *malformedAdapter) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	return providers.CompletionResult{Content: "not json"}, nil
}

func TestClassifyMalformedReply(t *testing.T) {
	mm := models.New()
	mm.Register(models.Model{ID: "classifier-model", ProviderID: "mock", Tier: 1, Enabled: true})
	p := providers.NewRegistry()
	p.Register("mock", &malformedAdapter{})
	exec := providers.NewExecutor(mm, p)

	_, err := Classify(context.Background(), exec, "hi", Config{ClassifierModelID: "classifier-model", ClassificationTimeoutMs: 1000})
	if err == nil {
		t.Fatal("expected error for malformed JSON reply")
	}
}

func TestClassifyUnavailableProvider(t *testing.T) {
	_ = time.Second // keeps the time import; this test covers an unavailable provider, not a timeout
	mm := models.New()
	mm.Register(models.Model{ID: "classifier-model", ProviderID: "mock", Tier: 1, Enabled: true})
	p := providers.NewRegistry()
	p.Register("mock", &providers.MockAdapter{ProviderName: "mock", Unavailable: true})
	exec := providers.NewExecutor(mm, p)

	_, err := Classify(context.Background(), exec, "hi", Config{ClassifierModelID: "classifier-model", ClassificationTimeoutMs: 1000})
	if err == nil {
		t.Fatal("expected error when provider is unavailable")
	}
}
