// Package classify labels a router request with a task type, a complexity
// tier, a confidence score, and an input-token estimate — either via a
// tier-1 model call (LLM-as-classifier) or a local heuristic fast path.
package classify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/osqr-dev/osqr/internal/errs"
	"github.com/osqr-dev/osqr/internal/providers"
)

// TaskType is the closed set of task labels the classifier emits.
type TaskType string

const (
	TaskSimpleQA             TaskType = "simple_qa"
	TaskCodeGeneration       TaskType = "code_generation"
	TaskPlanning             TaskType = "planning"
	TaskVoiceTranscription   TaskType = "voice_transcription"
	TaskMultiModelDelib      TaskType = "multi_model_deliberation"
	TaskWriting              TaskType = "writing"
	TaskAnalysis             TaskType = "analysis"
)

var knownTaskTypes = map[TaskType]bool{
	TaskSimpleQA: true, TaskCodeGeneration: true, TaskPlanning: true,
	TaskVoiceTranscription: true, TaskMultiModelDelib: true,
	TaskWriting: true, TaskAnalysis: true,
}

// Result is the classifier's output, carried on the MRP unchanged once set.
type Result struct {
	TaskType          TaskType
	ComplexityTier    int
	ConfidenceScore   float64
	RequiredContext   []string
	Reasoning         string
	InputTokenEstimate int
	Timestamp         time.Time
}

// Config is the subset of RouterConfig the classifier reads.
type Config struct {
	ClassifierModelID      string
	ClassificationTimeoutMs int
}

type llmReply struct {
	TaskType          string   `json:"taskType"`
	ComplexityTier    int      `json:"complexityTier"`
	ConfidenceScore   float64  `json:"confidenceScore"`
	RequiredContext   []string `json:"requiredContext"`
	Reasoning         string   `json:"reasoning"`
	InputTokenEstimate int     `json:"inputTokenEstimate"`
}

const systemPrompt = `You are a routing classifier. Given a user request, reply with JSON only:
{"taskType": one of [simple_qa, code_generation, planning, voice_transcription, multi_model_deliberation, writing, analysis],
 "complexityTier": integer 1-4 (1=trivial, 4=hardest),
 "confidenceScore": float 0-1,
 "requiredContext": array of context keys needed,
 "reasoning": short string,
 "inputTokenEstimate": integer}`

// Classify issues a single completion to the configured classifier model and
// parses its JSON reply into a Result, normalizing out-of-range fields.
func Classify(ctx context.Context, exec *providers.Executor, input string, cfg Config) (Result, error) {
	timeout := time.Duration(cfg.ClassificationTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	req := providers.CompletionRequest{
		ModelID: cfg.ClassifierModelID,
		Prompt:  systemPrompt + "\n\nUser request:\n" + input,
	}

	res, err := exec.Execute(ctx, req, timeout)
	if err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.Timeout {
			return Result{}, errs.Wrap(errs.ClassificationFailed, "classification timed out", err)
		}
		return Result{}, errs.Wrap(errs.ClassificationFailed, "classifier call failed", err)
	}

	var reply llmReply
	if jsonErr := json.Unmarshal([]byte(res.Content), &reply); jsonErr != nil {
		return Result{}, errs.Wrap(errs.ClassificationFailed, "classifier returned malformed JSON", jsonErr)
	}

	return normalize(reply, input), nil
}

func normalize(reply llmReply, input string) Result {
	taskType := TaskType(reply.TaskType)
	if !knownTaskTypes[taskType] {
		taskType = TaskSimpleQA
	}

	tier := reply.ComplexityTier
	if tier < 1 || tier > 4 {
		tier = 2
	}

	confidence := reply.ConfidenceScore
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	tokenEstimate := reply.InputTokenEstimate
	if tokenEstimate <= 0 {
		tokenEstimate = (len(input) + 3) / 4
	}

	return Result{
		TaskType:           taskType,
		ComplexityTier:     tier,
		ConfidenceScore:    confidence,
		RequiredContext:    reply.RequiredContext,
		Reasoning:          reply.Reasoning,
		InputTokenEstimate: tokenEstimate,
		Timestamp:          time.Now().UTC(),
	}
}

var (
	codeKeywords  = []string{"func ", "def ", "class ", "import ", "```", "error:", "exception", "compile", "stack trace"}
	writeKeywords = []string{"write", "draft", "compose", "essay", "blog post", "story"}
	planKeywords  = []string{"plan", "roadmap", "strategy", "steps to", "design a"}
)

// QuickClassify is the no-network heuristic fast path. It always terminates
// and never returns an error.
func QuickClassify(input string) Result {
	lower := strings.ToLower(input)
	tokenEstimate := (len(input) + 3) / 4

	var taskType TaskType
	var tier int
	switch {
	case containsAny(lower, codeKeywords):
		taskType, tier = TaskCodeGeneration, 3
	case containsAny(lower, planKeywords):
		taskType, tier = TaskPlanning, 3
	case containsAny(lower, writeKeywords):
		taskType, tier = TaskWriting, 2
	case strings.HasSuffix(strings.TrimSpace(input), "?") && len(input) < 120:
		taskType, tier = TaskSimpleQA, 1
	case len(input) < 40:
		taskType, tier = TaskSimpleQA, 1
	default:
		taskType, tier = TaskAnalysis, 2
	}

	return Result{
		TaskType:           taskType,
		ComplexityTier:     tier,
		ConfidenceScore:    0.5,
		Reasoning:          "heuristic fast path",
		InputTokenEstimate: tokenEstimate,
		Timestamp:          time.Now().UTC(),
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
