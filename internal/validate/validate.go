// Package validate implements the LLM-as-judge verdict over an executed
// response, plus the quickValidate heuristic fallback used when the judge
// call fails, times out, or confidence is high enough to skip it entirely.
package validate

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/osqr-dev/osqr/internal/providers"
)

// IssueKind is the closed set of validation issue kinds.
type IssueKind string

const (
	IssueFormat        IssueKind = "format"
	IssueHallucination IssueKind = "hallucination"
	IssueIncomplete    IssueKind = "incomplete"
	IssueOffTopic      IssueKind = "off_topic"
	IssueSafety        IssueKind = "safety"
)

// Severity is either warning or error.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one problem found in a response.
type Issue struct {
	Kind        IssueKind
	Severity    Severity
	Description string
	Location    string
}

// Result is the judge or heuristic verdict.
type Result struct {
	Valid           bool
	ValidatorModelID string
	Issues          []Issue
	ShouldEscalate  bool
	SuggestedRepair string
}

// Config is the subset of RouterConfig the validator reads.
type Config struct {
	JudgeModelID            string
	ValidationTimeoutMs     int
	HighConfidenceThreshold float64
}

type judgeReply struct {
	IsValid         bool    `json:"isValid"`
	Issues          []Issue `json:"issues"`
	ShouldEscalate  bool    `json:"shouldEscalate"`
	SuggestedRepair string  `json:"suggestedRepair"`
}

const judgePrompt = `You are a response validator. Given the original request and the model's
response, reply with JSON only:
{"isValid": bool, "issues": [{"kind": one of [format, hallucination, incomplete, off_topic, safety], "severity": one of [warning, error], "description": string, "location": string}], "shouldEscalate": bool, "suggestedRepair": string}`

// Validate runs the judge model against originalInput/response. On timeout
// or malformed JSON it falls back to QuickValidate so callers always get a
// usable verdict.
func Validate(ctx context.Context, exec *providers.Executor, originalInput, response string, cfg Config) Result {
	timeout := time.Duration(cfg.ValidationTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	req := providers.CompletionRequest{
		ModelID: cfg.JudgeModelID,
		Prompt:  judgePrompt + "\n\nOriginal request:\n" + originalInput + "\n\nResponse:\n" + response,
	}

	res, err := exec.Execute(ctx, req, timeout)
	if err != nil {
		return QuickValidate(originalInput, response, cfg.JudgeModelID)
	}

	var reply judgeReply
	if jsonErr := json.Unmarshal([]byte(res.Content), &reply); jsonErr != nil {
		return QuickValidate(originalInput, response, cfg.JudgeModelID)
	}

	return Result{
		Valid:            reply.IsValid,
		ValidatorModelID: cfg.JudgeModelID,
		Issues:           reply.Issues,
		ShouldEscalate:   reply.ShouldEscalate,
		SuggestedRepair:  reply.SuggestedRepair,
	}
}

var errorPhrases = []string{"i cannot", "i'm unable to", "as an ai", "error occurred", "something went wrong"}
var dangerousTerms = []string{"rm -rf", "drop table", "sudo rm", "format c:"}

// QuickValidate is the heuristic fallback: no network, always terminates.
func QuickValidate(originalInput, response, validatorModelID string) Result {
	trimmed := strings.TrimSpace(response)
	var issues []Issue

	if trimmed == "" {
		issues = append(issues, Issue{Kind: IssueIncomplete, Severity: SeverityError, Description: "response is empty"})
	} else if len(trimmed) < len(strings.TrimSpace(originalInput))/4 && len(trimmed) < 20 {
		issues = append(issues, Issue{Kind: IssueIncomplete, Severity: SeverityWarning, Description: "response is unusually short relative to input"})
	}

	lowerResp := strings.ToLower(response)
	if containsAny(lowerResp, errorPhrases) {
		issues = append(issues, Issue{Kind: IssueFormat, Severity: SeverityWarning, Description: "response contains error-like phrasing"})
	}

	lowerInput := strings.ToLower(originalInput)
	for _, term := range dangerousTerms {
		if strings.Contains(lowerResp, term) && !strings.Contains(lowerInput, term) {
			issues = append(issues, Issue{Kind: IssueSafety, Severity: SeverityWarning, Description: "response contains a dangerous term not present in the input"})
			break
		}
	}

	valid := true
	shouldEscalate := false
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			valid = false
			shouldEscalate = true
		}
	}

	return Result{Valid: valid, ValidatorModelID: validatorModelID, Issues: issues, ShouldEscalate: shouldEscalate}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// ShouldSkipValidation reports whether confidence is high enough to skip the
// judge call entirely and run only QuickValidate.
func ShouldSkipValidation(confidence float64, cfg Config) bool {
	threshold := cfg.HighConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.95
	}
	return confidence >= threshold
}

// MergeValidationResults deduplicates issues by description across multiple
// results and ORs their shouldEscalate flags.
func MergeValidationResults(results []Result) Result {
	merged := Result{Valid: true}
	seen := make(map[string]bool)
	for _, r := range results {
		if !r.Valid {
			merged.Valid = false
		}
		if r.ShouldEscalate {
			merged.ShouldEscalate = true
		}
		if merged.ValidatorModelID == "" {
			merged.ValidatorModelID = r.ValidatorModelID
		}
		if merged.SuggestedRepair == "" && r.SuggestedRepair != "" {
			merged.SuggestedRepair = r.SuggestedRepair
		}
		for _, iss := range r.Issues {
			if seen[iss.Description] {
				continue
			}
			seen[iss.Description] = true
			merged.Issues = append(merged.Issues, iss)
		}
	}
	return merged
}

// NeedsEscalation reports whether a verdict requires escalation per spec:
// shouldEscalate OR !isValid OR any error-severity issue.
func NeedsEscalation(v Result) bool {
	if v.ShouldEscalate || !v.Valid {
		return true
	}
	for _, iss := range v.Issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
