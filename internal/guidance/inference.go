package guidance

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/osqr-dev/osqr/internal/config"
)

// CorrectionType categorizes what a detected correction is about.
type CorrectionType string

const (
	CorrectionFormatting  CorrectionType = "formatting"
	CorrectionInteraction CorrectionType = "interaction"
	CorrectionCode        CorrectionType = "code"
	CorrectionTone        CorrectionType = "tone"
	CorrectionGeneral     CorrectionType = "general"
)

// CorrectionResult is the Correction Detector's output.
type CorrectionResult struct {
	IsCorrection      bool
	CorrectionType    CorrectionType
	OriginalBehavior  string
	DesiredBehavior   string
	Strength          float64
}

var signalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bno,?\s*i\s*want\b`),
	regexp.MustCompile(`(?i)\bno,\s`),
	regexp.MustCompile(`(?i)\bdon'?t\b`),
	regexp.MustCompile(`(?i)\binstead of\b`),
	regexp.MustCompile(`(?i)that'?s not\b`),
	regexp.MustCompile(`(?i)\bwrong\b`),
	regexp.MustCompile(`(?i)\bnever do\b`),
	regexp.MustCompile(`(?i)\bstop doing\b`),
	regexp.MustCompile(`(?i)\bplease (always|never)\b`),
}

var strongLanguagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwrong\b`),
	regexp.MustCompile(`(?i)\bnever\b`),
	regexp.MustCompile(`(?i)\balways\b`),
	regexp.MustCompile(`(?i)\bterrible\b`),
}

var contrastPattern = regexp.MustCompile(`(?i)don'?t\s+(.+?),?\s*(?:do|use|instead)\s+(.+)`)
var preferencePattern = regexp.MustCompile(`(?i)i want\s+(.+)`)
var prohibitionPattern = regexp.MustCompile(`(?i)don'?t\s+(.+)`)

var topicKeywords = map[CorrectionType][]string{
	CorrectionFormatting:  {"format", "indent", "spacing", "tabs", "style"},
	CorrectionInteraction: {"ask", "confirm", "explain", "verbose", "terse"},
	CorrectionCode:        {"function", "variable", "test", "error", "bug", "code"},
	CorrectionTone:        {"tone", "polite", "rude", "friendly", "formal"},
}

// DetectCorrection classifies a user message as a correction or not, and if
// so, extracts its topical type, original/desired behavior, and strength.
func DetectCorrection(message string) CorrectionResult {
	lower := strings.ToLower(message)

	matchCount := 0
	for _, p := range signalPatterns {
		if p.MatchString(message) {
			matchCount++
		}
	}
	if matchCount == 0 {
		return CorrectionResult{IsCorrection: false}
	}

	strongHits := 0
	for _, p := range strongLanguagePatterns {
		if p.MatchString(message) {
			strongHits++
		}
	}

	emphasis := 0
	if strings.Contains(message, "really") || strings.Contains(message, "REALLY") {
		emphasis++
	}
	exclamations := strings.Count(message, "!")

	strength := clamp01(0.2*float64(matchCount) + 0.15*float64(strongHits) + 0.1*float64(emphasis) + 0.1*float64(exclamations))

	result := CorrectionResult{IsCorrection: true, CorrectionType: CorrectionGeneral, Strength: strength}

	if m := contrastPattern.FindStringSubmatch(message); len(m) == 3 {
		result.OriginalBehavior = strings.TrimSpace(m[1])
		result.DesiredBehavior = strings.TrimSpace(m[2])
	} else if m := preferencePattern.FindStringSubmatch(message); len(m) == 2 {
		result.DesiredBehavior = strings.TrimSpace(m[1])
	} else if m := prohibitionPattern.FindStringSubmatch(message); len(m) == 2 {
		result.OriginalBehavior = strings.TrimSpace(m[1])
	}

	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				result.CorrectionType = topic
				break
			}
		}
	}

	return result
}

var alwaysPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\balways\b`),
	regexp.MustCompile(`(?i)\bfrom now on\b`),
	regexp.MustCompile(`(?i)\bevery time\b`),
	regexp.MustCompile(`(?i)\bgoing forward\b`),
}

var nowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bjust (for )?now\b`),
	regexp.MustCompile(`(?i)\bthis time\b`),
	regexp.MustCompile(`(?i)\bfor this\b`),
	regexp.MustCompile(`(?i)\bonly here\b`),
}

var specificityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bthis file\b`),
	regexp.MustCompile(`(?i)\bline \d+\b`),
	regexp.MustCompile(`(?i)\bhere\b`),
}

var strongAlwaysAllowList = []string{"always", "from now on", "every time"}

// TemporalResult is the Temporal Classifier's output.
type TemporalResult struct {
	ExplicitAlways  bool
	ExplicitNow     bool
	Specific        bool
	IsGeneralizable bool
	Confidence      float64
}

// ClassifyTemporalScope decides whether a correction applies just to the
// current turn ("now") or should generalize ("always").
func ClassifyTemporalScope(message string) TemporalResult {
	lower := strings.ToLower(message)

	alwaysCount := countMatches(alwaysPatterns, message)
	nowCount := countMatches(nowPatterns, message)
	specific := matchesAny(specificityPatterns, message)

	explicitAlways := alwaysCount > 0
	explicitNow := nowCount > 0

	if explicitAlways && explicitNow {
		strongAlways := false
		for _, phrase := range strongAlwaysAllowList {
			if strings.Contains(lower, phrase) {
				strongAlways = true
				break
			}
		}
		if strongAlways || alwaysCount >= nowCount {
			explicitNow = false
		} else {
			explicitAlways = false
		}
	}

	isGeneralizable := !specific && !explicitNow

	confidence := 0.5
	if explicitAlways {
		confidence += 0.35
	}
	if explicitNow {
		confidence -= 0.4
	}
	if !isGeneralizable {
		confidence -= 0.2
	}
	matchBonus := clampAbs(0.1*float64(alwaysCount+nowCount), 0.2)
	if explicitAlways {
		confidence += matchBonus
	} else if explicitNow {
		confidence -= matchBonus
	}

	return TemporalResult{
		ExplicitAlways:  explicitAlways,
		ExplicitNow:     explicitNow,
		Specific:        specific,
		IsGeneralizable: isGeneralizable,
		Confidence:      clamp01(confidence),
	}
}

func countMatches(patterns []*regexp.Regexp, s string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(s) {
			n++
		}
	}
	return n
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	return countMatches(patterns, s) > 0
}

var oneTimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bjust this time\b`),
	regexp.MustCompile(`(?i)\bfor now\b`),
}

// InferenceResult is the Proposer's output.
type InferenceResult struct {
	Proposal   *RuleProposal
	Confidence float64
	Rejected   bool
	RejectReason string
}

// Analyze inspects one user message (plus the preceding assistant turn and
// recent history) for a correction worth promoting to a guidance rule.
func Analyze(userMsg, prevAssistantMsg string, history []string, sessionID string, cfg config.GuidanceConfig) InferenceResult {
	correction := DetectCorrection(userMsg)
	if !correction.IsCorrection {
		return InferenceResult{Rejected: true, RejectReason: "not a correction", Confidence: 0}
	}
	if matchesAny(oneTimePatterns, userMsg) {
		return InferenceResult{Rejected: true, RejectReason: "one-time adjustment", Confidence: 0}
	}

	temporal := ClassifyTemporalScope(userMsg)

	repetitions := 0
	for _, prior := range history {
		priorCorrection := DetectCorrection(prior)
		if priorCorrection.IsCorrection && priorCorrection.CorrectionType == correction.CorrectionType {
			repetitions++
		}
	}

	confidence := 0.3
	if temporal.ExplicitAlways {
		confidence += 0.4
	}
	switch {
	case repetitions >= 2:
		confidence += 0.2
	case repetitions == 1:
		confidence += 0.1
	}
	if temporal.IsGeneralizable {
		confidence += 0.1
	}
	confidence += 0.15 * correction.Strength
	confidence = clamp01(confidence)

	threshold := cfg.InferenceThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	if confidence < threshold {
		return InferenceResult{Rejected: true, RejectReason: "confidence below inference threshold", Confidence: confidence}
	}

	rule := synthesizeRule(correction)
	proposal := &RuleProposal{
		ID:                 uuid.NewString(),
		ProposedRule:       rule,
		OriginalCorrection: userMsg,
		SessionID:          sessionID,
		Confidence:         confidence,
		Status:             ProposalPending,
	}
	return InferenceResult{Proposal: proposal, Confidence: confidence}
}

var (
	wantPattern   = regexp.MustCompile(`(?i)i want\s+(.+)`)
	pleasePattern = regexp.MustCompile(`(?i)please\s+(.+)`)
	alwaysInstr   = regexp.MustCompile(`(?i)always\s+(.+)`)
	neverInstr    = regexp.MustCompile(`(?i)never\s+(.+)`)
)

func synthesizeRule(c CorrectionResult) string {
	switch {
	case c.OriginalBehavior != "" && c.DesiredBehavior != "":
		return strings.TrimSpace(c.DesiredBehavior) + " instead of " + strings.TrimSpace(c.OriginalBehavior)
	case c.DesiredBehavior != "":
		return capitalizeFirst(strings.TrimSpace(c.DesiredBehavior))
	case c.OriginalBehavior != "":
		return "Avoid " + strings.TrimSpace(c.OriginalBehavior)
	}

	source := c.OriginalBehavior + c.DesiredBehavior
	for _, extractor := range []*regexp.Regexp{wantPattern, pleasePattern, alwaysInstr, neverInstr} {
		if m := extractor.FindStringSubmatch(source); len(m) == 2 {
			return capitalizeFirst(strings.TrimSpace(m[1]))
		}
	}

	return "Follow guidance about " + string(c.CorrectionType)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampAbs(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}
