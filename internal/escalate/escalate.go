// Package escalate decides, from a validator verdict and an attempt
// counter, whether a request should be re-dispatched to the next tier.
package escalate

import (
	"strings"

	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/tierselect"
	"github.com/osqr-dev/osqr/internal/validate"
)

// Config is the subset of RouterConfig the escalation controller reads.
type Config struct {
	MaxEscalations int
}

// Outcome is the controller's decision for one escalation check.
type Outcome struct {
	ShouldEscalate bool
	NewDecision    *tierselect.Decision
	Reason         string
}

// priorityIssueKinds raise the priority label used by callers but do not
// change the loop structure.
var priorityIssueKinds = map[validate.IssueKind]bool{
	validate.IssueSafety:        true,
	validate.IssueHallucination: true,
}

// HandleEscalation applies the escalation policy: refuse past maxEscalations
// or at tier 4, otherwise select the next tier's model and assemble a reason
// from the verdict's suggested repair and any error-severity issues.
func HandleEscalation(registry *models.Registry, currentDecision tierselect.Decision, verdict validate.Result, cfg Config, attemptCount int) Outcome {
	if attemptCount >= cfg.MaxEscalations {
		return Outcome{ShouldEscalate: false, Reason: "max escalations reached"}
	}
	if currentDecision.Tier >= 4 {
		return Outcome{ShouldEscalate: false, Reason: "already at tier 4"}
	}

	nextTier := currentDecision.Tier + 1
	nextID, err := registry.ModelForTier(nextTier)
	if err != nil {
		return Outcome{ShouldEscalate: false, Reason: "no model available for next tier"}
	}

	reason := assembleReason(verdict)
	newDecision := &tierselect.Decision{
		SelectedModelID: nextID,
		Tier:            nextTier,
		EscalatedFrom:   currentDecision.SelectedModelID,
		Reason:          reason,
	}

	return Outcome{ShouldEscalate: true, NewDecision: newDecision, Reason: reason}
}

func assembleReason(v validate.Result) string {
	var parts []string
	if v.SuggestedRepair != "" {
		parts = append(parts, v.SuggestedRepair)
	}
	for _, iss := range v.Issues {
		if iss.Severity == validate.SeverityError {
			parts = append(parts, iss.Description)
		}
	}
	if len(parts) == 0 {
		return "validator requested escalation"
	}
	return strings.Join(parts, "; ")
}

// HasPriorityIssue reports whether the verdict contains a safety or
// hallucination issue, used to raise the caller-facing priority label.
func HasPriorityIssue(v validate.Result) bool {
	for _, iss := range v.Issues {
		if priorityIssueKinds[iss.Kind] {
			return true
		}
	}
	return false
}

// NeedsEscalation re-exports the validator's escalation predicate so callers
// only need to import this package for the full escalation decision.
func NeedsEscalation(v validate.Result) bool {
	return validate.NeedsEscalation(v)
}
