// Package tierselect maps a classification result to a concrete model id.
// Selection is a pure function of the classification and config: it never
// calls a provider and never mutates shared state.
package tierselect

import (
	"fmt"

	"github.com/osqr-dev/osqr/internal/classify"
	"github.com/osqr-dev/osqr/internal/models"
)

// Config is the subset of RouterConfig the tier selector reads.
type Config struct {
	EscalationThreshold   float64
	TranscriptionModelID  string
}

// Decision is the Tier Selector's output before execution.
type Decision struct {
	SelectedModelID string
	Tier            int
	EscalatedFrom   string
	Reason          string
}

// Select picks a model id for a classification, applying the voice
// transcription and multi-model deliberation special cases and the
// confidence-upgrade rule ahead of the normal tier lookup.
func Select(registry *models.Registry, c classify.Result, cfg Config) (Decision, error) {
	if c.TaskType == classify.TaskVoiceTranscription && cfg.TranscriptionModelID != "" {
		return Decision{SelectedModelID: cfg.TranscriptionModelID, Tier: tierOrZero(registry, cfg.TranscriptionModelID)}, nil
	}

	if c.TaskType == classify.TaskMultiModelDelib {
		forcedID, err := registry.ModelForTier(4)
		if err != nil {
			return Decision{}, err
		}
		d := Decision{SelectedModelID: forcedID, Tier: 4}
		if c.ComplexityTier != 4 {
			if origID, origErr := registry.ModelForTier(c.ComplexityTier); origErr == nil {
				d.EscalatedFrom = origID
				d.Reason = "forced tier 4 for multi-model deliberation"
			}
		}
		return d, nil
	}

	tier := c.ComplexityTier
	if c.ConfidenceScore < cfg.EscalationThreshold && tier < 4 {
		origID, _ := registry.ModelForTier(tier)
		newTier := tier + 1
		newID, err := registry.ModelForTier(newTier)
		if err != nil {
			return Decision{}, err
		}
		return Decision{
			SelectedModelID: newID,
			Tier:            newTier,
			EscalatedFrom:   origID,
			Reason:          fmt.Sprintf("confidence %.2f < threshold %.2f", c.ConfidenceScore, cfg.EscalationThreshold),
		}, nil
	}

	id, err := registry.ModelForTier(tier)
	if err != nil {
		return Decision{}, err
	}
	return Decision{SelectedModelID: id, Tier: tier}, nil
}

func tierOrZero(registry *models.Registry, id string) int {
	tier, ok := registry.TierOf(id)
	if !ok {
		return 0
	}
	return tier
}
