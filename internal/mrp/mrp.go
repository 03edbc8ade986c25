// Package mrp builds the Merge-Readiness Pack: the audit record sealed at
// the end of every routed request, accumulating classification, routing,
// escalation, validation, and cost data via a fluent builder.
package mrp

import (
	"fmt"
	"time"

	"github.com/osqr-dev/osqr/internal/classify"
	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/validate"
)

// EscalationRecord is one hop in the escalation chain.
type EscalationRecord struct {
	FromModelID string
	ToModelID   string
	Reason      string
}

// MRP is the sealed, immutable audit record.
type MRP struct {
	ID                  string
	Timestamp           time.Time
	OriginalInput       string
	Classification      classify.Result
	SelectedModelID     string
	ActualModelUsed     string
	EscalationChain     []string
	Escalations         []EscalationRecord
	Validation          validate.Result
	ClassificationMs    int64
	RoutingMs           int64
	ExecutionMs         int64
	ValidationMs        int64
	TotalLatencyMs      int64
	InputTokens         int
	OutputTokens        int
	EstimatedCostUSD    float64
	FunctionallyComplete bool
	Justification       string
}

// Builder accumulates MRP fields across a request's lifecycle. Not safe for
// concurrent use by design: one builder belongs to exactly one in-flight
// request.
type Builder struct {
	registry *models.Registry

	id              string
	timestamp       time.Time
	originalInput   string
	classification  classify.Result
	selectedModelID string
	escalationChain []string
	escalations     []EscalationRecord
	validation      validate.Result
	justification   string

	classificationMs int64
	routingMs        int64
	executionMs      int64
	validationMs     int64

	inputTokens      int
	outputTokens     int
	tokensByModel    map[string][2]int // modelID -> [inputTokens, outputTokens]
	complete         bool
}

// New starts a builder for one request, recording the initial selected
// model as the head of the escalation chain.
func New(registry *models.Registry, id, originalInput string, initialModelID string) *Builder {
	return &Builder{
		registry:        registry,
		id:              id,
		timestamp:       time.Now().UTC(),
		originalInput:   originalInput,
		selectedModelID: initialModelID,
		escalationChain: []string{initialModelID},
		tokensByModel:   make(map[string][2]int),
	}
}

// WithClassification records the classification result and its latency.
func (b *Builder) WithClassification(c classify.Result, latencyMs int64) *Builder {
	b.classification = c
	b.classificationMs = latencyMs
	return b
}

// WithRoutingLatency records the tier-selection latency.
func (b *Builder) WithRoutingLatency(latencyMs int64) *Builder {
	b.routingMs = latencyMs
	return b
}

// RecordExecution adds one attempt's token usage and latency against
// modelID, accumulating across escalations.
func (b *Builder) RecordExecution(modelID string, inputTokens, outputTokens int, latencyMs int64) *Builder {
	counts := b.tokensByModel[modelID]
	counts[0] += inputTokens
	counts[1] += outputTokens
	b.tokensByModel[modelID] = counts

	b.inputTokens += inputTokens
	b.outputTokens += outputTokens
	b.executionMs += latencyMs
	return b
}

// RecordEscalation appends a hop to the escalation chain.
func (b *Builder) RecordEscalation(fromModelID, toModelID, reason string) *Builder {
	b.escalations = append(b.escalations, EscalationRecord{FromModelID: fromModelID, ToModelID: toModelID, Reason: reason})
	b.escalationChain = append(b.escalationChain, toModelID)
	return b
}

// WithValidation records the final validation verdict and its latency.
func (b *Builder) WithValidation(v validate.Result, latencyMs int64) *Builder {
	b.validation = v
	b.validationMs += latencyMs
	return b
}

// WithJustification sets an explicit justification, overriding the
// generated default.
func (b *Builder) WithJustification(text string) *Builder {
	b.justification = text
	return b
}

// WithCompleteness sets the functional-completeness flag explicitly
// (callers pass true when validation was disabled entirely).
func (b *Builder) WithCompleteness(complete bool) *Builder {
	b.complete = complete
	return b
}

// Build seals the MRP: stamps total latency, computes cost from per-model
// token usage against the model registry's prices, generates a default
// justification if none was set, and returns an immutable snapshot.
func (b *Builder) Build() MRP {
	total := b.classificationMs + b.routingMs + b.executionMs + b.validationMs

	cost := 0.0
	for modelID, counts := range b.tokensByModel {
		model, err := b.registry.GetModelByID(modelID)
		if err != nil {
			continue
		}
		cost += (float64(counts[0])*model.InputPer1M + float64(counts[1])*model.OutputPer1M) / 1e6
	}

	justification := b.justification
	if justification == "" {
		justification = b.defaultJustification()
	}

	actual := b.selectedModelID
	if len(b.escalationChain) > 0 {
		actual = b.escalationChain[len(b.escalationChain)-1]
	}

	return MRP{
		ID:                   b.id,
		Timestamp:            b.timestamp,
		OriginalInput:        b.originalInput,
		Classification:       b.classification,
		SelectedModelID:      b.selectedModelID,
		ActualModelUsed:      actual,
		EscalationChain:      append([]string(nil), b.escalationChain...),
		Escalations:          append([]EscalationRecord(nil), b.escalations...),
		Validation:           b.validation,
		ClassificationMs:     b.classificationMs,
		RoutingMs:            b.routingMs,
		ExecutionMs:          b.executionMs,
		ValidationMs:         b.validationMs,
		TotalLatencyMs:       total,
		InputTokens:          b.inputTokens,
		OutputTokens:         b.outputTokens,
		EstimatedCostUSD:     cost,
		FunctionallyComplete: b.complete,
		Justification:        justification,
	}
}

func (b *Builder) defaultJustification() string {
	if len(b.escalations) == 0 {
		return fmt.Sprintf("routed to %s at tier classification with no escalation", b.selectedModelID)
	}
	return fmt.Sprintf("escalated %d time(s), final model %s: %s", len(b.escalations), b.escalationChain[len(b.escalationChain)-1], b.escalations[len(b.escalations)-1].Reason)
}
