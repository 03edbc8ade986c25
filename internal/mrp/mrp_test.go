package mrp

import (
	"testing"

	"github.com/osqr-dev/osqr/internal/classify"
	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/validate"
)

func sampleRegistry() *models.Registry {
	r := models.New()
	r.Register(models.Model{ID: "t1", Tier: 1, InputPer1M: 1, OutputPer1M: 2, Enabled: true})
	r.Register(models.Model{ID: "t2", Tier: 2, InputPer1M: 5, OutputPer1M: 10, Enabled: true})
	return r
}

func TestBuildNoEscalation(t *testing.T) {
	r := sampleRegistry()
	b := New(r, "req-1", "hello", "t1")
	b.WithClassification(classifyResult(), 50)
	b.WithRoutingLatency(5)
	b.RecordExecution("t1", 100, 50, 200)
	b.WithValidation(validate.Result{Valid: true}, 30)
	b.WithCompleteness(true)

	m := b.Build()
	if m.ActualModelUsed != "t1" {
		t.Errorf("expected actual model t1, got %s", m.ActualModelUsed)
	}
	if m.EscalationChain[0] != "t1" {
		t.Errorf("expected chain to start with t1, got %v", m.EscalationChain)
	}
	if m.TotalLatencyMs != 50+5+200+30 {
		t.Errorf("unexpected total latency: %d", m.TotalLatencyMs)
	}
	wantCost := (100*1.0 + 50*2.0) / 1e6
	if m.EstimatedCostUSD != wantCost {
		t.Errorf("expected cost %v, got %v", wantCost, m.EstimatedCostUSD)
	}
	if m.Justification == "" {
		t.Error("expected a generated justification")
	}
}

func TestBuildWithEscalation(t *testing.T) {
	r := sampleRegistry()
	b := New(r, "req-2", "hello", "t1")
	b.RecordExecution("t1", 100, 50, 200)
	b.RecordEscalation("t1", "t2", "validator requested escalation")
	b.RecordExecution("t2", 120, 80, 300)
	b.WithValidation(validate.Result{Valid: true}, 10)

	m := b.Build()
	if len(m.EscalationChain) != 2 || m.EscalationChain[0] != "t1" || m.EscalationChain[1] != "t2" {
		t.Fatalf("unexpected chain: %v", m.EscalationChain)
	}
	if m.ActualModelUsed != "t2" {
		t.Errorf("expected actual model t2, got %s", m.ActualModelUsed)
	}
	wantCost := (100*1.0+50*2.0)/1e6 + (120*5.0+80*10.0)/1e6
	if m.EstimatedCostUSD != wantCost {
		t.Errorf("expected cost %v, got %v", wantCost, m.EstimatedCostUSD)
	}
}

func TestBuildExplicitJustificationWins(t *testing.T) {
	r := sampleRegistry()
	b := New(r, "req-3", "hello", "t1")
	b.WithJustification("custom reason")
	m := b.Build()
	if m.Justification != "custom reason" {
		t.Errorf("expected custom justification, got %q", m.Justification)
	}
}

func classifyResult() classify.Result {
	return classify.Result{TaskType: classify.TaskSimpleQA, ComplexityTier: 1, ConfidenceScore: 0.9}
}
