package escalate

import (
	"testing"

	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/tierselect"
	"github.com/osqr-dev/osqr/internal/validate"
)

func sampleRegistry() *models.Registry {
	r := models.New()
	r.Register(models.Model{ID: "t1", Tier: 1, Enabled: true})
	r.Register(models.Model{ID: "t2", Tier: 2, Enabled: true})
	r.Register(models.Model{ID: "t3", Tier: 3, Enabled: true})
	r.Register(models.Model{ID: "t4", Tier: 4, Enabled: true})
	return r
}

func TestHandleEscalationUpgradesTier(t *testing.T) {
	r := sampleRegistry()
	current := tierselect.Decision{SelectedModelID: "t1", Tier: 1}
	verdict := validate.Result{Valid: false, Issues: []validate.Issue{{Severity: validate.SeverityError, Description: "hallucinated fact"}}}

	out := HandleEscalation(r, current, verdict, Config{MaxEscalations: 2}, 0)
	if !out.ShouldEscalate {
		t.Fatal("expected escalation")
	}
	if out.NewDecision.SelectedModelID != "t2" || out.NewDecision.Tier != 2 {
		t.Errorf("unexpected new decision: %+v", out.NewDecision)
	}
	if out.NewDecision.EscalatedFrom != "t1" {
		t.Errorf("expected escalatedFrom t1, got %s", out.NewDecision.EscalatedFrom)
	}
}

func TestHandleEscalationRefusesAtMax(t *testing.T) {
	r := sampleRegistry()
	current := tierselect.Decision{SelectedModelID: "t1", Tier: 1}
	verdict := validate.Result{Valid: false}

	out := HandleEscalation(r, current, verdict, Config{MaxEscalations: 2}, 2)
	if out.ShouldEscalate {
		t.Error("expected refusal at max escalations")
	}
}

func TestHandleEscalationRefusesAtTier4(t *testing.T) {
	r := sampleRegistry()
	current := tierselect.Decision{SelectedModelID: "t4", Tier: 4}
	verdict := validate.Result{Valid: false}

	out := HandleEscalation(r, current, verdict, Config{MaxEscalations: 2}, 0)
	if out.ShouldEscalate {
		t.Error("expected refusal at tier 4")
	}
}

func TestAssembleReasonFromSuggestedRepair(t *testing.T) {
	r := sampleRegistry()
	current := tierselect.Decision{SelectedModelID: "t1", Tier: 1}
	verdict := validate.Result{Valid: false, SuggestedRepair: "add more detail"}

	out := HandleEscalation(r, current, verdict, Config{MaxEscalations: 2}, 0)
	if out.Reason != "add more detail" {
		t.Errorf("expected reason from suggestedRepair, got %q", out.Reason)
	}
}

func TestHasPriorityIssue(t *testing.T) {
	v := validate.Result{Issues: []validate.Issue{{Kind: validate.IssueSafety}}}
	if !HasPriorityIssue(v) {
		t.Error("expected safety issue to raise priority")
	}
	v2 := validate.Result{Issues: []validate.Issue{{Kind: validate.IssueFormat}}}
	if HasPriorityIssue(v2) {
		t.Error("format issue should not raise priority")
	}
}
