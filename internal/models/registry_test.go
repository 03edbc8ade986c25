package models

import "testing"

func sampleRegistry() *Registry {
	r := New()
	r.Register(Model{ID: "tier1-a", ProviderID: "mock", Tier: 1, InputPer1M: 0.1, OutputPer1M: 0.3, Enabled: true})
	r.Register(Model{ID: "tier2-a", ProviderID: "mock", Tier: 2, InputPer1M: 0.5, OutputPer1M: 1.5, Enabled: true})
	r.Register(Model{ID: "tier3-a", ProviderID: "mock", Tier: 3, InputPer1M: 2, OutputPer1M: 6, Enabled: true})
	r.Register(Model{ID: "tier4-a", ProviderID: "mock", Tier: 4, InputPer1M: 10, OutputPer1M: 30, Enabled: true})
	return r
}

func TestGetModelByID(t *testing.T) {
	r := sampleRegistry()
	m, err := r.GetModelByID("tier2-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Tier != 2 {
		t.Errorf("expected tier 2, got %d", m.Tier)
	}
}

func TestGetModelByIDUnavailable(t *testing.T) {
	r := sampleRegistry()
	_, err := r.GetModelByID("nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown model id")
	}
	if _, ok := err.(*ErrModelUnavailable); !ok {
		t.Errorf("expected ErrModelUnavailable, got %T", err)
	}
}

func TestGetModelByIDDisabled(t *testing.T) {
	r := New()
	r.Register(Model{ID: "off", Tier: 1, Enabled: false})
	_, err := r.GetModelByID("off")
	if err == nil {
		t.Fatal("expected error for disabled model")
	}
}

func TestModelForTier(t *testing.T) {
	r := sampleRegistry()
	for tier, want := range map[int]string{1: "tier1-a", 2: "tier2-a", 3: "tier3-a", 4: "tier4-a"} {
		got, err := r.ModelForTier(tier)
		if err != nil {
			t.Fatalf("tier %d: unexpected error: %v", tier, err)
		}
		if got != want {
			t.Errorf("tier %d: expected %s, got %s", tier, want, got)
		}
	}
}

func TestModelForTierUnknown(t *testing.T) {
	r := sampleRegistry()
	_, err := r.ModelForTier(9)
	if err == nil {
		t.Fatal("expected error for tier with no registered model")
	}
}

func TestModelForTierTieBreakPrefersCheaper(t *testing.T) {
	r := New()
	r.Register(Model{ID: "expensive", ProviderID: "p1", Tier: 2, InputPer1M: 10, OutputPer1M: 30, Enabled: true})
	r.Register(Model{ID: "cheap", ProviderID: "p2", Tier: 2, InputPer1M: 0.1, OutputPer1M: 0.3, Enabled: true})

	got, err := r.ModelForTier(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cheap" {
		t.Errorf("expected tie-break to prefer cheaper model, got %s", got)
	}
}

func TestTierOf(t *testing.T) {
	r := sampleRegistry()
	tier, ok := r.TierOf("tier3-a")
	if !ok || tier != 3 {
		t.Errorf("expected tier 3, ok=true; got tier=%d ok=%v", tier, ok)
	}
	_, ok = r.TierOf("nonexistent")
	if ok {
		t.Error("expected ok=false for unknown model")
	}
}

func TestList(t *testing.T) {
	r := sampleRegistry()
	all := r.List()
	if len(all) != 4 {
		t.Errorf("expected 4 models, got %d", len(all))
	}
}

type fakeHealth struct {
	latency map[string]float64
	errRate map[string]float64
}

func (f fakeHealth) GetAvgLatencyMs(providerID string) float64 { return f.latency[providerID] }
func (f fakeHealth) GetErrorRate(providerID string) float64    { return f.errRate[providerID] }

func TestModelForTierTieBreakUsesHealthSnapshot(t *testing.T) {
	r := New()
	r.Register(Model{ID: "flaky", ProviderID: "p1", Tier: 2, InputPer1M: 1, OutputPer1M: 1, Enabled: true})
	r.Register(Model{ID: "stable", ProviderID: "p2", Tier: 2, InputPer1M: 1, OutputPer1M: 1, Enabled: true})
	r.SetHealthSnapshot(fakeHealth{
		latency: map[string]float64{"p1": 5000, "p2": 100},
		errRate: map[string]float64{"p1": 0.5, "p2": 0.01},
	})

	got, err := r.ModelForTier(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "stable" {
		t.Errorf("expected tie-break to prefer the healthier provider, got %s", got)
	}
}
