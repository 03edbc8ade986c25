// Package models holds the process-wide model registry: the static mapping
// from model id to its provider, cost, and tier, plus the tier → canonical
// model index the Tier Selector and Escalation Controller dispatch against.
package models

import (
	"fmt"
	"sort"
	"sync"
)

// Model describes one routable LLM: its provider, cost, and capability tier.
type Model struct {
	ID               string
	ProviderID       string
	DisplayName      string
	Tier             int // 1 (cheapest/fastest) .. 4 (most capable)
	InputPer1M       float64
	OutputPer1M      float64
	MaxContextTokens int
	Throughput       float64 // relative weight used only to break same-tier ties
	Enabled          bool
}

// ErrModelUnavailable is returned (wrapped with the model id) whenever a
// lookup on an unknown or disabled model id is attempted.
type ErrModelUnavailable struct {
	ModelID string
}

func (e *ErrModelUnavailable) Error() string {
	return fmt.Sprintf("model unavailable: %s", e.ModelID)
}

// HealthSnapshot is a read-only view fed to the registry's tie-break scorer.
// It is satisfied by *health.Tracker; defined here (rather than imported) to
// avoid a dependency from models onto health implementation details.
type HealthSnapshot interface {
	GetAvgLatencyMs(providerID string) float64
	GetErrorRate(providerID string) float64
}

// Registry is the process-wide, read-only-after-startup model catalog.
// Registration happens once at composition-root time; all read paths
// (getModelById, modelForTier) are safe for concurrent use without locking
// once startup completes, but the mutex is retained so tests can mutate the
// registry between cases.
type Registry struct {
	mu         sync.RWMutex
	models     map[string]Model
	tierModel  map[int]string   // canonical model id per tier
	tierModels map[int][]string // all enabled models registered for a tier, for tie-break scoring
	health     HealthSnapshot
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		models:     make(map[string]Model),
		tierModel:  make(map[int]string),
		tierModels: make(map[int][]string),
	}
}

// SetHealthSnapshot attaches a read-only health/latency source used to break
// ties when more than one enabled model shares a tier. Optional: without it,
// latency and error rate score as zero, so ties break on cost and throughput
// alone, and equal scores fall back to registration order (first registered wins).
func (r *Registry) SetHealthSnapshot(h HealthSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = h
}

// Register adds or replaces a model. The first enabled model registered for
// a tier is recorded in tierModel; every enabled model, the first included,
// joins that tier's tie-break candidates, and ModelForTier scores them all.
func (r *Registry) Register(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.ID] = m
	if !m.Enabled {
		return
	}
	if _, ok := r.tierModel[m.Tier]; !ok {
		r.tierModel[m.Tier] = m.ID
	}
	r.tierModels[m.Tier] = append(r.tierModels[m.Tier], m.ID)
}

// GetModelByID returns the model for id, or ErrModelUnavailable.
func (r *Registry) GetModelByID(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok || !m.Enabled {
		return Model{}, &ErrModelUnavailable{ModelID: id}
	}
	return m, nil
}

// TierOf returns the tier of a registered model, or false if unknown.
func (r *Registry) TierOf(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return 0, false
	}
	return m.Tier, true
}

// ModelForTier returns the canonical model id for a tier. When more than one
// enabled model is registered for that tier, ties are broken by a
// multi-objective score over cost, latency, error rate, and throughput
// weight — the same shape the teacher's scoreModels function uses for
// mode-weighted selection, reused here purely as a tie-breaker so
// ModelForTier remains a pure function of registry state plus a point-in-time
// health snapshot, never of mutable request state.
func (r *Registry) ModelForTier(tier int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.tierModels[tier]
	if len(candidates) == 0 {
		return "", &ErrModelUnavailable{ModelID: fmt.Sprintf("tier-%d", tier)}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return r.bestOf(candidates), nil
}

// bestOf picks the lowest-scoring (best) candidate using the normal-mode
// weighting. Caller must hold r.mu (read lock is sufficient).
func (r *Registry) bestOf(candidates []string) string {
	type scored struct {
		id    string
		score float64
	}
	weights := struct{ cost, latency, failure, weight float64 }{0.25, 0.25, 0.25, 0.25}

	maxCost, maxLatency, maxWeight := 0.0, 0.0, 0.0
	latencies := make(map[string]float64, len(candidates))
	errRates := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		m := r.models[id]
		cost := m.InputPer1M + m.OutputPer1M
		if cost > maxCost {
			maxCost = cost
		}
		if m.Throughput > maxWeight {
			maxWeight = m.Throughput
		}
		lat := 0.0
		if r.health != nil {
			lat = r.health.GetAvgLatencyMs(m.ProviderID)
		}
		latencies[id] = lat
		if lat > maxLatency {
			maxLatency = lat
		}
		if r.health != nil {
			errRates[id] = r.health.GetErrorRate(m.ProviderID)
		}
	}

	results := make([]scored, 0, len(candidates))
	for _, id := range candidates {
		m := r.models[id]
		costNorm := safeNorm(m.InputPer1M+m.OutputPer1M, maxCost)
		latNorm := safeNorm(latencies[id], maxLatency)
		failNorm := clamp(errRates[id], 0, 1)
		weightNorm := 1 - safeNorm(m.Throughput, maxWeight) // higher weight => lower (better) score
		score := weights.cost*costNorm + weights.latency*latNorm + weights.failure*failNorm + weights.weight*weightNorm
		results = append(results, scored{id: id, score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score < results[j].score })
	return results[0].id
}

func safeNorm(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp(v/max, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// List returns a snapshot of all registered models.
func (r *Registry) List() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
