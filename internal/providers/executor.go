package providers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/osqr-dev/osqr/internal/circuitbreaker"
	"github.com/osqr-dev/osqr/internal/errs"
	"github.com/osqr-dev/osqr/internal/health"
	"github.com/osqr-dev/osqr/internal/models"
)

// Executor resolves a model id to its provider's Sender and runs the
// completion call under a per-call timeout, translating transport failures
// into the router's closed error taxonomy. It keeps a circuit breaker per
// provider so a failing provider stops paying its own timeout on every
// escalation attempt, and reports outcomes to a health.Tracker when one is
// attached.
type Executor struct {
	Models    *models.Registry
	Providers *Registry
	Health    *health.Tracker

	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.Breaker
}

// NewExecutor wires a Model Registry and a provider Sender registry together.
func NewExecutor(m *models.Registry, p *Registry) *Executor {
	return &Executor{
		Models:    m,
		Providers: p,
		breakers:  make(map[string]*circuitbreaker.Breaker),
	}
}

func (e *Executor) breakerFor(providerID string) *circuitbreaker.Breaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()
	b, ok := e.breakers[providerID]
	if !ok {
		b = circuitbreaker.New()
		e.breakers[providerID] = b
	}
	return b
}

// Execute runs req.ModelID's completion through its provider's Sender,
// enforcing timeout and wrapping errors as *errs.RouterError.
func (e *Executor) Execute(ctx context.Context, req CompletionRequest, timeout time.Duration) (CompletionResult, error) {
	model, err := e.Models.GetModelByID(req.ModelID)
	if err != nil {
		return CompletionResult{}, errs.Wrap(errs.ModelUnavailable, "model not registered", err)
	}

	sender, ok := e.Providers.Get(model.ProviderID)
	if !ok {
		return CompletionResult{}, errs.New(errs.ModelUnavailable, "no provider registered for "+model.ProviderID)
	}

	breaker := e.breakerFor(model.ProviderID)
	if !breaker.Allow() {
		return CompletionResult{}, errs.New(errs.ModelUnavailable, "provider "+model.ProviderID+" circuit is open")
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !sender.IsAvailable(callCtx) {
		breaker.RecordFailure()
		return CompletionResult{}, errs.New(errs.ModelUnavailable, "provider "+model.ProviderID+" is unavailable")
	}

	start := nowFunc()
	result, err := sender.Complete(callCtx, req)
	if err != nil {
		breaker.RecordFailure()
		if e.Health != nil {
			e.Health.RecordError(model.ProviderID, err.Error())
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return CompletionResult{}, errs.Wrap(errs.Timeout, "provider call timed out", err)
		}
		var se *StatusError
		if errors.As(err, &se) {
			retryable := se.StatusCode >= 500 || se.StatusCode == 429
			return CompletionResult{}, errs.Provider("provider returned an error status", retryable, err)
		}
		return CompletionResult{}, errs.Provider("provider call failed", true, err)
	}
	if result.LatencyMs == 0 {
		result.LatencyMs = time.Since(start).Milliseconds()
	}
	breaker.RecordSuccess()
	if e.Health != nil {
		e.Health.RecordSuccess(model.ProviderID, float64(result.LatencyMs))
	}
	return result, nil
}
