// Package routeapi is the Router subsystem's top-level entry point: it
// orchestrates classification, tier selection, execution, validation, and
// the escalation loop into a single sealed MRP per request.
package routeapi

import (
	"context"
	"time"

	"github.com/osqr-dev/osqr/internal/classify"
	"github.com/osqr-dev/osqr/internal/config"
	"github.com/osqr-dev/osqr/internal/errs"
	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/mrp"
	"github.com/osqr-dev/osqr/internal/providers"
	"github.com/osqr-dev/osqr/internal/tierselect"
	"github.com/osqr-dev/osqr/internal/validate"

	"github.com/osqr-dev/osqr/internal/escalate"
)

// Phase names the request's position in the state machine.
type Phase string

const (
	PhaseClassifying Phase = "classifying"
	PhaseRouting     Phase = "routing"
	PhaseExecuting   Phase = "executing"
	PhaseValidating  Phase = "validating"
	PhaseEscalating  Phase = "escalating"
	PhaseComplete    Phase = "complete"
	PhaseFailed      Phase = "failed"
)

// Request is one inbound routing request.
type Request struct {
	Input       string
	InputType   string
	SessionID   string
	UserID      string
	Context     string // guidance context already selected and folded into the prompt
	ForceModel  string
	ForceTier   int
}

// Response is the caller-facing result of a route call.
type Response struct {
	Output string
	MRP    mrp.MRP
	Phase  Phase
}

// Router wires the Model Registry, provider Executor, and classifier/
// validator models together to answer Route calls.
type Router struct {
	Models          *models.Registry
	Executor        *providers.Executor
	ClassifierModel string
	JudgeModel      string
	RouterConfig    config.RouterConfig
}

// New constructs a Router. classifierModel and judgeModel are both expected
// to be tier-1 models per the design notes in spec §4.2/§4.5.
func New(m *models.Registry, exec *providers.Executor, classifierModel, judgeModel string, cfg config.RouterConfig) *Router {
	return &Router{Models: m, Executor: exec, ClassifierModel: classifierModel, JudgeModel: judgeModel, RouterConfig: cfg}
}

// Route executes the full state machine for one request.
func (rt *Router) Route(ctx context.Context, requestID string, req Request) (Response, error) {
	if req.ForceModel != "" {
		return rt.routeForcedModel(ctx, requestID, req)
	}

	classStart := time.Now()
	classification, err := classify.Classify(ctx, rt.Executor, req.Input, classify.Config{
		ClassifierModelID:       rt.ClassifierModel,
		ClassificationTimeoutMs: rt.RouterConfig.ClassificationTimeoutMs,
	})
	if err != nil {
		return Response{Phase: PhaseFailed}, err
	}
	classificationMs := time.Since(classStart).Milliseconds()

	if req.ForceTier > 0 {
		classification.ComplexityTier = req.ForceTier
	}

	routeStart := time.Now()
	decision, err := tierselect.Select(rt.Models, classification, tierselect.Config{
		EscalationThreshold: rt.RouterConfig.EscalationThreshold,
	})
	if err != nil {
		return Response{Phase: PhaseFailed}, errs.Wrap(errs.RoutingFailed, "tier selection failed", err)
	}

	builder := mrp.New(rt.Models, requestID, req.Input, decision.SelectedModelID)
	builder.WithClassification(classification, classificationMs)
	builder.WithRoutingLatency(time.Since(routeStart).Milliseconds())

	output, verdict, finalErr := rt.executeValidateEscalateLoop(ctx, req, &decision, classification, builder)
	if finalErr != nil {
		return Response{Phase: PhaseFailed}, finalErr
	}

	complete := verdict.Valid
	if !rt.RouterConfig.EnableValidation {
		complete = true
	}
	builder.WithCompleteness(complete)

	sealed := builder.Build()
	return Response{Output: output, MRP: sealed, Phase: PhaseComplete}, nil
}

func (rt *Router) executeValidateEscalateLoop(ctx context.Context, req Request, decision *tierselect.Decision, classification classify.Result, builder *mrp.Builder) (string, validate.Result, error) {
	timeout := time.Duration(rt.RouterConfig.RoutingTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Second
	}

	var output string
	var verdict validate.Result
	attempt := 0

	for {
		execStart := time.Now()
		result, err := rt.Executor.Execute(ctx, providers.CompletionRequest{
			ModelID: decision.SelectedModelID,
			Prompt:  buildPrompt(req),
		}, timeout)
		if err != nil {
			return "", validate.Result{}, err
		}
		builder.RecordExecution(decision.SelectedModelID, result.InputTokens, result.OutputTokens, time.Since(execStart).Milliseconds())
		output = result.Content

		if rt.RouterConfig.EnableValidation && !validate.ShouldSkipValidation(classification.ConfidenceScore, validate.Config{HighConfidenceThreshold: rt.RouterConfig.HighConfidenceThreshold}) {
			valStart := time.Now()
			verdict = validate.Validate(ctx, rt.Executor, req.Input, output, validate.Config{
				JudgeModelID:        rt.JudgeModel,
				ValidationTimeoutMs: rt.RouterConfig.ValidationTimeoutMs,
			})
			builder.WithValidation(verdict, time.Since(valStart).Milliseconds())
		} else {
			verdict = validate.QuickValidate(req.Input, output, rt.JudgeModel)
			builder.WithValidation(verdict, 0)
		}

		if !validate.NeedsEscalation(verdict) {
			return output, verdict, nil
		}

		outcome := escalate.HandleEscalation(rt.Models, *decision, verdict, escalate.Config{MaxEscalations: rt.RouterConfig.MaxEscalations}, attempt)
		if !outcome.ShouldEscalate {
			return output, verdict, nil
		}

		builder.RecordEscalation(outcome.NewDecision.EscalatedFrom, outcome.NewDecision.SelectedModelID, outcome.Reason)
		*decision = *outcome.NewDecision
		attempt++
	}
}

func (rt *Router) routeForcedModel(ctx context.Context, requestID string, req Request) (Response, error) {
	builder := mrp.New(rt.Models, requestID, req.Input, req.ForceModel)
	timeout := time.Duration(rt.RouterConfig.RoutingTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Second
	}

	start := time.Now()
	result, err := rt.Executor.Execute(ctx, providers.CompletionRequest{ModelID: req.ForceModel, Prompt: buildPrompt(req)}, timeout)
	if err != nil {
		return Response{Phase: PhaseFailed}, err
	}
	builder.RecordExecution(req.ForceModel, result.InputTokens, result.OutputTokens, time.Since(start).Milliseconds())
	builder.WithCompleteness(true)
	builder.WithJustification("forceModel bypass: executed once with no classification or validation")

	return Response{Output: result.Content, MRP: builder.Build(), Phase: PhaseComplete}, nil
}

func buildPrompt(req Request) string {
	if req.Context == "" {
		return req.Input
	}
	return req.Context + "\n\n" + req.Input
}
