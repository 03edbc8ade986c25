package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/osqr-dev/osqr/internal/errs"
	"github.com/osqr-dev/osqr/internal/events"
	"github.com/osqr-dev/osqr/internal/routeapi"
	"github.com/osqr-dev/osqr/internal/stats"
)

// RouteRequest is the wire shape of POST /v1/route.
type RouteRequest struct {
	Input      string `json:"input"`
	InputType  string `json:"input_type,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Context    string `json:"context,omitempty"`
	ForceModel string `json:"force_model,omitempty"`
	ForceTier  int    `json:"force_tier,omitempty"`
}

var kindToStatus = map[errs.Kind]int{
	errs.ClassificationFailed: http.StatusBadGateway,
	errs.RoutingFailed:        http.StatusUnprocessableEntity,
	errs.ModelUnavailable:     http.StatusServiceUnavailable,
	errs.Timeout:              http.StatusGatewayTimeout,
	errs.ValidationFailed:     http.StatusUnprocessableEntity,
	errs.ProviderError:        http.StatusBadGateway,
	errs.InvalidRequest:       http.StatusBadRequest,
}

// RouteHandler answers POST /v1/route: classify, select a tier, execute,
// validate, escalate as needed, and return the sealed MRP alongside the
// model's output.
func RouteHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RouteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Input == "" {
			writeError(w, http.StatusBadRequest, "input is required")
			return
		}

		requestID := middleware.GetReqID(r.Context())
		start := time.Now()

		resp, err := d.Router.Route(r.Context(), requestID, routeapi.Request{
			Input:      req.Input,
			InputType:  req.InputType,
			SessionID:  req.SessionID,
			UserID:     req.UserID,
			Context:    req.Context,
			ForceModel: req.ForceModel,
			ForceTier:  req.ForceTier,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if kind, ok := errs.KindOf(err); ok {
				if s, known := kindToStatus[kind]; known {
					status = s
				}
				if d.EventBus != nil {
					d.EventBus.Publish(events.Event{
						Type:       events.EventRouteError,
						Timestamp:  time.Now(),
						ErrorClass: string(kind),
						ErrorMsg:   err.Error(),
						RequestID:  requestID,
					})
				}
			}
			writeError(w, status, err.Error())
			return
		}

		if d.Stats != nil {
			d.Stats.Record(stats.Snapshot{
				Timestamp:    time.Now(),
				ModelID:      resp.MRP.ActualModelUsed,
				LatencyMs:    float64(resp.MRP.TotalLatencyMs),
				CostUSD:      resp.MRP.EstimatedCostUSD,
				Success:      true,
				InputTokens:  resp.MRP.InputTokens,
				OutputTokens: resp.MRP.OutputTokens,
			})
		}
		if d.EventBus != nil {
			for _, esc := range resp.MRP.Escalations {
				d.EventBus.Publish(events.Event{
					Type:      events.EventEscalation,
					Timestamp: time.Now(),
					ModelID:   esc.ToModelID,
					Reason:    esc.Reason,
					RequestID: requestID,
				})
			}
			d.EventBus.Publish(events.Event{
				Type:      events.EventRouteSuccess,
				Timestamp: time.Now(),
				ModelID:   resp.MRP.ActualModelUsed,
				Tier:      resp.MRP.Classification.ComplexityTier,
				LatencyMs: float64(time.Since(start).Milliseconds()),
				CostUSD:   resp.MRP.EstimatedCostUSD,
				RequestID: requestID,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
