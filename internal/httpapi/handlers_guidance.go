package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/osqr-dev/osqr/internal/guidance"
)

// addItemRequest is the wire shape of POST /v1/guidance/{project}/items.
type addItemRequest struct {
	Rule               string `json:"rule"`
	Priority           int    `json:"priority"`
	Source             string `json:"source"`
	OriginalCorrection string `json:"original_correction,omitempty"`
	SessionID          string `json:"session_id,omitempty"`
}

// GuidanceAddItemHandler answers POST /v1/guidance/{project}/items.
func GuidanceAddItemHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "project")

		var req addItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Rule == "" {
			writeError(w, http.StatusBadRequest, "rule is required")
			return
		}
		if req.Source == "" {
			req.Source = "user_defined"
		}

		item, err := d.Guidance.AddItem(r.Context(), project, guidance.AddItemInput{
			Rule:               req.Rule,
			Priority:           req.Priority,
			Source:             req.Source,
			OriginalCorrection: req.OriginalCorrection,
			SessionID:          req.SessionID,
		})
		if err != nil {
			if errors.Is(err, guidance.ErrHardLimitReached) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, item)
	}
}

// updateItemRequest is the wire shape of PATCH /v1/guidance/{project}/items/{id}.
type updateItemRequest struct {
	Rule     *string `json:"rule,omitempty"`
	Priority *int    `json:"priority,omitempty"`
}

// GuidanceUpdateItemHandler answers PATCH /v1/guidance/{project}/items/{id}.
func GuidanceUpdateItemHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "project")
		itemID := chi.URLParam(r, "id")

		var req updateItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}

		item, err := d.Guidance.UpdateItem(r.Context(), project, itemID, guidance.UpdateItemInput{
			Rule:     req.Rule,
			Priority: req.Priority,
		})
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, item)
	}
}

// GuidanceRemoveItemHandler answers DELETE /v1/guidance/{project}/items/{id}.
func GuidanceRemoveItemHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "project")
		itemID := chi.URLParam(r, "id")

		vcr, err := d.Guidance.RemoveItem(r.Context(), project, itemID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, vcr)
	}
}

// rollbackRequest is the wire shape of POST /v1/guidance/{project}/rollback.
type rollbackRequest struct {
	TargetVersion int `json:"target_version"`
}

// GuidanceRollbackHandler answers POST /v1/guidance/{project}/rollback.
func GuidanceRollbackHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "project")

		var req rollbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}

		pg, err := d.Guidance.Rollback(r.Context(), project, req.TargetVersion)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, pg)
	}
}

// GuidanceContextHandler answers GET /v1/guidance/{project}/context?task=...&budget=...
// by selecting the highest-scoring mentor-script items that fit within the
// configured context budget for the given task description.
func GuidanceContextHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "project")
		task := r.URL.Query().Get("task")

		budget := 4000
		if raw := r.URL.Query().Get("budget"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				budget = parsed
			}
		}

		pg, err := d.Guidance.Get(r.Context(), project)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		result := guidance.SelectItems(pg.MentorScripts, task, budget, d.GuidanceCfg)
		writeJSON(w, http.StatusOK, result)
	}
}

// inferRequest is the wire shape of POST /v1/guidance/{project}/infer.
type inferRequest struct {
	UserMessage      string   `json:"user_message"`
	PrevAssistantMsg string   `json:"prev_assistant_message,omitempty"`
	History          []string `json:"history,omitempty"`
	SessionID        string   `json:"session_id,omitempty"`
}

// GuidanceInferHandler answers POST /v1/guidance/{project}/infer: it runs the
// Inference Pipeline over a user message and returns the proposal (if any)
// without persisting it — callers accept the proposal via the items endpoint.
func GuidanceInferHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.UserMessage == "" {
			writeError(w, http.StatusBadRequest, "user_message is required")
			return
		}

		result := guidance.Analyze(req.UserMessage, req.PrevAssistantMsg, req.History, req.SessionID, d.GuidanceCfg)
		writeJSON(w, http.StatusOK, result)
	}
}

// GuidanceMergedHandler answers GET /v1/guidance/{project}/merged with the
// project's user mentor-script rules merged under the Arbitrator's fixed
// section headers. This deployment has no separate constitutional, plugin,
// or session-briefing guidance sources, so those sections are empty.
func GuidanceMergedHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := chi.URLParam(r, "project")

		pg, err := d.Guidance.Get(r.Context(), project)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		user := make([]string, 0, len(pg.MentorScripts))
		for _, item := range pg.MentorScripts {
			user = append(user, item.Rule)
		}

		merged := guidance.Merge(nil, user, nil, nil)
		writeJSON(w, http.StatusOK, map[string]string{"merged": merged})
	}
}
