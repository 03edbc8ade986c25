package httpapi

import "net/http"

// HealthzHandler answers GET /healthz: the process is healthy as long as
// the Model Registry has at least one enabled model.
func HealthzHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelCount := 0
		for _, m := range d.Models.List() {
			if m.Enabled {
				modelCount++
			}
		}
		if modelCount == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"models": modelCount,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"models": modelCount,
		})
	}
}
