package httpapi

import "net/http"

// ModelsListHandler answers GET /v1/models with the Model Registry's
// current snapshot.
func ModelsListHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Models.List())
	}
}
