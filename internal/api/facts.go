package api

import "net/http"

type listFactsResponse struct {
	Facts []string `json:"facts"`
	Count int      `json:"count"`
}

func handleListFacts(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATOR_NOT_CONFIGURED", "model generator is not configured", false, nil)
		return
	}
	if err := requireRole(r, "model_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	names := deps.Generator.FactNames()
	writeJSON(w, http.StatusOK, listFactsResponse{Facts: names, Count: len(names)})
}
