package api

import "net/http"

func handleRetentionRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Retention == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RETENTION_NOT_CONFIGURED", "retention runner is not configured", false, nil)
		return
	}

	workspace, err := workspaceFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "WORKSPACE_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "model_writer"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	summary, err := deps.Retention.RunRetentionOnce(r.Context(), workspace)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "RETENTION_FAILED", err.Error(), true, map[string]any{"summary": summary})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
