package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/semforge/semforge/internal/analyst"
	"github.com/semforge/semforge/internal/generator"
	"github.com/semforge/semforge/internal/semantic"
)

type generateModelRequest struct {
	FactNames        []string `json:"fact_names"`
	DictionaryQuery  string   `json:"dictionary_query"`
	DictionaryObject string   `json:"dictionary_object"`
	Upload           bool     `json:"upload"`
	FilenameBase     string   `json:"filename_base"`
}

type generateModelResponse struct {
	Model         string   `json:"model"`
	FactsSelected int      `json:"facts_selected"`
	FactsMissing  []string `json:"facts_missing,omitempty"`
	Uploaded      bool     `json:"uploaded"`
	ObjectKey     string   `json:"object_key,omitempty"`
	SizeBytes     int      `json:"size_bytes"`
}

func handleGenerateModel(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATOR_NOT_CONFIGURED", "model generator is not configured", false, nil)
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

	var request generateModelRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid model generation request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Generator.Generate(r.Context(), generator.GenerateInput{
		Workspace:           workspace,
		FactNames:           request.FactNames,
		DictionaryQuery:     request.DictionaryQuery,
		DictionaryObjectKey: request.DictionaryObject,
		Upload:              request.Upload,
		FilenameBase:        request.FilenameBase,
	})
	if err != nil {
		writeGenerateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, generateModelResponse{
		Model:         string(result.YAML),
		FactsSelected: result.Selected,
		FactsMissing:  result.Missing,
		Uploaded:      result.Uploaded,
		ObjectKey:     result.ObjectKey,
		SizeBytes:     len(result.YAML),
	})
}

type analystMessageRequest struct {
	Question         string   `json:"question"`
	FactNames        []string `json:"fact_names"`
	DictionaryQuery  string   `json:"dictionary_query"`
	DictionaryObject string   `json:"dictionary_object"`
}

type analystMessageResponse struct {
	Content       []analyst.ContentItem `json:"content"`
	SQL           string                `json:"sql,omitempty"`
	Warnings      []analyst.Warning     `json:"warnings,omitempty"`
	RequestID     string                `json:"request_id,omitempty"`
	FactsSelected int                   `json:"facts_selected"`
	FactsMissing  []string              `json:"facts_missing,omitempty"`
}

func handleAnalystMessage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATOR_NOT_CONFIGURED", "model generator is not configured", false, nil)
		return
	}

	workspace, err := workspaceFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "WORKSPACE_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "analyst_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request analystMessageRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid analyst request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	result, err := deps.Generator.Ask(r.Context(), generator.AskInput{
		Question: request.Question,
		Generate: generator.GenerateInput{
			Workspace:           workspace,
			FactNames:           request.FactNames,
			DictionaryQuery:     request.DictionaryQuery,
			DictionaryObjectKey: request.DictionaryObject,
		},
	})
	if err != nil {
		if errors.Is(err, generator.ErrAnalystDisabled) {
			writeError(r.Context(), w, http.StatusNotImplemented, "ANALYST_DISABLED", "analyst integration is not configured", false, nil)
			return
		}
		writeGenerateError(w, r, err)
		return
	}

	response := analystMessageResponse{
		Content:       result.Response.Message.Content,
		Warnings:      result.Response.Warnings,
		RequestID:     result.Response.RequestID,
		FactsSelected: result.Generate.Selected,
		FactsMissing:  result.Generate.Missing,
	}
	if sql, ok := result.Response.FirstSQL(); ok {
		response.SQL = sql
	}
	writeJSON(w, http.StatusOK, response)
}

func writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, generator.ErrNoFactNames):
		writeError(r.Context(), w, http.StatusBadRequest, "FACT_NAMES_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, semantic.ErrModelTooLarge):
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "MODEL_TOO_LARGE", err.Error(), false, nil)
	case errors.Is(err, generator.ErrUploadUnavailable):
		writeError(r.Context(), w, http.StatusNotImplemented, "UPLOAD_NOT_CONFIGURED", err.Error(), false, nil)
	case errors.Is(err, generator.ErrWarehouseUnavailable):
		writeError(r.Context(), w, http.StatusNotImplemented, "WAREHOUSE_NOT_CONFIGURED", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "GENERATION_FAILED", err.Error(), true, nil)
	}
}
