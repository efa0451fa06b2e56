package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"annotify/internal/engine"
	batchsvc "annotify/internal/gateway/service/batch"
)

// BatchHandler serves the batch annotation endpoints.
type BatchHandler struct {
	svc *batchsvc.Service
}

func NewBatchHandler(svc *batchsvc.Service) *BatchHandler {
	return &BatchHandler{svc: svc}
}

type artifactInput struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

func (in artifactInput) toArtifact() (*engine.Artifact, error) {
	name := strings.TrimSpace(in.Name)
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = name
	}
	if id == "" {
		return nil, errors.New("artifact id or name is required")
	}
	if name == "" {
		name = id
	}
	if len(in.Fields) == 0 {
		return nil, errors.New("artifact fields are required")
	}
	fields := make(map[string]string, len(in.Fields))
	for k, v := range in.Fields {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New("artifact field names must be non-empty")
		}
		fields[k] = strings.TrimSpace(v)
	}
	return &engine.Artifact{ID: id, Name: name, Fields: fields}, nil
}

// HandleCreate starts a new batch: POST /v1/batches.
func (h *BatchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Artifacts []artifactInput `json:"artifacts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid json body")
		return
	}
	artifacts := make([]*engine.Artifact, 0, len(in.Artifacts))
	for _, a := range in.Artifacts {
		artifact, err := a.toArtifact()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_artifact", err.Error())
			return
		}
		artifacts = append(artifacts, artifact)
	}

	view, err := h.svc.CreateBatch(r.Context(), artifacts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleList returns live and recently archived batches: GET /v1/batches.
func (h *BatchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	batches, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// HandleSubmit applies a user reply: POST /v1/batches/{id}/input.
func (h *BatchHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	var in struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid json body")
		return
	}

	view, err := h.svc.Submit(r.Context(), batchID, in.Reply)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSnapshot reports batch position and prompt: GET /v1/batches/{id}.
func (h *BatchHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Snapshot(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleResults returns annotations and failures: GET /v1/batches/{id}/results.
func (h *BatchHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
