package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"annotify/internal/engine"
	batchsvc "annotify/internal/gateway/service/batch"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// writeEngineError maps conversation-engine error kinds onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var ee *engine.Error
	if !errors.As(err, &ee) {
		if errors.Is(err, batchsvc.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, string(ee.Kind()), err.Error())
	case engine.IsEmptyReply(err), engine.IsEmptyBatch(err), engine.IsTooManyArtifacts(err), engine.IsDuplicateSession(err):
		writeError(w, http.StatusBadRequest, string(ee.Kind()), err.Error())
	case engine.IsInvalidState(err), engine.IsBatchBusy(err):
		writeError(w, http.StatusConflict, string(ee.Kind()), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, string(ee.Kind()), err.Error())
	}
}

func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
