package server

import (
	"net/http"

	"annotify/internal/gateway/handler"
	"annotify/internal/gateway/middleware"
)

func NewMux(batchHandler *handler.BatchHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/batches", batchHandler.HandleCreate)
	mux.HandleFunc("GET /v1/batches", batchHandler.HandleList)
	mux.HandleFunc("POST /v1/batches/{id}/input", batchHandler.HandleSubmit)
	mux.HandleFunc("GET /v1/batches/{id}", batchHandler.HandleSnapshot)
	mux.HandleFunc("GET /v1/batches/{id}/results", batchHandler.HandleResults)
	mux.HandleFunc("GET /ws/batches", batchHandler.HandleWatchWS)
	mux.HandleFunc("/healthz", handler.HandleHealthz)

	return middleware.CORS(mux)
}
