package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Loads
	mux.Handle("GET /api/v1/loads", chain(http.HandlerFunc(h.ListLoads)))
	mux.Handle("POST /api/v1/loads", chain(http.HandlerFunc(h.CreateLoad)))
	mux.Handle("GET /api/v1/loads/{id}", chain(http.HandlerFunc(h.GetLoad)))
	mux.Handle("GET /api/v1/loads/{id}/result", chain(http.HandlerFunc(h.GetLoadResult)))
	mux.Handle("POST /api/v1/loads/{id}/retry", chain(http.HandlerFunc(h.RetryLoad)))

	// Connections
	mux.Handle("GET /api/v1/connections", chain(http.HandlerFunc(h.ListConnections)))
	mux.Handle("GET /api/v1/connections/{id}", chain(http.HandlerFunc(h.GetConnection)))
	mux.Handle("PUT /api/v1/connections/{id}", chain(http.HandlerFunc(h.PutConnection)))
	mux.Handle("DELETE /api/v1/connections/{id}", chain(http.HandlerFunc(h.DeleteConnection)))
}
