package handlers

import (
	"github.com/gorilla/mux"
)

// NewRouter registers every API route on a new router.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health and version (no auth)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Batches
	api.HandleFunc("/batches", h.SubmitBatch).Methods("POST")
	api.HandleFunc("/batches", h.ListBatches).Methods("GET")
	api.HandleFunc("/batches/{id}", h.GetBatch).Methods("GET")
	api.HandleFunc("/batches/{id}/items/{index:[0-9]+}/content", h.GetItemContent).Methods("GET", "HEAD")

	// Provider
	api.HandleFunc("/provider/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/provider/media", h.ListMedia).Methods("GET")
	api.HandleFunc("/provider/grants", h.ListGrants).Methods("GET")
	api.HandleFunc("/provider/grants", h.AddGrant).Methods("POST")
	api.HandleFunc("/provider/grants", h.RevokeGrant).Methods("DELETE")

	return r
}
