package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mermaidai/drive/internal/metrics"
	"github.com/mermaidai/drive/internal/namespace"
	"github.com/mermaidai/drive/internal/presigned"
)

// Pinger reports whether the object store is reachable
type Pinger interface {
	Ping(ctx context.Context, bucket string) error
}

// Handler serves the folder and file API
type Handler struct {
	namespace      namespace.Manager
	issuer         presigned.Issuer
	store          Pinger
	metricsManager metrics.Manager
	defaultBucket  string
	maxUploadBytes int64
	startTime      time.Time
}

// NewHandler creates a new API handler. defaultBucket is used when a request
// does not name one.
func NewHandler(
	namespaceManager namespace.Manager,
	issuer presigned.Issuer,
	store Pinger,
	metricsManager metrics.Manager,
	defaultBucket string,
	maxUploadBytes int64,
) *Handler {
	return &Handler{
		namespace:      namespaceManager,
		issuer:         issuer,
		store:          store,
		metricsManager: metricsManager,
		defaultBucket:  defaultBucket,
		maxUploadBytes: maxUploadBytes,
		startTime:      time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Health check endpoints
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/ready", h.handleReady).Methods("GET")

	// Listing
	router.HandleFunc("/files", h.handleList).Methods("GET")
	router.HandleFunc("/search", h.handleSearch).Methods("GET")

	// Folder operations
	router.HandleFunc("/folders", h.handleCreateFolder).Methods("POST")
	router.HandleFunc("/folders", h.handleDeleteFolder).Methods("DELETE")
	router.HandleFunc("/folders/move", h.handleMoveFolder).Methods("POST")

	// File operations
	router.HandleFunc("/files", h.handleUpload).Methods("POST")
	router.HandleFunc("/files/move", h.handleMoveFile).Methods("POST")
	router.HandleFunc("/files/url", h.handlePresign).Methods("GET")
}

// Health check handlers
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "drive",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx, h.defaultBucket); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	if !h.metricsManager.IsHealthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "metrics collector is not running",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"service": "drive",
	})
}
