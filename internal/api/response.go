package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mermaidai/drive/internal/middleware"
	"github.com/mermaidai/drive/internal/namespace"
	"github.com/mermaidai/drive/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	kindNotFound        = "NotFound"
	kindPayloadTooLarge = "PayloadTooLarge"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// writeError maps err onto a status code and the error body
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.RequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"kind":       kind,
		}).Error("Request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, kindPayloadTooLarge
	case errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound, kindNotFound
	}

	kind := namespace.KindOf(err)
	switch kind {
	case namespace.KindInvalidArgument, namespace.KindInvalidOperation:
		return http.StatusBadRequest, kind
	case namespace.KindDestinationExists:
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

// manifestStatus is the HTTP status for a bulk operation outcome
func manifestStatus(m *namespace.Manifest) int {
	switch m.Status() {
	case namespace.StatusPartial:
		return http.StatusMultiStatus
	case namespace.StatusFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
