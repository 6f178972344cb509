package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mermaidai/drive/internal/config"
	"github.com/mermaidai/drive/internal/namespace"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files
const multipartMemory = 32 << 20

// maxExpiresSeconds rejects expiry values no configuration could allow
var maxExpiresSeconds = int64(config.MaxPresignTTL / time.Second)

// ListItem is one row of a folder listing
type ListItem struct {
	Name         string     `json:"name"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Type         string     `json:"type"`
}

// SearchItem is one file found by search
type SearchItem struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"lastModified"`
}

// observe records the outcome of one namespace operation
func (h *Handler) observe(op string, start time.Time, err error, manifest *namespace.Manifest) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = namespace.KindOf(err)
	case manifest != nil:
		outcome = string(manifest.Status())
		h.metricsManager.RecordKeys(op, "succeeded", len(manifest.Succeeded))
		h.metricsManager.RecordKeys(op, "failed", len(manifest.Failed))
	}
	h.metricsManager.RecordNamespaceOperation(op, outcome, time.Since(start))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	listing, err := h.namespace.List(r.Context(), h.bucketFor(r, ""), r.URL.Query().Get("path"))
	h.observe("list", start, err, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]ListItem, 0, len(listing.Folders)+len(listing.Files))
	for _, e := range listing.Entries() {
		item := ListItem{Name: e.Path, Type: string(e.Type)}
		if e.Type == namespace.EntryFile {
			modified := e.LastModified
			item.LastModified = &modified
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	results, err := h.namespace.Search(r.Context(), h.bucketFor(r, ""), r.URL.Query().Get("path"))
	h.observe("search", start, err, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]SearchItem, 0, len(results))
	for _, e := range results {
		items = append(items, SearchItem{Name: e.Path, LastModified: e.LastModified})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	key, err := h.namespace.CreateFolder(r.Context(), h.bucketFor(r, req.Bucket), req.FolderPrefix)
	h.observe("create_folder", start, err, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Folder created successfully.",
		"key":     key,
	})
}

func (h *Handler) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	// some clients cannot send a DELETE body
	req := FolderRequest{FolderPrefix: r.URL.Query().Get("folderPrefix")}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	manifest, err := h.namespace.DeleteFolder(r.Context(), h.bucketFor(r, req.Bucket), req.FolderPrefix)
	h.observe("delete_folder", start, err, manifest)
	if err != nil {
		writeError(w, r, err)
		return
	}

	messages := map[namespace.Status]string{
		namespace.StatusComplete: "Folder deleted successfully.",
		namespace.StatusEmpty:    "No files found in folder.",
		namespace.StatusPartial:  "Folder partially deleted.",
		namespace.StatusFailed:   "Failed to delete folder.",
	}
	body := map[string]interface{}{
		"message": messages[manifest.Status()],
		"status":  manifest.Status(),
		"count":   len(manifest.Succeeded),
		"deleted": manifest.Succeeded,
	}
	if len(manifest.Failed) > 0 {
		body["failed"] = manifest.Failed
	}
	writeJSON(w, manifestStatus(manifest), body)
}

func (h *Handler) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	manifest, err := h.namespace.MoveFolder(r.Context(), h.bucketFor(r, req.Bucket), req.Source, req.Destination)
	h.observe("move_folder", start, err, manifest)
	if err != nil {
		writeError(w, r, err)
		return
	}

	messages := map[namespace.Status]string{
		namespace.StatusComplete: "Folder moved successfully.",
		namespace.StatusEmpty:    "No files found in source folder.",
		namespace.StatusPartial:  "Folder partially moved.",
		namespace.StatusFailed:   "Failed to move folder.",
	}
	body := map[string]interface{}{
		"message": messages[manifest.Status()],
		"status":  manifest.Status(),
		"moved":   manifest.Succeeded,
	}
	if manifest.Warning != "" {
		body["warning"] = manifest.Warning
	}
	if len(manifest.Failed) > 0 {
		body["failed"] = manifest.Failed
	}
	writeJSON(w, manifestStatus(manifest), body)
}

func (h *Handler) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	err := h.namespace.MoveFile(r.Context(), h.bucketFor(r, req.Bucket), req.Source, req.Destination)
	h.observe("move_file", start, err, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "File moved successfully."})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: malformed multipart form: %v", namespace.ErrInvalidArgument, err)
		}
		writeError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: file is required", namespace.ErrInvalidArgument))
		return
	}
	defer file.Close()

	prefix := r.FormValue("prefix")
	if prefix == "" {
		prefix = r.FormValue("ruta_prefix")
	}

	start := time.Now()
	result, err := h.namespace.Upload(r.Context(), h.bucketFor(r, r.FormValue("bucket")), namespace.UploadInput{
		Prefix:      prefix,
		Filename:    header.Filename,
		Body:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	h.observe("upload", start, err, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "File uploaded successfully.",
		"fileUrl": result.URL,
		"key":     result.Key,
	})
}

func (h *Handler) handlePresign(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var ttl time.Duration
	if raw := q.Get("expires"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 || seconds > maxExpiresSeconds {
			writeError(w, r, fmt.Errorf("%w: expires must be between 1 and %d seconds", namespace.ErrInvalidArgument, maxExpiresSeconds))
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	start := time.Now()
	grant, err := h.issuer.Issue(r.Context(), h.bucketFor(r, ""), q.Get("file"), ttl)
	h.observe("presign", start, err, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":       grant.URL,
		"expiresAt": grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
