package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mermaidai/drive/internal/namespace"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// FolderRequest names a folder to create or delete
type FolderRequest struct {
	FolderPrefix string `json:"folderPrefix"`
	Bucket       string `json:"bucket,omitempty"`
}

func (r *FolderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FolderPrefix, validation.Required),
	)
}

// MoveRequest moves a folder or a file
type MoveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Bucket      string `json:"bucket,omitempty"`
}

func (r *MoveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Required),
		validation.Field(&r.Destination, validation.Required),
	)
}

// decodeJSON reads a request body into v and validates it. An empty body
// decodes to the zero value so the validation message names the missing
// fields.
func decodeJSON(r *http.Request, v validation.Validatable) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("%w: malformed JSON body: %v", namespace.ErrInvalidArgument, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", namespace.ErrInvalidArgument, err)
	}
	return nil
}

// bucketFor picks the bucket named by the request, falling back to the
// configured default
func (h *Handler) bucketFor(r *http.Request, fromBody string) string {
	q := r.URL.Query()
	for _, candidate := range []string{fromBody, q.Get("bucket"), q.Get("bucketname")} {
		if candidate != "" {
			return candidate
		}
	}
	return h.defaultBucket
}
