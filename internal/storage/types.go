package storage

import (
	"errors"
	"time"

	"github.com/mermaidai/drive/internal/config"
)

// Config alias for object store configuration
type Config = config.StoreConfig

// Common storage errors
var (
	ErrObjectNotFound = NewError("ObjectNotFound", "The specified object does not exist")
	ErrBucketNotFound = NewError("BucketNotFound", "The specified bucket does not exist")
	ErrInvalidPath    = NewError("InvalidPath", "The specified key is invalid")
)

// StorageError represents a storage-specific error
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is matches any StorageError with the same code, so wrapped copies of the
// sentinels above compare equal to them
func (e *StorageError) Is(target error) bool {
	var se *StorageError
	if !errors.As(target, &se) {
		return false
	}
	return se.Code == e.Code
}

// NewError creates a new storage error
func NewError(code, message string) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new storage error with underlying cause
func NewErrorWithCause(code, message string, cause error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ObjectInfo is one entry of a listing
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
	ETag         string

	// IsPrefix marks a common prefix returned by a non-recursive listing
	IsPrefix bool
}

// DeleteError reports a key the store refused to delete during a bulk delete
type DeleteError struct {
	Key     string
	Code    string
	Message string
}

// MaxDeleteBatch is the most keys a single S3 DeleteObjects request accepts
const MaxDeleteBatch = 1000

// batchKeys splits keys into consecutive slices of at most size elements
func batchKeys(keys []string, size int) [][]string {
	var batches [][]string
	for len(keys) > size {
		batches = append(batches, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		batches = append(batches, keys)
	}
	return batches
}
