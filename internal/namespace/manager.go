package namespace

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/mermaidai/drive/internal/config"
	"github.com/mermaidai/drive/internal/storage"
)

// EntryType tags a listing entry
type EntryType string

const (
	EntryFolder EntryType = "folder"
	EntryFile   EntryType = "file"
)

// Entry is a query-time view of either a folder (a shared key prefix) or a
// file (a key). Folders are never stored as records of their own.
type Entry struct {
	Type EntryType
	// Path is the full key for files and the prefix without its trailing
	// separator for folders
	Path         string
	Name         string
	LastModified time.Time
	Size         int64
}

// Listing is the immediate content of one level
type Listing struct {
	Prefix  string
	Folders []Entry
	Files   []Entry
}

// Entries returns folders first, then files
func (l *Listing) Entries() []Entry {
	out := make([]Entry, 0, len(l.Folders)+len(l.Files))
	out = append(out, l.Folders...)
	return append(out, l.Files...)
}

// UploadInput describes a file to store under a folder
type UploadInput struct {
	Prefix      string
	Filename    string
	Body        io.Reader
	Size        int64
	ContentType string
}

// UploadResult identifies a stored upload
type UploadResult struct {
	Key string
	URL string
}

// Manager exposes the virtual folder operations over a flat object store
type Manager interface {
	// List returns the folders and allowed files directly under prefix
	List(ctx context.Context, bucket, prefix string) (*Listing, error)
	// Search returns allowed files at any depth under the raw path
	Search(ctx context.Context, bucket, path string) ([]Entry, error)

	CreateFolder(ctx context.Context, bucket, folder string) (string, error)
	DeleteFolder(ctx context.Context, bucket, folder string) (*Manifest, error)
	MoveFolder(ctx context.Context, bucket, source, destination string) (*Manifest, error)

	MoveFile(ctx context.Context, bucket, source, destination string) error
	Upload(ctx context.Context, bucket string, in UploadInput) (*UploadResult, error)
}

type manager struct {
	client      storage.Client
	extensions  extensionSet
	marker      string
	concurrency int
	overwrite   bool
}

// NewManager creates a namespace manager over client
func NewManager(client storage.Client, cfg config.NamespaceConfig) Manager {
	concurrency := cfg.MoveConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	marker := cfg.MarkerName
	if marker == "" {
		marker = ".keep"
	}

	return &manager{
		client:      client,
		extensions:  newExtensionSet(cfg.AllowedExtensions),
		marker:      marker,
		concurrency: concurrency,
		overwrite:   cfg.OverwritePolicy == config.OverwriteAllow,
	}
}

func requireBucket(bucket string) error {
	if bucket == "" {
		return invalidArgument("bucket is required")
	}
	return nil
}

// collectKeys lists every key under prefix. Keys that do not literally start
// with prefix are dropped in case the store matches loosely.
func (m *manager) collectKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	err := m.client.ListObjects(ctx, bucket, prefix, true, func(obj storage.ObjectInfo) error {
		if obj.IsPrefix || !strings.HasPrefix(obj.Key, prefix) {
			return nil
		}
		keys = append(keys, obj.Key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
