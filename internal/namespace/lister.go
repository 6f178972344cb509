package namespace

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/mermaidai/drive/internal/storage"
	"github.com/sirupsen/logrus"
)

// List partitions the keys under prefix into immediate child folders and
// immediate child files. Folder names are deduplicated and sorted; files keep
// the store's listing order and are filtered by extension.
func (m *manager) List(ctx context.Context, bucket, prefix string) (*Listing, error) {
	if err := requireBucket(bucket); err != nil {
		return nil, err
	}
	prefix = NormalizePrefix(prefix)

	folders := make(map[string]struct{})
	files := []Entry{}

	err := m.client.ListObjects(ctx, bucket, prefix, true, func(obj storage.ObjectInfo) error {
		if obj.IsPrefix || !strings.HasPrefix(obj.Key, prefix) {
			return nil
		}

		rest := obj.Key[len(prefix):]
		if i := strings.Index(rest, Separator); i >= 0 {
			// An empty first segment ("a//b") names no folder
			if i > 0 {
				folders[rest[:i]] = struct{}{}
			}
			return nil
		}

		if rest == "" || !m.extensions.allows(rest) {
			return nil
		}
		files = append(files, Entry{
			Type:         EntryFile,
			Path:         obj.Key,
			Name:         rest,
			LastModified: obj.LastModified,
			Size:         obj.Size,
		})
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"prefix": prefix,
		}).Error("Failed to list folder")
		return nil, storeError("list", err)
	}

	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)

	listing := &Listing{
		Prefix:  prefix,
		Folders: make([]Entry, 0, len(names)),
		Files:   files,
	}
	for _, name := range names {
		listing.Folders = append(listing.Folders, Entry{
			Type: EntryFolder,
			Path: prefix + name,
			Name: name,
		})
	}

	logrus.WithFields(logrus.Fields{
		"bucket":  bucket,
		"prefix":  prefix,
		"folders": len(listing.Folders),
		"files":   len(listing.Files),
	}).Debug("Listed folder")

	return listing, nil
}

// Search returns every allowed file under the raw path at any depth. The path
// is used as-is, so "rep" matches "reports/" and "rep.txt" alike.
func (m *manager) Search(ctx context.Context, bucket, p string) ([]Entry, error) {
	if err := requireBucket(bucket); err != nil {
		return nil, err
	}

	results := []Entry{}
	err := m.client.ListObjects(ctx, bucket, p, true, func(obj storage.ObjectInfo) error {
		if obj.IsPrefix || !strings.HasPrefix(obj.Key, p) || !m.extensions.allows(obj.Key) {
			return nil
		}
		results = append(results, Entry{
			Type:         EntryFile,
			Path:         obj.Key,
			Name:         path.Base(obj.Key),
			LastModified: obj.LastModified,
			Size:         obj.Size,
		})
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"path":   p,
		}).Error("Failed to search files")
		return nil, storeError("search", err)
	}

	return results, nil
}
