package namespace

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// MoveFile renames a single key by copy then delete. An existing destination
// is overwritten silently. If the delete fails the copy is kept, so both keys
// exist until the caller retries.
func (m *manager) MoveFile(ctx context.Context, bucket, source, destination string) error {
	if err := requireBucket(bucket); err != nil {
		return err
	}
	if source == "" || destination == "" {
		return invalidArgument("source and destination are required")
	}
	if strings.HasSuffix(source, Separator) || strings.HasSuffix(destination, Separator) {
		return invalidArgument("file paths must not end with %q", Separator)
	}
	if source == destination {
		return invalidOperation("source and destination are the same key")
	}

	fields := logrus.Fields{
		"bucket":      bucket,
		"source":      source,
		"destination": destination,
	}

	if err := m.client.CopyObject(ctx, bucket, source, destination); err != nil {
		logrus.WithError(err).WithFields(fields).Error("Failed to copy file")
		return storeError("copy", err)
	}

	if err := m.client.RemoveObject(ctx, bucket, source); err != nil {
		logrus.WithError(err).WithFields(fields).Error("File copied but source not deleted")
		return storeError(fmt.Sprintf("delete %q after copy to %q (both keys present)", source, destination), err)
	}

	logrus.WithFields(fields).Info("File moved")
	return nil
}

// Upload stores a file under prefix using only the last segment of the
// client-supplied name
func (m *manager) Upload(ctx context.Context, bucket string, in UploadInput) (*UploadResult, error) {
	if err := requireBucket(bucket); err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, invalidArgument("file is required")
	}

	name := baseName(in.Filename)
	if name == "" || name == "." || name == ".." {
		return nil, invalidArgument("invalid file name %q", in.Filename)
	}

	key := NormalizePrefix(in.Prefix) + name
	if err := m.client.PutObject(ctx, bucket, key, in.Body, in.Size, in.ContentType); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"key":    key,
		}).Error("Failed to upload file")
		return nil, storeError("upload", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": bucket,
		"key":    key,
		"size":   in.Size,
	}).Info("File uploaded")

	return &UploadResult{Key: key, URL: m.client.ObjectURL(bucket, key)}, nil
}
