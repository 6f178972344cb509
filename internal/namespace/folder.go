package namespace

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// CreateFolder writes the zero-length marker key of folder. Calling it again
// overwrites the same marker.
func (m *manager) CreateFolder(ctx context.Context, bucket, folder string) (string, error) {
	if err := requireBucket(bucket); err != nil {
		return "", err
	}
	prefix, err := folderPrefix("folderPrefix", folder)
	if err != nil {
		return "", err
	}

	key := prefix + m.marker
	if err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(nil), 0, ""); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"key":    key,
		}).Error("Failed to create folder marker")
		return "", storeError("create folder", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": bucket,
		"prefix": prefix,
	}).Info("Folder created")

	return key, nil
}

// DeleteFolder removes every key under folder with bulk deletes. The result
// lists which keys were removed and which the store refused; an empty folder
// yields an empty manifest rather than an error.
func (m *manager) DeleteFolder(ctx context.Context, bucket, folder string) (*Manifest, error) {
	if err := requireBucket(bucket); err != nil {
		return nil, err
	}
	prefix, err := folderPrefix("folderPrefix", folder)
	if err != nil {
		return nil, err
	}

	keys, err := m.collectKeys(ctx, bucket, prefix)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"prefix": prefix,
		}).Error("Failed to enumerate folder for delete")
		return nil, storeError("list", err)
	}

	res := newCollector("delete_folder")
	if len(keys) == 0 {
		logrus.WithFields(logrus.Fields{
			"bucket": bucket,
			"prefix": prefix,
		}).Info("Delete folder: nothing to delete")
		return res.result(), nil
	}

	failed, err := m.client.RemoveObjects(ctx, bucket, keys)
	if err != nil {
		// no batch was attempted, so every key is still present
		for _, key := range keys {
			res.fail(KeyFailure{Key: key, Reason: err.Error()})
		}
	} else {
		refused := make(map[string]struct{}, len(failed))
		for _, f := range failed {
			refused[f.Key] = struct{}{}
			reason := f.Message
			if f.Code != "" {
				reason = f.Code + ": " + f.Message
			}
			res.fail(KeyFailure{Key: f.Key, Reason: reason})
		}
		for _, key := range keys {
			if _, ok := refused[key]; !ok {
				res.succeed(key)
			}
		}
	}

	manifest := res.result()
	entry := logrus.WithFields(logrus.Fields{
		"bucket":    bucket,
		"prefix":    prefix,
		"deleted":   len(manifest.Succeeded),
		"failed":    len(manifest.Failed),
		"status":    manifest.Status(),
		"operation": manifest.Operation,
	})
	if len(manifest.Failed) > 0 {
		entry.Warn("Folder delete finished with failures")
	} else {
		entry.Info("Folder deleted")
	}

	return manifest, nil
}

type keyMove struct {
	from string
	to   string
}

// MoveFolder re-keys every object under source to live under destination.
// Each key is copied and only then deleted; keys are processed independently
// so one failure never blocks the rest. Nothing is rolled back: a failed
// delete leaves both keys in place and is reported with StageDelete.
func (m *manager) MoveFolder(ctx context.Context, bucket, source, destination string) (*Manifest, error) {
	if err := requireBucket(bucket); err != nil {
		return nil, err
	}
	src, err := folderPath("source", source)
	if err != nil {
		return nil, err
	}
	dst, err := folderPath("destination", destination)
	if err != nil {
		return nil, err
	}
	if Contains(src, dst) {
		logrus.WithFields(logrus.Fields{
			"source":      src,
			"destination": dst,
		}).Warn("Rejected folder move into itself")
		return nil, invalidOperation("cannot move a folder into itself or a descendant")
	}

	srcPrefix, dstPrefix := src+Separator, dst+Separator

	keys, err := m.collectKeys(ctx, bucket, srcPrefix)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"prefix": srcPrefix,
		}).Error("Failed to enumerate folder for move")
		return nil, storeError("list", err)
	}

	res := newCollector("move_folder")
	if len(keys) == 0 {
		manifest := res.result()
		manifest.Warning = "no objects found under source folder " + srcPrefix
		logrus.WithFields(logrus.Fields{
			"bucket":      bucket,
			"source":      srcPrefix,
			"destination": dstPrefix,
		}).Warn("Folder move found nothing to move")
		return manifest, nil
	}

	plan := make([]keyMove, 0, len(keys))
	for _, key := range keys {
		plan = append(plan, keyMove{from: key, to: Rekey(key, srcPrefix, dstPrefix)})
	}

	if err := m.checkCollisions(ctx, bucket, src, dst, plan); err != nil {
		return nil, err
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for _, mv := range plan {
		mv := mv
		g.Go(func() error {
			m.moveKey(ctx, bucket, mv, res)
			return nil
		})
	}
	_ = g.Wait()

	manifest := res.result()
	entry := logrus.WithFields(logrus.Fields{
		"bucket":       bucket,
		"source":       srcPrefix,
		"destination":  dstPrefix,
		"moved":        len(manifest.Succeeded),
		"failed":       len(manifest.Failed),
		"dual_present": len(manifest.DualPresent()),
		"duration":     time.Since(start),
	})
	if len(manifest.Failed) > 0 {
		entry.Warn("Folder move finished with failures")
	} else {
		entry.Info("Folder moved")
	}

	return manifest, nil
}

// moveKey copies then deletes one key, recording the outcome
func (m *manager) moveKey(ctx context.Context, bucket string, mv keyMove, res *collector) {
	if err := m.client.CopyObject(ctx, bucket, mv.from, mv.to); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"from":   mv.from,
			"to":     mv.to,
		}).Warn("Copy failed during folder move")
		res.fail(KeyFailure{Key: mv.from, Destination: mv.to, Stage: StageCopy, Reason: err.Error()})
		return
	}

	if err := m.client.RemoveObject(ctx, bucket, mv.from); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"from":   mv.from,
			"to":     mv.to,
		}).Warn("Delete failed during folder move, source and destination both present")
		res.fail(KeyFailure{Key: mv.from, Destination: mv.to, Stage: StageDelete, Reason: err.Error()})
		return
	}

	res.succeed(mv.from)
}

// checkCollisions enforces the overwrite policy before any mutation. Folder
// markers are identical empty objects, so a marker landing on a marker is
// never a collision. A destination key that is itself a key being moved is
// rejected under every policy.
func (m *manager) checkCollisions(ctx context.Context, bucket, src, dst string, plan []keyMove) error {
	sources := make(map[string]struct{}, len(plan))
	for _, mv := range plan {
		sources[mv.from] = struct{}{}
	}
	for _, mv := range plan {
		if _, ok := sources[mv.to]; ok {
			logrus.WithFields(logrus.Fields{
				"bucket":      bucket,
				"source":      src,
				"destination": dst,
				"key":         mv.from,
				"target":      mv.to,
			}).Warn("Rejected folder move onto its own keys")
			return invalidOperation("cannot move %s into %s: %s would replace %s before it is moved", src, dst, mv.from, mv.to)
		}
	}

	existing, err := m.collectKeys(ctx, bucket, dst+Separator)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"prefix": dst + Separator,
		}).Error("Failed to enumerate move destination")
		return storeError("list", err)
	}
	if len(existing) == 0 {
		return nil
	}

	present := make(map[string]struct{}, len(existing))
	for _, key := range existing {
		present[key] = struct{}{}
	}

	var collisions []string
	for _, mv := range plan {
		if _, ok := present[mv.to]; ok && path.Base(mv.to) != m.marker {
			collisions = append(collisions, mv.to)
		}
	}
	if len(collisions) == 0 {
		return nil
	}

	fields := logrus.Fields{
		"bucket":      bucket,
		"source":      src,
		"destination": dst,
		"collisions":  len(collisions),
	}
	if m.overwrite {
		logrus.WithFields(fields).Warn("Folder move overwrites existing destination keys")
		return nil
	}

	logrus.WithFields(fields).Warn("Rejected folder move onto existing keys")
	return &CollisionError{Source: src, Destination: dst, Keys: collisions}
}
