package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// MemoryClient is an in-process Client used for local runs and tests.
// The Fail* hooks inject store faults; a hook returning non-nil makes the
// matching call fail with that error before any state changes.
type MemoryClient struct {
	mu        sync.RWMutex
	endpoint  string
	buckets   map[string]map[string]*memoryObject
	mutations int
	now       func() time.Time

	FailList   func(bucket, prefix string) error
	FailPut    func(bucket, key string) error
	FailCopy   func(bucket, srcKey, dstKey string) error
	FailRemove func(bucket, key string) error
	FailBulk   func(bucket, key string) error
}

// NewMemoryClient creates an empty in-memory store
func NewMemoryClient(endpoint string) *MemoryClient {
	return &MemoryClient{
		endpoint: endpoint,
		buckets:  make(map[string]map[string]*memoryObject),
		now:      time.Now,
	}
}

// CreateBucket makes bucket available; existing buckets are left untouched
func (m *MemoryClient) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]*memoryObject)
	}
}

// Seed stores data under key without counting as a mutation
func (m *MemoryClient) Seed(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		objects = make(map[string]*memoryObject)
		m.buckets[bucket] = objects
	}
	objects[key] = &memoryObject{data: append([]byte(nil), data...), lastModified: m.now()}
}

// Keys returns every key of bucket in lexicographic order
func (m *MemoryClient) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a copy of the payload stored under key
func (m *MemoryClient) Get(bucket, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Mutations counts successful put, copy and delete effects
func (m *MemoryClient) Mutations() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mutations
}

func (m *MemoryClient) bucket(name string) (map[string]*memoryObject, error) {
	objects, ok := m.buckets[name]
	if !ok {
		return nil, fmt.Errorf("bucket %q: %w", name, ErrBucketNotFound)
	}
	return objects, nil
}

// ListObjects snapshots matching keys and streams them in key order
func (m *MemoryClient) ListObjects(ctx context.Context, bucket, prefix string, recursive bool, fn ListFunc) error {
	if m.FailList != nil {
		if err := m.FailList(bucket, prefix); err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
	}

	m.mu.RLock()
	objects, err := m.bucket(bucket)
	if err != nil {
		m.mu.RUnlock()
		return fmt.Errorf("failed to list objects: %w", err)
	}

	var entries []ObjectInfo
	seen := make(map[string]struct{})
	for key, obj := range objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !recursive {
			rest := key[len(prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				cp := prefix + rest[:i+1]
				if _, dup := seen[cp]; !dup {
					seen[cp] = struct{}{}
					entries = append(entries, ObjectInfo{Key: cp, IsPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, ObjectInfo{
			Key:          key,
			LastModified: obj.lastModified,
			Size:         int64(len(obj.data)),
		})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// PutObject stores the whole body under key
func (m *MemoryClient) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidPath
	}
	if m.FailPut != nil {
		if err := m.FailPut(bucket, key); err != nil {
			return fmt.Errorf("failed to put object: %w", err)
		}
	}

	var buf bytes.Buffer
	if body != nil {
		if _, err := io.Copy(&buf, body); err != nil {
			return fmt.Errorf("failed to read object body: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, err := m.bucket(bucket)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	objects[key] = &memoryObject{data: buf.Bytes(), contentType: contentType, lastModified: m.now()}
	m.mutations++
	return nil
}

// CopyObject duplicates srcKey under dstKey
func (m *MemoryClient) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailCopy != nil {
		if err := m.FailCopy(bucket, srcKey, dstKey); err != nil {
			return fmt.Errorf("failed to copy object: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, err := m.bucket(bucket)
	if err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}
	src, ok := objects[srcKey]
	if !ok {
		return fmt.Errorf("failed to copy object: %w", ErrObjectNotFound)
	}
	objects[dstKey] = &memoryObject{
		data:         append([]byte(nil), src.data...),
		contentType:  src.contentType,
		lastModified: m.now(),
	}
	m.mutations++
	return nil
}

// RemoveObject deletes key; deleting a missing key succeeds like S3 does
func (m *MemoryClient) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailRemove != nil {
		if err := m.FailRemove(bucket, key); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, err := m.bucket(bucket)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	if _, ok := objects[key]; ok {
		delete(objects, key)
		m.mutations++
	}
	return nil
}

// RemoveObjects deletes keys, reporting FailBulk rejections per key
func (m *MemoryClient) RemoveObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, err := m.bucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to delete objects: %w", err)
	}

	var failed []DeleteError
	for _, key := range keys {
		if m.FailBulk != nil {
			if err := m.FailBulk(bucket, key); err != nil {
				failed = append(failed, DeleteError{Key: key, Code: "InternalError", Message: err.Error()})
				continue
			}
		}
		if _, ok := objects[key]; ok {
			delete(objects, key)
			m.mutations++
		}
	}
	return failed, nil
}

// PresignGetObject returns the object URL with expiry query parameters.
// The signature is not verifiable; it exists so callers see the same shape.
func (m *MemoryClient) PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(ttl/time.Second), 10))
	q.Set("X-Amz-Signature", "memory")
	return m.ObjectURL(bucket, key) + "?" + q.Encode(), nil
}

// ObjectURL returns the path-style address of key
func (m *MemoryClient) ObjectURL(bucket, key string) string {
	return objectURL(m.endpoint, bucket, key)
}

// Ping succeeds when the bucket exists
func (m *MemoryClient) Ping(ctx context.Context, bucket string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.bucket(bucket)
	return err
}
