package presigned

import (
	"context"
	"fmt"
	"time"

	"github.com/mermaidai/drive/internal/config"
	"github.com/mermaidai/drive/internal/namespace"
	"github.com/mermaidai/drive/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTL applies when neither the caller nor the config sets one
	DefaultTTL = time.Hour

	// maxExpiration is the SigV4 ceiling (7 days)
	maxExpiration = config.MaxPresignTTL
)

// Issuer hands out time-limited GET URLs for single keys
type Issuer interface {
	// Issue signs a GET for key. A zero ttl selects the configured default.
	Issue(ctx context.Context, bucket, key string, ttl time.Duration) (*Grant, error)
}

// Grant is an issued URL and the moment it stops working
type Grant struct {
	URL       string
	ExpiresAt time.Time
}

type issuer struct {
	client     storage.Client
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer backed by the store's presigning
func NewIssuer(client storage.Client, cfg config.PresignConfig) Issuer {
	maxTTL := cfg.MaxTTL
	if maxTTL <= 0 || maxTTL > maxExpiration {
		maxTTL = maxExpiration
	}
	defaultTTL := cfg.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if defaultTTL > maxTTL {
		defaultTTL = maxTTL
	}

	return &issuer{
		client:     client,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        time.Now,
	}
}

func (i *issuer) Issue(ctx context.Context, bucket, key string, ttl time.Duration) (*Grant, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: bucket and key are required", namespace.ErrInvalidArgument)
	}
	if ttl == 0 {
		ttl = i.defaultTTL
	}
	if ttl < time.Second || ttl > i.maxTTL {
		return nil, fmt.Errorf("%w: expiration must be between 1 and %d seconds",
			namespace.ErrInvalidArgument, int64(i.maxTTL/time.Second))
	}

	issuedAt := i.now()
	url, err := i.client.PresignGetObject(ctx, bucket, key, ttl)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"bucket": bucket,
			"key":    key,
		}).Error("Failed to presign object")
		return nil, fmt.Errorf("%w: presign: %w", namespace.ErrStoreUnavailable, err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": bucket,
		"key":    key,
		"ttl":    ttl,
	}).Debug("Issued presigned URL")

	return &Grant{URL: url, ExpiresAt: issuedAt.Add(ttl)}, nil
}
