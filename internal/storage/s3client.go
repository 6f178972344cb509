package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// S3Client talks to an S3-compatible server such as MinIO or AWS S3
type S3Client struct {
	client   *s3.Client
	presign  *s3.PresignClient
	endpoint string
}

// NewS3Client creates a client for the configured endpoint. The client is
// built once per process and shared by all requests.
func NewS3Client(cfg Config) *S3Client {
	return newS3Client(cfg)
}

func newS3Client(cfg Config, optFns ...func(*s3.Options)) *S3Client {
	endpoint := cfg.URL()

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}

	opts := append([]func(*s3.Options){func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.PathStyle
	}}, optFns...)
	client := s3.NewFromConfig(awsCfg, opts...)

	return &S3Client{
		client:   client,
		presign:  s3.NewPresignClient(client),
		endpoint: endpoint,
	}
}

// ListObjects walks ListObjectsV2 pages and hands every entry to fn
func (c *S3Client) ListObjects(ctx context.Context, bucket, prefix string, recursive bool, fn ListFunc) error {
	logrus.WithFields(logrus.Fields{
		"endpoint":  c.endpoint,
		"bucket":    bucket,
		"prefix":    prefix,
		"recursive": recursive,
	}).Debug("Listing objects")

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", classify(err))
		}

		for _, cp := range page.CommonPrefixes {
			if err := fn(ObjectInfo{Key: aws.ToString(cp.Prefix), IsPrefix: true}); err != nil {
				return err
			}
		}

		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:          aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}

	return nil
}

// PutObject uploads body under key
func (c *S3Client) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	logrus.WithFields(logrus.Fields{
		"endpoint": c.endpoint,
		"bucket":   bucket,
		"key":      key,
		"size":     size,
	}).Debug("Uploading object")

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object: %w", classify(err))
	}

	return nil
}

// CopyObject copies srcKey to dstKey inside the same bucket
func (c *S3Client) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	logrus.WithFields(logrus.Fields{
		"endpoint":   c.endpoint,
		"bucket":     bucket,
		"source_key": srcKey,
		"dest_key":   dstKey,
	}).Debug("Copying object")

	input := &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(bucket, srcKey)),
	}

	if _, err := c.client.CopyObject(ctx, input); err != nil {
		return fmt.Errorf("failed to copy object: %w", classify(err))
	}

	return nil
}

// RemoveObject deletes a single key
func (c *S3Client) RemoveObject(ctx context.Context, bucket, key string) error {
	logrus.WithFields(logrus.Fields{
		"endpoint": c.endpoint,
		"bucket":   bucket,
		"key":      key,
	}).Debug("Deleting object")

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	if _, err := c.client.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("failed to delete object: %w", classify(err))
	}

	return nil
}

// RemoveObjects issues DeleteObjects in batches of MaxDeleteBatch keys. A batch
// whose request fails marks all of its keys failed; later batches still run.
func (c *S3Client) RemoveObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed []DeleteError
	for _, batch := range batchKeys(keys, MaxDeleteBatch) {
		if err := ctx.Err(); err != nil {
			failed = append(failed, failBatch(batch, err)...)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"endpoint": c.endpoint,
			"bucket":   bucket,
			"count":    len(batch),
		}).Debug("Deleting object batch")

		ids := make([]types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"bucket": bucket,
				"count":  len(batch),
			}).Warn("Batch delete request failed")
			failed = append(failed, failBatch(batch, err)...)
			continue
		}

		for _, e := range out.Errors {
			failed = append(failed, DeleteError{
				Key:     aws.ToString(e.Key),
				Code:    aws.ToString(e.Code),
				Message: aws.ToString(e.Message),
			})
		}
	}

	return failed, nil
}

// PresignGetObject returns a SigV4 query-signed GET URL valid for ttl
func (c *S3Client) PresignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", classify(err))
	}
	return req.URL, nil
}

// ObjectURL returns the path-style address of key
func (c *S3Client) ObjectURL(bucket, key string) string {
	return objectURL(c.endpoint, bucket, key)
}

// Ping checks that the bucket exists and the credentials are accepted
func (c *S3Client) Ping(ctx context.Context, bucket string) error {
	if _, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("failed to reach bucket: %w", classify(err))
	}
	return nil
}

// classify maps S3 API error codes onto the package sentinels
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return NewErrorWithCause(ErrObjectNotFound.Code, ErrObjectNotFound.Message, err)
	case "NoSuchBucket":
		return NewErrorWithCause(ErrBucketNotFound.Code, ErrBucketNotFound.Message, err)
	}
	return err
}

func failBatch(keys []string, err error) []DeleteError {
	out := make([]DeleteError, 0, len(keys))
	for _, key := range keys {
		out = append(out, DeleteError{Key: key, Code: "RequestFailed", Message: err.Error()})
	}
	return out
}

// copySource builds the URL-encoded "bucket/key" form CopyObject expects
func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

func objectURL(endpoint, bucket, key string) string {
	return strings.TrimSuffix(endpoint, "/") + (&url.URL{Path: "/" + bucket + "/" + key}).EscapedPath()
}
