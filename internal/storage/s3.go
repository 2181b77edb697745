package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured is returned by NoopStore. Finalization treats it as
// "skip archival", not as a failure.
var ErrNotConfigured = errors.New("storage: object store not configured")

// Store archives a finished session's full audio container.
type Store interface {
	// Store uploads the WAV container with string metadata and returns
	// the object key it was stored under.
	Store(ctx context.Context, sessionID string, wav []byte, metadata map[string]string) (string, error)
}

// S3Client abstracts the S3 API operations used by S3Store.
// The s3.Client type satisfies this interface.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Store backed by Amazon S3 or any S3-compatible
// object store (MinIO, R2, etc.). The caller is responsible for
// configuring the s3.Client with credentials, region, and endpoint.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates an S3-backed Store. Prefix is prepended to all object
// keys; pass "" for no prefix.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Store uploads the session recording via PutObject. Object keys follow
// recordings/<session>_<timestamp>.wav under the optional prefix.
func (s *S3Store) Store(ctx context.Context, sessionID string, wav []byte, metadata map[string]string) (string, error) {
	if len(wav) == 0 {
		return "", fmt.Errorf("storage: refusing to store empty recording for session %s", sessionID)
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	key := fmt.Sprintf("recordings/%s_%s.wav", sessionID, timestamp)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(wav),
		ContentType: aws.String("audio/wav"),
		Metadata:    sanitizeMetadata(metadata),
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}

	return key, nil
}

// sanitizeMetadata normalizes keys/values to what S3 object metadata
// accepts: lowercase alphanumeric keys with - and _, bounded values.
func sanitizeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if k == "" {
			continue
		}
		out[sanitizeKey(k)] = sanitizeValue(v)
	}
	return out
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(key) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}

func sanitizeValue(value string) string {
	v := strings.TrimSpace(value)
	if len(v) > 2048 {
		v = v[:2048]
	}
	return v
}

// NoopStore is used when no object store is configured; every call
// reports ErrNotConfigured so finalization can skip archival.
type NoopStore struct{}

// Store always returns ErrNotConfigured.
func (NoopStore) Store(context.Context, string, []byte, map[string]string) (string, error) {
	return "", ErrNotConfigured
}

// Compile-time interface checks.
var (
	_ Store = (*S3Store)(nil)
	_ Store = NoopStore{}
)
