// Package minio stores artifacts in MinIO or another S3-compatible server.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

// Store keeps each artifact at <prefix>/<name> in a bucket.
type Store struct {
	client   *minio.Client
	endpoint string
	bucket   string
	prefix   string
}

// NewStore creates a store over an existing client.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	endpoint := ""
	if client != nil && client.EndpointURL() != nil {
		endpoint = client.EndpointURL().Host
	}
	return &Store{
		client:   client,
		endpoint: endpoint,
		bucket:   bucket,
		prefix:   prefix,
	}
}

// NewFromSettings connects to settings.Endpoint with static credentials.
func NewFromSettings(settings domain.SnapshotSettings) (*Store, error) {
	if settings.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint is required", domain.ErrInvalidInput)
	}
	if settings.Bucket == "" {
		return nil, fmt.Errorf("%w: minio bucket is required", domain.ErrInvalidInput)
	}

	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
		Region: settings.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewStore(client, settings.Bucket, settings.Prefix), nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put writes data under name, replacing any previous object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return s.wrap(ctx, "put", name, err)
	}
	return nil
}

// Get reads the artifact. Returns domain.ErrNotFound when the object does not exist.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify(ctx, "get", name, err)
	}
	defer obj.Close()

	// GetObject is lazy; missing keys surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify(ctx, "read", name, err)
	}
	return data, nil
}

// Delete removes the object. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return s.wrap(ctx, "delete", name, err)
	}
	return nil
}

// Location returns the artifact's endpoint-qualified URI.
func (s *Store) Location(name string) string {
	return "minio://" + path.Join(s.endpoint, s.bucket, s.key(name))
}

func (s *Store) classify(ctx context.Context, op, name string, err error) error {
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return s.wrap(ctx, op, name, err)
}

func (s *Store) wrap(ctx context.Context, op, name string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: minio %s %s: %w", domain.ErrArtifactStoreUnavailable, op, s.Location(name), err)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
