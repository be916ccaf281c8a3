// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetremote

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBlobs stores garment images in an S3-compatible bucket. A dangling
// blob after a failed delete is a storage-cost concern, not a correctness
// one, so callers treat blob deletion as best-effort.
type MinioBlobs struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioBlobs connects to the object store and ensures the bucket exists.
// publicURL is the externally visible base under which objects are served.
func NewMinioBlobs(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*MinioBlobs, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &MinioBlobs{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// UploadImage stores an image under the owner's prefix and returns its
// public URL. The object key is immutable once assigned.
func (m *MinioBlobs) UploadImage(ctx context.Context, ownerID string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%s", ownerID, uuid.New().String())
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, key), nil
}

// DeleteImage removes a stored image. It accepts either the bare object key
// or the full public URL returned by UploadImage.
func (m *MinioBlobs) DeleteImage(ctx context.Context, path string) error {
	key := m.objectKey(path)
	if key == "" {
		return fmt.Errorf("image path %q does not reference this store", path)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete image %s: %w", key, err)
	}
	return nil
}

func (m *MinioBlobs) objectKey(path string) string {
	if !strings.Contains(path, "://") {
		return strings.TrimPrefix(path, "/")
	}
	u, err := url.Parse(path)
	if err != nil {
		return ""
	}
	trimmed := strings.TrimPrefix(u.Path, "/")
	trimmed = strings.TrimPrefix(trimmed, m.bucket+"/")
	return trimmed
}
