// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

// Package closetremote defines the contract the sync core relies on for the
// hosted wardrobe store, plus an HTTP JSON implementation and a Postgres
// implementation for self-hosted deployments. Image blobs live in an
// S3-compatible object store.
package closetremote

import (
	"context"
	"errors"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// ErrNotFound is returned when a record addressed by id does not exist
// remotely. Remote deletes are not guaranteed to treat absence as a no-op;
// callers must surface this.
var ErrNotFound = errors.New("record not found")

// Client is the typed remote store surface. Unlike the cache, every failure
// here is significant and surfaces to the caller.
type Client interface {
	// QueryGarments returns all garments owned by ownerID, newest first.
	QueryGarments(ctx context.Context, ownerID string) ([]closet.GarmentRecord, error)
	// GetGarment returns one garment by id, or ErrNotFound.
	GetGarment(ctx context.Context, id string) (closet.GarmentRecord, error)
	// InsertGarment persists a garment and returns it with the
	// remote-assigned id filled in.
	InsertGarment(ctx context.Context, rec closet.GarmentRecord) (closet.GarmentRecord, error)
	// DeleteGarment removes a garment row by id.
	DeleteGarment(ctx context.Context, id string) error

	QueryOutfits(ctx context.Context, ownerID string) ([]closet.OutfitRecord, error)
	// InsertOutfit persists an outfit under its client-generated id.
	InsertOutfit(ctx context.Context, rec closet.OutfitRecord) error
	DeleteOutfit(ctx context.Context, id string) error
}

// BlobStore holds the garment image binaries.
type BlobStore interface {
	// UploadImage stores an image under the owner's prefix and returns its
	// public URL.
	UploadImage(ctx context.Context, ownerID string, data []byte, contentType string) (string, error)
	// DeleteImage removes a stored image by its storage path or URL.
	DeleteImage(ctx context.Context, path string) error
}
