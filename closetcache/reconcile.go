// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetcache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// Cache is the store surface the reconciler needs. *Store implements it;
// tests substitute wrappers to force row-level failures.
type Cache interface {
	GarmentIDs(ctx context.Context, ownerID string) ([]string, error)
	OutfitIDs(ctx context.Context, ownerID string) ([]string, error)
	UpsertGarments(ctx context.Context, recs []closet.GarmentRecord) error
	UpsertOutfits(ctx context.Context, recs []closet.OutfitRecord) error
	DeleteGarment(ctx context.Context, id string) error
	DeleteOutfit(ctx context.Context, id string) error
}

// Reconciler converges the per-owner local cache to an authoritative remote
// snapshot: stale local-only rows are deleted, then the whole snapshot is
// upserted. Every step is best-effort; a partially reconciled cache
// self-heals on the next successful pass because the operation is
// idempotent.
type Reconciler struct {
	cache  Cache
	logger *slog.Logger

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

// NewReconciler creates a reconciler over the given cache.
func NewReconciler(cache Cache, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		cache:  cache,
		logger: logger,
		owners: make(map[string]*sync.Mutex),
	}
}

// ownerLock returns the mutex serializing reconciliation passes for one
// owner, so overlapping passes (rapid refreshes, app-foreground bursts)
// cannot interleave row operations.
func (r *Reconciler) ownerLock(ownerID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.owners[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		r.owners[ownerID] = lock
	}
	return lock
}

// ReconcileGarments converges the owner's cached garments to the remote
// snapshot. It never fails: row-level errors are logged and the pass
// continues. An empty snapshot deletes every cached garment for the owner;
// remote absence is authoritative. The snapshot is trusted to contain only
// rows for ownerID; foreign-owner rows are a caller contract violation.
func (r *Reconciler) ReconcileGarments(ctx context.Context, ownerID string, remote []closet.GarmentRecord) {
	lock := r.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	remoteIDs := make(map[string]struct{}, len(remote))
	for _, rec := range remote {
		remoteIDs[rec.ID] = struct{}{}
	}

	localIDs, err := r.cache.GarmentIDs(ctx, ownerID)
	if err != nil {
		// Without the local set we cannot compute stale rows, but the
		// upsert below still converges everything present remotely.
		r.logger.Warn("failed to read local garment ids, skipping stale deletes",
			"owner_id", ownerID, "error", err)
		localIDs = nil
	}

	// Stale deletes run one row at a time so a single failure stays
	// isolated. All deletes complete before any upsert begins.
	for _, id := range localIDs {
		if _, ok := remoteIDs[id]; ok {
			continue
		}
		if err := r.cache.DeleteGarment(ctx, id); err != nil {
			r.logger.Warn("failed to delete stale garment", "id", id, "error", err)
		}
	}

	if err := r.cache.UpsertGarments(ctx, remote); err != nil {
		r.logger.Warn("garment reconciliation upsert incomplete",
			"owner_id", ownerID, "error", err)
	}
}

// ReconcileOutfits is ReconcileGarments for the outfit collection.
func (r *Reconciler) ReconcileOutfits(ctx context.Context, ownerID string, remote []closet.OutfitRecord) {
	lock := r.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	remoteIDs := make(map[string]struct{}, len(remote))
	for _, rec := range remote {
		remoteIDs[rec.ID] = struct{}{}
	}

	localIDs, err := r.cache.OutfitIDs(ctx, ownerID)
	if err != nil {
		r.logger.Warn("failed to read local outfit ids, skipping stale deletes",
			"owner_id", ownerID, "error", err)
		localIDs = nil
	}

	for _, id := range localIDs {
		if _, ok := remoteIDs[id]; ok {
			continue
		}
		if err := r.cache.DeleteOutfit(ctx, id); err != nil {
			r.logger.Warn("failed to delete stale outfit", "id", id, "error", err)
		}
	}

	if err := r.cache.UpsertOutfits(ctx, remote); err != nil {
		r.logger.Warn("outfit reconciliation upsert incomplete",
			"owner_id", ownerID, "error", err)
	}
}
