// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

// Package wardrobe orchestrates the two-phase local/remote load, the
// add/delete write paths and the per-session UI state over the cache and
// remote store layers.
package wardrobe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
	"github.com/Ruhadaam/Wardrobe-sub000/closetcache"
	"github.com/Ruhadaam/Wardrobe-sub000/closetremote"
)

// Analyzer is the opaque vision service consumed by the add-item flow.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, image []byte) (closet.Analysis, error)
}

// Config carries facade-level settings shared by the garment and outfit
// services.
type Config struct {
	// SyncTimeout bounds one remote fetch-and-reconcile pass so a hung
	// fetch surfaces as an error instead of wedging the Loading state.
	SyncTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) fill() {
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service is the wardrobe (garment) facade. The remote store is
// authoritative: add/delete write remote first and mirror into the cache
// best-effort.
type Service struct {
	remote closetremote.Client
	blobs  closetremote.BlobStore
	vision Analyzer
	cache  *closetcache.Store
	rec    *closetcache.Reconciler
	logger *slog.Logger

	syncTimeout time.Duration
	sf          singleflight.Group // coalesces concurrent syncs per owner
}

// NewService creates the garment facade. blobs and vision may be nil when
// the deployment has no object store or analyzer wired (the corresponding
// flows then degrade: no blob cleanup, no AnalyzeAndAdd).
func NewService(remote closetremote.Client, blobs closetremote.BlobStore, vision Analyzer,
	cache *closetcache.Store, rec *closetcache.Reconciler, cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.fill()
	return &Service{
		remote:      remote,
		blobs:       blobs,
		vision:      vision,
		cache:       cache,
		rec:         rec,
		logger:      cfg.Logger,
		syncTimeout: cfg.SyncTimeout,
	}
}

// FetchAndSync queries the remote store for the owner's garments, converges
// the local cache to that snapshot and returns it. Remote failure surfaces:
// a failed sync must not be silently swallowed. Concurrent calls for the
// same owner share one pass.
func (s *Service) FetchAndSync(ctx context.Context, ownerID string) ([]closet.GarmentRecord, error) {
	v, err, _ := s.sf.Do("garments:"+ownerID, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
		defer cancel()

		recs, err := s.remote.QueryGarments(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to sync garments: %w", err)
		}
		s.rec.ReconcileGarments(ctx, ownerID, recs)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]closet.GarmentRecord), nil
}

// ReadLocal returns the cached garments for the owner, newest first. Pure
// cache passthrough; never fails.
func (s *Service) ReadLocal(ctx context.Context, ownerID string) []closet.GarmentRecord {
	return s.cache.Garments(ctx, ownerID)
}

// AddGarment persists a garment remotely (the remote store assigns the id)
// and mirrors it into the cache. The mirror is best-effort; the remote row
// is already the record of truth.
func (s *Service) AddGarment(ctx context.Context, ownerID string, analysis closet.Analysis, imageURL string) (closet.GarmentRecord, error) {
	doc, err := closet.MarshalAnalysis(analysis)
	if err != nil {
		return closet.GarmentRecord{}, err
	}
	rec := closet.GarmentRecord{
		OwnerID:   ownerID,
		ImageURL:  imageURL,
		Analysis:  doc,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.remote.InsertGarment(ctx, rec)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to add garment: %w", err)
	}

	if err := s.cache.UpsertGarments(ctx, []closet.GarmentRecord{created}); err != nil {
		s.logger.Warn("failed to mirror new garment into cache", "id", created.ID, "error", err)
	}
	return created, nil
}

// AnalyzeAndAdd runs the full add-item flow: vision analysis, image upload,
// remote insert, cache mirror. Analysis failures (including the terminal
// no-garment and face-detected results) surface without retry.
func (s *Service) AnalyzeAndAdd(ctx context.Context, ownerID string, image []byte, contentType string) (closet.GarmentRecord, error) {
	if s.vision == nil {
		return closet.GarmentRecord{}, fmt.Errorf("no analyzer configured")
	}
	if s.blobs == nil {
		return closet.GarmentRecord{}, fmt.Errorf("no blob store configured")
	}

	analysis, err := s.vision.AnalyzeImage(ctx, image)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("image analysis failed: %w", err)
	}

	imageURL, err := s.blobs.UploadImage(ctx, ownerID, image, contentType)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to upload image: %w", err)
	}

	return s.AddGarment(ctx, ownerID, analysis, imageURL)
}

// DeleteGarment removes a garment. The image blob delete is best-effort
// (a dangling blob costs storage, not correctness); the remote row delete
// must succeed before the local mirror is touched, so a crash mid-operation
// leaves the cache stale rather than dropping data the user still owns.
func (s *Service) DeleteGarment(ctx context.Context, id string) error {
	rec, err := s.remote.GetGarment(ctx, id)
	switch {
	case err != nil:
		s.logger.Warn("failed to look up garment before delete, skipping blob cleanup",
			"id", id, "error", err)
	case rec.ImageURL != "" && s.blobs != nil:
		if err := s.blobs.DeleteImage(ctx, rec.ImageURL); err != nil {
			s.logger.Warn("failed to delete garment image blob", "id", id, "error", err)
		}
	}

	if err := s.remote.DeleteGarment(ctx, id); err != nil {
		return fmt.Errorf("failed to delete garment: %w", err)
	}

	if err := s.cache.DeleteGarment(ctx, id); err != nil {
		s.logger.Warn("failed to delete garment from cache", "id", id, "error", err)
	}
	return nil
}

// GroupByCategory buckets garments by their analysis category. Garments
// with no parseable category land under "uncategorized".
func GroupByCategory(recs []closet.GarmentRecord) map[string][]closet.GarmentRecord {
	groups := make(map[string][]closet.GarmentRecord)
	for _, rec := range recs {
		a, err := closet.ParseAnalysis(rec.Analysis)
		category := a.Category
		if err != nil || category == "" {
			category = "uncategorized"
		}
		groups[category] = append(groups[category], rec)
	}
	return groups
}

// AddedToday filters garments created on the same calendar day as now.
func AddedToday(recs []closet.GarmentRecord, now time.Time) []closet.GarmentRecord {
	y, m, d := now.Date()
	var out []closet.GarmentRecord
	for _, rec := range recs {
		ry, rm, rd := rec.CreatedAt.In(now.Location()).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, rec)
		}
	}
	return out
}
