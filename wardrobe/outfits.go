// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package wardrobe

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
	"github.com/Ruhadaam/Wardrobe-sub000/closetai"
	"github.com/Ruhadaam/Wardrobe-sub000/closetcache"
	"github.com/Ruhadaam/Wardrobe-sub000/closetremote"
)

// Stylist is the opaque recommendation service. It is treated as
// unreliable; Suggest always has a local fallback.
type Stylist interface {
	Suggest(ctx context.Context, items []closet.GarmentRecord, prompt string) (closetai.Selection, error)
}

// Outfits is the outfit facade. It inverts the garment write order on add:
// the outfit id is generated client-side, so the local write lands first
// and the remote insert follows best-effort. Deletes stay remote-first so a
// row the user believes gone can never silently persist remotely.
type Outfits struct {
	remote  closetremote.Client
	stylist Stylist
	cache   *closetcache.Store
	rec     *closetcache.Reconciler
	logger  *slog.Logger

	syncTimeout time.Duration
	sf          singleflight.Group
}

// NewOutfits creates the outfit facade. stylist may be nil; Suggest then
// always uses the local fallback pick.
func NewOutfits(remote closetremote.Client, stylist Stylist,
	cache *closetcache.Store, rec *closetcache.Reconciler, cfg *Config) *Outfits {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.fill()
	return &Outfits{
		remote:      remote,
		stylist:     stylist,
		cache:       cache,
		rec:         rec,
		logger:      cfg.Logger,
		syncTimeout: cfg.SyncTimeout,
	}
}

// AddOutfit assembles and stores a new outfit. Local first: the record is
// written to the cache for immediate UI feedback, then pushed to the remote
// store best-effort. Upsert-by-id semantics on both sides keep the eventual
// remote sync from duplicating the row.
func (o *Outfits) AddOutfit(ctx context.Context, ownerID string, items []closet.GarmentRecord) (closet.OutfitRecord, error) {
	if ownerID == "" {
		return closet.OutfitRecord{}, fmt.Errorf("owner id is required")
	}
	rec := closet.OutfitRecord{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Items:     items,
		CreatedAt: time.Now().UTC(),
	}

	if err := o.cache.UpsertOutfits(ctx, []closet.OutfitRecord{rec}); err != nil {
		o.logger.Warn("failed to write outfit to cache", "id", rec.ID, "error", err)
	}

	if err := o.remote.InsertOutfit(ctx, rec); err != nil {
		// The local row serves the UI for now, but there is no retry queue:
		// remote absence is authoritative, so the next reconciliation pass
		// drops the row if the insert never landed.
		o.logger.Warn("failed to push outfit to remote store", "id", rec.ID, "error", err)
	}
	return rec, nil
}

// DeleteOutfit removes an outfit. The remote delete must succeed before the
// local row is touched; on remote failure the cached row stays visible.
func (o *Outfits) DeleteOutfit(ctx context.Context, id string) error {
	if err := o.remote.DeleteOutfit(ctx, id); err != nil {
		return fmt.Errorf("failed to delete outfit: %w", err)
	}
	if err := o.cache.DeleteOutfit(ctx, id); err != nil {
		o.logger.Warn("failed to delete outfit from cache", "id", id, "error", err)
	}
	return nil
}

// FetchAndSync queries the remote store for the owner's outfits, converges
// the cache and returns the snapshot. Remote failure surfaces.
func (o *Outfits) FetchAndSync(ctx context.Context, ownerID string) ([]closet.OutfitRecord, error) {
	v, err, _ := o.sf.Do("outfits:"+ownerID, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, o.syncTimeout)
		defer cancel()

		recs, err := o.remote.QueryOutfits(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to sync outfits: %w", err)
		}
		o.rec.ReconcileOutfits(ctx, ownerID, recs)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]closet.OutfitRecord), nil
}

// ReadLocal returns the cached outfits for the owner, newest first.
func (o *Outfits) ReadLocal(ctx context.Context, ownerID string) []closet.OutfitRecord {
	return o.cache.Outfits(ctx, ownerID)
}

// Suggest asks the stylist to pick an outfit from the candidate garments.
// When the stylist fails, declines, or returns ids outside the candidate
// set, Suggest falls back to a uniform-random valid top+bottom pick. The
// fallback is a hard requirement: the recommendation call is unreliable.
func (o *Outfits) Suggest(ctx context.Context, items []closet.GarmentRecord, prompt string) ([]closet.GarmentRecord, error) {
	if o.stylist != nil {
		sel, err := o.stylist.Suggest(ctx, items, prompt)
		if err != nil {
			o.logger.Warn("stylist call failed, using fallback pick", "error", err)
		} else if len(sel.ItemIDs) == 0 {
			o.logger.Info("stylist found no valid combination, using fallback pick",
				"reason", sel.Reason)
		} else if picked, ok := resolveSelection(items, sel.ItemIDs); ok {
			return picked, nil
		} else {
			o.logger.Warn("stylist returned unknown item ids, using fallback pick")
		}
	}
	return fallbackPick(items)
}

// resolveSelection maps selected ids back onto the candidate records,
// rejecting the whole selection if any id is unknown.
func resolveSelection(items []closet.GarmentRecord, ids []string) ([]closet.GarmentRecord, bool) {
	byID := make(map[string]closet.GarmentRecord, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	picked := make([]closet.GarmentRecord, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, false
		}
		picked = append(picked, item)
	}
	return picked, true
}

var (
	topCategories    = map[string]bool{"top": true, "shirt": true, "t-shirt": true, "tshirt": true, "blouse": true, "sweater": true, "hoodie": true, "polo": true}
	bottomCategories = map[string]bool{"bottom": true, "pants": true, "trousers": true, "jeans": true, "skirt": true, "shorts": true, "leggings": true}
)

// fallbackPick selects one random top and one random bottom from the
// candidates. It fails only when the wardrobe lacks one of the two.
func fallbackPick(items []closet.GarmentRecord) ([]closet.GarmentRecord, error) {
	var tops, bottoms []closet.GarmentRecord
	for _, item := range items {
		a, err := closet.ParseAnalysis(item.Analysis)
		if err != nil {
			continue
		}
		category := strings.ToLower(a.Category)
		switch {
		case topCategories[category]:
			tops = append(tops, item)
		case bottomCategories[category]:
			bottoms = append(bottoms, item)
		}
	}
	if len(tops) == 0 || len(bottoms) == 0 {
		return nil, fmt.Errorf("not enough garments for a fallback outfit: %d tops, %d bottoms", len(tops), len(bottoms))
	}
	return []closet.GarmentRecord{
		tops[rand.Intn(len(tops))],
		bottoms[rand.Intn(len(bottoms))],
	}, nil
}
