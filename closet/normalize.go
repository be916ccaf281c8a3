// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closet

import (
	"encoding/json"
	"fmt"
	"time"
)

// Older remote rows carry the analysis fields flattened at the top level
// instead of nested under "analysis". NormalizeGarment folds both layouts
// into the canonical GarmentRecord shape exactly once, so no downstream
// consumer ever does dual-path lookups.

// legacy top-level keys that belong inside the analysis document
var legacyAnalysisKeys = []string{
	"category", "sub_category", "colors", "pattern", "material",
	"style", "seasons", "formality", "fit", "features",
}

// NormalizeGarment maps a raw remote garment row into the canonical record
// shape. It accepts both the current layout (nested "analysis" document) and
// the legacy layout (analysis fields flattened at the top level). When both
// are present, the nested document wins per key.
func NormalizeGarment(raw json.RawMessage) (GarmentRecord, error) {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return GarmentRecord{}, fmt.Errorf("failed to decode garment row: %w", err)
	}

	var rec GarmentRecord
	if v, ok := row["id"]; ok {
		if err := json.Unmarshal(v, &rec.ID); err != nil {
			return GarmentRecord{}, fmt.Errorf("failed to decode garment id: %w", err)
		}
	}
	if v, ok := row["owner_id"]; ok {
		if err := json.Unmarshal(v, &rec.OwnerID); err != nil {
			return GarmentRecord{}, fmt.Errorf("failed to decode owner id: %w", err)
		}
	}
	if v, ok := row["image_url"]; ok {
		if err := json.Unmarshal(v, &rec.ImageURL); err != nil {
			return GarmentRecord{}, fmt.Errorf("failed to decode image url: %w", err)
		}
	}
	if v, ok := row["created_at"]; ok {
		var ts time.Time
		if err := json.Unmarshal(v, &ts); err != nil {
			return GarmentRecord{}, fmt.Errorf("failed to decode created_at: %w", err)
		}
		rec.CreatedAt = ts
	}

	analysis := map[string]json.RawMessage{}
	for _, key := range legacyAnalysisKeys {
		if v, ok := row[key]; ok {
			analysis[key] = v
		}
	}
	if nested, ok := row["analysis"]; ok && len(nested) > 0 && string(nested) != "null" {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(nested, &doc); err != nil {
			return GarmentRecord{}, fmt.Errorf("failed to decode analysis document: %w", err)
		}
		// nested document wins over flattened duplicates
		for k, v := range doc {
			analysis[k] = v
		}
	}
	if len(analysis) > 0 {
		data, err := json.Marshal(analysis)
		if err != nil {
			return GarmentRecord{}, fmt.Errorf("failed to re-encode analysis document: %w", err)
		}
		rec.Analysis = data
	}

	return rec, nil
}
