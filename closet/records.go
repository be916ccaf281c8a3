// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

// Package closet defines the wardrobe domain records shared by the local
// cache, the remote store clients and the facades.
//
// The cache layer treats the garment analysis document as an opaque blob;
// only the facades interpret it, through the typed Analysis view.
package closet

import (
	"encoding/json"
	"fmt"
	"time"
)

// GarmentRecord is one analyzed garment owned by a single user.
//
// The ID is assigned by the remote store at insert time. The local cache row
// is a pure projection of the remote row and must stay reconstructable from
// it field by field.
type GarmentRecord struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	ImageURL  string          `json:"image_url"`
	Analysis  json.RawMessage `json:"analysis,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// OutfitRecord is an assembled outfit owned by a single user.
//
// Unlike garments, the ID is generated client-side so the outfit can be
// written locally before the remote insert settles. Items is a denormalized
// snapshot of the garments at assembly time, not a foreign-key reference.
type OutfitRecord struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Items     []GarmentRecord `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// Analysis is the typed view of the garment analysis document. The cache
// never needs it; the facades use it for grouping and outfit assembly.
type Analysis struct {
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Material    string   `json:"material,omitempty"`
	Style       string   `json:"style,omitempty"`
	Seasons     []string `json:"seasons,omitempty"`
	Formality   string   `json:"formality,omitempty"`
	Fit         string   `json:"fit,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// ParseAnalysis decodes the opaque analysis document of a garment. A missing
// document yields a zero Analysis, not an error.
func ParseAnalysis(raw json.RawMessage) (Analysis, error) {
	var a Analysis
	if len(raw) == 0 {
		return a, nil
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis document: %w", err)
	}
	return a, nil
}

// MarshalAnalysis encodes a typed analysis back into the opaque document
// stored on a GarmentRecord.
func MarshalAnalysis(a Analysis) (json.RawMessage, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis document: %w", err)
	}
	return data, nil
}
