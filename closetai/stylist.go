// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// StylistClient calls the outfit-recommendation endpoint.
type StylistClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewStylistClient builds a stylist client.
func NewStylistClient(baseURL, apiKey string) *StylistClient {
	return &StylistClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type suggestItem struct {
	ID       string          `json:"id"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
}

type suggestRequest struct {
	Items   []suggestItem `json:"items"`
	Context string        `json:"context,omitempty"`
}

// Selection is the stylist's answer: a subset of the candidate item ids, or
// no selection with a reason when no valid combination exists.
type Selection struct {
	ItemIDs []string `json:"item_ids"`
	Reason  string   `json:"reason,omitempty"`
}

// Suggest submits a candidate item list plus free-text context and returns
// the selected subset. A nil ItemIDs slice with a reason means the stylist
// found no valid combination; callers must be prepared to fall back.
func (s *StylistClient) Suggest(ctx context.Context, items []closet.GarmentRecord, prompt string) (Selection, error) {
	reqItems := make([]suggestItem, 0, len(items))
	for _, item := range items {
		reqItems = append(reqItems, suggestItem{ID: item.ID, Analysis: item.Analysis})
	}
	body, err := json.Marshal(suggestRequest{Items: reqItems, Context: prompt})
	if err != nil {
		return Selection{}, fmt.Errorf("failed to encode suggest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/suggest", bytes.NewReader(body))
	if err != nil {
		return Selection{}, fmt.Errorf("failed to create suggest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Selection{}, fmt.Errorf("stylist request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Selection{}, fmt.Errorf("stylist service error: %s", resp.Status)
	}

	var sel Selection
	if err := json.NewDecoder(resp.Body).Decode(&sel); err != nil {
		return Selection{}, fmt.Errorf("failed to decode stylist response: %w", err)
	}
	return sel, nil
}
