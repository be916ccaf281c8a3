// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// HTTPClient talks JSON to the hosted wardrobe backend. Raw garment rows
// coming off the wire pass through closet.NormalizeGarment exactly once, so
// the rest of the core only ever sees the canonical record shape.
type HTTPClient struct {
	BaseURL string
	// Token returns the bearer token for a request (JWT).
	Token  func(ctx context.Context) (string, error)
	HTTP   *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a remote client for the given base URL.
func NewHTTPClient(baseURL string, token func(ctx context.Context) (string, error), logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type garmentsResponse struct {
	Garments []json.RawMessage `json:"garments"`
}

type outfitsResponse struct {
	Outfits []closet.OutfitRecord `json:"outfits"`
}

// QueryGarments returns all garments owned by ownerID, newest first.
func (c *HTTPClient) QueryGarments(ctx context.Context, ownerID string) ([]closet.GarmentRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/garments?owner_id=%s", c.BaseURL, url.QueryEscape(ownerID))
	var resp garmentsResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to query garments: %w", err)
	}
	recs := make([]closet.GarmentRecord, 0, len(resp.Garments))
	for _, raw := range resp.Garments {
		rec, err := closet.NormalizeGarment(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize garment row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// GetGarment returns one garment by id.
func (c *HTTPClient) GetGarment(ctx context.Context, id string) (closet.GarmentRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/garments/%s", c.BaseURL, url.PathEscape(id))
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to get garment %s: %w", id, err)
	}
	rec, err := closet.NormalizeGarment(raw)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to normalize garment row: %w", err)
	}
	return rec, nil
}

// InsertGarment persists a garment; the server assigns the id.
func (c *HTTPClient) InsertGarment(ctx context.Context, rec closet.GarmentRecord) (closet.GarmentRecord, error) {
	endpoint := c.BaseURL + "/v1/garments"
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, endpoint, rec, &raw); err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to insert garment: %w", err)
	}
	created, err := closet.NormalizeGarment(raw)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to normalize created garment: %w", err)
	}
	return created, nil
}

// DeleteGarment removes a garment row by id.
func (c *HTTPClient) DeleteGarment(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/v1/garments/%s", c.BaseURL, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to delete garment %s: %w", id, err)
	}
	return nil
}

// QueryOutfits returns all outfits owned by ownerID, newest first.
func (c *HTTPClient) QueryOutfits(ctx context.Context, ownerID string) ([]closet.OutfitRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/outfits?owner_id=%s", c.BaseURL, url.QueryEscape(ownerID))
	var resp outfitsResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to query outfits: %w", err)
	}
	return resp.Outfits, nil
}

// InsertOutfit persists an outfit under its client-generated id.
func (c *HTTPClient) InsertOutfit(ctx context.Context, rec closet.OutfitRecord) error {
	endpoint := c.BaseURL + "/v1/outfits"
	if err := c.doJSON(ctx, http.MethodPost, endpoint, rec, nil); err != nil {
		return fmt.Errorf("failed to insert outfit %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteOutfit removes an outfit row by id.
func (c *HTTPClient) DeleteOutfit(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/v1/outfits/%s", c.BaseURL, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to delete outfit %s: %w", id, err)
	}
	return nil
}

// doJSON performs one authenticated JSON round trip. A 404 maps to
// ErrNotFound; other non-2xx statuses become errors carrying the response
// body.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
