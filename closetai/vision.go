// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

// Package closetai wraps the hosted vision-analysis and stylist services as
// opaque typed HTTP clients. Both are treated as unreliable collaborators:
// the facades decide what a failure means.
package closetai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// Terminal analysis failures. The add-item flow surfaces these without
// retrying.
var (
	// ErrNoGarment means the image contains no recognizable garment.
	ErrNoGarment = errors.New("no garment detected")
	// ErrFaceDetected means the image appears to show a person's face.
	ErrFaceDetected = errors.New("face detected")
)

// VisionClient calls the garment-analysis endpoint.
type VisionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewVisionClient builds a vision client. apiKey may be empty for
// self-hosted analyzers without authentication.
func NewVisionClient(baseURL, apiKey string) *VisionClient {
	return &VisionClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type analyzeRequest struct {
	Image string `json:"image"` // base64-encoded
}

type analyzeResponse struct {
	Analysis *closet.Analysis `json:"analysis,omitempty"`
	Error    struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeImage submits an image and returns the structured garment
// descriptor. "no garment" and "face detected" map to the package sentinel
// errors.
func (v *VisionClient) AnalyzeImage(ctx context.Context, image []byte) (closet.Analysis, error) {
	body, err := json.Marshal(analyzeRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return closet.Analysis{}, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return closet.Analysis{}, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return closet.Analysis{}, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return closet.Analysis{}, fmt.Errorf("failed to decode vision response: %w", err)
	}

	switch decoded.Error.Code {
	case "no_garment":
		return closet.Analysis{}, ErrNoGarment
	case "face_detected":
		return closet.Analysis{}, ErrFaceDetected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decoded.Error.Message != "" {
			return closet.Analysis{}, fmt.Errorf("vision service error: %s", decoded.Error.Message)
		}
		return closet.Analysis{}, fmt.Errorf("vision service error: %s", resp.Status)
	}
	if decoded.Analysis == nil {
		return closet.Analysis{}, fmt.Errorf("vision service returned no analysis")
	}
	return *decoded.Analysis, nil
}
