// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

func TestAnalyzeImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["image"] == "" {
			t.Error("image payload missing")
		}
		w.Write([]byte(`{"analysis":{"category":"dress","colors":["red"],"formality":"formal"}}`))
	}))
	defer srv.Close()

	c := NewVisionClient(srv.URL, "key")
	a, err := c.AnalyzeImage(context.Background(), []byte("fake-image-bytes"))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.Category != "dress" || a.Formality != "formal" {
		t.Fatalf("unexpected analysis: %+v", a)
	}
}

func TestAnalyzeImageTerminalErrors(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"no_garment", ErrNoGarment},
		{"face_detected", ErrFaceDetected},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": tc.code}})
		}))
		c := NewVisionClient(srv.URL, "")
		_, err := c.AnalyzeImage(context.Background(), []byte("x"))
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: err = %v, want %v", tc.code, err, tc.want)
		}
	}
}

func TestSuggestSelection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/suggest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Items   []map[string]any `json:"items"`
			Context string           `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Items) != 2 || req.Context != "dinner date" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(Selection{ItemIDs: []string{"g1"}})
	}))
	defer srv.Close()

	c := NewStylistClient(srv.URL, "")
	sel, err := c.Suggest(context.Background(), []closet.GarmentRecord{{ID: "g1"}, {ID: "g2"}}, "dinner date")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(sel.ItemIDs) != 1 || sel.ItemIDs[0] != "g1" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
}

func TestSuggestDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Selection{Reason: "no valid combination"})
	}))
	defer srv.Close()

	c := NewStylistClient(srv.URL, "")
	sel, err := c.Suggest(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(sel.ItemIDs) != 0 || sel.Reason == "" {
		t.Fatalf("expected declined selection with reason, got %+v", sel)
	}
}
