// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func garment(id, owner string, createdAt time.Time) closet.GarmentRecord {
	return closet.GarmentRecord{
		ID:        id,
		OwnerID:   owner,
		ImageURL:  "https://img/" + id,
		Analysis:  json.RawMessage(`{"category":"shirt"}`),
		CreatedAt: createdAt,
	}
}

func TestInitIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Repeated and concurrent initialization must not fail with duplicate
	// table errors.
	for i := 0; i < 3; i++ {
		if err := s.Init(ctx); err != nil {
			t.Fatalf("re-init %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Init(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent init: %v", err)
		}
	}
}

func TestOpenDefaultSharedHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	var wg sync.WaitGroup
	stores := make([]*Store, 4)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := OpenDefault(path, nil)
			if err != nil {
				t.Errorf("open default: %v", err)
				return
			}
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(stores); i++ {
		if stores[i] != stores[0] {
			t.Fatal("OpenDefault returned distinct handles under concurrent first access")
		}
	}
}

func TestUpsertGarmentsSkipsMalformed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	batch := []closet.GarmentRecord{
		{OwnerID: "u1"}, // missing id
		{ID: "y", CreatedAt: now}, // missing owner
		garment("x", "u1", now),
	}
	if err := s.UpsertGarments(ctx, batch); err != nil {
		t.Fatalf("upsert with malformed rows must not fail: %v", err)
	}

	got := s.Garments(ctx, "u1")
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("expected only garment x persisted, got %+v", got)
	}
}

func TestGarmentsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	batch := []closet.GarmentRecord{
		garment("a", "u1", base),
		garment("c", "u1", base.Add(2*time.Hour)),
		garment("b", "u1", base.Add(time.Hour)),
		garment("other", "u2", base.Add(3*time.Hour)),
	}
	if err := s.UpsertGarments(ctx, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := s.Garments(ctx, "u1")
	if len(got) != 3 {
		t.Fatalf("expected 3 garments for u1, got %d", len(got))
	}
	for i, want := range []string{"c", "b", "a"} {
		if got[i].ID != want {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.UpsertGarments(ctx, []closet.GarmentRecord{garment("a", "u1", now)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	updated := garment("a", "u1", now)
	updated.ImageURL = "https://img/updated"
	if err := s.UpsertGarments(ctx, []closet.GarmentRecord{updated}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got := s.Garments(ctx, "u1")
	if len(got) != 1 {
		t.Fatalf("expected 1 garment after replace, got %d", len(got))
	}
	if got[0].ImageURL != "https://img/updated" {
		t.Fatalf("replace did not overwrite fields: %+v", got[0])
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.DeleteGarment(ctx, "missing"); err != nil {
		t.Fatalf("delete of absent garment must be a no-op: %v", err)
	}
	if err := s.DeleteOutfit(ctx, "missing"); err != nil {
		t.Fatalf("delete of absent outfit must be a no-op: %v", err)
	}
}

func TestReadsDegradeToEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if got := s.Garments(ctx, "nobody"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if got := s.Outfits(ctx, "nobody"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}

	// Reads against a closed handle degrade to empty too.
	s.Close()
	if got := s.Garments(ctx, "u1"); len(got) != 0 {
		t.Fatalf("expected empty read on closed store, got %#v", got)
	}
}

func TestOutfitRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	rec := closet.OutfitRecord{
		ID:      "o1",
		OwnerID: "u1",
		Items: []closet.GarmentRecord{
			garment("g1", "u1", now.Add(-time.Hour)),
			garment("g2", "u1", now.Add(-2*time.Hour)),
		},
		CreatedAt: now,
	}
	if err := s.UpsertOutfits(ctx, []closet.OutfitRecord{rec}); err != nil {
		t.Fatalf("upsert outfit: %v", err)
	}

	got := s.Outfits(ctx, "u1")
	if len(got) != 1 {
		t.Fatalf("expected 1 outfit, got %d", len(got))
	}
	if got[0].ID != "o1" || len(got[0].Items) != 2 || got[0].Items[0].ID != "g1" {
		t.Fatalf("outfit snapshot did not survive round trip: %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got[0].CreatedAt, now)
	}
}

func TestGarmentsOrderMixedPrecisionTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Whole-second and fractional timestamps within the same second must
	// still order chronologically. A variable-width storage format would
	// sort "…:05Z" after "…:05.5Z".
	older := garment("older", "u1", time.Date(2026, 8, 1, 0, 0, 5, 0, time.UTC))
	newer := garment("newer", "u1", time.Date(2026, 8, 1, 0, 0, 5, 500_000_000, time.UTC))
	newest := garment("newest", "u1", time.Date(2026, 8, 1, 0, 0, 6, 0, time.UTC))
	if err := s.UpsertGarments(ctx, []closet.GarmentRecord{older, newest, newer}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := s.Garments(ctx, "u1")
	if len(got) != 3 {
		t.Fatalf("expected 3 garments, got %d", len(got))
	}
	for i, want := range []string{"newest", "newer", "older"} {
		if got[i].ID != want {
			t.Fatalf("position %d = %s, want %s (got order %v)", i, got[i].ID, want,
				[]string{got[0].ID, got[1].ID, got[2].ID})
		}
	}
}

func TestMigrateVersionOneTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if err := s.UpsertGarments(ctx, []closet.GarmentRecord{
		garment("older", "u1", time.Date(2026, 8, 1, 0, 0, 5, 0, time.UTC)),
		garment("newer", "u1", time.Date(2026, 8, 1, 0, 0, 5, 500_000_000, time.UTC)),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Rewrite the rows the way schema version 1 stored them.
	for id, legacy := range map[string]string{
		"older": "2026-08-01T00:00:05Z",
		"newer": "2026-08-01T00:00:05.5Z",
	} {
		if _, err := s.db.Exec(`UPDATE garments SET created_at = ? WHERE id = ?`, legacy, id); err != nil {
			t.Fatalf("downgrade row %s: %v", id, err)
		}
	}
	if _, err := s.db.Exec(`UPDATE _closet_meta SET value = '1' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("downgrade version: %v", err)
	}
	s.Close()

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got := reopened.Garments(ctx, "u1")
	if len(got) != 2 || got[0].ID != "newer" || got[1].ID != "older" {
		t.Fatalf("migrated rows out of order: %+v", got)
	}
	var stored string
	if err := reopened.db.QueryRow(`SELECT created_at FROM garments WHERE id = 'older'`).Scan(&stored); err != nil {
		t.Fatalf("read migrated row: %v", err)
	}
	if stored != "2026-08-01T00:00:05.000000000Z" {
		t.Fatalf("created_at = %q, want fixed-width layout", stored)
	}
	var version string
	if err := reopened.db.QueryRow(`SELECT value FROM _closet_meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != "2" {
		t.Fatalf("schema_version = %q after migration, want 2", version)
	}
}

func TestCorruptTimestampDegradesToZeroTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertGarments(ctx, []closet.GarmentRecord{
		garment("bad", "u1", time.Now().UTC()),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE garments SET created_at = 'garbage' WHERE id = 'bad'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	got := s.Garments(ctx, "u1")
	if len(got) != 1 || !got[0].CreatedAt.IsZero() {
		t.Fatalf("expected row with zero time, got %+v", got)
	}
}

func TestSchemaVersionTooNewFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	if _, err := db.Exec(`UPDATE _closet_meta SET value = '99' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := Open(path, nil); err == nil {
		t.Fatal("expected open to fail on newer schema version")
	}
}
