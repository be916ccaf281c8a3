// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// PGStore implements Client directly over Postgres for self-hosted
// deployments, where the hosted REST backend is replaced by a database the
// operator controls.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore creates the store and initializes its schema.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*PGStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PGStore{pool: pool, logger: logger}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS garments (
				id         UUID PRIMARY KEY,
				owner_id   TEXT NOT NULL,
				image_url  TEXT NOT NULL DEFAULT '',
				analysis   JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_garments_owner_created
				ON garments(owner_id, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS outfits (
				id         UUID PRIMARY KEY,
				owner_id   TEXT NOT NULL,
				items      JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outfits_owner_created
				ON outfits(owner_id, created_at DESC)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote schema: %w", err)
	}
	return s, nil
}

// QueryGarments returns all garments owned by ownerID, newest first.
func (s *PGStore) QueryGarments(ctx context.Context, ownerID string) ([]closet.GarmentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, image_url, analysis, created_at
		FROM garments WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query garments: %w", err)
	}
	defer rows.Close()

	var recs []closet.GarmentRecord
	for rows.Next() {
		rec, err := scanGarment(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate garments: %w", err)
	}
	return recs, nil
}

// GetGarment returns one garment by id, or ErrNotFound.
func (s *PGStore) GetGarment(ctx context.Context, id string) (closet.GarmentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, image_url, analysis, created_at
		FROM garments WHERE id = $1`, id)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to query garment %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return closet.GarmentRecord{}, fmt.Errorf("failed to read garment %s: %w", id, err)
		}
		return closet.GarmentRecord{}, ErrNotFound
	}
	return scanGarment(rows)
}

// InsertGarment persists a garment and assigns its id.
func (s *PGStore) InsertGarment(ctx context.Context, rec closet.GarmentRecord) (closet.GarmentRecord, error) {
	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO garments (id, owner_id, image_url, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.OwnerID, rec.ImageURL, rawOrNil(rec.Analysis), rec.CreatedAt)
	if err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to insert garment: %w", err)
	}
	return rec, nil
}

// DeleteGarment removes a garment row; deleting an absent row is ErrNotFound
// so callers never believe a delete succeeded when nothing was removed.
func (s *PGStore) DeleteGarment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM garments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete garment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete garment %s: %w", id, ErrNotFound)
	}
	return nil
}

// QueryOutfits returns all outfits owned by ownerID, newest first.
func (s *PGStore) QueryOutfits(ctx context.Context, ownerID string) ([]closet.OutfitRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, items, created_at
		FROM outfits WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outfits: %w", err)
	}
	defer rows.Close()

	var recs []closet.OutfitRecord
	for rows.Next() {
		var rec closet.OutfitRecord
		var items []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &items, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outfit: %w", err)
		}
		if err := json.Unmarshal(items, &rec.Items); err != nil {
			return nil, fmt.Errorf("failed to decode outfit items: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outfits: %w", err)
	}
	return recs, nil
}

// InsertOutfit persists an outfit under its client-generated id. Inserting
// the same id twice upserts, mirroring the local store's tolerance of the
// local-first write path.
func (s *PGStore) InsertOutfit(ctx context.Context, rec closet.OutfitRecord) error {
	if rec.ID == "" {
		return errors.New("outfit id must be generated by the client")
	}
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("failed to encode outfit items: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO outfits (id, owner_id, items, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET items = EXCLUDED.items`,
		rec.ID, rec.OwnerID, items, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outfit %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteOutfit removes an outfit row by id.
func (s *PGStore) DeleteOutfit(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM outfits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete outfit %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete outfit %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanGarment(rows pgx.Rows) (closet.GarmentRecord, error) {
	var rec closet.GarmentRecord
	var analysis []byte
	if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.ImageURL, &analysis, &rec.CreatedAt); err != nil {
		return closet.GarmentRecord{}, fmt.Errorf("failed to scan garment: %w", err)
	}
	if len(analysis) > 0 {
		rec.Analysis = json.RawMessage(analysis)
	}
	return rec, nil
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
