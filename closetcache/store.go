// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

// Package closetcache implements the on-device wardrobe cache on SQLite and
// the reconciler that converges it to a remote snapshot.
//
// The cache is a convenience layer, not the durable store: reads degrade to
// empty results on failure and the facades treat write failures as log-only.
package closetcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// schemaVersion is the current on-device schema. Opening a database stamped
// with a higher version fails fast; lower versions are migrated forward.
const schemaVersion = 2

// storedTimeLayout is the created_at storage format. Fixed-width fractional
// seconds keep lexicographic ordering chronological, so ORDER BY created_at
// works on the TEXT column. RFC3339Nano would not: it drops trailing zeros,
// and '…:05Z' sorts after '…:05.5Z'.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the local cache over a single shared SQLite handle.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	writeMu sync.Mutex // serialize writes to avoid SQLite busy errors
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
	defaultErr   error
)

// OpenDefault returns the process-wide cache store, creating it on first
// call. Concurrent first calls share one initialization; the path of the
// first caller wins. Prefer Open plus explicit injection in tests.
func OpenDefault(path string, logger *slog.Logger) (*Store, error) {
	defaultOnce.Do(func() {
		defaultStore, defaultErr = Open(path, logger)
	})
	return defaultStore, defaultErr
}

// Open opens (or creates) the cache database at path and initializes the
// schema. Safe to call multiple times; initialization is idempotent.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// A single connection keeps initialization and write serialization
	// simple; the cache is process-exclusive.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.Init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing handle (used by tests that share an in-memory
// database). The caller keeps ownership of db.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Init creates the cache tables if absent and verifies the schema version.
// Idempotent and safe under concurrent calls on the shared handle.
func (s *Store) Init(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS garments (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			image_url  TEXT NOT NULL DEFAULT '',
			analysis   TEXT,             -- opaque JSON document
			created_at TEXT NOT NULL     -- storedTimeLayout, UTC
		)`,
		`CREATE INDEX IF NOT EXISTS idx_garments_owner
			ON garments(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS outfits (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			items      TEXT NOT NULL,    -- denormalized garment snapshots, JSON
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outfits_owner
			ON outfits(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS _closet_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range tables {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create cache table: %w", err)
		}
	}

	return s.ensureSchemaVersion(ctx)
}

func (s *Store) ensureSchemaVersion(ctx context.Context) error {
	var stored int
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST(value AS INTEGER) FROM _closet_meta WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO _closet_meta (key, value) VALUES ('schema_version', ?)`,
			fmt.Sprint(schemaVersion))
		if err != nil {
			return fmt.Errorf("failed to stamp schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if stored > schemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported version %d", stored, schemaVersion)
	}
	if stored < schemaVersion {
		if stored < 2 {
			if err := s.migrateTimestampFormat(ctx); err != nil {
				return err
			}
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE _closet_meta SET value = ? WHERE key = 'schema_version'`,
			fmt.Sprint(schemaVersion)); err != nil {
			return fmt.Errorf("failed to migrate schema version: %w", err)
		}
	}
	return nil
}

// migrateTimestampFormat rewrites version-1 created_at values (RFC3339Nano,
// variable-width fraction) into the fixed-width storedTimeLayout so that the
// TEXT ordering is chronological again. Rows are collected before updating:
// the store runs on a single connection.
func (s *Store) migrateTimestampFormat(ctx context.Context) error {
	for _, table := range []string{"garments", "outfits"} {
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT id, created_at FROM %s`, table))
		if err != nil {
			return fmt.Errorf("failed to read %s timestamps: %w", table, err)
		}
		type rewrite struct{ id, ts string }
		var rewrites []rewrite
		for rows.Next() {
			var id, stored string
			if err := rows.Scan(&id, &stored); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan %s timestamp: %w", table, err)
			}
			ts, err := time.Parse(time.RFC3339Nano, stored)
			if err != nil {
				s.logger.Warn("skipping unparseable timestamp during migration",
					"table", table, "id", id, "value", stored)
				continue
			}
			rewrites = append(rewrites, rewrite{id, ts.UTC().Format(storedTimeLayout)})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("failed to iterate %s timestamps: %w", table, err)
		}
		rows.Close()

		for _, r := range rewrites {
			if _, err := s.db.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET created_at = ? WHERE id = ?`, table),
				r.ts, r.id); err != nil {
				return fmt.Errorf("failed to rewrite %s timestamp: %w", table, err)
			}
		}
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertGarments inserts or replaces garments by id. A record missing its id
// or owner id is skipped with a warning rather than aborting the batch, and
// per-row failures do not stop the remaining rows. The returned error is
// non-nil only when the database itself is unusable.
func (s *Store) UpsertGarments(ctx context.Context, recs []closet.GarmentRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var firstErr error
	for _, rec := range recs {
		if rec.ID == "" || rec.OwnerID == "" {
			s.logger.Warn("skipping malformed garment record",
				"id", rec.ID, "owner_id", rec.OwnerID)
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO garments (id, owner_id, image_url, analysis, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.OwnerID, rec.ImageURL, nullableJSON(rec.Analysis),
			rec.CreatedAt.UTC().Format(storedTimeLayout))
		if err != nil {
			s.logger.Warn("failed to upsert garment row", "id", rec.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to upsert garment %s: %w", rec.ID, err)
			}
		}
	}
	return firstErr
}

// UpsertOutfits inserts or replaces outfits by id with the same skip and
// isolation semantics as UpsertGarments. Upsert-by-id makes the local-first
// outfit write tolerant of a later remote sync of the same row.
func (s *Store) UpsertOutfits(ctx context.Context, recs []closet.OutfitRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var firstErr error
	for _, rec := range recs {
		if rec.ID == "" || rec.OwnerID == "" {
			s.logger.Warn("skipping malformed outfit record",
				"id", rec.ID, "owner_id", rec.OwnerID)
			continue
		}
		items, err := json.Marshal(rec.Items)
		if err != nil {
			s.logger.Warn("failed to encode outfit items", "id", rec.ID, "error", err)
			continue
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO outfits (id, owner_id, items, created_at)
			VALUES (?, ?, ?, ?)`,
			rec.ID, rec.OwnerID, string(items),
			rec.CreatedAt.UTC().Format(storedTimeLayout))
		if err != nil {
			s.logger.Warn("failed to upsert outfit row", "id", rec.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to upsert outfit %s: %w", rec.ID, err)
			}
		}
	}
	return firstErr
}

// DeleteGarment deletes a garment by id. Absence is a no-op, not an error.
func (s *Store) DeleteGarment(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM garments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete garment %s: %w", id, err)
	}
	return nil
}

// DeleteOutfit deletes an outfit by id. Absence is a no-op.
func (s *Store) DeleteOutfit(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM outfits WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete outfit %s: %w", id, err)
	}
	return nil
}

// Garments returns the cached garments for an owner, newest first. A cache
// read failure degrades to an empty slice; it never surfaces to the caller.
func (s *Store) Garments(ctx context.Context, ownerID string) []closet.GarmentRecord {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, image_url, analysis, created_at
		FROM garments WHERE owner_id = ?
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		s.logger.Warn("cache read failed, returning empty garment list",
			"owner_id", ownerID, "error", err)
		return []closet.GarmentRecord{}
	}
	defer rows.Close()

	recs := []closet.GarmentRecord{}
	for rows.Next() {
		var rec closet.GarmentRecord
		var analysis sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.ImageURL, &analysis, &createdAt); err != nil {
			s.logger.Warn("failed to scan garment row", "error", err)
			continue
		}
		if analysis.Valid {
			rec.Analysis = json.RawMessage(analysis.String)
		}
		rec.CreatedAt = s.parseStoredTime(createdAt)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("cache read interrupted", "owner_id", ownerID, "error", err)
	}
	return recs
}

// Outfits returns the cached outfits for an owner, newest first, with the
// same degrade-to-empty read semantics as Garments.
func (s *Store) Outfits(ctx context.Context, ownerID string) []closet.OutfitRecord {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, items, created_at
		FROM outfits WHERE owner_id = ?
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		s.logger.Warn("cache read failed, returning empty outfit list",
			"owner_id", ownerID, "error", err)
		return []closet.OutfitRecord{}
	}
	defer rows.Close()

	recs := []closet.OutfitRecord{}
	for rows.Next() {
		var rec closet.OutfitRecord
		var items string
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &items, &createdAt); err != nil {
			s.logger.Warn("failed to scan outfit row", "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
			s.logger.Warn("failed to decode outfit items", "id", rec.ID, "error", err)
			continue
		}
		rec.CreatedAt = s.parseStoredTime(createdAt)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("cache read interrupted", "owner_id", ownerID, "error", err)
	}
	return recs
}

// GarmentIDs returns the set of garment ids cached for an owner.
func (s *Store) GarmentIDs(ctx context.Context, ownerID string) ([]string, error) {
	return s.idSet(ctx, "garments", ownerID)
}

// OutfitIDs returns the set of outfit ids cached for an owner.
func (s *Store) OutfitIDs(ctx context.Context, ownerID string) ([]string, error) {
	return s.idSet(ctx, "outfits", ownerID)
}

func (s *Store) idSet(ctx context.Context, table, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE owner_id = ?`, table), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s ids: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s ids: %w", table, err)
	}
	return ids, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// parseStoredTime accepts both the fixed-width layout and the looser
// RFC3339Nano written by schema version 1.
func (s *Store) parseStoredTime(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.logger.Warn("failed to parse cached timestamp", "value", v, "error", err)
		return time.Time{}
	}
	return ts
}
