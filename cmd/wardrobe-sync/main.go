// Command wardrobe-sync wires the sync core together and runs one full
// load cycle for a user: cache paint, remote fetch, reconciliation. It is
// the reference embedding for the mobile host.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruhadaam/Wardrobe-sub000/closetai"
	"github.com/Ruhadaam/Wardrobe-sub000/closetcache"
	"github.com/Ruhadaam/Wardrobe-sub000/closetremote"
	"github.com/Ruhadaam/Wardrobe-sub000/internal/config"
	"github.com/Ruhadaam/Wardrobe-sub000/wardrobe"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	ownerID := flag.String("owner", "", "user id to sync")
	deviceID := flag.String("device", "dev-local", "device id for auth tokens")
	flag.Parse()

	if err := run(*configPath, *ownerID, *deviceID); err != nil {
		slog.Error("wardrobe-sync failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, ownerID, deviceID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is required (-owner)")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	cache, err := closetcache.OpenDefault(cfg.CachePath, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	remote, err := newRemote(ctx, cfg, ownerID, deviceID, logger)
	if err != nil {
		return err
	}

	var blobs closetremote.BlobStore
	if cfg.MinioEndpoint != "" {
		blobs, err = closetremote.NewMinioBlobs(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioPublicURL, cfg.MinioUseSSL)
		if err != nil {
			return err
		}
	}
	var vision wardrobe.Analyzer
	if cfg.VisionURL != "" {
		vision = closetai.NewVisionClient(cfg.VisionURL, cfg.VisionAPIKey)
	}
	var stylist wardrobe.Stylist
	if cfg.StylistURL != "" {
		stylist = closetai.NewStylistClient(cfg.StylistURL, cfg.StylistAPIKey)
	}

	rec := closetcache.NewReconciler(cache, logger)
	fcfg := &wardrobe.Config{SyncTimeout: cfg.SyncTimeout, Logger: logger}
	garments := wardrobe.NewService(remote, blobs, vision, cache, rec, fcfg)
	outfits := wardrobe.NewOutfits(remote, stylist, cache, rec, fcfg)

	provider := wardrobe.NewProvider(garments, nil, logger)
	provider.SetUser(ctx, ownerID)
	if err := provider.LastSyncErr(); err != nil {
		logger.Warn("garment sync failed; showing cached data", "error", err)
	}
	logger.Info("wardrobe loaded",
		"owner_id", ownerID,
		"garments", len(provider.Items()),
		"phase", provider.Phase().String())

	outfitRecs, err := outfits.FetchAndSync(ctx, ownerID)
	if err != nil {
		logger.Warn("outfit sync failed; showing cached data", "error", err)
		outfitRecs = outfits.ReadLocal(ctx, ownerID)
	}
	logger.Info("outfits loaded", "owner_id", ownerID, "outfits", len(outfitRecs))

	for category, items := range wardrobe.GroupByCategory(provider.Items()) {
		logger.Info("category", "name", category, "count", len(items))
	}
	return nil
}

func newRemote(ctx context.Context, cfg config.Config, ownerID, deviceID string, logger *slog.Logger) (closetremote.Client, error) {
	switch cfg.RemoteMode {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return closetremote.NewPGStore(ctx, pool, logger)
	default:
		tokens := closetremote.NewTokenSource(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
		return closetremote.NewHTTPClient(cfg.RemoteBaseURL,
			tokens.TokenFunc(ownerID, deviceID), logger), nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
