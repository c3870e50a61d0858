package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/internal/bootstrap"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/pipeline"
	repo "github.com/joseph-ayodele/photo-pipeline/internal/repository"
	svc "github.com/joseph-ayodele/photo-pipeline/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runphoto <photo-id>")
		os.Exit(2)
	}
	photoID, err := strconv.ParseInt(os.Args[1], 10, 64)
	if err != nil || photoID <= 0 {
		logger.Error("invalid photo id (must be a positive integer)", "arg", os.Args[1])
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	// Three phases of up to 60 polls at 5s each, plus transfers.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	artifacts, err := bootstrap.NewArtifactStore(cfg.Storage, "", logger)
	if err != nil {
		logger.Error("init artifact storage", "error", err)
		os.Exit(1)
	}
	components, err := bootstrap.New(cfg, db, artifacts, logger)
	if err != nil {
		logger.Error("wire pipeline", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	photo, err := components.Processor.Run(common.WithRunID(ctx, "cli-"+os.Args[1]), photoID)
	dur := time.Since(start)
	if err != nil {
		logger.Error("photo run failed",
			"photo_id", photoID, "code", common.CodeOf(err), "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	progress := pipeline.Project(photo)
	logger.Info("photo run OK",
		"photo_id", photoID,
		"status", progress.Status,
		"progress", progress.Progress,
		"phase1", photo.ArtifactURL(1),
		"phase2", photo.ArtifactURL(2),
		"phase3", photo.ArtifactURL(3),
		"duration_ms", dur.Milliseconds(),
	)
}
