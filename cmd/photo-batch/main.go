package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/photo-pipeline/internal/bootstrap"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/export"
	"github.com/joseph-ayodele/photo-pipeline/internal/ingest"
	repo "github.com/joseph-ayodele/photo-pipeline/internal/repository"
	svc "github.com/joseph-ayodele/photo-pipeline/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem  = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir    = flag.String("dir", "", "directory of original photos to ingest and process")
		resume = flag.Bool("resume", false, "also process photos already recorded but not completed")
		limit  = flag.Int("limit", 100, "maximum number of incomplete photos to resume")
		out    = flag.String("out", "", "output XLSX file path (optional)")
	)
	flag.Parse()

	if *dir == "" && !*resume {
		printError("Error: --dir or --resume is required\n")
		os.Exit(1)
	}
	if *out == "" && *dir != "" {
		*out = filepath.Join(filepath.Dir(*dir), "photos.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if !cfg.Storage.CanUseS3() && cfg.Storage.PublicBaseURL == "" {
		logger.Warn("no reachable artifact storage configured; the prediction API will not be able to fetch originals")
	}

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	artifacts, err := bootstrap.NewArtifactStore(cfg.Storage, "", logger)
	if err != nil {
		logger.Error("failed to init artifact storage", "error", err)
		os.Exit(1)
	}
	components, err := bootstrap.New(cfg, db, artifacts, logger)
	if err != nil {
		logger.Error("failed to wire pipeline", "error", err)
		os.Exit(1)
	}

	var queue []int64
	if *resume {
		pending, err := components.Photos.ListIncomplete(ctx, *limit)
		if err != nil {
			logger.Error("failed to list incomplete photos", "error", err)
			os.Exit(1)
		}
		for _, p := range pending {
			queue = append(queue, p.ID)
		}
		logger.Info("resuming incomplete photos", "count", len(pending))
	}

	ingested := 0
	if *dir != "" {
		ingestor := ingest.NewPhotoIngestor(components.Photos, artifacts, logger)
		logger.Info("starting ingestion", "dir", *dir)
		results, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
		if err != nil {
			logger.Error("failed to ingest directory", "error", err)
			os.Exit(1)
		}
		for _, r := range results {
			if r.Err == "" {
				queue = append(queue, r.PhotoID)
				ingested++
			}
		}
		logger.Info("ingestion complete",
			"photos_ingested", ingested,
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed)
	}

	processed := 0
	failures := 0
	for _, id := range queue {
		if ctx.Err() != nil {
			logger.Warn("interrupted; remaining photos can be resumed", "remaining", len(queue)-processed-failures)
			break
		}
		logger.Info("processing photo", "photo_id", id)
		if _, err := components.Processor.Run(ctx, id); err != nil {
			logger.Error("failed to process photo", "photo_id", id, "code", common.CodeOf(err), "error", err)
			failures++
		} else {
			processed++
		}
	}

	if *out != "" {
		logger.Info("exporting to XLSX", "output", *out)
		xlsxBytes, err := export.NewService(components.Photos, logger).ExportPhotosXLSX(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error("failed to export photos", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
			logger.Error("failed to write output file", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("batch processing complete",
		"photos_ingested", ingested,
		"photos_processed", processed,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Photos ingested: %d\n", ingested)
	fmt.Printf("- Photos processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	if *out != "" {
		fmt.Printf("- Output: %s\n", *out)
	}
}
