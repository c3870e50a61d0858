package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/internal/async"
	"github.com/joseph-ayodele/photo-pipeline/internal/bootstrap"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/export"
	"github.com/joseph-ayodele/photo-pipeline/internal/ingest"
	repo "github.com/joseph-ayodele/photo-pipeline/internal/repository"
	svc "github.com/joseph-ayodele/photo-pipeline/internal/server"
	photosvc "github.com/joseph-ayodele/photo-pipeline/internal/services/photo"
	settingssvc "github.com/joseph-ayodele/photo-pipeline/internal/services/settings"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	artifacts, err := bootstrap.NewArtifactStore(cfg.Storage, localFilesBase(cfg.Server.HTTPAddr), logger)
	if err != nil {
		logger.Error("failed to init artifact storage", "error", err)
		os.Exit(1)
	}
	components, err := bootstrap.New(cfg, db, artifacts, logger)
	if err != nil {
		logger.Error("failed to wire pipeline", "error", err)
		os.Exit(1)
	}

	settings := settingssvc.NewService(components.Settings, logger)
	ingestor := ingest.NewPhotoIngestor(components.Photos, artifacts, logger)

	var photoService *photosvc.Service
	// runs outlive the signal; Shutdown drains them and cancels only on timeout
	queue := async.NewProcessorQueue(context.Background(), components.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithOnDone(func(job async.Job, _ error) { photoService.Forget(job.PhotoID) }),
	)
	photoService = photosvc.NewService(components.Photos, ingestor, queue, settings, logger)

	api := svc.New(photoService, settings, export.NewService(components.Photos, logger), logger,
		svc.WithObjects(artifacts),
		svc.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		svc.WithPing(func(ctx context.Context) error { return repo.HealthCheck(ctx, db, 2*time.Second, logger) }),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health server
	lis, err := net.Listen("tcp", cfg.Server.GRPCHealthAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCHealthAddr, "error", err)
		os.Exit(1)
	}
	healthServer := svc.NewHealthServer(logger)
	healthServer.SetServing(true)
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			logger.Error("gRPC health serve error", "error", err)
		}
	}()

	logger.Info("photo-pipeline listening", "addr", cfg.Server.HTTPAddr)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	healthServer.Stop()
}

// localFilesBase is where the in-memory artifact store is reachable when no
// public base URL is configured.
func localFilesBase(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/files"
}
