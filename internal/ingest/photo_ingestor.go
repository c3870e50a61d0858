package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

// ObjectWriter stores bytes and returns their public URL.
type ObjectWriter interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

// PhotoIngestor writes originals under "original/{uuid}.{ext}" and creates a
// photo record pointing at them.
type PhotoIngestor struct {
	photos  repository.PhotoRepository
	objects ObjectWriter
	logger  *slog.Logger
}

func NewPhotoIngestor(photos repository.PhotoRepository, objects ObjectWriter, logger *slog.Logger) *PhotoIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoIngestor{photos: photos, objects: objects, logger: logger}
}

func (i *PhotoIngestor) IngestBytes(ctx context.Context, filename string, content []byte, contentType string) (IngestionResult, error) {
	var out IngestionResult

	ext := constants.NormalizeExt(filepath.Ext(filename))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "filename", filename, "ext", ext)
		return out, common.InvalidInputf("unsupported or missing extension %q", ext)
	}
	if len(content) == 0 {
		return out, common.InvalidInputf("file %q is empty", filename)
	}
	if contentType == "" || contentType == constants.DefaultContentType {
		contentType = contentTypeFor(ext)
	}

	sum := sha256.Sum256(content)
	key := fmt.Sprintf("%s/%s.%s", constants.OriginalKeyPrefix, uuid.NewString(), ext)
	sourceURL, err := i.objects.Put(ctx, key, content, contentType)
	if err != nil {
		return out, err
	}

	photo, err := i.photos.Create(ctx, sourceURL, &key)
	if err != nil {
		return out, err
	}

	out = IngestionResult{
		SourcePath: filename,
		PhotoID:    photo.ID,
		ObjectKey:  key,
		SourceURL:  sourceURL,
		HashHex:    hex.EncodeToString(sum[:]),
		FileExt:    ext,
		UploadedAt: photo.CreatedAt,
	}
	i.logger.Info("photo ingested", "photo_id", photo.ID, "key", key, "bytes", len(content))
	return out, nil
}

func (i *PhotoIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{}, err
	}
	if !AllowedExt(filepath.Ext(abs)) {
		return IngestionResult{}, common.InvalidInputf("unsupported or missing extension for %s", abs)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("read file failed", "path", abs, "error", err)
		return IngestionResult{}, err
	}
	r, err := i.IngestBytes(ctx, filepath.Base(abs), content, "")
	r.SourcePath = abs
	return r, err
}

// IngestDirectory walks root, skips hidden entries if requested,
// and calls IngestPath for each image. Returns per-file results + aggregate stats.
func (i *PhotoIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats
	start := time.Now()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		return nil
	})
	i.logger.Info("directory ingest finished",
		"root", root,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
