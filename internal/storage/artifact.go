package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
)

// ArtifactStore copies remote outputs into the BlobStore and hands back the
// URL clients should use to retrieve them.
type ArtifactStore struct {
	blobs      BlobStore
	http       *http.Client
	publicBase string
	logger     *slog.Logger
}

type ArtifactOption func(*ArtifactStore)

// WithPublicBaseURL makes returned URLs "{base}/{key}".
func WithPublicBaseURL(base string) ArtifactOption {
	return func(s *ArtifactStore) {
		s.publicBase = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

func WithDownloadClient(hc *http.Client) ArtifactOption {
	return func(s *ArtifactStore) {
		if hc != nil {
			s.http = hc
		}
	}
}

func WithArtifactLogger(logger *slog.Logger) ArtifactOption {
	return func(s *ArtifactStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewArtifactStore(blobs BlobStore, opts ...ArtifactOption) *ArtifactStore {
	s := &ArtifactStore{
		blobs:  blobs,
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Persist downloads sourceURL and stores it under key. The whole body is
// buffered before the write.
func (s *ArtifactStore) Persist(ctx context.Context, sourceURL, key string) (string, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", common.DownloadError(fmt.Sprintf("build request for %s", sourceURL), err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Error("artifact.download.failed", "url", sourceURL, "error", err)
		return "", common.DownloadError(fmt.Sprintf("get %s", sourceURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		s.logger.Error("artifact.download.rejected", "url", sourceURL, "status", resp.StatusCode)
		return "", common.DownloadError(fmt.Sprintf("get %s", sourceURL), fmt.Errorf("non-2xx status: %d", resp.StatusCode))
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.DownloadError(fmt.Sprintf("read %s", sourceURL), err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = constants.DefaultContentType
	}

	u, err := s.Put(ctx, key, content, contentType)
	if err != nil {
		return "", err
	}
	s.logger.Info("artifact.persisted",
		"key", key,
		"bytes", len(content),
		"content_type", contentType,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return u, nil
}

// Put writes content under key and returns its public URL.
func (s *ArtifactStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	if err := s.blobs.Put(ctx, key, content, contentType); err != nil {
		s.logger.Error("artifact.store.failed", "key", key, "error", err)
		return "", common.StorageError(fmt.Sprintf("put %s", key), err)
	}
	return s.URL(key), nil
}

// Get reads a stored object back.
func (s *ArtifactStore) Get(ctx context.Context, key string) (*Object, error) {
	return s.blobs.Get(ctx, key)
}

// URL is the retrievable address of key.
func (s *ArtifactStore) URL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + strings.TrimLeft(key, "/")
	}
	return s.blobs.URL(key)
}

// ArtifactKey builds "{phaseName}/{photoID}.{ext}" where ext comes from the
// last path segment of resolvedURL and defaults to jpg.
func ArtifactKey(phaseName string, photoID int64, resolvedURL string) string {
	return fmt.Sprintf("%s/%d.%s", phaseName, photoID, extensionOf(resolvedURL))
}

func extensionOf(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := constants.NormalizeExt(path.Ext(path.Base(p)))
	if ext == "" {
		return constants.DefaultArtifactExt
	}
	return ext
}
