package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArtifactKey(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"png", "https://replicate.delivery/abc/out.png", "phase1/42.png"},
		{"query string ignored", "https://replicate.delivery/abc/out.mp4?sig=1", "phase1/42.mp4"},
		{"upper case", "https://replicate.delivery/abc/OUT.JPEG", "phase1/42.jpeg"},
		{"no extension", "https://replicate.delivery/abc/output", "phase1/42.jpg"},
		{"trailing slash", "https://replicate.delivery/abc/", "phase1/42.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArtifactKey("phase1", 42, tt.url))
		})
	}
}

func TestArtifactStore_PersistCopiesBytesAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("PNGDATA"))
		case "/untyped":
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte{0x00, 0x01})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	mem := NewMemoryStore("photos")
	store := NewArtifactStore(mem, WithPublicBaseURL("https://photos.example.com/"), WithArtifactLogger(quietLogger()))

	u, err := store.Persist(context.Background(), srv.URL+"/typed.png", "phase1/42.png")
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example.com/phase1/42.png", u)
	obj, err := mem.Get(context.Background(), "phase1/42.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("PNGDATA"), obj.Content)

	_, err = store.Persist(context.Background(), srv.URL+"/untyped", "phase2/42.jpg")
	require.NoError(t, err)
	obj, err = mem.Get(context.Background(), "phase2/42.jpg")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", obj.ContentType)
}

func TestArtifactStore_PersistDownloadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	srvURL := srv.URL
	mem := NewMemoryStore("photos")
	store := NewArtifactStore(mem, WithArtifactLogger(quietLogger()))

	_, err := store.Persist(context.Background(), srvURL+"/x.png", "phase1/1.png")
	assert.ErrorIs(t, err, common.ErrDownload)

	srv.Close()
	_, err = store.Persist(context.Background(), srvURL+"/x.png", "phase1/1.png")
	assert.ErrorIs(t, err, common.ErrDownload)
	assert.Empty(t, mem.Keys())
}

type failingBlobs struct{ MemoryStore }

func (failingBlobs) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}

func TestArtifactStore_PersistStorageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	store := NewArtifactStore(&failingBlobs{}, WithArtifactLogger(quietLogger()))
	_, err := store.Persist(context.Background(), srv.URL+"/x.png", "phase1/1.png")
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestArtifactStore_URLFallsBackToBlobStore(t *testing.T) {
	store := NewArtifactStore(NewMemoryStore("bucket"))
	assert.Equal(t, "memory://bucket/phase3/7.mp4", store.URL("phase3/7.mp4"))
}
