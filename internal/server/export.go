package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.export.ExportPhotosXLSX(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("photos-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	obj, err := s.objects.Get(r.Context(), r.PathValue("key"))
	if errors.Is(err, storage.ErrObjectNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Content)
}
