package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
	"github.com/joseph-ayodele/photo-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

const sheet = "Photos"

// Service produces XLSX workbooks of photo records and their progress.
type Service struct {
	photos repository.PhotoRepository
	logger *slog.Logger
}

func NewService(photos repository.PhotoRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{photos: photos, logger: logger}
}

var headers = []string{
	"ID",
	"Created",
	"Status",
	"Progress",
	"Current Phase",
	"Original",
	"Phase 1 Artifact",
	"Phase 2 Artifact",
	"Phase 3 Artifact",
	"Public",
	"Moderated",
	"Last Error",
}

// ExportPhotosXLSX returns every photo record as an XLSX workbook.
func (s *Service) ExportPhotosXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	photos, err := s.photos.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}

	f, err := buildWorkbook(photos)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(photos),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WritePhotosXLSX streams the workbook to w.
func (s *Service) WritePhotosXLSX(ctx context.Context, w io.Writer) error {
	b, err := s.ExportPhotosXLSX(ctx)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func buildWorkbook(photos []*entity.Photo) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, p := range photos {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		progress := pipeline.Project(p)

		write(1, p.ID)
		write(2, p.CreatedAt.UTC().Format(time.RFC3339))
		write(3, string(progress.Status))
		write(4, progress.Progress)
		write(5, progress.CurrentPhase)
		write(6, p.OriginalSourceURL)
		write(7, p.ArtifactURL(1))
		write(8, p.ArtifactURL(2))
		write(9, p.ArtifactURL(3))
		write(10, p.IsPublic)
		write(11, p.IsModerated)
		write(12, truncate(progress.Error, 140))
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", "B", 22)
	_ = f.SetColWidth(sheet, "C", "E", 14)
	_ = f.SetColWidth(sheet, "F", "I", 48)
	_ = f.SetColWidth(sheet, "L", "L", 60)
	return f, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
