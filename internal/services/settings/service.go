package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

// KeyAutoApprove makes uploads start processing immediately.
const KeyAutoApprove = "auto-approve"

// Defaults applied when a key was never written.
var defaults = map[string]bool{
	KeyAutoApprove: false,
}

// Service handles runtime settings.
type Service struct {
	repo   repository.SettingsRepository
	logger *slog.Logger
}

func NewService(repo repository.SettingsRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Bool returns the boolean stored under key, or its default.
func (s *Service) Bool(ctx context.Context, key string) (bool, error) {
	setting, err := s.repo.Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return defaults[key], nil
	}
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(setting.Value)
	if err != nil {
		s.logger.Warn("setting is not a boolean; using default", "key", key, "value", setting.Value)
		return defaults[key], nil
	}
	return v, nil
}

// AutoApprove reports whether uploads are processed without review.
func (s *Service) AutoApprove(ctx context.Context) bool {
	v, err := s.Bool(ctx, KeyAutoApprove)
	if err != nil {
		s.logger.Error("read auto-approve failed; treating as off", "error", err)
		return false
	}
	return v
}

// Snapshot returns every known boolean setting.
func (s *Service) Snapshot(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(defaults))
	for key := range defaults {
		v, err := s.Bool(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// Update writes the given settings. Unknown keys are rejected.
func (s *Service) Update(ctx context.Context, values map[string]bool) error {
	for key := range values {
		if _, ok := defaults[key]; !ok {
			return common.InvalidInputf("unknown setting %q", key)
		}
	}
	for key, v := range values {
		if err := s.repo.Set(ctx, key, strconv.FormatBool(v)); err != nil {
			return err
		}
	}
	return nil
}
