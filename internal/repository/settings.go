package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
)

const settingsTable = "settings"

type SettingsRepository interface {
	Get(ctx context.Context, key string) (*entity.Setting, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]*entity.Setting, error)
}

type settingsRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewSettingsRepository(db *DB, logger *slog.Logger) SettingsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &settingsRepository{db: db, logger: logger, now: time.Now}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*entity.Setting, error) {
	b := entsql.Dialect(r.db.Dialect)
	query, args := b.Select("key", "value", "update_timestamp").
		From(b.Table(settingsTable)).
		Where(entsql.EQ("key", key)).
		Query()

	var s entity.Setting
	err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("setting %q not found", key)
	}
	if err != nil {
		r.logger.Error("failed to get setting", "key", key, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "get setting", err)
	}
	return &s, nil
}

// Set inserts or replaces the value stored under key.
func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	query, args := entsql.Dialect(r.db.Dialect).
		Insert(settingsTable).
		Columns("key", "value", "update_timestamp").
		Values(key, value, r.now().UTC()).
		OnConflict(
			entsql.ConflictColumns("key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to set setting", "key", key, "error", err)
		return common.NewAppError(common.CodeDatabase, "set setting", err)
	}
	r.logger.Info("setting updated", "key", key, "value", value)
	return nil
}

func (r *settingsRepository) List(ctx context.Context) ([]*entity.Setting, error) {
	b := entsql.Dialect(r.db.Dialect)
	query, args := b.Select("key", "value", "update_timestamp").
		From(b.Table(settingsTable)).
		OrderBy("key").
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "list settings", err)
	}
	defer rows.Close()

	var out []*entity.Setting
	for rows.Next() {
		var s entity.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan setting", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "list settings", err)
	}
	return out, nil
}
