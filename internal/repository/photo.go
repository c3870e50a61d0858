package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
)

const photosTable = "photos"

// PhotoRepository loads and checkpoints photo records.
type PhotoRepository interface {
	Load(ctx context.Context, id int64) (*entity.Photo, error)
	Update(ctx context.Context, id int64, upd PhotoUpdate) error
	Create(ctx context.Context, originalSourceURL string, originalObjectKey *string) (*entity.Photo, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Photo, error)
	ListIncomplete(ctx context.Context, limit int) ([]*entity.Photo, error)
	Count(ctx context.Context) (int, error)
}

// PhaseUpdate carries the phase fields to write. Nil fields are left alone.
type PhaseUpdate struct {
	JobID        *string
	JobStatusURL *string
	OutputURL    *string
	ArtifactKey  *string
	ArtifactURL  *string
}

// PhotoUpdate is a partial update; only non-nil fields are written.
// A LastError pointing at "" clears the column.
type PhotoUpdate struct {
	Phases      map[int]PhaseUpdate
	LastError   *string
	IsPublic    *bool
	IsModerated *bool
}

// SubmittedUpdate records the first checkpoint of a phase.
func SubmittedUpdate(phase int, jobID, statusURL string) PhotoUpdate {
	return PhotoUpdate{Phases: map[int]PhaseUpdate{
		phase: {JobID: &jobID, JobStatusURL: &statusURL},
	}}
}

// ArtifactUpdate records the completion checkpoint of a phase.
func ArtifactUpdate(phase int, outputURL, key, artifactURL string) PhotoUpdate {
	return PhotoUpdate{Phases: map[int]PhaseUpdate{
		phase: {OutputURL: &outputURL, ArtifactKey: &key, ArtifactURL: &artifactURL},
	}}
}

func (u PhotoUpdate) empty() bool {
	return len(u.Phases) == 0 && u.LastError == nil && u.IsPublic == nil && u.IsModerated == nil
}

type photoRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

// RepoOption customizes a repository.
type RepoOption func(*photoRepo)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) RepoOption {
	return func(r *photoRepo) {
		if now != nil {
			r.now = now
		}
	}
}

func NewPhotoRepository(db *DB, logger *slog.Logger, opts ...RepoOption) PhotoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &photoRepo{db: db, logger: logger, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func phaseColumn(phase int, field string) string {
	return fmt.Sprintf("phase%d_%s", phase, field)
}

var photoColumns = func() []string {
	cols := []string{"id", "original_source_url", "original_object_key"}
	for p := 1; p <= constants.PhaseCount; p++ {
		cols = append(cols,
			phaseColumn(p, "job_id"),
			phaseColumn(p, "job_status_url"),
			phaseColumn(p, "output_url"),
			phaseColumn(p, "artifact_key"),
			phaseColumn(p, "artifact_url"),
		)
	}
	return append(cols, "last_error", "is_public", "is_moderated", "create_timestamp", "update_timestamp")
}()

func (r *photoRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *photoRepo) selectPhotos() *entsql.Selector {
	b := r.builder()
	return b.Select(photoColumns...).From(b.Table(photosTable))
}

func (r *photoRepo) Load(ctx context.Context, id int64) (*entity.Photo, error) {
	query, args := r.selectPhotos().Where(entsql.EQ("id", id)).Query()
	photo, err := scanPhoto(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("photo %d not found", id)
	}
	if err != nil {
		r.logger.Error("failed to load photo", "photo_id", id, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "load photo", err)
	}
	return photo, nil
}

func (r *photoRepo) Update(ctx context.Context, id int64, upd PhotoUpdate) error {
	if upd.empty() {
		return nil
	}
	ub := r.builder().Update(photosTable)
	for phase, pu := range upd.Phases {
		if phase < 1 || phase > constants.PhaseCount {
			return common.InvalidInputf("phase index %d out of range", phase)
		}
		setString(ub, phaseColumn(phase, "job_id"), pu.JobID)
		setString(ub, phaseColumn(phase, "job_status_url"), pu.JobStatusURL)
		setString(ub, phaseColumn(phase, "output_url"), pu.OutputURL)
		setString(ub, phaseColumn(phase, "artifact_key"), pu.ArtifactKey)
		setString(ub, phaseColumn(phase, "artifact_url"), pu.ArtifactURL)
	}
	if upd.LastError != nil {
		if *upd.LastError == "" {
			ub.SetNull("last_error")
		} else {
			ub.Set("last_error", *upd.LastError)
		}
	}
	if upd.IsPublic != nil {
		ub.Set("is_public", *upd.IsPublic)
	}
	if upd.IsModerated != nil {
		ub.Set("is_moderated", *upd.IsModerated)
	}
	ub.Set("update_timestamp", r.now().UTC())

	query, args := ub.Where(entsql.EQ("id", id)).Query()
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update photo", "photo_id", id, "error", err)
		return common.NewAppError(common.CodeDatabase, "update photo", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "update photo", err)
	}
	if n == 0 {
		return common.NotFoundf("photo %d not found", id)
	}
	r.logger.Debug("photo updated", "photo_id", id)
	return nil
}

func setString(ub *entsql.UpdateBuilder, column string, v *string) {
	if v != nil {
		ub.Set(column, *v)
	}
}

func (r *photoRepo) Create(ctx context.Context, originalSourceURL string, originalObjectKey *string) (*entity.Photo, error) {
	now := r.now().UTC()
	var objectKey any
	if originalObjectKey != nil {
		objectKey = *originalObjectKey
	}
	ib := r.builder().Insert(photosTable).
		Columns("original_source_url", "original_object_key", "is_public", "is_moderated", "create_timestamp", "update_timestamp").
		Values(originalSourceURL, objectKey, false, false, now, now)

	var id int64
	if r.db.Dialect == dialect.Postgres {
		query, args := ib.Returning("id").Query()
		if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			r.logger.Error("failed to create photo", "source_url", originalSourceURL, "error", err)
			return nil, common.NewAppError(common.CodeDatabase, "create photo", err)
		}
	} else {
		query, args := ib.Query()
		res, err := r.db.SQL.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.Error("failed to create photo", "source_url", originalSourceURL, "error", err)
			return nil, common.NewAppError(common.CodeDatabase, "create photo", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "create photo", err)
		}
	}
	r.logger.Info("photo created", "photo_id", id, "source_url", originalSourceURL)
	return r.Load(ctx, id)
}

func (r *photoRepo) List(ctx context.Context, limit, offset int) ([]*entity.Photo, error) {
	sel := r.selectPhotos().OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	if offset > 0 {
		sel.Offset(offset)
	}
	return r.query(ctx, sel)
}

// ListIncomplete returns photos whose final artifact is missing, oldest first.
func (r *photoRepo) ListIncomplete(ctx context.Context, limit int) ([]*entity.Photo, error) {
	sel := r.selectPhotos().
		Where(entsql.IsNull(phaseColumn(constants.PhaseCount, "artifact_url"))).
		OrderBy("id")
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.query(ctx, sel)
}

func (r *photoRepo) Count(ctx context.Context) (int, error) {
	b := r.builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(photosTable)).Query()
	var n int
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, common.NewAppError(common.CodeDatabase, "count photos", err)
	}
	return n, nil
}

func (r *photoRepo) query(ctx context.Context, sel *entsql.Selector) ([]*entity.Photo, error) {
	query, args := sel.Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list photos", "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "list photos", err)
	}
	defer rows.Close()

	var out []*entity.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan photo", err)
		}
		out = append(out, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "list photos", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*entity.Photo, error) {
	var (
		p         entity.Photo
		objectKey sql.NullString
		lastError sql.NullString
		phases    [constants.PhaseCount][5]sql.NullString
	)
	dest := []any{&p.ID, &p.OriginalSourceURL, &objectKey}
	for i := range phases {
		for j := range phases[i] {
			dest = append(dest, &phases[i][j])
		}
	}
	dest = append(dest, &lastError, &p.IsPublic, &p.IsModerated, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	p.OriginalObjectKey = nullString(objectKey)
	p.LastError = nullString(lastError)
	for i, f := range phases {
		p.Phases[i] = entity.PhaseRecord{
			JobID:        nullString(f[0]),
			JobStatusURL: nullString(f[1]),
			OutputURL:    nullString(f[2]),
			ArtifactKey:  nullString(f[3]),
			ArtifactURL:  nullString(f[4]),
		}
	}
	return &p, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
