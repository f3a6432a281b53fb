package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
)

// NewUpload carries what is known about a file when it is registered.
type NewUpload struct {
	OwnerID     uuid.UUID
	SourcePath  string
	Filename    string
	FileExt     string
	FileSize    int64
	ContentHash string
	UploadedAt  time.Time
}

type UploadRepository interface {
	// GetByID loads an upload owned by ownerID; other owners' uploads are reported as not found.
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*entity.Upload, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Upload, error)
	UpsertByHash(ctx context.Context, in NewUpload) (*entity.Upload, bool, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*entity.Upload, error)
	ListWithData(ctx context.Context, ownerID uuid.UUID) ([]*entity.Upload, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.ExtractionStatus) error
	SaveText(ctx context.Context, id uuid.UUID, text string) error
	SaveExtractedData(ctx context.Context, id uuid.UUID, data json.RawMessage) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

type uploadRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewUploadRepository(db *DB, logger *slog.Logger) UploadRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &uploadRepo{db: db, logger: logger}
}

var uploadColumns = []string{
	"id", "owner_id", "source_path", "filename", "file_ext", "file_size", "content_hash",
	"uploaded_at", "updated_at", "status", "error_message", "extracted_text", "extracted_data",
}

func (r *uploadRepo) selectUploads() *entsql.Selector {
	b := r.db.builder()
	return b.Select(uploadColumns...).From(b.Table(tableUploads))
}

func (r *uploadRepo) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*entity.Upload, error) {
	query, args := r.selectUploads().
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.EQ("owner_id", ownerID.String()))).
		Query()
	return r.one(ctx, query, args, id)
}

func (r *uploadRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Upload, error) {
	query, args := r.selectUploads().Where(entsql.EQ("id", id.String())).Query()
	return r.one(ctx, query, args, id)
}

func (r *uploadRepo) one(ctx context.Context, query string, args []any, id uuid.UUID) (*entity.Upload, error) {
	u, err := scanUpload(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound(fmt.Sprintf("upload %s not found", id))
	}
	if err != nil {
		r.logger.Error("failed to load upload", "upload_id", id, "error", err)
		return nil, common.NewAppError("DB_ERROR", "load upload", errors.Join(common.ErrDatabase, err))
	}
	return u, nil
}

func (r *uploadRepo) getByHash(ctx context.Context, ownerID uuid.UUID, hash string) (*entity.Upload, error) {
	query, args := r.selectUploads().
		Where(entsql.And(entsql.EQ("owner_id", ownerID.String()), entsql.EQ("content_hash", hash))).
		Query()
	return scanUpload(r.db.SQL.QueryRowContext(ctx, query, args...))
}

// UpsertByHash returns the owner's existing upload with the same content hash, or registers a
// new one. The boolean reports whether the row already existed.
func (r *uploadRepo) UpsertByHash(ctx context.Context, in NewUpload) (*entity.Upload, bool, error) {
	if existing, err := r.getByHash(ctx, in.OwnerID, in.ContentHash); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	now := time.Now().UTC()
	if in.UploadedAt.IsZero() {
		in.UploadedAt = now
	}
	query, args := r.db.builder().Insert(tableUploads).
		Columns("id", "owner_id", "source_path", "filename", "file_ext", "file_size", "content_hash", "uploaded_at", "updated_at", "status").
		Values(uuid.New().String(), in.OwnerID.String(), in.SourcePath, in.Filename, constants.NormalizeExt(in.FileExt),
			in.FileSize, in.ContentHash, formatTime(in.UploadedAt), formatTime(now), string(constants.StatusQueued)).
		OnConflict(entsql.DoNothing()).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create upload", "owner_id", in.OwnerID, "source_path", in.SourcePath, "error", err)
		return nil, false, err
	}

	row, err := r.getByHash(ctx, in.OwnerID, in.ContentHash)
	if err != nil {
		return nil, false, err
	}
	r.logger.Info("upload registered", "upload_id", row.ID, "owner_id", in.OwnerID, "filename", in.Filename)
	return row, false, nil
}

func (r *uploadRepo) List(ctx context.Context, ownerID uuid.UUID) ([]*entity.Upload, error) {
	query, args := r.selectUploads().
		Where(entsql.EQ("owner_id", ownerID.String())).
		OrderBy(entsql.Desc("uploaded_at")).
		Query()
	return r.many(ctx, query, args)
}

// ListWithData returns uploads whose extracted data is set.
func (r *uploadRepo) ListWithData(ctx context.Context, ownerID uuid.UUID) ([]*entity.Upload, error) {
	query, args := r.selectUploads().
		Where(entsql.And(entsql.EQ("owner_id", ownerID.String()), entsql.NotNull("extracted_data"))).
		OrderBy(entsql.Desc("uploaded_at")).
		Query()
	return r.many(ctx, query, args)
}

func (r *uploadRepo) many(ctx context.Context, query string, args []any) ([]*entity.Upload, error) {
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *uploadRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.ExtractionStatus) error {
	return r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("status", string(status))
	})
}

// SaveText stores the raw text artifact for an upload.
func (r *uploadRepo) SaveText(ctx context.Context, id uuid.UUID, text string) error {
	return r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("extracted_text", text).
			Set("status", string(constants.StatusTextOK)).
			SetNull("error_message")
	})
}

// SaveExtractedData overwrites the extracted data in a single statement.
func (r *uploadRepo) SaveExtractedData(ctx context.Context, id uuid.UUID, data json.RawMessage) error {
	return r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("extracted_data", string(data)).
			Set("status", string(constants.StatusLLMOK)).
			SetNull("error_message")
	})
}

const maxErrorMessage = 2000

// MarkFailed records a failure without touching the stored text or data.
func (r *uploadRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.update(ctx, id, func(u *entsql.UpdateBuilder) {
		u.Set("status", string(constants.StatusFailed)).Set("error_message", common.Truncate(message, maxErrorMessage))
	})
}

func (r *uploadRepo) update(ctx context.Context, id uuid.UUID, set func(*entsql.UpdateBuilder)) error {
	u := r.db.builder().Update(tableUploads)
	set(u)
	query, args := u.Set("updated_at", formatTime(time.Now().UTC())).
		Where(entsql.EQ("id", id.String())).
		Query()
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update upload", "upload_id", id, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound(fmt.Sprintf("upload %s not found", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*entity.Upload, error) {
	var (
		u                        entity.Upload
		id, owner, uploaded, upd string
		errMsg, text, data       sql.NullString
	)
	if err := row.Scan(&id, &owner, &u.SourcePath, &u.Filename, &u.FileExt, &u.FileSize, &u.ContentHash,
		&uploaded, &upd, &u.Status, &errMsg, &text, &data); err != nil {
		return nil, err
	}
	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if u.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, err
	}
	u.UploadedAt = parseTime(uploaded)
	u.UpdatedAt = parseTime(upd)
	if errMsg.Valid {
		u.ErrorMessage = &errMsg.String
	}
	if text.Valid {
		u.ExtractedText = &text.String
	}
	if data.Valid && data.String != "" {
		u.ExtractedData = json.RawMessage(data.String)
	}
	return &u, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
