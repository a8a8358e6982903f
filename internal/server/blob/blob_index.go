package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftupload/internal/db"
)

const uploadSchema = `
CREATE TABLE IF NOT EXISTS uploads (
	upload_id TEXT PRIMARY KEY,
	key TEXT NOT NULL,
	status TEXT NOT NULL,
	size INTEGER NOT NULL,
	part_size INTEGER NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
CREATE INDEX IF NOT EXISTS idx_uploads_updated_at ON uploads(updated_at);
`

const uploadColumns = "upload_id, key, status, size, part_size, subject, created_at, updated_at"

// UploadIndex tracks multipart upload sessions in SQLite. Like the nonce store
// it is local to one database file.
type UploadIndex struct {
	db    *sqlx.DB
	nowFn func() time.Time
}

func NewUploadIndex(database *sqlx.DB) (*UploadIndex, error) {
	if err := db.Migrate(database, uploadSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize upload index: %w", err)
	}
	return &UploadIndex{db: database, nowFn: time.Now}, nil
}

// Create records a new session in the created state.
func (ui *UploadIndex) Create(ctx context.Context, rec *UploadRecord) error {
	now := ui.nowFn().UnixMilli()
	rec.Status = UploadCreated
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := ui.db.NamedExecContext(ctx,
		`INSERT INTO uploads (`+uploadColumns+`)
		VALUES (:upload_id, :key, :status, :size, :part_size, :subject, :created_at, :updated_at)`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("failed to record upload %s: %w", rec.UploadID, err)
	}
	return nil
}

func (ui *UploadIndex) Get(ctx context.Context, uploadID string) (*UploadRecord, error) {
	var rec UploadRecord
	err := ui.db.GetContext(ctx, &rec, "SELECT "+uploadColumns+" FROM uploads WHERE upload_id = ?", uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUploadNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get upload %s: %w", uploadID, err)
	}
	return &rec, nil
}

// Transition moves a non-terminal session to status. It returns
// ErrUploadNotFound for unknown ids and ErrUploadConflict when the session has
// already completed or been aborted.
func (ui *UploadIndex) Transition(ctx context.Context, uploadID string, status UploadStatus) error {
	res, err := ui.db.ExecContext(ctx,
		`UPDATE uploads SET status = ?, updated_at = ?
		WHERE upload_id = ? AND status IN (?, ?)`,
		status, ui.nowFn().UnixMilli(), uploadID, UploadCreated, UploadUploading,
	)
	if err != nil {
		return fmt.Errorf("failed to update upload %s: %w", uploadID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update upload %s: %w", uploadID, err)
	}
	if affected == 1 {
		return nil
	}

	// nothing changed: either unknown or already terminal
	if _, err := ui.Get(ctx, uploadID); err != nil {
		return err
	}
	return ErrUploadConflict
}

// ListStale returns non-terminal sessions not touched since before.
func (ui *UploadIndex) ListStale(ctx context.Context, before time.Time) ([]*UploadRecord, error) {
	var recs []*UploadRecord
	err := ui.db.SelectContext(ctx, &recs,
		"SELECT "+uploadColumns+" FROM uploads WHERE status IN (?, ?) AND updated_at < ? ORDER BY updated_at",
		UploadCreated, UploadUploading, before.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale uploads: %w", err)
	}
	return recs, nil
}

func (ui *UploadIndex) CountByStatus(ctx context.Context) (map[UploadStatus]int, error) {
	rows, err := ui.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM uploads GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count uploads: %w", err)
	}
	defer rows.Close()

	counts := make(map[UploadStatus]int)
	for rows.Next() {
		var status UploadStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to count uploads: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
