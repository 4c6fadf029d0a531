package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/publish"
	"github.com/openshelf/circles/internal/storage"
)

// publishStateTable maps a source kind to the table carrying its
// publish linkage columns.
func publishStateTable(kind string) (string, error) {
	switch kind {
	case "circle":
		return "circles", nil
	case "post":
		return "posts", nil
	case "comment":
		return "comments", nil
	default:
		return "", fmt.Errorf("unknown publishable kind %q", kind)
	}
}

// ApplyPublish inserts the new snapshot, deletes the replaced one if
// any, and updates the source row's publish linkage, all in one
// transaction.
func (s *Store) ApplyPublish(ctx context.Context, source publish.SourceRef, meta publish.MetaInfo, replaceMetaID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	table, err := publishStateTable(source.Kind)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meta_infos (id, source_id, source_kind, body_json, body_text, created_at_ms, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			meta.ID, meta.Source.ID, meta.Source.Kind, meta.BodyJSON, meta.Text,
			toMillis(meta.CreatedAt), toMillis(meta.UpdatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if replaceMetaID != "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM meta_infos WHERE id = ?`, replaceMetaID); err != nil {
				return fmt.Errorf("delete replaced snapshot: %w", err)
			}
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET published_at_ms = ?, published_meta_id = ? WHERE id = ?`,
			toMillis(meta.CreatedAt), meta.ID, source.ID)
		if err != nil {
			return fmt.Errorf("update publish state: %w", err)
		}
		return requireRow(result)
	})
}

// ApplyUnpublish deletes the current snapshot and clears the source
// row's publish linkage in one transaction.
func (s *Store) ApplyUnpublish(ctx context.Context, source publish.SourceRef, metaID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	table, err := publishStateTable(source.Kind)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meta_infos WHERE id = ?`, metaID); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET published_at_ms = NULL, published_meta_id = '' WHERE id = ?`, source.ID)
		if err != nil {
			return fmt.Errorf("clear publish state: %w", err)
		}
		return requireRow(result)
	})
}

// GetMetaInfo fetches a snapshot by ID.
func (s *Store) GetMetaInfo(ctx context.Context, id string) (publish.MetaInfo, error) {
	if err := s.ready(ctx); err != nil {
		return publish.MetaInfo{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, source_id, source_kind, body_json, body_text, created_at_ms, updated_at_ms
		FROM meta_infos WHERE id = ?`, strings.TrimSpace(id))
	return scanMetaInfo(row)
}

// ListMetaInfoBySource returns every snapshot tagged with a source.
func (s *Store) ListMetaInfoBySource(ctx context.Context, source publish.SourceRef) ([]publish.MetaInfo, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, source_id, source_kind, body_json, body_text, created_at_ms, updated_at_ms
		FROM meta_infos WHERE source_kind = ? AND source_id = ? ORDER BY created_at_ms ASC`,
		source.Kind, source.ID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var metas []publish.MetaInfo
	for rows.Next() {
		meta, err := scanMetaInfo(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// UpdateMetaInfoBody overwrites a snapshot's body, used by purge.
func (s *Store) UpdateMetaInfoBody(ctx context.Context, id, bodyJSON, text string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE meta_infos SET body_json = ?, body_text = ?, updated_at_ms = ? WHERE id = ?`,
		bodyJSON, text, toMillis(updatedAt), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("update snapshot body: %w", err)
	}
	return requireRow(result)
}

func scanMetaInfo(row rowScanner) (publish.MetaInfo, error) {
	var meta publish.MetaInfo
	var createdAt, updatedAt int64
	err := row.Scan(&meta.ID, &meta.Source.ID, &meta.Source.Kind, &meta.BodyJSON, &meta.Text, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return publish.MetaInfo{}, storage.ErrNotFound
	}
	if err != nil {
		return publish.MetaInfo{}, fmt.Errorf("scan snapshot: %w", err)
	}
	meta.CreatedAt = fromMillis(createdAt)
	meta.UpdatedAt = fromMillis(updatedAt)
	return meta, nil
}
