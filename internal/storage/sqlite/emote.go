package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/circles/internal/emote"
	"github.com/openshelf/circles/internal/storage"
)

// CreateEmote inserts the reaction and increments its aggregate slot in
// one transaction. The partial unique indexes on (profile, post) and
// (profile, comment) arbitrate concurrent duplicates.
func (s *Store) CreateEmote(ctx context.Context, e emote.Emote) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("emote id is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO emotes (id, profile_id, emote_type, post_id, comment_id, created_at_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.ProfileID, int(e.Type), e.PostID, e.CommentID, toMillis(e.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert emote: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO emote_aggregates (post_id, comment_id, emote_type, count)
			VALUES (?, ?, ?, 1)
			ON CONFLICT (post_id, comment_id, emote_type) DO UPDATE SET count = count + 1`,
			e.PostID, e.CommentID, int(e.Type),
		); err != nil {
			return fmt.Errorf("increment aggregate: %w", err)
		}
		return nil
	})
}

// GetEmote fetches a profile's reaction on a target.
func (s *Store) GetEmote(ctx context.Context, profileID string, target emote.Target) (emote.Emote, error) {
	if err := s.ready(ctx); err != nil {
		return emote.Emote{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, profile_id, emote_type, post_id, comment_id, created_at_ms
		FROM emotes WHERE profile_id = ? AND post_id = ? AND comment_id = ?`,
		strings.TrimSpace(profileID), target.PostID, target.CommentID)
	return scanEmote(row)
}

// DeleteEmote removes the reaction and decrements its aggregate slot in
// one transaction. A decrement that would go negative fails with
// ErrConflict, keeping the counter and the row set consistent.
func (s *Store) DeleteEmote(ctx context.Context, profileID string, target emote.Target) (emote.Emote, error) {
	if err := s.ready(ctx); err != nil {
		return emote.Emote{}, err
	}
	existing, err := s.GetEmote(ctx, profileID, target)
	if err != nil {
		return emote.Emote{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM emotes WHERE id = ?`, existing.ID)
		if err != nil {
			return fmt.Errorf("delete emote: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		result, err = tx.ExecContext(ctx, `
			UPDATE emote_aggregates SET count = count - 1
			WHERE post_id = ? AND comment_id = ? AND emote_type = ? AND count > 0`,
			existing.PostID, existing.CommentID, int(existing.Type))
		if err != nil {
			return fmt.Errorf("decrement aggregate: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return storage.ErrConflict
		}
		return nil
	})
	if err != nil {
		return emote.Emote{}, err
	}
	return existing, nil
}

// GetAggregate returns the per-type reaction counts for a target. Slots
// that were never incremented are absent.
func (s *Store) GetAggregate(ctx context.Context, target emote.Target) (emote.Aggregate, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT emote_type, count FROM emote_aggregates
		WHERE post_id = ? AND comment_id = ?`, target.PostID, target.CommentID)
	if err != nil {
		return nil, fmt.Errorf("load aggregate: %w", err)
	}
	defer rows.Close()

	aggregate := emote.Aggregate{}
	for rows.Next() {
		var emoteType int
		var count int64
		if err := rows.Scan(&emoteType, &count); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		aggregate[emote.Type(emoteType)] = count
	}
	return aggregate, rows.Err()
}

func scanEmote(row rowScanner) (emote.Emote, error) {
	var e emote.Emote
	var emoteType int
	var createdAt int64
	err := row.Scan(&e.ID, &e.ProfileID, &emoteType, &e.PostID, &e.CommentID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return emote.Emote{}, storage.ErrNotFound
	}
	if err != nil {
		return emote.Emote{}, fmt.Errorf("scan emote: %w", err)
	}
	e.Type = emote.Type(emoteType)
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}
