package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/openshelf/circles/internal/storage"
)

// AppendEvent inserts one journal entry.
func (s *Store) AppendEvent(ctx context.Context, evt storage.Event) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO events (id, action, target_kind, target_id, actor_id, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.Action, evt.TargetKind, evt.TargetID, evt.ActorID, toMillis(evt.Timestamp),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns journal entries for a target, oldest first.
func (s *Store) ListEvents(ctx context.Context, targetKind, targetID string) ([]storage.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, action, target_kind, target_id, actor_id, timestamp_ms
		FROM events WHERE target_kind = ? AND target_id = ?
		ORDER BY timestamp_ms ASC`, strings.TrimSpace(targetKind), strings.TrimSpace(targetID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		var evt storage.Event
		var timestamp int64
		if err := rows.Scan(&evt.ID, &evt.Action, &evt.TargetKind, &evt.TargetID, &evt.ActorID, &timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = fromMillis(timestamp)
		events = append(events, evt)
	}
	return events, rows.Err()
}
