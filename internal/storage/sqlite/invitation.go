package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/invitation"
	"github.com/openshelf/circles/internal/storage"
)

// executor abstracts *sql.DB and *sql.Tx for shared insert helpers.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertInvitation(ctx context.Context, db executor, inv invitation.Invitation) error {
	if strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invitation id is required")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO invitations (id, circle_id, inviter_id, invitee_id, status, token_key, metadata_json, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CircleID, inv.InviterID, inv.InviteeID, int(inv.Status),
		inv.TokenKey, inv.MetadataJSON, toMillis(inv.CreatedAt), toMillis(inv.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

// CreateInvitation inserts one invitation record. The unique index on
// (circle, invitee) is the final arbiter under concurrent writers.
func (s *Store) CreateInvitation(ctx context.Context, inv invitation.Invitation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return insertInvitation(ctx, s.sqlDB, inv)
}

// GetInvitation fetches the invitation for an invitee on a circle.
func (s *Store) GetInvitation(ctx context.Context, circleID, inviteeID string) (invitation.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return invitation.Invitation{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, circle_id, inviter_id, invitee_id, status, token_key, metadata_json, created_at_ms, updated_at_ms
		FROM invitations WHERE circle_id = ? AND invitee_id = ?`,
		strings.TrimSpace(circleID), strings.TrimSpace(inviteeID))
	return scanInvitation(row)
}

// UpdateInvitationStatus mutates the status of an invitation in place.
func (s *Store) UpdateInvitationStatus(ctx context.Context, id string, status invitation.Status, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE invitations SET status = ?, updated_at_ms = ? WHERE id = ?`,
		int(status), toMillis(updatedAt), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("update invitation status: %w", err)
	}
	return requireRow(result)
}

// DeleteInvitation forces the row to withdrawn and removes it in one
// transaction, so journal listeners always observe a terminal state.
func (s *Store) DeleteInvitation(ctx context.Context, id string, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE invitations SET status = ?, updated_at_ms = ? WHERE id = ?`,
			int(invitation.StatusWithdrawn), toMillis(updatedAt), id)
		if err != nil {
			return fmt.Errorf("mark invitation withdrawn: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete invitation: %w", err)
		}
		return nil
	})
}

// ListInvitations returns a circle's invitation set.
func (s *Store) ListInvitations(ctx context.Context, circleID string) ([]invitation.Invitation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, circle_id, inviter_id, invitee_id, status, token_key, metadata_json, created_at_ms, updated_at_ms
		FROM invitations WHERE circle_id = ? ORDER BY created_at_ms ASC`, strings.TrimSpace(circleID))
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []invitation.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// CountMembers counts invitations at accepted status or above.
func (s *Store) CountMembers(ctx context.Context, circleID string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invitations WHERE circle_id = ? AND status >= ?`,
		strings.TrimSpace(circleID), int(invitation.StatusAccepted)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func scanInvitation(row rowScanner) (invitation.Invitation, error) {
	var inv invitation.Invitation
	var status int
	var createdAt, updatedAt int64
	err := row.Scan(&inv.ID, &inv.CircleID, &inv.InviterID, &inv.InviteeID, &status,
		&inv.TokenKey, &inv.MetadataJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return invitation.Invitation{}, storage.ErrNotFound
	}
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("scan invitation: %w", err)
	}
	inv.Status = invitation.Status(status)
	inv.CreatedAt = fromMillis(createdAt)
	inv.UpdatedAt = fromMillis(updatedAt)
	return inv, nil
}
