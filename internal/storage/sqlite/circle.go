package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/circles/internal/circle"
	"github.com/openshelf/circles/internal/invitation"
	"github.com/openshelf/circles/internal/storage"
)

// CreateCircleWithFounder inserts the circle and its bootstrap
// self-invitation in one transaction.
func (s *Store) CreateCircleWithFounder(ctx context.Context, c circle.Circle, founder invitation.Invitation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("circle id is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO circles (id, owner_profile_id, name, description, created_at_ms, updated_at_ms, published_at_ms, published_meta_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.OwnerProfileID, c.Name, c.Description,
			toMillis(c.CreatedAt), toMillis(c.UpdatedAt), toNullMillis(c.PublishedAt), c.PublishedMetaID,
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert circle: %w", err)
		}
		if err := insertInvitation(ctx, tx, founder); err != nil {
			return err
		}
		return nil
	})
}

// GetCircle fetches a circle by ID.
func (s *Store) GetCircle(ctx context.Context, id string) (circle.Circle, error) {
	if err := s.ready(ctx); err != nil {
		return circle.Circle{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, owner_profile_id, name, description, created_at_ms, updated_at_ms, published_at_ms, published_meta_id
		FROM circles WHERE id = ?`, strings.TrimSpace(id))
	return scanCircle(row)
}

// UpdateCircle overwrites a circle's mutable fields, including its
// publish linkage.
func (s *Store) UpdateCircle(ctx context.Context, c circle.Circle) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE circles
		SET name = ?, description = ?, updated_at_ms = ?, published_at_ms = ?, published_meta_id = ?
		WHERE id = ?`,
		c.Name, c.Description, toMillis(c.UpdatedAt), toNullMillis(c.PublishedAt), c.PublishedMetaID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update circle: %w", err)
	}
	return requireRow(result)
}

// ListCirclesByOwner returns circles created by a profile.
func (s *Store) ListCirclesByOwner(ctx context.Context, ownerProfileID string) ([]circle.Circle, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, owner_profile_id, name, description, created_at_ms, updated_at_ms, published_at_ms, published_meta_id
		FROM circles WHERE owner_profile_id = ? ORDER BY created_at_ms ASC`, strings.TrimSpace(ownerProfileID))
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	defer rows.Close()

	var circles []circle.Circle
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, err
		}
		circles = append(circles, c)
	}
	return circles, rows.Err()
}

func scanCircle(row rowScanner) (circle.Circle, error) {
	var c circle.Circle
	var createdAt, updatedAt int64
	var publishedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.OwnerProfileID, &c.Name, &c.Description, &createdAt, &updatedAt, &publishedAt, &c.PublishedMetaID)
	if errors.Is(err, sql.ErrNoRows) {
		return circle.Circle{}, storage.ErrNotFound
	}
	if err != nil {
		return circle.Circle{}, fmt.Errorf("scan circle: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	c.PublishedAt = fromNullMillis(publishedAt)
	return c, nil
}
