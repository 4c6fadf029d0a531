package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/openshelf/circles/internal/profile"
	"github.com/openshelf/circles/internal/storage"
)

// CreateContactMethod inserts one contact method record.
func (s *Store) CreateContactMethod(ctx context.Context, m profile.ContactMethod) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("contact method id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO contact_methods (id, profile_id, kind, value, is_primary, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProfileID, int(m.Kind), m.Value, boolToInt(m.Primary), toMillis(m.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert contact method: %w", err)
	}
	return nil
}

// ListContactMethods returns a profile's contact methods, primary first.
func (s *Store) ListContactMethods(ctx context.Context, profileID string) ([]profile.ContactMethod, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, profile_id, kind, value, is_primary, created_at_ms
		FROM contact_methods WHERE profile_id = ?
		ORDER BY is_primary DESC, created_at_ms ASC`, strings.TrimSpace(profileID))
	if err != nil {
		return nil, fmt.Errorf("list contact methods: %w", err)
	}
	defer rows.Close()

	var methods []profile.ContactMethod
	for rows.Next() {
		var m profile.ContactMethod
		var kind, primary int
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ProfileID, &kind, &m.Value, &primary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan contact method: %w", err)
		}
		m.Kind = profile.ContactKind(kind)
		m.Primary = primary != 0
		m.CreatedAt = fromMillis(createdAt)
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

// SetPrimaryContactMethod flips the primary flag to one contact method,
// clearing it on the profile's others in the same transaction.
func (s *Store) SetPrimaryContactMethod(ctx context.Context, profileID, contactID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE contact_methods SET is_primary = 1 WHERE id = ? AND profile_id = ?`,
			strings.TrimSpace(contactID), strings.TrimSpace(profileID))
		if err != nil {
			return fmt.Errorf("mark primary: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE contact_methods SET is_primary = 0 WHERE profile_id = ? AND id <> ?`,
			strings.TrimSpace(profileID), strings.TrimSpace(contactID)); err != nil {
			return fmt.Errorf("clear other primaries: %w", err)
		}
		return nil
	})
}

// DeleteContactMethod removes one contact method record.
func (s *Store) DeleteContactMethod(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM contact_methods WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete contact method: %w", err)
	}
	return requireRow(result)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
