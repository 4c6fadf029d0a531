package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/profile"
	"github.com/openshelf/circles/internal/storage"
)

// CreateProfile inserts one profile record.
func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("profile id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, family_name, email, privilege, created_at_ms, updated_at_ms, deleted_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, p.FamilyName, p.Email, int(p.Privilege),
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt), toNullMillis(p.DeletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetProfile fetches a profile by ID, tombstoned or not.
func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return profile.Profile{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, display_name, family_name, email, privilege, created_at_ms, updated_at_ms, deleted_at_ms
		FROM profiles WHERE id = ?`, strings.TrimSpace(id))
	return scanProfile(row)
}

// GetProfileByEmail fetches a profile by its unique email.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (profile.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return profile.Profile{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, display_name, family_name, email, privilege, created_at_ms, updated_at_ms, deleted_at_ms
		FROM profiles WHERE email = ?`, strings.TrimSpace(email))
	return scanProfile(row)
}

// UpdateProfile overwrites a profile's mutable fields.
func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE profiles
		SET display_name = ?, family_name = ?, email = ?, privilege = ?, updated_at_ms = ?
		WHERE id = ?`,
		p.DisplayName, p.FamilyName, p.Email, int(p.Privilege), toMillis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(result)
}

// DeleteProfile sets the tombstone timestamp. The row stays.
func (s *Store) DeleteProfile(ctx context.Context, id string, deletedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE profiles SET deleted_at_ms = ?, updated_at_ms = ? WHERE id = ?`,
		toMillis(deletedAt), toMillis(deletedAt), strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("tombstone profile: %w", err)
	}
	return requireRow(result)
}

// ListProfiles returns active profiles; listAll includes tombstoned rows.
func (s *Store) ListProfiles(ctx context.Context, listAll bool) ([]profile.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := `
		SELECT id, display_name, family_name, email, privilege, created_at_ms, updated_at_ms, deleted_at_ms
		FROM profiles`
	if !listAll {
		query += ` WHERE deleted_at_ms IS NULL`
	}
	query += ` ORDER BY created_at_ms ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (profile.Profile, error) {
	var p profile.Profile
	var privilege int
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(&p.ID, &p.DisplayName, &p.FamilyName, &p.Email, &privilege, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, storage.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	p.Privilege = profile.Privilege(privilege)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.DeletedAt = fromNullMillis(deletedAt)
	return p, nil
}

// requireRow translates zero affected rows into ErrNotFound.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
