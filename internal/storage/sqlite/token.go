package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/circles/internal/storage"
	"github.com/openshelf/circles/internal/token"
)

// PutToken stores a token, removing any stale unvalidated token that
// shares the key in the same transaction. The cleartext value is never
// written.
func (s *Store) PutToken(ctx context.Context, t token.Token) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(t.Key) == "" {
		return fmt.Errorf("token key is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM tokens WHERE key = ? AND validated = 0`, t.Key); err != nil {
			return fmt.Errorf("drop stale token: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tokens (key, sealed_value, single_use, validated, expires_at_ms, created_at_ms, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.Key, t.SealedValue, boolToInt(t.SingleUse), boolToInt(t.Validated),
			toMillis(t.ExpiresAt), toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert token: %w", err)
		}
		return nil
	})
}

// GetToken fetches the token stored under a key.
func (s *Store) GetToken(ctx context.Context, key string) (token.Token, error) {
	if err := s.ready(ctx); err != nil {
		return token.Token{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT key, sealed_value, single_use, validated, expires_at_ms, created_at_ms, updated_at_ms
		FROM tokens WHERE key = ?`, strings.TrimSpace(key))

	var t token.Token
	var singleUse, validated int
	var expiresAt, createdAt, updatedAt int64
	err := row.Scan(&t.Key, &t.SealedValue, &singleUse, &validated, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Token{}, storage.ErrNotFound
	}
	if err != nil {
		return token.Token{}, fmt.Errorf("scan token: %w", err)
	}
	t.SingleUse = singleUse != 0
	t.Validated = validated != 0
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

// ConsumeToken writes a token's validation state and, when remove is
// set, deletes the row in the same transaction, so a concurrent reader
// never observes a consumed token that is still present.
func (s *Store) ConsumeToken(ctx context.Context, t token.Token, remove bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE tokens SET validated = ?, expires_at_ms = ?, updated_at_ms = ? WHERE key = ?`,
			boolToInt(t.Validated), toMillis(t.ExpiresAt), toMillis(t.UpdatedAt), t.Key)
		if err != nil {
			return fmt.Errorf("update token: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		if remove {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE key = ?`, t.Key); err != nil {
				return fmt.Errorf("delete token: %w", err)
			}
		}
		return nil
	})
}

// DeleteToken removes the token stored under a key.
func (s *Store) DeleteToken(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tokens WHERE key = ?`, strings.TrimSpace(key))
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return requireRow(result)
}
