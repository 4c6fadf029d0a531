// Package service implements the token engine on top of a token store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/storage"
	"github.com/openshelf/circles/internal/token"
)

// Engine issues and verifies opaque verification tokens. Stored values
// are sealed with AES-GCM and never persisted in cleartext.
type Engine struct {
	store  storage.TokenStore
	sealer *token.Sealer
	cfg    token.Config
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine builds a token engine from its configuration.
func NewEngine(store storage.TokenStore, cfg token.Config, opts ...Option) (*Engine, error) {
	sealer, err := token.NewSealer(cfg.SealKey)
	if err != nil {
		return nil, fmt.Errorf("build token sealer: %w", err)
	}
	engine := &Engine{
		store:  store,
		sealer: sealer,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// GenerateDigest produces the deterministic digest for a seed under the
// engine's salts. An empty seed uses the current time.
func (e *Engine) GenerateDigest(seed string) string {
	return token.GenerateDigest(seed, e.cfg.PrefixSalt, e.cfg.SuffixSalt, e.now)
}

// CreateTokenInput describes a token to create. A zero ExpiresAt
// defaults to now plus the configured TTL. An empty Value derives one
// from the key digest. Tokens are single-use unless Reusable is set.
type CreateTokenInput struct {
	Key       string
	Value     string
	ExpiresAt time.Time
	Reusable  bool
}

// CreateToken seals and stores a token. Any stale unvalidated token
// sharing the key is removed by the store in the same transaction. The
// returned token carries the cleartext value for handoff to the caller.
func (e *Engine) CreateToken(ctx context.Context, input CreateTokenInput) (token.Token, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return token.Token{}, token.ErrEmptyKey
	}

	now := e.now().UTC()
	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(e.cfg.DefaultTTL)
	}
	value := input.Value
	if value == "" {
		value = e.GenerateDigest(key)
	}

	sealed, err := e.sealer.Seal(value)
	if err != nil {
		return token.Token{}, fmt.Errorf("seal token value: %w", err)
	}

	created := token.Token{
		Key:         key,
		Value:       value,
		SealedValue: sealed,
		SingleUse:   !input.Reusable,
		ExpiresAt:   expiresAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.PutToken(ctx, created); err != nil {
		return token.Token{}, fmt.Errorf("store token: %w", err)
	}
	return created, nil
}

// CreateRandom creates a token with a random key and value drawn from
// the configured alphabet.
func (e *Engine) CreateRandom(ctx context.Context, expiresAt time.Time, reusable bool) (token.Token, error) {
	key, err := token.RandomString(e.cfg.Alphabet, e.cfg.KeyLength)
	if err != nil {
		return token.Token{}, fmt.Errorf("generate token key: %w", err)
	}
	value, err := token.RandomString(e.cfg.Alphabet, e.cfg.ValueLength)
	if err != nil {
		return token.Token{}, fmt.Errorf("generate token value: %w", err)
	}
	return e.CreateToken(ctx, CreateTokenInput{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
		Reusable:  reusable,
	})
}

// Validate checks an expected value against the stored token for a key.
//
// An expired or matching token is marked validated with its expiry
// collapsed to now. An expired or single-use token is then deleted, so
// one validation attempt consumes it regardless of the match outcome.
// Expired tokens always report false, whatever their stored value. All
// state changes from one attempt land in a single store transaction.
func (e *Engine) Validate(ctx context.Context, key, expectedValue string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, token.ErrEmptyKey
	}

	stored, err := e.store.GetToken(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	if stored.SealedValue == "" {
		return false, nil
	}

	value, err := e.sealer.Open(stored.SealedValue)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeTokenInvalid, "token value cannot be opened", err)
	}

	now := e.now().UTC()
	expired := stored.Expired(now)
	isValid := value == expectedValue

	if expired || isValid {
		stored.Validated = true
		stored.ExpiresAt = now
		stored.UpdatedAt = now
	}
	if expired || isValid || stored.SingleUse {
		if err := e.store.ConsumeToken(ctx, stored, expired || stored.SingleUse); err != nil {
			return false, fmt.Errorf("consume token: %w", err)
		}
	}

	if expired {
		return false, nil
	}
	return isValid, nil
}

// Invalidate removes the token stored under a key. Missing tokens are
// ignored, a repeated invalidation is a no-op.
func (e *Engine) Invalidate(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return token.ErrEmptyKey
	}
	if err := e.store.DeleteToken(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}
