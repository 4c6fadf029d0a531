package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openshelf/circles/internal/storage"
	"github.com/openshelf/circles/internal/storage/sqlite"
	"github.com/openshelf/circles/internal/token"
)

func fixedClock() time.Time {
	return time.Date(2026, time.August, 15, 9, 0, 0, 0, time.UTC)
}

func testConfig() token.Config {
	return token.Config{
		PrefixSalt:  "prefix",
		SuffixSalt:  "suffix",
		Alphabet:    "abcdefghjkmnpqrstuvwxyz23456789",
		KeyLength:   8,
		ValueLength: 16,
		SealKey:     bytes.Repeat([]byte{0x42}, 32),
		DefaultTTL:  24 * time.Hour,
	}
}

func newTestEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	engine, err := NewEngine(store, testConfig(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, store
}

func TestGenerateDigestDeterministic(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	first := engine.GenerateDigest("seed")
	second := engine.GenerateDigest("seed")
	if first != second {
		t.Fatalf("digest not deterministic: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("digest length = %d, want 64", len(first))
	}
	if engine.GenerateDigest("other") == first {
		t.Fatal("different seeds must produce different digests")
	}
}

func TestCreateTokenSealsValue(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	created, err := engine.CreateToken(context.Background(), CreateTokenInput{Key: "key-1", Value: "secret"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if created.Value != "secret" {
		t.Fatalf("cleartext value = %q, want %q", created.Value, "secret")
	}
	if created.SealedValue == "" || created.SealedValue == "secret" {
		t.Fatalf("sealed value = %q, must be opaque", created.SealedValue)
	}
	if !created.SingleUse {
		t.Fatal("tokens default to single use")
	}
	if !created.ExpiresAt.Equal(fixedClock().Add(24 * time.Hour)) {
		t.Fatalf("expiry = %v, want now plus TTL", created.ExpiresAt)
	}

	stored, err := store.GetToken(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if stored.Value != "" {
		t.Fatal("cleartext value must not be persisted")
	}
}

func TestCreateTokenDefaultsValueToDigest(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	created, err := engine.CreateToken(context.Background(), CreateTokenInput{Key: "key-1"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if created.Value != engine.GenerateDigest("key-1") {
		t.Fatalf("value = %q, want key digest", created.Value)
	}
}

func TestCreateTokenRequiresKey(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	_, err := engine.CreateToken(context.Background(), CreateTokenInput{})
	if !errors.Is(err, token.ErrEmptyKey) {
		t.Fatalf("err = %v, want %v", err, token.ErrEmptyKey)
	}
}

func TestCreateRandom(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	created, err := engine.CreateRandom(context.Background(), time.Time{}, false)
	if err != nil {
		t.Fatalf("create random: %v", err)
	}
	if len(created.Key) != 8 {
		t.Fatalf("key length = %d, want 8", len(created.Key))
	}
	if len(created.Value) != 16 {
		t.Fatalf("value length = %d, want 16", len(created.Value))
	}
	for _, r := range created.Key + created.Value {
		if !strings.ContainsRune(testConfig().Alphabet, r) {
			t.Fatalf("character %q outside the configured alphabet", r)
		}
	}
}

func TestValidateSingleUseRoundTrip(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "secret"}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	ok, err := engine.Validate(ctx, "key-1", "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok {
		t.Fatal("matching value before expiry must validate")
	}

	// Single-use tokens are consumed by the first attempt.
	if _, err := store.GetToken(ctx, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("token err = %v, want %v", err, storage.ErrNotFound)
	}
	ok, err = engine.Validate(ctx, "key-1", "secret")
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if ok {
		t.Fatal("consumed token must not validate again")
	}
}

func TestValidateSingleUseConsumedOnMismatch(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "secret"}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	ok, err := engine.Validate(ctx, "key-1", "wrong")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatal("mismatched value must not validate")
	}
	// One attempt consumes a single-use token regardless of outcome.
	if _, err := store.GetToken(ctx, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("token err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestValidateReusableTokenSurvivesMismatch(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "secret", Reusable: true}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	ok, err := engine.Validate(ctx, "key-1", "wrong")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatal("mismatched value must not validate")
	}
	if _, err := store.GetToken(ctx, "key-1"); err != nil {
		t.Fatalf("reusable token must survive a mismatch: %v", err)
	}

	ok, err = engine.Validate(ctx, "key-1", "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok {
		t.Fatal("matching value must validate")
	}
	stored, err := store.GetToken(ctx, "key-1")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if !stored.Validated {
		t.Fatal("validated flag must be set")
	}
	if !stored.ExpiresAt.Equal(fixedClock()) {
		t.Fatalf("expiry = %v, want collapsed to now", stored.ExpiresAt)
	}
}

func TestValidateExpiredTokenAlwaysFails(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	ctx := context.Background()
	expired := fixedClock().Add(-time.Hour)
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "secret", ExpiresAt: expired}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	ok, err := engine.Validate(ctx, "key-1", "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatal("expired token must fail even on a matching value")
	}
	// Expired tokens are destroyed as a side effect.
	if _, err := store.GetToken(ctx, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("token err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestValidateUnknownKey(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	ok, err := engine.Validate(context.Background(), "missing", "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatal("unknown key must not validate")
	}
}

func TestCreateTokenReplacesStaleUnvalidated(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "old"}); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "new"}); err != nil {
		t.Fatalf("replace token: %v", err)
	}

	ok, err := engine.Validate(ctx, "key-1", "old")
	if err != nil {
		t.Fatalf("validate old value: %v", err)
	}
	if ok {
		t.Fatal("stale token value must not validate")
	}
}

// countingTokenStore records how many mutations the engine issues per
// validation attempt.
type countingTokenStore struct {
	storage.TokenStore
	consumes int
	deletes  int
}

func (c *countingTokenStore) ConsumeToken(ctx context.Context, t token.Token, remove bool) error {
	c.consumes++
	return c.TokenStore.ConsumeToken(ctx, t, remove)
}

func (c *countingTokenStore) DeleteToken(ctx context.Context, key string) error {
	c.deletes++
	return c.TokenStore.DeleteToken(ctx, key)
}

func TestValidateConsumesInOneStoreCall(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	counting := &countingTokenStore{TokenStore: store}
	engine, err := NewEngine(counting, testConfig(), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx := context.Background()
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "secret"}); err != nil {
		t.Fatalf("create token: %v", err)
	}
	ok, err := engine.Validate(ctx, "key-1", "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ok {
		t.Fatal("matching value must validate")
	}
	// Marking validated and removing the single-use row is one store
	// transaction, never an update followed by a delete.
	if counting.consumes != 1 {
		t.Fatalf("consume calls = %d, want 1", counting.consumes)
	}
	if counting.deletes != 0 {
		t.Fatalf("delete calls = %d, want 0", counting.deletes)
	}
	if _, err := store.GetToken(ctx, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("token err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestInvalidateRemovesToken(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateToken(ctx, CreateTokenInput{Key: "key-1", Value: "secret", Reusable: true}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := engine.Invalidate(ctx, "key-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := store.GetToken(ctx, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("token err = %v, want %v", err, storage.ErrNotFound)
	}

	// Repeats and unknown keys are no-ops.
	if err := engine.Invalidate(ctx, "key-1"); err != nil {
		t.Fatalf("repeat invalidate: %v", err)
	}
	if err := engine.Invalidate(ctx, ""); !errors.Is(err, token.ErrEmptyKey) {
		t.Fatalf("err = %v, want %v", err, token.ErrEmptyKey)
	}
}
