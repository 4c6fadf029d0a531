// Package token issues and verifies opaque expiring credentials used for
// out-of-band verification flows such as invitation acceptance.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
)

var (
	// ErrEmptyKey indicates a missing token key.
	ErrEmptyKey = apperrors.New(apperrors.CodeTokenEmptyKey, "token key is required")
)

// Token represents an opaque credential record. The stored value is
// sealed with AES-GCM; Value carries the cleartext only on creation and
// is never persisted.
type Token struct {
	Key         string
	Value       string
	SealedValue string
	SingleUse   bool
	Validated   bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the token's expiry is in the past. A zero
// expiry means the token never expires.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

// GenerateDigest produces a deterministic one-way digest of the seed
// wrapped in the configured salts. An empty seed falls back to the
// current time so repeated calls still differ.
func GenerateDigest(seed string, prefixSalt, suffixSalt string, now func() time.Time) string {
	if seed == "" {
		if now == nil {
			now = time.Now
		}
		seed = strconv.FormatInt(now().UTC().UnixNano(), 10)
	}
	sum := sha256.Sum256([]byte(prefixSalt + seed + suffixSalt))
	return hex.EncodeToString(sum[:])
}

// RandomString draws length characters from alphabet using crypto/rand.
func RandomString(alphabet string, length int) (string, error) {
	if alphabet == "" || length <= 0 {
		return "", fmt.Errorf("random string needs an alphabet and a positive length")
	}
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw random index: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
