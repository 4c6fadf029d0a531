package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
)

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer    string `env:"CIRCLES_ACCEPT_GRANT_ISSUER"`
	Audience  string `env:"CIRCLES_ACCEPT_GRANT_AUDIENCE"`
	PublicKey string `env:"CIRCLES_ACCEPT_GRANT_PUBLIC_KEY"`
}

// GrantConfig defines how acceptance grants are verified.
type GrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// GrantExpectation defines the expected identity for an acceptance grant.
type GrantExpectation struct {
	CircleID     string
	InvitationID string
	ProfileID    string
}

// GrantClaims captures validated acceptance grant claims.
type GrantClaims struct {
	Issuer       string
	Audience     []string
	ExpiresAt    time.Time
	NotBefore    time.Time
	IssuedAt     time.Time
	JWTID        string
	CircleID     string
	InvitationID string
	ProfileID    string
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	CircleID     string `json:"circle_id"`
	InvitationID string `json:"invitation_id"`
	ProfileID    string `json:"profile_id"`
}

// LoadGrantConfigFromEnv reads acceptance grant verification configuration.
func LoadGrantConfigFromEnv(now func() time.Time) (GrantConfig, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return GrantConfig{}, fmt.Errorf("parse accept grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return GrantConfig{}, fmt.Errorf("CIRCLES_ACCEPT_GRANT_ISSUER is required")
	}
	if audience == "" {
		return GrantConfig{}, fmt.Errorf("CIRCLES_ACCEPT_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return GrantConfig{}, fmt.Errorf("CIRCLES_ACCEPT_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return GrantConfig{}, fmt.Errorf("decode accept grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return GrantConfig{}, fmt.Errorf("accept grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return GrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidateGrant verifies an acceptance grant and validates expected claims.
func ValidateGrant(grant string, expected GrantExpectation, cfg GrantConfig) (GrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return GrantClaims{}, errors.New("accept grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return GrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTokenGrantMismatch,
			"accept grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTokenGrantMismatch,
			"accept grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantExpired, "accept grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return GrantClaims{}, apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant not active yet")
		}
	}

	if strings.TrimSpace(parsed.CircleID) == "" || parsed.CircleID != expected.CircleID {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTokenGrantMismatch,
			"accept grant circle mismatch",
			map[string]string{"Field": "circle_id"},
		)
	}
	if strings.TrimSpace(parsed.InvitationID) == "" || parsed.InvitationID != expected.InvitationID {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTokenGrantMismatch,
			"accept grant invitation mismatch",
			map[string]string{"Field": "invitation_id"},
		)
	}
	if strings.TrimSpace(parsed.ProfileID) == "" || parsed.ProfileID != expected.ProfileID {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTokenGrantMismatch,
			"accept grant profile mismatch",
			map[string]string{"Field": "profile_id"},
		)
	}

	claims := GrantClaims{
		Issuer:       parsed.Issuer,
		Audience:     []string(parsed.Audience),
		ExpiresAt:    exp,
		JWTID:        parsed.ID,
		CircleID:     parsed.CircleID,
		InvitationID: parsed.InvitationID,
		ProfileID:    parsed.ProfileID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant alg is invalid")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return apperrors.New(apperrors.CodeTokenGrantInvalid, "accept grant is malformed")
	}
	return apperrors.Wrap(apperrors.CodeTokenGrantInvalid, "accept grant is invalid", err)
}

// decodeBase64 accepts std and URL-safe base64, with or without padding.
func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(value)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// audienceContains reports whether the audience list carries the value.
func audienceContains(audience jwt.ClaimStrings, value string) bool {
	for _, candidate := range audience {
		if candidate == value {
			return true
		}
	}
	return false
}
