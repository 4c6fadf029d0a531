package token

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	PrefixSalt  string        `env:"CIRCLES_TOKEN_PREFIX_SALT"`
	SuffixSalt  string        `env:"CIRCLES_TOKEN_SUFFIX_SALT"`
	Alphabet    string        `env:"CIRCLES_TOKEN_ALPHABET" envDefault:"abcdefghjkmnpqrstuvwxyz23456789"`
	KeyLength   int           `env:"CIRCLES_TOKEN_KEY_LENGTH" envDefault:"8"`
	ValueLength int           `env:"CIRCLES_TOKEN_VALUE_LENGTH" envDefault:"16"`
	SealKey     string        `env:"CIRCLES_TOKEN_SEAL_KEY"`
	DefaultTTL  time.Duration `env:"CIRCLES_TOKEN_DEFAULT_TTL" envDefault:"24h"`
}

// Config defines how tokens are generated and sealed.
type Config struct {
	PrefixSalt  string
	SuffixSalt  string
	Alphabet    string
	KeyLength   int
	ValueLength int
	SealKey     []byte
	DefaultTTL  time.Duration
}

// LoadConfigFromEnv reads token engine configuration. The seal key is a
// base64-encoded AES key and is required.
func LoadConfigFromEnv() (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	sealKey := strings.TrimSpace(raw.SealKey)
	if sealKey == "" {
		return Config{}, fmt.Errorf("CIRCLES_TOKEN_SEAL_KEY is required")
	}
	keyBytes, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(sealKey, "="))
	if err != nil {
		return Config{}, fmt.Errorf("decode token seal key: %w", err)
	}
	switch len(keyBytes) {
	case 16, 24, 32:
	default:
		return Config{}, fmt.Errorf("token seal key must be 16, 24 or 32 bytes")
	}
	if raw.KeyLength <= 0 || raw.ValueLength <= 0 {
		return Config{}, fmt.Errorf("token key and value lengths must be positive")
	}
	if raw.Alphabet == "" {
		return Config{}, fmt.Errorf("token alphabet must not be empty")
	}
	return Config{
		PrefixSalt:  raw.PrefixSalt,
		SuffixSalt:  raw.SuffixSalt,
		Alphabet:    raw.Alphabet,
		KeyLength:   raw.KeyLength,
		ValueLength: raw.ValueLength,
		SealKey:     keyBytes,
		DefaultTTL:  raw.DefaultTTL,
	}, nil
}
