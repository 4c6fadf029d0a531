// Package profile provides identity profile management.
package profile

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
)

var (
	// ErrEmptyDisplayName indicates a missing display name.
	ErrEmptyDisplayName = apperrors.New(apperrors.CodeProfileEmptyDisplayName, "display name is required")
	// ErrInvalidEmail indicates an email that does not match the required format.
	ErrInvalidEmail = apperrors.New(apperrors.CodeProfileInvalidEmail, "email address is not valid")

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Profile represents a person's identity record.
//
// Profiles are soft-deleted only: DeletedAt carries the tombstone and the
// storage layer exposes active/all accessors rather than rewriting queries.
type Profile struct {
	ID          string
	DisplayName string
	FamilyName  string
	Email       string
	Privilege   Privilege
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Deleted reports whether the profile carries a tombstone.
func (p Profile) Deleted() bool {
	return p.DeletedAt != nil
}

// CreateProfileInput describes the metadata needed to create a profile.
type CreateProfileInput struct {
	DisplayName string
	FamilyName  string
	Email       string
	Privilege   Privilege
}

// ValidateEmail enforces the canonical email shape used for uniqueness checks.
func ValidateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// CreateProfile creates a durable identity record from validated input.
func CreateProfile(input CreateProfileInput, now func() time.Time, idGenerator func() (string, error)) (Profile, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateProfileInput(input)
	if err != nil {
		return Profile{}, err
	}

	profileID, err := idGenerator()
	if err != nil {
		return Profile{}, fmt.Errorf("generate profile id: %w", err)
	}

	createdAt := now().UTC()
	return Profile{
		ID:          profileID,
		DisplayName: normalized.DisplayName,
		FamilyName:  normalized.FamilyName,
		Email:       normalized.Email,
		Privilege:   normalized.Privilege,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateProfileInput trims and normalizes input before validation.
func NormalizeCreateProfileInput(input CreateProfileInput) (CreateProfileInput, error) {
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		return CreateProfileInput{}, ErrEmptyDisplayName
	}
	input.FamilyName = strings.TrimSpace(input.FamilyName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := ValidateEmail(input.Email); err != nil {
		return CreateProfileInput{}, err
	}
	if input.Privilege == PrivilegeUnspecified {
		input.Privilege = PrivilegeUser
	}
	return input, nil
}
