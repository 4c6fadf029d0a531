// Package service implements profile lifecycle and contact management.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/profile"
	"github.com/openshelf/circles/internal/storage"
)

// Service coordinates profiles and their contact methods.
type Service struct {
	profiles   storage.ProfileStore
	contacts   storage.ContactStore
	privileges profile.PrivilegeConfig
	log        *slog.Logger
	now        func() time.Time
	idGen      func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides ID generation, used by tests.
func WithIDGenerator(idGen func() (string, error)) Option {
	return func(s *Service) {
		s.idGen = idGen
	}
}

// WithPrivilegeConfig overrides the privilege thresholds consulted by
// the authorization checks.
func WithPrivilegeConfig(cfg profile.PrivilegeConfig) Option {
	return func(s *Service) {
		s.privileges = cfg
	}
}

// NewService builds a profile service.
func NewService(profiles storage.ProfileStore, contacts storage.ContactStore, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	service := &Service{
		profiles:   profiles,
		contacts:   contacts,
		privileges: profile.DefaultPrivilegeConfig(),
		log:        log,
		now:        time.Now,
		idGen:      id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateProfile creates a profile and seeds its primary email contact
// method from the profile email.
func (s *Service) CreateProfile(ctx context.Context, input profile.CreateProfileInput) (profile.Profile, error) {
	created, err := profile.CreateProfile(input, s.now, s.idGen)
	if err != nil {
		return profile.Profile{}, err
	}

	if err := s.profiles.CreateProfile(ctx, created); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return profile.Profile{}, apperrors.WithMetadata(
				apperrors.CodeProfileEmailTaken,
				"email address is already in use",
				map[string]string{"Email": created.Email},
			)
		}
		return profile.Profile{}, fmt.Errorf("store profile: %w", err)
	}

	// Post-creation hook: the account email becomes the first, primary
	// contact method.
	if _, err := s.AddContactMethod(ctx, profile.CreateContactMethodInput{
		ProfileID: created.ID,
		Kind:      profile.ContactKindEmail,
		Value:     created.Email,
	}); err != nil {
		s.log.Warn("seeding primary contact failed", "profile", created.ID, "error", err)
	}

	return created, nil
}

// GetProfile loads a profile by ID. Tombstoned profiles fail with a
// deleted error rather than not found.
func (s *Service) GetProfile(ctx context.Context, profileID string) (profile.Profile, error) {
	loaded, err := s.profiles.GetProfile(ctx, strings.TrimSpace(profileID))
	if errors.Is(err, storage.ErrNotFound) {
		return profile.Profile{}, apperrors.New(apperrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if loaded.Deleted() {
		return profile.Profile{}, apperrors.New(apperrors.CodeProfileDeleted, "profile was deleted")
	}
	return loaded, nil
}

// GetProfileByEmail loads a profile by its unique email.
func (s *Service) GetProfileByEmail(ctx context.Context, email string) (profile.Profile, error) {
	loaded, err := s.profiles.GetProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, storage.ErrNotFound) {
		return profile.Profile{}, apperrors.New(apperrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return loaded, nil
}

// DeleteProfile tombstones a profile. Profiles delete themselves;
// deleting anyone else requires the actor to meet the admin threshold.
// Rows are never removed, readers using GetProfile stop seeing it.
func (s *Service) DeleteProfile(ctx context.Context, actorID, profileID string) error {
	actorID = strings.TrimSpace(actorID)
	profileID = strings.TrimSpace(profileID)
	if actorID != profileID {
		actor, err := s.GetProfile(ctx, actorID)
		if err != nil {
			return err
		}
		if !s.privileges.IsAdmin(actor.Privilege) {
			return apperrors.New(apperrors.CodeProfileForbidden, "administrator privilege required")
		}
	}
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return err
	}
	if err := s.profiles.DeleteProfile(ctx, profileID, s.now().UTC()); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// ListProfiles returns active profiles. Including tombstoned rows is a
// moderation view and requires the actor to meet the elevated
// threshold.
func (s *Service) ListProfiles(ctx context.Context, actorID string, listAll bool) ([]profile.Profile, error) {
	if listAll {
		actor, err := s.GetProfile(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !s.privileges.IsElevated(actor.Privilege) {
			return nil, apperrors.New(apperrors.CodeProfileForbidden, "elevated privilege required")
		}
	}
	profiles, err := s.profiles.ListProfiles(ctx, listAll)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// AddContactMethod attaches a contact method to a profile. The first
// contact method becomes primary automatically.
func (s *Service) AddContactMethod(ctx context.Context, input profile.CreateContactMethodInput) (profile.ContactMethod, error) {
	created, err := profile.CreateContactMethod(input, s.now, s.idGen)
	if err != nil {
		return profile.ContactMethod{}, err
	}

	existing, err := s.contacts.ListContactMethods(ctx, created.ProfileID)
	if err != nil {
		return profile.ContactMethod{}, fmt.Errorf("list contact methods: %w", err)
	}
	created.Primary = len(existing) == 0

	if err := s.contacts.CreateContactMethod(ctx, created); err != nil {
		return profile.ContactMethod{}, fmt.Errorf("store contact method: %w", err)
	}
	return created, nil
}

// SetPrimaryContactMethod marks one contact method primary and clears
// the flag on the profile's others.
func (s *Service) SetPrimaryContactMethod(ctx context.Context, profileID, contactID string) error {
	if err := s.contacts.SetPrimaryContactMethod(ctx, strings.TrimSpace(profileID), strings.TrimSpace(contactID)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "contact method not found")
		}
		return fmt.Errorf("set primary contact method: %w", err)
	}
	return nil
}

// RemoveContactMethod deletes a contact method. The primary contact
// cannot be removed while others remain; reassign first.
func (s *Service) RemoveContactMethod(ctx context.Context, profileID, contactID string) error {
	methods, err := s.ListContactMethods(ctx, profileID)
	if err != nil {
		return err
	}
	for _, method := range methods {
		if method.ID != strings.TrimSpace(contactID) {
			continue
		}
		if method.Primary && len(methods) > 1 {
			return apperrors.New(apperrors.CodeContactPrimaryRemoval, "primary contact method cannot be removed")
		}
		if err := s.contacts.DeleteContactMethod(ctx, method.ID); err != nil {
			return fmt.Errorf("delete contact method: %w", err)
		}
		return nil
	}
	return apperrors.New(apperrors.CodeNotFound, "contact method not found")
}

// ListContactMethods returns a profile's contact methods.
func (s *Service) ListContactMethods(ctx context.Context, profileID string) ([]profile.ContactMethod, error) {
	methods, err := s.contacts.ListContactMethods(ctx, strings.TrimSpace(profileID))
	if err != nil {
		return nil, fmt.Errorf("list contact methods: %w", err)
	}
	return methods, nil
}
