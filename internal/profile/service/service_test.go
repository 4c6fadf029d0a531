package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/profile"
	"github.com/openshelf/circles/internal/storage/sqlite"
)

func fixedClock() time.Time {
	return time.Date(2026, time.August, 15, 9, 0, 0, 0, time.UTC)
}

func seqID(prefix string) func() (string, error) {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	base := []Option{WithClock(fixedClock), WithIDGenerator(seqID("id"))}
	return NewService(store, store, nil, append(base, opts...)...)
}

func createTestProfile(t *testing.T, service *Service, name, email string, privilege profile.Privilege) profile.Profile {
	t.Helper()
	created, err := service.CreateProfile(context.Background(), profile.CreateProfileInput{
		DisplayName: name,
		Email:       email,
		Privilege:   privilege,
	})
	if err != nil {
		t.Fatalf("create profile %s: %v", name, err)
	}
	return created
}

func TestCreateProfileSeedsPrimaryContact(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateProfile(ctx, profile.CreateProfileInput{
		DisplayName: "Ada",
		Email:       " Ada@Example.COM ",
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("email = %q, want normalized", created.Email)
	}

	methods, err := service.ListContactMethods(ctx, created.ID)
	if err != nil {
		t.Fatalf("list contact methods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("len(methods) = %d, want 1", len(methods))
	}
	if !methods[0].Primary || methods[0].Kind != profile.ContactKindEmail {
		t.Fatalf("seeded contact = %+v, want primary email", methods[0])
	}
	if methods[0].Value != "ada@example.com" {
		t.Fatalf("contact value = %q, want profile email", methods[0].Value)
	}
}

func TestCreateProfileDuplicateEmail(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	input := profile.CreateProfileInput{DisplayName: "Ada", Email: "ada@example.com"}
	if _, err := service.CreateProfile(ctx, input); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	input.DisplayName = "Imposter"
	_, err := service.CreateProfile(ctx, input)
	if !apperrors.IsCode(err, apperrors.CodeProfileEmailTaken) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileEmailTaken)
	}
}

func TestGetProfileByEmail(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateProfile(ctx, profile.CreateProfileInput{
		DisplayName: "Ada",
		Email:       "ada@example.com",
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	loaded, err := service.GetProfileByEmail(ctx, " ADA@example.com ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if loaded.ID != created.ID {
		t.Fatalf("id = %q, want %q", loaded.ID, created.ID)
	}
}

func TestDeleteProfileTombstones(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	created := createTestProfile(t, service, "Ada", "ada@example.com", profile.PrivilegeUser)
	moderator := createTestProfile(t, service, "Mod", "mod@example.com", profile.PrivilegeElevated)

	// Profiles delete themselves without extra privilege.
	if err := service.DeleteProfile(ctx, created.ID, created.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	_, err := service.GetProfile(ctx, created.ID)
	if !apperrors.IsCode(err, apperrors.CodeProfileDeleted) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileDeleted)
	}

	// The tombstoned row stays visible to listAll.
	active, err := service.ListProfiles(ctx, moderator.ID, false)
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active profiles = %d, want 1", len(active))
	}
	all, err := service.ListProfiles(ctx, moderator.ID, true)
	if err != nil {
		t.Fatalf("list all profiles: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all profiles = %d, want 2", len(all))
	}
}

func TestDeleteProfileRequiresAdmin(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	target := createTestProfile(t, service, "Ada", "ada@example.com", profile.PrivilegeUser)
	peer := createTestProfile(t, service, "Eve", "eve@example.com", profile.PrivilegeUser)
	admin := createTestProfile(t, service, "Root", "root@example.com", profile.PrivilegeAdmin)

	err := service.DeleteProfile(ctx, peer.ID, target.ID)
	if !apperrors.IsCode(err, apperrors.CodeProfileForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileForbidden)
	}
	if _, err := service.GetProfile(ctx, target.ID); err != nil {
		t.Fatalf("target must survive a forbidden delete: %v", err)
	}

	if err := service.DeleteProfile(ctx, admin.ID, target.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	_, err = service.GetProfile(ctx, target.ID)
	if !apperrors.IsCode(err, apperrors.CodeProfileDeleted) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileDeleted)
	}
}

func TestListAllProfilesRequiresElevated(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	plain := createTestProfile(t, service, "Ada", "ada@example.com", profile.PrivilegeUser)
	moderator := createTestProfile(t, service, "Mod", "mod@example.com", profile.PrivilegeElevated)

	_, err := service.ListProfiles(ctx, plain.ID, true)
	if !apperrors.IsCode(err, apperrors.CodeProfileForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileForbidden)
	}
	if _, err := service.ListProfiles(ctx, plain.ID, false); err != nil {
		t.Fatalf("active listing needs no privilege: %v", err)
	}
	if _, err := service.ListProfiles(ctx, moderator.ID, true); err != nil {
		t.Fatalf("elevated listing: %v", err)
	}
}

func TestPrivilegeThresholdsInjected(t *testing.T) {
	t.Parallel()

	// Raising the elevated threshold to admin locks moderators out.
	service := newTestService(t, WithPrivilegeConfig(profile.PrivilegeConfig{
		ElevatedMin: profile.PrivilegeAdmin,
		AdminMin:    profile.PrivilegeDestroyer,
	}))
	ctx := context.Background()

	moderator := createTestProfile(t, service, "Mod", "mod@example.com", profile.PrivilegeElevated)
	admin := createTestProfile(t, service, "Root", "root@example.com", profile.PrivilegeAdmin)

	_, err := service.ListProfiles(ctx, moderator.ID, true)
	if !apperrors.IsCode(err, apperrors.CodeProfileForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileForbidden)
	}
	err = service.DeleteProfile(ctx, admin.ID, moderator.ID)
	if !apperrors.IsCode(err, apperrors.CodeProfileForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeProfileForbidden)
	}
}

func TestRemoveContactMethod(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateProfile(ctx, profile.CreateProfileInput{
		DisplayName: "Ada",
		Email:       "ada@example.com",
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	backup, err := service.AddContactMethod(ctx, profile.CreateContactMethodInput{
		ProfileID: created.ID,
		Kind:      profile.ContactKindEmail,
		Value:     "backup@example.com",
	})
	if err != nil {
		t.Fatalf("add contact method: %v", err)
	}

	methods, err := service.ListContactMethods(ctx, created.ID)
	if err != nil {
		t.Fatalf("list contact methods: %v", err)
	}
	var primaryID string
	for _, method := range methods {
		if method.Primary {
			primaryID = method.ID
		}
	}

	// The primary cannot go while another contact remains.
	err = service.RemoveContactMethod(ctx, created.ID, primaryID)
	if !apperrors.IsCode(err, apperrors.CodeContactPrimaryRemoval) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeContactPrimaryRemoval)
	}

	if err := service.RemoveContactMethod(ctx, created.ID, backup.ID); err != nil {
		t.Fatalf("remove contact method: %v", err)
	}
	remaining, err := service.ListContactMethods(ctx, created.ID)
	if err != nil {
		t.Fatalf("list contact methods: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("len(remaining) = %d, want 1", len(remaining))
	}

	err = service.RemoveContactMethod(ctx, created.ID, "missing")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeNotFound)
	}
}

func TestSetPrimaryContactMethod(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateProfile(ctx, profile.CreateProfileInput{
		DisplayName: "Ada",
		Email:       "ada@example.com",
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	backup, err := service.AddContactMethod(ctx, profile.CreateContactMethodInput{
		ProfileID: created.ID,
		Kind:      profile.ContactKindEmail,
		Value:     "backup@example.com",
	})
	if err != nil {
		t.Fatalf("add contact method: %v", err)
	}
	if backup.Primary {
		t.Fatal("second contact method must not start primary")
	}

	if err := service.SetPrimaryContactMethod(ctx, created.ID, backup.ID); err != nil {
		t.Fatalf("set primary: %v", err)
	}

	methods, err := service.ListContactMethods(ctx, created.ID)
	if err != nil {
		t.Fatalf("list contact methods: %v", err)
	}
	var primaries int
	for _, method := range methods {
		if method.Primary {
			primaries++
			if method.ID != backup.ID {
				t.Fatalf("primary = %q, want %q", method.ID, backup.ID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("primaries = %d, want exactly 1", primaries)
	}

	err = service.SetPrimaryContactMethod(ctx, created.ID, "missing")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeNotFound)
	}
}
