package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openshelf/circles/internal/circle"
	"github.com/openshelf/circles/internal/invitation"
	apperrors "github.com/openshelf/circles/internal/platform/errors"
	publishservice "github.com/openshelf/circles/internal/publish/service"
	"github.com/openshelf/circles/internal/storage"
	"github.com/openshelf/circles/internal/storage/sqlite"
	"github.com/openshelf/circles/internal/token"
	tokenservice "github.com/openshelf/circles/internal/token/service"
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

func newTestService(t *testing.T, opts ...Option) (*Service, *tokenservice.Engine) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "circles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	tokens, err := tokenservice.NewEngine(store, token.Config{
		PrefixSalt:  "prefix",
		SuffixSalt:  "suffix",
		Alphabet:    "abcdefghjkmnpqrstuvwxyz23456789",
		KeyLength:   8,
		ValueLength: 16,
		SealKey:     bytes.Repeat([]byte{0x42}, 32),
		DefaultTTL:  24 * time.Hour,
	}, tokenservice.WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new token engine: %v", err)
	}

	publisher := publishservice.NewEngine(store, nil,
		publishservice.WithClock(fixedClock),
		publishservice.WithIDGenerator(seqID("meta")))

	base := []Option{
		WithClock(fixedClock),
		WithIDGenerator(seqID("id")),
		WithTokenEngine(tokens),
		WithPublishEngine(publisher),
	}
	return NewService(store, store, nil, append(base, opts...)...), tokens
}

func createCircle(t *testing.T, service *Service, ownerID string) circle.Circle {
	t.Helper()
	created, err := service.CreateCircle(context.Background(), circle.CreateCircleInput{
		OwnerProfileID: ownerID,
		Name:           "midnight readers",
	})
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	return created
}

func TestCreateCircleBootstrapsFounder(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	founder, exists, err := service.HasInvited(ctx, created.ID, "owner-1")
	if err != nil {
		t.Fatalf("has invited: %v", err)
	}
	if !exists {
		t.Fatal("owner must hold the bootstrap invitation")
	}
	if founder.Status != invitation.StatusElevated {
		t.Fatalf("founder status = %v, want %v", founder.Status, invitation.StatusElevated)
	}

	count, err := service.MemberCount(ctx, created.ID)
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != 1 {
		t.Fatalf("member count = %d, want 1", count)
	}
}

func TestInvite(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	invited, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if invited.Status != invitation.StatusInvited {
		t.Fatalf("status = %v, want %v", invited.Status, invitation.StatusInvited)
	}

	// Pending invitations do not count toward membership.
	count, err := service.MemberCount(ctx, created.ID)
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != 1 {
		t.Fatalf("member count = %d, want 1", count)
	}
}

func TestInviteDuplicate(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	input := InviteInput{CircleID: created.ID, ActorID: "owner-1", InviteeID: "reader-1"}
	if _, err := service.Invite(ctx, input); err != nil {
		t.Fatalf("invite: %v", err)
	}
	_, err := service.Invite(ctx, input)
	if !apperrors.IsCode(err, apperrors.CodeInvitationDuplicate) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationDuplicate)
	}
}

func TestInviteUnknownCircle(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	_, err := service.Invite(context.Background(), InviteInput{
		CircleID:  "missing",
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeNotFound)
	}
}

func TestInviteByAcceptedMemberForbidden(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "member-1",
		Status:    invitation.StatusAccepted,
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	_, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "member-1",
		InviteeID: "reader-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeInvitationForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationForbidden)
	}
}

func TestElevatedMemberCanBan(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	for invitee, status := range map[string]invitation.Status{
		"mod-1":    invitation.StatusElevated,
		"reader-1": invitation.StatusAccepted,
	} {
		if _, err := service.Invite(ctx, InviteInput{
			CircleID:  created.ID,
			ActorID:   "owner-1",
			InviteeID: invitee,
			Status:    status,
		}); err != nil {
			t.Fatalf("seed %s: %v", invitee, err)
		}
	}

	banned, err := service.ChangeInvitation(ctx, created.ID, "mod-1", "reader-1", invitation.StatusBanned)
	if err != nil {
		t.Fatalf("ban: %v", err)
	}
	if banned.Status != invitation.StatusBanned {
		t.Fatalf("status = %v, want %v", banned.Status, invitation.StatusBanned)
	}

	// Moderators cannot promote, only remove.
	_, err = service.ChangeInvitation(ctx, created.ID, "mod-1", "reader-1", invitation.StatusElevated)
	if !apperrors.IsCode(err, apperrors.CodeInvitationForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationForbidden)
	}
}

func TestSelfWithdraw(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	withdrawn, err := service.ChangeInvitation(ctx, created.ID, "reader-1", "reader-1", invitation.StatusWithdrawn)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Status != invitation.StatusWithdrawn {
		t.Fatalf("status = %v, want %v", withdrawn.Status, invitation.StatusWithdrawn)
	}

	// Withdrawal is only open while the invitation is pending.
	_, err = service.ChangeInvitation(ctx, created.ID, "reader-1", "reader-1", invitation.StatusWithdrawn)
	if !apperrors.IsCode(err, apperrors.CodeInvitationForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationForbidden)
	}
}

func TestUninvite(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	if err := service.Uninvite(ctx, created.ID, "owner-1", "reader-1"); err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	if _, exists, err := service.HasInvited(ctx, created.ID, "reader-1"); err != nil {
		t.Fatalf("has invited: %v", err)
	} else if exists {
		t.Fatal("invitation must be gone after uninvite")
	}

	err := service.Uninvite(ctx, created.ID, "owner-1", "reader-1")
	if !apperrors.IsCode(err, apperrors.CodeInvitationNotFound) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationNotFound)
	}
}

// countingInvitationStore records which mutations Uninvite issues.
type countingInvitationStore struct {
	storage.InvitationStore
	statusUpdates int
	deletes       int
}

func (c *countingInvitationStore) UpdateInvitationStatus(ctx context.Context, id string, status invitation.Status, updatedAt time.Time) error {
	c.statusUpdates++
	return c.InvitationStore.UpdateInvitationStatus(ctx, id, status, updatedAt)
}

func (c *countingInvitationStore) DeleteInvitation(ctx context.Context, id string, updatedAt time.Time) error {
	c.deletes++
	return c.InvitationStore.DeleteInvitation(ctx, id, updatedAt)
}

func TestUninviteDeletesInOneStoreCall(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "circles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	counting := &countingInvitationStore{InvitationStore: store}
	service := NewService(store, counting, nil,
		WithClock(fixedClock),
		WithIDGenerator(seqID("id")))

	ctx := context.Background()
	created := createCircle(t, service, "owner-1")
	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	if err := service.Uninvite(ctx, created.ID, "owner-1", "reader-1"); err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	// The terminal mark and the removal share one store transaction; a
	// separate status write would leave a stray row if the process died
	// between the two.
	if counting.statusUpdates != 0 {
		t.Fatalf("status updates = %d, want 0", counting.statusUpdates)
	}
	if counting.deletes != 1 {
		t.Fatalf("delete calls = %d, want 1", counting.deletes)
	}
}

func TestAcceptWithToken(t *testing.T) {
	t.Parallel()

	service, tokens := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	issued, err := tokens.CreateRandom(ctx, time.Time{}, false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
		TokenKey:  issued.Key,
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	accepted, err := service.Accept(ctx, created.ID, "reader-1", issued.Value)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != invitation.StatusAccepted {
		t.Fatalf("status = %v, want %v", accepted.Status, invitation.StatusAccepted)
	}

	count, err := service.MemberCount(ctx, created.ID)
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != 2 {
		t.Fatalf("member count = %d, want 2", count)
	}
}

func TestAcceptRejectsWrongTokenValue(t *testing.T) {
	t.Parallel()

	service, tokens := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	issued, err := tokens.CreateRandom(ctx, time.Time{}, false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
		TokenKey:  issued.Key,
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	_, err = service.Accept(ctx, created.ID, "reader-1", "wrong")
	if !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeTokenInvalid)
	}
	if _, err := service.Accept(ctx, created.ID, "reader-1", issued.Value); !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
		t.Fatalf("err = %v, single-use token must be consumed by the failed attempt", err)
	}
}

func TestAcceptRequiresTokenKey(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	_, err := service.Accept(ctx, created.ID, "reader-1", "anything")
	if !apperrors.IsCode(err, apperrors.CodeInvitationTokenRequired) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationTokenRequired)
	}
}

func TestAcceptRequiresPendingInvitation(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	if _, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "member-1",
		Status:    invitation.StatusAccepted,
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	_, err := service.Accept(ctx, created.ID, "member-1", "anything")
	if !apperrors.IsCode(err, apperrors.CodeInvitationForbidden) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeInvitationForbidden)
	}
}

func signGrant(t *testing.T, key ed25519.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}
	return signed
}

func TestAcceptWithGrant(t *testing.T) {
	t.Parallel()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	grantCfg := token.GrantConfig{
		Issuer:   "openshelf",
		Audience: "circles",
		Key:      public,
		Now:      fixedClock,
	}

	service, _ := newTestService(t, WithGrantConfig(grantCfg))
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	invited, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	claims := jwt.MapClaims{
		"iss":           "openshelf",
		"aud":           "circles",
		"jti":           "grant-1",
		"exp":           jwt.NewNumericDate(fixedClock().Add(time.Hour)),
		"circle_id":     created.ID,
		"invitation_id": invited.ID,
		"profile_id":    "reader-1",
	}

	accepted, err := service.AcceptWithGrant(ctx, created.ID, "reader-1", signGrant(t, private, claims))
	if err != nil {
		t.Fatalf("accept with grant: %v", err)
	}
	if accepted.Status != invitation.StatusAccepted {
		t.Fatalf("status = %v, want %v", accepted.Status, invitation.StatusAccepted)
	}
}

func TestAcceptWithGrantRejectsMismatchedProfile(t *testing.T) {
	t.Parallel()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	grantCfg := token.GrantConfig{
		Issuer:   "openshelf",
		Audience: "circles",
		Key:      public,
		Now:      fixedClock,
	}

	service, _ := newTestService(t, WithGrantConfig(grantCfg))
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	invited, err := service.Invite(ctx, InviteInput{
		CircleID:  created.ID,
		ActorID:   "owner-1",
		InviteeID: "reader-1",
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	claims := jwt.MapClaims{
		"iss":           "openshelf",
		"aud":           "circles",
		"jti":           "grant-1",
		"exp":           jwt.NewNumericDate(fixedClock().Add(time.Hour)),
		"circle_id":     created.ID,
		"invitation_id": invited.ID,
		"profile_id":    "intruder",
	}

	_, err = service.AcceptWithGrant(ctx, created.ID, "reader-1", signGrant(t, private, claims))
	if !apperrors.IsCode(err, apperrors.CodeTokenGrantMismatch) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeTokenGrantMismatch)
	}
}

func TestListCircles(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	createCircle(t, service, "owner-1")
	createCircle(t, service, "owner-1")

	owned, err := service.ListCircles(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list circles: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("len(owned) = %d, want 2", len(owned))
	}

	other, err := service.ListCircles(ctx, "owner-2")
	if err != nil {
		t.Fatalf("list circles: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("len(other) = %d, want 0", len(other))
	}
}

func TestPublishCircleRoundTrip(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	meta, err := service.PublishCircle(ctx, created.ID)
	if err != nil {
		t.Fatalf("publish circle: %v", err)
	}

	published, err := service.GetCircle(ctx, created.ID)
	if err != nil {
		t.Fatalf("get circle: %v", err)
	}
	if published.PublishedMetaID != meta.ID {
		t.Fatalf("circle meta id = %q, want %q", published.PublishedMetaID, meta.ID)
	}
	if !published.Published() {
		t.Fatal("circle must report published after a publish")
	}

	if err := service.UnpublishCircle(ctx, created.ID); err != nil {
		t.Fatalf("unpublish circle: %v", err)
	}
	unpublished, err := service.GetCircle(ctx, created.ID)
	if err != nil {
		t.Fatalf("get circle: %v", err)
	}
	if unpublished.Published() || unpublished.PublishedMetaID != "" {
		t.Fatal("unpublish must clear the circle's snapshot linkage")
	}
}

func TestListInvitations(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	created := createCircle(t, service, "owner-1")

	for _, invitee := range []string{"reader-1", "reader-2"} {
		if _, err := service.Invite(ctx, InviteInput{
			CircleID:  created.ID,
			ActorID:   "owner-1",
			InviteeID: invitee,
		}); err != nil {
			t.Fatalf("invite %s: %v", invitee, err)
		}
	}

	listed, err := service.ListInvitations(ctx, created.ID)
	if err != nil {
		t.Fatalf("list invitations: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("len(listed) = %d, want 3", len(listed))
	}
}
