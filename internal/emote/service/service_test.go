package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/openshelf/circles/internal/emote"
	apperrors "github.com/openshelf/circles/internal/platform/errors"
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

func newTestService(t *testing.T) *Service {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "emotes.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return NewService(store, nil, WithClock(fixedClock), WithIDGenerator(seqID("emote")))
}

func TestEmoted(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	created, err := service.Emoted(ctx, emote.CreateEmoteInput{
		ProfileID: "profile-1",
		Type:      emote.TypeLike,
		PostID:    "post-1",
	})
	if err != nil {
		t.Fatalf("emoted: %v", err)
	}
	if created.Type != emote.TypeLike {
		t.Fatalf("type = %v, want %v", created.Type, emote.TypeLike)
	}

	aggregate, err := service.Aggregate(ctx, emote.Target{PostID: "post-1"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if aggregate[emote.TypeLike] != 1 {
		t.Fatalf("like count = %d, want 1", aggregate[emote.TypeLike])
	}
}

func TestEmotedDuplicate(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()
	input := emote.CreateEmoteInput{ProfileID: "profile-1", Type: emote.TypeLike, PostID: "post-1"}

	if _, err := service.Emoted(ctx, input); err != nil {
		t.Fatalf("emoted: %v", err)
	}
	// A second reaction by the same profile is rejected even with a
	// different type.
	input.Type = emote.TypeLove
	_, err := service.Emoted(ctx, input)
	if !apperrors.IsCode(err, apperrors.CodeEmoteDuplicate) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeEmoteDuplicate)
	}

	aggregate, err := service.Aggregate(ctx, emote.Target{PostID: "post-1"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if aggregate.Total() != 1 {
		t.Fatalf("total = %d, want 1", aggregate.Total())
	}
}

func TestEmotedRequiresSingleTarget(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Emoted(ctx, emote.CreateEmoteInput{ProfileID: "profile-1", Type: emote.TypeLike})
	if !apperrors.IsCode(err, apperrors.CodeEmoteTargetMissing) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeEmoteTargetMissing)
	}

	_, err = service.Emoted(ctx, emote.CreateEmoteInput{
		ProfileID: "profile-1",
		Type:      emote.TypeLike,
		PostID:    "post-1",
		CommentID: "comment-1",
	})
	if !apperrors.IsCode(err, apperrors.CodeEmoteTargetAmbiguous) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeEmoteTargetAmbiguous)
	}
}

func TestDemote(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()
	target := emote.Target{PostID: "post-1"}

	if _, err := service.Emoted(ctx, emote.CreateEmoteInput{
		ProfileID: "profile-1",
		Type:      emote.TypeLike,
		PostID:    "post-1",
	}); err != nil {
		t.Fatalf("emoted: %v", err)
	}

	if err := service.Demote(ctx, "profile-1", target); err != nil {
		t.Fatalf("demote: %v", err)
	}
	aggregate, err := service.Aggregate(ctx, target)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if aggregate[emote.TypeLike] != 0 {
		t.Fatalf("like count = %d, want 0", aggregate[emote.TypeLike])
	}

	err = service.Demote(ctx, "profile-1", target)
	if !apperrors.IsCode(err, apperrors.CodeEmoteNotFound) {
		t.Fatalf("err = %v, want code %v", err, apperrors.CodeEmoteNotFound)
	}
}

func TestAggregateTracksMixedReactions(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	reactions := map[string]emote.Type{
		"profile-1": emote.TypeLike,
		"profile-2": emote.TypeLike,
		"profile-3": emote.TypeLove,
	}
	for profileID, emoteType := range reactions {
		if _, err := service.Emoted(ctx, emote.CreateEmoteInput{
			ProfileID: profileID,
			Type:      emoteType,
			PostID:    "post-1",
		}); err != nil {
			t.Fatalf("emoted %s: %v", profileID, err)
		}
	}

	aggregate, err := service.Aggregate(ctx, emote.Target{PostID: "post-1"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if aggregate[emote.TypeLike] != 2 || aggregate[emote.TypeLove] != 1 {
		t.Fatalf("aggregate = %v, want 2 likes and 1 love", aggregate)
	}
	if aggregate.Total() != 3 {
		t.Fatalf("total = %d, want 3", aggregate.Total())
	}
}

func TestPostAndCommentTargetsAreIndependent(t *testing.T) {
	t.Parallel()

	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.Emoted(ctx, emote.CreateEmoteInput{
		ProfileID: "profile-1",
		Type:      emote.TypeLike,
		PostID:    "post-1",
	}); err != nil {
		t.Fatalf("emoted post: %v", err)
	}
	// The same profile may react to a comment under the post.
	if _, err := service.Emoted(ctx, emote.CreateEmoteInput{
		ProfileID: "profile-1",
		Type:      emote.TypeLaugh,
		CommentID: "comment-1",
	}); err != nil {
		t.Fatalf("emoted comment: %v", err)
	}

	aggregate, err := service.Aggregate(ctx, emote.Target{CommentID: "comment-1"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if aggregate[emote.TypeLaugh] != 1 {
		t.Fatalf("laugh count = %d, want 1", aggregate[emote.TypeLaugh])
	}
}
