// Package storage defines the persistence contracts shared by the
// domain services. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/openshelf/circles/internal/circle"
	"github.com/openshelf/circles/internal/content"
	"github.com/openshelf/circles/internal/emote"
	"github.com/openshelf/circles/internal/invitation"
	"github.com/openshelf/circles/internal/profile"
	"github.com/openshelf/circles/internal/publish"
	"github.com/openshelf/circles/internal/token"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected a write.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict indicates a write would break a stored invariant, such
	// as an aggregate counter going negative.
	ErrConflict = errors.New("record state conflict")
)

// ProfileStore persists identity profiles. Deletion is a tombstone, rows
// are never removed.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) error
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) error
	DeleteProfile(ctx context.Context, id string, deletedAt time.Time) error
	// ListProfiles returns active profiles; listAll includes tombstoned
	// rows as well.
	ListProfiles(ctx context.Context, listAll bool) ([]profile.Profile, error)
}

// ContactStore persists profile contact methods.
type ContactStore interface {
	CreateContactMethod(ctx context.Context, m profile.ContactMethod) error
	ListContactMethods(ctx context.Context, profileID string) ([]profile.ContactMethod, error)
	SetPrimaryContactMethod(ctx context.Context, profileID, contactID string) error
	DeleteContactMethod(ctx context.Context, id string) error
}

// CircleStore persists circles.
type CircleStore interface {
	// CreateCircleWithFounder writes the circle and its bootstrap
	// self-invitation in one transaction.
	CreateCircleWithFounder(ctx context.Context, c circle.Circle, founder invitation.Invitation) error
	GetCircle(ctx context.Context, id string) (circle.Circle, error)
	UpdateCircle(ctx context.Context, c circle.Circle) error
	ListCirclesByOwner(ctx context.Context, ownerProfileID string) ([]circle.Circle, error)
}

// InvitationStore persists circle invitations. At most one invitation
// exists per (circle, invitee) pair.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv invitation.Invitation) error
	GetInvitation(ctx context.Context, circleID, inviteeID string) (invitation.Invitation, error)
	UpdateInvitationStatus(ctx context.Context, id string, status invitation.Status, updatedAt time.Time) error
	// DeleteInvitation marks the row withdrawn and removes it in one
	// transaction, so journal listeners always observe a terminal state.
	DeleteInvitation(ctx context.Context, id string, updatedAt time.Time) error
	ListInvitations(ctx context.Context, circleID string) ([]invitation.Invitation, error)
	// CountMembers counts invitations with status accepted or above.
	CountMembers(ctx context.Context, circleID string) (int64, error)
}

// TokenStore persists verification tokens keyed by their cleartext
// lookup key.
type TokenStore interface {
	// PutToken stores a token, removing any stale unvalidated token that
	// shares the key in the same transaction.
	PutToken(ctx context.Context, t token.Token) error
	// GetToken returns the token stored under a key.
	GetToken(ctx context.Context, key string) (token.Token, error)
	// ConsumeToken writes the token's validation state and, when remove
	// is set, deletes the row in the same transaction, so a concurrent
	// reader never observes a consumed token.
	ConsumeToken(ctx context.Context, t token.Token, remove bool) error
	DeleteToken(ctx context.Context, key string) error
}

// MetaInfoStore persists publish snapshots and the publish state of
// their source entities.
type MetaInfoStore interface {
	// ApplyPublish inserts the new snapshot, deletes the replaced one if
	// any, and updates the source entity's publish linkage, all in one
	// transaction.
	ApplyPublish(ctx context.Context, source publish.SourceRef, meta publish.MetaInfo, replaceMetaID string) error
	// ApplyUnpublish deletes the current snapshot and clears the source
	// entity's publish linkage in one transaction.
	ApplyUnpublish(ctx context.Context, source publish.SourceRef, metaID string) error
	GetMetaInfo(ctx context.Context, id string) (publish.MetaInfo, error)
	// ListMetaInfoBySource returns every snapshot tagged with the source,
	// including shells left behind by earlier replaces.
	ListMetaInfoBySource(ctx context.Context, source publish.SourceRef) ([]publish.MetaInfo, error)
	UpdateMetaInfoBody(ctx context.Context, id, bodyJSON, text string, updatedAt time.Time) error
}

// EmoteStore persists reactions and their per-target aggregates. Both
// mutations keep the aggregate table in step with the emote rows.
type EmoteStore interface {
	// CreateEmote inserts the reaction and increments its aggregate slot
	// in one transaction.
	CreateEmote(ctx context.Context, e emote.Emote) error
	GetEmote(ctx context.Context, profileID string, target emote.Target) (emote.Emote, error)
	// DeleteEmote removes the reaction and decrements its aggregate slot
	// in one transaction, returning the removed emote. A decrement that
	// would go negative fails with ErrConflict.
	DeleteEmote(ctx context.Context, profileID string, target emote.Target) (emote.Emote, error)
	GetAggregate(ctx context.Context, target emote.Target) (emote.Aggregate, error)
}

// PostStore persists posts.
type PostStore interface {
	CreatePost(ctx context.Context, p content.Post) error
	GetPost(ctx context.Context, id string) (content.Post, error)
	ListPostsByCircle(ctx context.Context, circleID string) ([]content.Post, error)
	UpdatePost(ctx context.Context, p content.Post) error
}

// CommentStore persists comments.
type CommentStore interface {
	CreateComment(ctx context.Context, c content.Comment) error
	GetComment(ctx context.Context, id string) (content.Comment, error)
	ListCommentsByPost(ctx context.Context, postID string) ([]content.Comment, error)
	UpdateComment(ctx context.Context, c content.Comment) error
}

// Event is one journal entry describing a domain action.
type Event struct {
	ID         string
	Action     string
	TargetKind string
	TargetID   string
	ActorID    string
	Timestamp  time.Time
}

// EventStore appends and reads the domain event journal.
type EventStore interface {
	AppendEvent(ctx context.Context, evt Event) error
	ListEvents(ctx context.Context, targetKind, targetID string) ([]Event, error)
}
