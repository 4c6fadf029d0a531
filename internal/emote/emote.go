// Package emote provides typed reactions on posts and comments.
package emote

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
)

var (
	// ErrInvalidType indicates an out-of-range emote type.
	ErrInvalidType = apperrors.New(apperrors.CodeEmoteInvalidType, "emote type is not valid")
	// ErrTargetMissing indicates an emote without a post or comment target.
	ErrTargetMissing = apperrors.New(apperrors.CodeEmoteTargetMissing, "emote needs a post or comment target")
	// ErrTargetAmbiguous indicates an emote with both targets set.
	ErrTargetAmbiguous = apperrors.New(apperrors.CodeEmoteTargetAmbiguous, "emote cannot target a post and a comment at once")
)

// Type represents the reaction kind of an emote.
type Type int

const (
	// TypeUnspecified represents an invalid emote type.
	TypeUnspecified Type = iota
	// TypeLike is a plain approval reaction.
	TypeLike
	// TypeLove is an enthusiastic reaction.
	TypeLove
	// TypeLaugh is an amused reaction.
	TypeLaugh
	// TypeWow is a surprised reaction.
	TypeWow
	// TypeSad is a commiserating reaction.
	TypeSad
	// TypeAngry is an upset reaction.
	TypeAngry
)

// ValidType reports whether the type is one of the defined reaction kinds.
func ValidType(t Type) bool {
	return t >= TypeLike && t <= TypeAngry
}

// TypeLabel returns the string label for an emote type.
func TypeLabel(t Type) string {
	switch t {
	case TypeLike:
		return "LIKE"
	case TypeLove:
		return "LOVE"
	case TypeLaugh:
		return "LAUGH"
	case TypeWow:
		return "WOW"
	case TypeSad:
		return "SAD"
	case TypeAngry:
		return "ANGRY"
	default:
		return "UNSPECIFIED"
	}
}

// TypeFromLabel converts a type label to a Type value.
func TypeFromLabel(label string) Type {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "LIKE":
		return TypeLike
	case "LOVE":
		return TypeLove
	case "LAUGH":
		return TypeLaugh
	case "WOW":
		return TypeWow
	case "SAD":
		return TypeSad
	case "ANGRY":
		return TypeAngry
	default:
		return TypeUnspecified
	}
}

// Emote represents one reaction by one profile against exactly one of a
// post or a comment.
type Emote struct {
	ID        string
	ProfileID string
	Type      Type
	PostID    string
	CommentID string
	CreatedAt time.Time
}

// Target is the union reference an emote points at: exactly one of the
// two fields is set.
type Target struct {
	PostID    string
	CommentID string
}

// NormalizeTarget trims and validates a target union.
func NormalizeTarget(target Target) (Target, error) {
	target.PostID = strings.TrimSpace(target.PostID)
	target.CommentID = strings.TrimSpace(target.CommentID)
	if target.PostID == "" && target.CommentID == "" {
		return Target{}, ErrTargetMissing
	}
	if target.PostID != "" && target.CommentID != "" {
		return Target{}, ErrTargetAmbiguous
	}
	return target, nil
}

// Target returns the emote's target union.
func (e Emote) Target() Target {
	return Target{PostID: e.PostID, CommentID: e.CommentID}
}

// TargetID returns the identifier of whichever target is set.
func (e Emote) TargetID() string {
	if e.PostID != "" {
		return e.PostID
	}
	return e.CommentID
}

// CreateEmoteInput describes the metadata needed to create an emote.
type CreateEmoteInput struct {
	ProfileID string
	Type      Type
	PostID    string
	CommentID string
}

// CreateEmote creates a new emote with a generated ID and timestamp.
func CreateEmote(input CreateEmoteInput, now func() time.Time, idGenerator func() (string, error)) (Emote, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateEmoteInput(input)
	if err != nil {
		return Emote{}, err
	}

	emoteID, err := idGenerator()
	if err != nil {
		return Emote{}, fmt.Errorf("generate emote id: %w", err)
	}

	return Emote{
		ID:        emoteID,
		ProfileID: normalized.ProfileID,
		Type:      normalized.Type,
		PostID:    normalized.PostID,
		CommentID: normalized.CommentID,
		CreatedAt: now().UTC(),
	}, nil
}

// NormalizeCreateEmoteInput trims and validates emote input metadata. The
// post and comment targets form a union: exactly one must be set.
func NormalizeCreateEmoteInput(input CreateEmoteInput) (CreateEmoteInput, error) {
	input.ProfileID = strings.TrimSpace(input.ProfileID)
	if input.ProfileID == "" {
		return CreateEmoteInput{}, apperrors.New(apperrors.CodeEmoteTargetMissing, "emote author profile id is required")
	}
	if !ValidType(input.Type) {
		return CreateEmoteInput{}, ErrInvalidType
	}
	input.PostID = strings.TrimSpace(input.PostID)
	input.CommentID = strings.TrimSpace(input.CommentID)
	if input.PostID == "" && input.CommentID == "" {
		return CreateEmoteInput{}, ErrTargetMissing
	}
	if input.PostID != "" && input.CommentID != "" {
		return CreateEmoteInput{}, ErrTargetAmbiguous
	}
	return input, nil
}

// Aggregate tracks per-type reaction counts for a single target.
type Aggregate map[Type]int64

// Total returns the sum of all aggregate slots.
func (a Aggregate) Total() int64 {
	var total int64
	for _, count := range a {
		total += count
	}
	return total
}
