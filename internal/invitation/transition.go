package invitation

import (
	apperrors "github.com/openshelf/circles/internal/platform/errors"
)

// TransitionContext carries the state needed to authorize a status change
// on a circle's invitation set.
type TransitionContext struct {
	// CircleID identifies the target circle, for diagnostics only.
	CircleID string
	// OwnerProfileID is the profile that created the circle.
	OwnerProfileID string
	// ActorID is the profile requesting the change.
	ActorID string
	// ActorStatus is the status of the actor's own invitation on the
	// circle, or StatusUnspecified when the actor holds none.
	ActorStatus Status
	// InviteeID is the profile whose invitation is being changed.
	InviteeID string
	// InviteeStatus is the invitee's current status on the circle, or
	// StatusUnspecified when no invitation exists yet.
	InviteeStatus Status
}

// ValidateTransition authorizes a requested status change. Rules are
// checked in order and the first match wins:
//
//  1. The circle owner may make any change.
//  2. A member ranked above accepted may ban or reject others.
//  3. An invitee with a pending invitation may withdraw it themselves.
//
// Anything else is forbidden.
func ValidateTransition(ctx TransitionContext, statusTo Status) error {
	if !ValidStatus(statusTo) {
		return ErrInvalidStatus
	}

	if ctx.ActorID != "" && ctx.ActorID == ctx.OwnerProfileID {
		return nil
	}

	if ctx.ActorStatus > StatusAccepted && (statusTo == StatusBanned || statusTo == StatusRejected) {
		return nil
	}

	if ctx.InviteeStatus == StatusInvited && ctx.ActorID == ctx.InviteeID && statusTo == StatusWithdrawn {
		return nil
	}

	return apperrors.WithMetadata(
		apperrors.CodeInvitationForbidden,
		"invitation status change is not allowed",
		map[string]string{
			"CircleID": ctx.CircleID,
			"Actor":    ctx.ActorID,
			"Invitee":  ctx.InviteeID,
			"Status":   StatusLabel(statusTo),
		},
	)
}
