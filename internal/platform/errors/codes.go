// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Profile errors
	CodeProfileEmptyDisplayName Code = "PROFILE_EMPTY_DISPLAY_NAME"
	CodeProfileInvalidEmail     Code = "PROFILE_INVALID_EMAIL"
	CodeProfileEmailTaken       Code = "PROFILE_EMAIL_TAKEN"
	CodeProfileDeleted          Code = "PROFILE_DELETED"
	CodeProfileForbidden        Code = "PROFILE_FORBIDDEN"
	CodeContactEmptyValue       Code = "CONTACT_EMPTY_VALUE"
	CodeContactInvalidKind      Code = "CONTACT_INVALID_KIND"
	CodeContactPrimaryRemoval   Code = "CONTACT_PRIMARY_REMOVAL"

	// Circle errors
	CodeCircleNameEmpty  Code = "CIRCLE_NAME_EMPTY"
	CodeCircleEmptyOwner Code = "CIRCLE_EMPTY_OWNER"

	// Invitation errors
	CodeInvitationEmptyCircleID  Code = "INVITATION_EMPTY_CIRCLE_ID"
	CodeInvitationEmptyInvitee   Code = "INVITATION_EMPTY_INVITEE"
	CodeInvitationInvalidStatus  Code = "INVITATION_INVALID_STATUS"
	CodeInvitationDuplicate      Code = "INVITATION_DUPLICATE"
	CodeInvitationForbidden      Code = "INVITATION_FORBIDDEN_TRANSITION"
	CodeInvitationNotFound       Code = "INVITATION_NOT_FOUND"
	CodeInvitationTokenRequired  Code = "INVITATION_TOKEN_REQUIRED"

	// Token errors
	CodeTokenEmptyKey      Code = "TOKEN_EMPTY_KEY"
	CodeTokenInvalid       Code = "TOKEN_INVALID"
	CodeTokenGrantInvalid  Code = "TOKEN_GRANT_INVALID"
	CodeTokenGrantExpired  Code = "TOKEN_GRANT_EXPIRED"
	CodeTokenGrantMismatch Code = "TOKEN_GRANT_MISMATCH"

	// Publish errors
	CodePublishNotConfigured Code = "PUBLISH_NOT_CONFIGURED"
	CodePublishValidation    Code = "PUBLISH_VALIDATION"

	// Emote errors
	CodeEmoteInvalidType      Code = "EMOTE_INVALID_TYPE"
	CodeEmoteDuplicate        Code = "EMOTE_DUPLICATE"
	CodeEmoteNotFound         Code = "EMOTE_NOT_FOUND"
	CodeEmoteAggregateInvalid Code = "EMOTE_AGGREGATE_INVALID"
	CodeEmoteTargetMissing    Code = "EMOTE_TARGET_MISSING"
	CodeEmoteTargetAmbiguous  Code = "EMOTE_TARGET_AMBIGUOUS"

	// Content errors
	CodePostEmptyAuthor    Code = "POST_EMPTY_AUTHOR"
	CodeCommentEmptyPostID Code = "COMMENT_EMPTY_POST_ID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeProfileEmptyDisplayName,
		CodeProfileInvalidEmail,
		CodeContactEmptyValue,
		CodeContactInvalidKind,
		CodeCircleNameEmpty,
		CodeCircleEmptyOwner,
		CodeInvitationEmptyCircleID,
		CodeInvitationEmptyInvitee,
		CodeInvitationInvalidStatus,
		CodeTokenEmptyKey,
		CodeTokenGrantInvalid,
		CodeTokenGrantMismatch,
		CodeEmoteInvalidType,
		CodeEmoteTargetMissing,
		CodeEmoteTargetAmbiguous,
		CodePostEmptyAuthor,
		CodeCommentEmptyPostID,
		CodePublishValidation:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInvitationForbidden,
		CodeInvitationTokenRequired,
		CodeContactPrimaryRemoval,
		CodeProfileDeleted,
		CodeTokenInvalid,
		CodeTokenGrantExpired,
		CodeEmoteAggregateInvalid,
		CodePublishNotConfigured:
		return codes.FailedPrecondition

	// PermissionDenied - actor lacks the required privilege
	case CodeProfileForbidden:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeInvitationNotFound,
		CodeEmoteNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeInvitationDuplicate,
		CodeEmoteDuplicate,
		CodeProfileEmailTaken:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
