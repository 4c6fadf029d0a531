package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeProfileEmptyDisplayName = "PROFILE_EMPTY_DISPLAY_NAME"
	CodeProfileInvalidEmail     = "PROFILE_INVALID_EMAIL"
	CodeProfileEmailTaken       = "PROFILE_EMAIL_TAKEN"
	CodeProfileDeleted          = "PROFILE_DELETED"
	CodeProfileForbidden        = "PROFILE_FORBIDDEN"
	CodeContactEmptyValue       = "CONTACT_EMPTY_VALUE"
	CodeContactInvalidKind      = "CONTACT_INVALID_KIND"
	CodeContactPrimaryRemoval   = "CONTACT_PRIMARY_REMOVAL"
	CodeCircleNameEmpty         = "CIRCLE_NAME_EMPTY"
	CodeCircleEmptyOwner        = "CIRCLE_EMPTY_OWNER"
	CodeInvitationEmptyCircleID = "INVITATION_EMPTY_CIRCLE_ID"
	CodeInvitationEmptyInvitee  = "INVITATION_EMPTY_INVITEE"
	CodeInvitationInvalidStatus = "INVITATION_INVALID_STATUS"
	CodeInvitationDuplicate     = "INVITATION_DUPLICATE"
	CodeInvitationForbidden     = "INVITATION_FORBIDDEN_TRANSITION"
	CodeInvitationNotFound      = "INVITATION_NOT_FOUND"
	CodeInvitationTokenRequired = "INVITATION_TOKEN_REQUIRED"
	CodeTokenEmptyKey           = "TOKEN_EMPTY_KEY"
	CodeTokenInvalid            = "TOKEN_INVALID"
	CodeTokenGrantInvalid       = "TOKEN_GRANT_INVALID"
	CodeTokenGrantExpired       = "TOKEN_GRANT_EXPIRED"
	CodeTokenGrantMismatch      = "TOKEN_GRANT_MISMATCH"
	CodePublishNotConfigured    = "PUBLISH_NOT_CONFIGURED"
	CodePublishValidation       = "PUBLISH_VALIDATION"
	CodeEmoteInvalidType        = "EMOTE_INVALID_TYPE"
	CodeEmoteDuplicate          = "EMOTE_DUPLICATE"
	CodeEmoteNotFound           = "EMOTE_NOT_FOUND"
	CodeEmoteAggregateInvalid   = "EMOTE_AGGREGATE_INVALID"
	CodeEmoteTargetMissing      = "EMOTE_TARGET_MISSING"
	CodeEmoteTargetAmbiguous    = "EMOTE_TARGET_AMBIGUOUS"
	CodePostEmptyAuthor         = "POST_EMPTY_AUTHOR"
	CodeCommentEmptyPostID      = "COMMENT_EMPTY_POST_ID"
	CodeNotFound                = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Profile errors
		CodeProfileEmptyDisplayName: "Display name cannot be empty",
		CodeProfileInvalidEmail:     "Email address is not valid",
		CodeProfileEmailTaken:       "An account already exists for this email address",
		CodeProfileDeleted:          "This profile has been deleted",
		CodeProfileForbidden:        "You do not have permission to do this",
		CodeContactEmptyValue:       "Contact value cannot be empty",
		CodeContactInvalidKind:      "Invalid contact method kind",
		CodeContactPrimaryRemoval:   "Make another contact method primary before removing this one",

		// Circle errors
		CodeCircleNameEmpty:  "Circle name cannot be empty",
		CodeCircleEmptyOwner: "Circle owner is required",

		// Invitation errors
		CodeInvitationEmptyCircleID: "Circle ID is required for invitation",
		CodeInvitationEmptyInvitee:  "Invitee is required for invitation",
		CodeInvitationInvalidStatus: "Invalid invitation status specified",
		CodeInvitationDuplicate:     "{{.Invitee}} already has an invitation to this circle",
		CodeInvitationForbidden:     "Cannot change invitation for {{.Invitee}} to {{.Status}}",
		CodeInvitationNotFound:      "No active invitation found for {{.Invitee}}",
		CodeInvitationTokenRequired: "A verification token is required to accept this invitation",

		// Token errors
		CodeTokenEmptyKey:      "Token key cannot be empty",
		CodeTokenInvalid:       "The token is not valid",
		CodeTokenGrantInvalid:  "The grant is not valid",
		CodeTokenGrantExpired:  "The grant has expired",
		CodeTokenGrantMismatch: "The grant does not match this invitation",

		// Publish errors
		CodePublishNotConfigured: "{{.Kind}} does not support publishing",
		CodePublishValidation:    "{{.Field}}: {{.Reason}}",

		// Emote errors
		CodeEmoteInvalidType:      "Invalid emote type specified",
		CodeEmoteDuplicate:        "You have already reacted to this",
		CodeEmoteNotFound:         "You have not reacted to this",
		CodeEmoteAggregateInvalid: "Reaction counts for {{.EmoteType}} are inconsistent",
		CodeEmoteTargetMissing:    "A reaction needs a post or a comment",
		CodeEmoteTargetAmbiguous:  "A reaction applies to a post or a comment, not both",

		// Content errors
		CodePostEmptyAuthor:    "Post author is required",
		CodeCommentEmptyPostID: "Post ID is required for comment",

		// Storage errors
		CodeNotFound: "The requested record was not found",
	},
}
