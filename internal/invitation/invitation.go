// Package invitation provides the membership invitation lifecycle for
// invitable targets such as circles.
package invitation

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
)

var (
	// ErrEmptyCircleID indicates a missing circle ID.
	ErrEmptyCircleID = apperrors.New(apperrors.CodeInvitationEmptyCircleID, "circle id is required")
	// ErrEmptyInviteeID indicates a missing invitee profile ID.
	ErrEmptyInviteeID = apperrors.New(apperrors.CodeInvitationEmptyInvitee, "invitee profile id is required")
	// ErrInvalidStatus indicates an out-of-range invitation status.
	ErrInvalidStatus = apperrors.New(apperrors.CodeInvitationInvalidStatus, "invitation status is not valid")
)

// Invitation represents a directed membership relationship between two
// profiles scoped to a circle.
type Invitation struct {
	ID        string
	CircleID  string
	InviterID string
	InviteeID string
	Status    Status
	// TokenKey optionally links an out-of-band verification token used
	// to accept this invitation.
	TokenKey string
	// MetadataJSON carries an opaque metadata blob set by callers.
	MetadataJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Member reports whether the invitation counts toward circle membership.
func (i Invitation) Member() bool {
	return i.Status >= StatusAccepted
}

// CreateInvitationInput describes the metadata needed to create an invitation.
type CreateInvitationInput struct {
	CircleID     string
	InviterID    string
	InviteeID    string
	Status       Status
	TokenKey     string
	MetadataJSON string
}

// CreateInvitation creates a new invitation with a generated ID and
// timestamps. A zero status defaults to invited.
func CreateInvitation(input CreateInvitationInput, now func() time.Time, idGenerator func() (string, error)) (Invitation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInvitationInput(input)
	if err != nil {
		return Invitation{}, err
	}

	invitationID, err := idGenerator()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate invitation id: %w", err)
	}

	createdAt := now().UTC()
	return Invitation{
		ID:           invitationID,
		CircleID:     normalized.CircleID,
		InviterID:    normalized.InviterID,
		InviteeID:    normalized.InviteeID,
		Status:       normalized.Status,
		TokenKey:     normalized.TokenKey,
		MetadataJSON: normalized.MetadataJSON,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// NormalizeCreateInvitationInput trims and validates invitation input
// metadata.
func NormalizeCreateInvitationInput(input CreateInvitationInput) (CreateInvitationInput, error) {
	input.CircleID = strings.TrimSpace(input.CircleID)
	if input.CircleID == "" {
		return CreateInvitationInput{}, ErrEmptyCircleID
	}
	input.InviteeID = strings.TrimSpace(input.InviteeID)
	if input.InviteeID == "" {
		return CreateInvitationInput{}, ErrEmptyInviteeID
	}
	input.InviterID = strings.TrimSpace(input.InviterID)
	if input.Status == StatusUnspecified {
		input.Status = StatusInvited
	}
	if !ValidStatus(input.Status) {
		return CreateInvitationInput{}, ErrInvalidStatus
	}
	input.TokenKey = strings.TrimSpace(input.TokenKey)
	return input, nil
}
