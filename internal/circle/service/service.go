// Package service implements circle membership: invitations, status
// changes, acceptance, and removal.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/circle"
	"github.com/openshelf/circles/internal/event"
	"github.com/openshelf/circles/internal/invitation"
	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/publish"
	publishservice "github.com/openshelf/circles/internal/publish/service"
	"github.com/openshelf/circles/internal/storage"
	"github.com/openshelf/circles/internal/token"
	tokenservice "github.com/openshelf/circles/internal/token/service"
)

// Service coordinates circles and their invitation sets.
type Service struct {
	circles     storage.CircleStore
	invitations storage.InvitationStore
	tokens      *tokenservice.Engine
	publisher   *publishservice.Engine
	grantCfg    token.GrantConfig
	hasGrantCfg bool
	events      *event.Emitter
	log         *slog.Logger
	now         func() time.Time
	idGen       func() (string, error)
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

// WithTokenEngine wires the token engine used by Accept.
func WithTokenEngine(tokens *tokenservice.Engine) Option {
	return func(s *Service) {
		s.tokens = tokens
	}
}

// WithPublishEngine wires the snapshot engine used by PublishCircle.
func WithPublishEngine(publisher *publishservice.Engine) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithGrantConfig wires the acceptance grant verifier used by
// AcceptWithGrant.
func WithGrantConfig(cfg token.GrantConfig) Option {
	return func(s *Service) {
		s.grantCfg = cfg
		s.hasGrantCfg = true
	}
}

// WithEvents wires the journal emitter.
func WithEvents(events *event.Emitter) Option {
	return func(s *Service) {
		s.events = events
	}
}

// NewService builds a circle service.
func NewService(circles storage.CircleStore, invitations storage.InvitationStore, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	service := &Service{
		circles:     circles,
		invitations: invitations,
		log:         log,
		now:         time.Now,
		idGen:       id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateCircle creates a circle together with its bootstrap invitation:
// the owner invites themselves at elevated status so the circle is
// self-administering from the first row.
func (s *Service) CreateCircle(ctx context.Context, input circle.CreateCircleInput) (circle.Circle, error) {
	created, err := circle.CreateCircle(input, s.now, s.idGen)
	if err != nil {
		return circle.Circle{}, err
	}

	founder, err := invitation.CreateInvitation(invitation.CreateInvitationInput{
		CircleID:  created.ID,
		InviterID: created.OwnerProfileID,
		InviteeID: created.OwnerProfileID,
		Status:    invitation.StatusElevated,
	}, s.now, s.idGen)
	if err != nil {
		return circle.Circle{}, err
	}

	if err := s.circles.CreateCircleWithFounder(ctx, created, founder); err != nil {
		return circle.Circle{}, fmt.Errorf("store circle: %w", err)
	}

	s.notify(ctx, event.ActionCircleCreated, "circle", created.ID, created.OwnerProfileID)
	return created, nil
}

// GetCircle loads a circle by ID.
func (s *Service) GetCircle(ctx context.Context, circleID string) (circle.Circle, error) {
	loaded, err := s.circles.GetCircle(ctx, circleID)
	if errors.Is(err, storage.ErrNotFound) {
		return circle.Circle{}, apperrors.New(apperrors.CodeNotFound, "circle not found")
	}
	if err != nil {
		return circle.Circle{}, fmt.Errorf("load circle: %w", err)
	}
	return loaded, nil
}

// ListCircles returns the circles a profile owns.
func (s *Service) ListCircles(ctx context.Context, ownerProfileID string) ([]circle.Circle, error) {
	circles, err := s.circles.ListCirclesByOwner(ctx, strings.TrimSpace(ownerProfileID))
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	return circles, nil
}

// HasInvited looks up the active invitation for an invitee on a circle.
func (s *Service) HasInvited(ctx context.Context, circleID, inviteeID string) (invitation.Invitation, bool, error) {
	found, err := s.invitations.GetInvitation(ctx, circleID, strings.TrimSpace(inviteeID))
	if errors.Is(err, storage.ErrNotFound) {
		return invitation.Invitation{}, false, nil
	}
	if err != nil {
		return invitation.Invitation{}, false, fmt.Errorf("load invitation: %w", err)
	}
	return found, true, nil
}

// InviteInput describes an invitation to create on a circle.
type InviteInput struct {
	CircleID     string
	ActorID      string
	InviteeID    string
	Status       invitation.Status
	TokenKey     string
	MetadataJSON string
}

// Invite creates an invitation after checking for duplicates and
// authorizing the requested status against the transition rules.
func (s *Service) Invite(ctx context.Context, input InviteInput) (invitation.Invitation, error) {
	target, err := s.GetCircle(ctx, input.CircleID)
	if err != nil {
		return invitation.Invitation{}, err
	}

	if _, exists, err := s.HasInvited(ctx, target.ID, input.InviteeID); err != nil {
		return invitation.Invitation{}, err
	} else if exists {
		return invitation.Invitation{}, duplicateInvitation(target.ID, input.InviteeID)
	}

	statusTo := input.Status
	if statusTo == invitation.StatusUnspecified {
		statusTo = invitation.StatusInvited
	}

	transition, err := s.transitionContext(ctx, target, input.ActorID, input.InviteeID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if err := invitation.ValidateTransition(transition, statusTo); err != nil {
		return invitation.Invitation{}, err
	}

	created, err := invitation.CreateInvitation(invitation.CreateInvitationInput{
		CircleID:     target.ID,
		InviterID:    input.ActorID,
		InviteeID:    input.InviteeID,
		Status:       statusTo,
		TokenKey:     input.TokenKey,
		MetadataJSON: input.MetadataJSON,
	}, s.now, s.idGen)
	if err != nil {
		return invitation.Invitation{}, err
	}

	if err := s.invitations.CreateInvitation(ctx, created); err != nil {
		// A concurrent invite for the same invitee loses at the
		// uniqueness constraint and surfaces as a duplicate.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return invitation.Invitation{}, duplicateInvitation(target.ID, input.InviteeID)
		}
		return invitation.Invitation{}, fmt.Errorf("store invitation: %w", err)
	}

	s.notify(ctx, event.ActionInvitationCreated, "circle", target.ID, input.ActorID)
	return created, nil
}

// ChangeInvitation mutates the status of an existing invitation after
// re-validating the transition rules.
func (s *Service) ChangeInvitation(ctx context.Context, circleID, actorID, inviteeID string, statusTo invitation.Status) (invitation.Invitation, error) {
	target, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return invitation.Invitation{}, err
	}

	existing, exists, err := s.HasInvited(ctx, target.ID, inviteeID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if !exists {
		return invitation.Invitation{}, noInvitation(target.ID, inviteeID)
	}

	transition, err := s.transitionContext(ctx, target, actorID, inviteeID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	transition.InviteeStatus = existing.Status
	if err := invitation.ValidateTransition(transition, statusTo); err != nil {
		return invitation.Invitation{}, err
	}

	updatedAt := s.now().UTC()
	if err := s.invitations.UpdateInvitationStatus(ctx, existing.ID, statusTo, updatedAt); err != nil {
		return invitation.Invitation{}, fmt.Errorf("update invitation: %w", err)
	}
	existing.Status = statusTo
	existing.UpdatedAt = updatedAt

	s.notify(ctx, event.ActionInvitationChanged, "circle", target.ID, actorID)
	return existing, nil
}

// Uninvite removes an invitee from a circle. The actor must be allowed
// to force the invitation to rejected; the store then marks the row
// withdrawn and deletes it in one transaction, so no intermediate
// status is ever observable.
func (s *Service) Uninvite(ctx context.Context, circleID, actorID, inviteeID string) error {
	target, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return err
	}

	existing, exists, err := s.HasInvited(ctx, target.ID, inviteeID)
	if err != nil {
		return err
	}
	if !exists {
		return noInvitation(target.ID, inviteeID)
	}

	transition, err := s.transitionContext(ctx, target, actorID, inviteeID)
	if err != nil {
		return err
	}
	transition.InviteeStatus = existing.Status
	if err := invitation.ValidateTransition(transition, invitation.StatusRejected); err != nil {
		return err
	}

	if err := s.invitations.DeleteInvitation(ctx, existing.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}

	s.notify(ctx, event.ActionInvitationWithdrawn, "circle", target.ID, actorID)
	return nil
}

// Accept confirms a pending invitation with an out-of-band token value.
// Acceptance is deliberately not a generic status change: the rule table
// never authorizes it, the verification token does.
func (s *Service) Accept(ctx context.Context, circleID, inviteeID, tokenValue string) (invitation.Invitation, error) {
	existing, err := s.pendingInvitation(ctx, circleID, inviteeID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if existing.TokenKey == "" {
		return invitation.Invitation{}, apperrors.New(apperrors.CodeInvitationTokenRequired, "invitation has no verification token")
	}
	if s.tokens == nil {
		return invitation.Invitation{}, fmt.Errorf("token engine is not configured")
	}

	ok, err := s.tokens.Validate(ctx, existing.TokenKey, tokenValue)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if !ok {
		return invitation.Invitation{}, apperrors.New(apperrors.CodeTokenInvalid, "verification token was rejected")
	}

	return s.accept(ctx, existing)
}

// AcceptWithGrant confirms a pending invitation with a signed
// acceptance grant instead of a stored token.
func (s *Service) AcceptWithGrant(ctx context.Context, circleID, inviteeID, grant string) (invitation.Invitation, error) {
	existing, err := s.pendingInvitation(ctx, circleID, inviteeID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if !s.hasGrantCfg {
		return invitation.Invitation{}, fmt.Errorf("accept grant verifier is not configured")
	}

	if _, err := token.ValidateGrant(grant, token.GrantExpectation{
		CircleID:     existing.CircleID,
		InvitationID: existing.ID,
		ProfileID:    existing.InviteeID,
	}, s.grantCfg); err != nil {
		return invitation.Invitation{}, err
	}

	return s.accept(ctx, existing)
}

// PublishCircle snapshots a circle's public listing. Circles have no
// child relations, so there is never a cascade.
func (s *Service) PublishCircle(ctx context.Context, circleID string) (publish.MetaInfo, error) {
	loaded, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return publish.MetaInfo{}, err
	}
	if s.publisher == nil {
		return publish.MetaInfo{}, fmt.Errorf("publish engine is not configured")
	}
	meta, err := s.publisher.Publish(ctx, &loaded, true)
	if err != nil {
		return publish.MetaInfo{}, err
	}
	s.notify(ctx, event.ActionEntityPublished, "circle", loaded.ID, loaded.OwnerProfileID)
	return meta, nil
}

// UnpublishCircle retracts a circle's snapshot.
func (s *Service) UnpublishCircle(ctx context.Context, circleID string) error {
	loaded, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return err
	}
	if s.publisher == nil {
		return fmt.Errorf("publish engine is not configured")
	}
	if err := s.publisher.Unpublish(ctx, &loaded, true); err != nil {
		return err
	}
	s.notify(ctx, event.ActionEntityUnpublished, "circle", loaded.ID, loaded.OwnerProfileID)
	return nil
}

// MemberCount counts invitations at accepted status or above.
func (s *Service) MemberCount(ctx context.Context, circleID string) (int64, error) {
	count, err := s.invitations.CountMembers(ctx, circleID)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// ListInvitations returns a circle's invitation set.
func (s *Service) ListInvitations(ctx context.Context, circleID string) ([]invitation.Invitation, error) {
	invitations, err := s.invitations.ListInvitations(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return invitations, nil
}

func (s *Service) pendingInvitation(ctx context.Context, circleID, inviteeID string) (invitation.Invitation, error) {
	target, err := s.GetCircle(ctx, circleID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	existing, exists, err := s.HasInvited(ctx, target.ID, inviteeID)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if !exists {
		return invitation.Invitation{}, noInvitation(target.ID, inviteeID)
	}
	if existing.Status != invitation.StatusInvited {
		return invitation.Invitation{}, apperrors.WithMetadata(
			apperrors.CodeInvitationForbidden,
			"invitation is not pending acceptance",
			map[string]string{
				"CircleID": target.ID,
				"Invitee":  existing.InviteeID,
				"Status":   invitation.StatusLabel(existing.Status),
			},
		)
	}
	return existing, nil
}

func (s *Service) accept(ctx context.Context, existing invitation.Invitation) (invitation.Invitation, error) {
	updatedAt := s.now().UTC()
	if err := s.invitations.UpdateInvitationStatus(ctx, existing.ID, invitation.StatusAccepted, updatedAt); err != nil {
		return invitation.Invitation{}, fmt.Errorf("accept invitation: %w", err)
	}
	existing.Status = invitation.StatusAccepted
	existing.UpdatedAt = updatedAt

	s.notify(ctx, event.ActionInvitationChanged, "circle", existing.CircleID, existing.InviteeID)
	return existing, nil
}

// transitionContext assembles the actor's standing on the circle for
// the transition rule check.
func (s *Service) transitionContext(ctx context.Context, target circle.Circle, actorID, inviteeID string) (invitation.TransitionContext, error) {
	transition := invitation.TransitionContext{
		CircleID:       target.ID,
		OwnerProfileID: target.OwnerProfileID,
		ActorID:        strings.TrimSpace(actorID),
		InviteeID:      strings.TrimSpace(inviteeID),
	}
	if transition.ActorID != "" && transition.ActorID != target.OwnerProfileID {
		actorInvitation, exists, err := s.HasInvited(ctx, target.ID, transition.ActorID)
		if err != nil {
			return invitation.TransitionContext{}, err
		}
		if exists {
			transition.ActorStatus = actorInvitation.Status
		}
	}
	return transition, nil
}

// notify appends a journal event, logging failures instead of
// propagating them.
func (s *Service) notify(ctx context.Context, action, targetKind, targetID, actorID string) {
	if err := s.events.Notify(ctx, action, targetKind, targetID, actorID); err != nil {
		s.log.Warn("journal append failed", "action", action, "target", targetID, "error", err)
	}
}

func duplicateInvitation(circleID, inviteeID string) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvitationDuplicate,
		"invitee already has an invitation on this circle",
		map[string]string{"CircleID": circleID, "Invitee": strings.TrimSpace(inviteeID)},
	)
}

func noInvitation(circleID, inviteeID string) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvitationNotFound,
		"invitee has no invitation on this circle",
		map[string]string{"CircleID": circleID, "Invitee": strings.TrimSpace(inviteeID)},
	)
}
