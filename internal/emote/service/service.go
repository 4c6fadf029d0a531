// Package service implements emote aggregation: one reaction per
// profile per target, with per-type counters kept in step.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/emote"
	"github.com/openshelf/circles/internal/event"
	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/storage"
)

// Service coordinates reactions and their aggregates.
type Service struct {
	emotes storage.EmoteStore
	events *event.Emitter
	log    *slog.Logger
	now    func() time.Time
	idGen  func() (string, error)
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

// WithEvents wires the journal emitter.
func WithEvents(events *event.Emitter) Option {
	return func(s *Service) {
		s.events = events
	}
}

// NewService builds an emote service.
func NewService(emotes storage.EmoteStore, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	service := &Service{
		emotes: emotes,
		log:    log,
		now:    time.Now,
		idGen:  id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Emoted records a reaction by a profile on a target and increments the
// matching aggregate slot.
func (s *Service) Emoted(ctx context.Context, input emote.CreateEmoteInput) (emote.Emote, error) {
	created, err := emote.CreateEmote(input, s.now, s.idGen)
	if err != nil {
		return emote.Emote{}, err
	}

	if _, err := s.emotes.GetEmote(ctx, created.ProfileID, created.Target()); err == nil {
		return emote.Emote{}, duplicateEmote(created.ProfileID, created.TargetID())
	} else if !errors.Is(err, storage.ErrNotFound) {
		return emote.Emote{}, fmt.Errorf("load emote: %w", err)
	}

	if err := s.emotes.CreateEmote(ctx, created); err != nil {
		// A concurrent reaction by the same profile loses at the
		// uniqueness constraint and surfaces as a duplicate.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return emote.Emote{}, duplicateEmote(created.ProfileID, created.TargetID())
		}
		return emote.Emote{}, fmt.Errorf("store emote: %w", err)
	}

	s.notify(ctx, event.ActionEmoteAdded, created)
	return created, nil
}

// Demote removes a profile's reaction from a target and decrements the
// matching aggregate slot.
func (s *Service) Demote(ctx context.Context, profileID string, target emote.Target) error {
	profileID = strings.TrimSpace(profileID)
	normalized, err := emote.NormalizeTarget(target)
	if err != nil {
		return err
	}

	removed, err := s.emotes.DeleteEmote(ctx, profileID, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(
			apperrors.CodeEmoteNotFound,
			"profile has no reaction on this target",
			map[string]string{"Profile": profileID},
		)
	}
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.New(apperrors.CodeEmoteAggregateInvalid, "emote aggregate would go negative")
	}
	if err != nil {
		return fmt.Errorf("delete emote: %w", err)
	}

	s.notify(ctx, event.ActionEmoteRemoved, removed)
	return nil
}

// Aggregate returns the per-type reaction counts for a target.
func (s *Service) Aggregate(ctx context.Context, target emote.Target) (emote.Aggregate, error) {
	normalized, err := emote.NormalizeTarget(target)
	if err != nil {
		return nil, err
	}
	aggregate, err := s.emotes.GetAggregate(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("load aggregate: %w", err)
	}
	return aggregate, nil
}

func (s *Service) notify(ctx context.Context, action string, e emote.Emote) {
	kind := "post"
	if e.CommentID != "" {
		kind = "comment"
	}
	if err := s.events.Notify(ctx, action, kind, e.TargetID(), e.ProfileID); err != nil {
		s.log.Warn("journal append failed", "action", action, "target", e.TargetID(), "error", err)
	}
}

func duplicateEmote(profileID, targetID string) error {
	return apperrors.WithMetadata(
		apperrors.CodeEmoteDuplicate,
		"profile already reacted to this target",
		map[string]string{"Profile": profileID, "Target": targetID},
	)
}
