// Package event records domain actions in an append-only journal.
package event

import (
	"context"
	"time"

	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/storage"
)

// Journal action names recorded by the services.
const (
	ActionCircleCreated       = "circle.created"
	ActionInvitationCreated   = "invitation.created"
	ActionInvitationChanged   = "invitation.changed"
	ActionInvitationWithdrawn = "invitation.withdrawn"
	ActionEntityPublished     = "entity.published"
	ActionEntityUnpublished   = "entity.unpublished"
	ActionEntityPurged        = "entity.purged"
	ActionEmoteAdded          = "emote.added"
	ActionEmoteRemoved        = "emote.removed"
)

// Emitter appends journal events. Delivery is fire-and-forget from the
// caller's perspective: services log a failed append and move on.
type Emitter struct {
	store storage.EventStore
	clock func() time.Time
	idGen func() (string, error)
}

// NewEmitter creates a new event emitter.
func NewEmitter(store storage.EventStore) *Emitter {
	return &Emitter{store: store, clock: time.Now, idGen: id.NewID}
}

// Emit records a journal event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.ID == "" {
		gen := e.idGen
		if gen == nil {
			gen = id.NewID
		}
		eventID, err := gen()
		if err != nil {
			return err
		}
		evt.ID = eventID
	}
	return e.store.AppendEvent(ctx, evt)
}

// Notify is a convenience wrapper for the common action/target shape.
func (e *Emitter) Notify(ctx context.Context, action, targetKind, targetID, actorID string) error {
	return e.Emit(ctx, storage.Event{
		Action:     action,
		TargetKind: targetKind,
		TargetID:   targetID,
		ActorID:    actorID,
	})
}
