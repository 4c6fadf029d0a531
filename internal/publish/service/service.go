// Package service implements the publish engine: snapshot creation,
// unpublish, purge, and child cascades.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/publish"
	"github.com/openshelf/circles/internal/storage"
)

// Engine publishes and unpublishes entities that implement the
// Publishable capability.
type Engine struct {
	store storage.MetaInfoStore
	log   *slog.Logger
	now   func() time.Time
	idGen func() (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides snapshot ID generation, used by tests.
func WithIDGenerator(idGen func() (string, error)) Option {
	return func(e *Engine) {
		e.idGen = idGen
	}
}

// NewEngine builds a publish engine.
func NewEngine(store storage.MetaInfoStore, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	engine := &Engine{
		store: store,
		log:   log,
		now:   time.Now,
		idGen: id.NewID,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Publish verifies the entity, cascades to loaded children unless
// skipChildren is set, and replaces the entity's current snapshot with a
// fresh one. The entity's publish state is updated in place.
func (e *Engine) Publish(ctx context.Context, entity publish.Publishable, skipChildren bool) (publish.MetaInfo, error) {
	cfg := entity.PublishConfig()
	if cfg.Kind == "" {
		return publish.MetaInfo{}, apperrors.New(apperrors.CodePublishNotConfigured, "entity type does not publish")
	}

	if err := publish.Verify(entity, cfg); err != nil {
		return publish.MetaInfo{}, err
	}

	if !skipChildren {
		if err := e.cascade(ctx, entity, cfg, true); err != nil {
			return publish.MetaInfo{}, err
		}
	}

	body, err := publish.Render(entity)
	if err != nil {
		return publish.MetaInfo{}, err
	}

	metaID, err := e.idGen()
	if err != nil {
		return publish.MetaInfo{}, fmt.Errorf("generate snapshot id: %w", err)
	}

	now := e.now().UTC()
	meta := publish.MetaInfo{
		ID:        metaID,
		Source:    entity.PublishSource(),
		BodyJSON:  body,
		Text:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Replace, not append: the previous snapshot is deleted alongside
	// the insert and the entity row update.
	_, replaceMetaID := entity.PublishState()
	if err := e.store.ApplyPublish(ctx, meta.Source, meta, replaceMetaID); err != nil {
		return publish.MetaInfo{}, fmt.Errorf("apply publish: %w", err)
	}

	publishedAt := meta.CreatedAt
	entity.SetPublishState(&publishedAt, meta.ID)
	return meta, nil
}

// Unpublish deletes the entity's current snapshot and clears its publish
// state. Verification rules do not apply in this direction. Without a
// prior publish it is a no-op apart from the child cascade.
func (e *Engine) Unpublish(ctx context.Context, entity publish.Publishable, skipChildren bool) error {
	cfg := entity.PublishConfig()
	if cfg.Kind == "" {
		return apperrors.New(apperrors.CodePublishNotConfigured, "entity type does not publish")
	}

	if !skipChildren {
		if err := e.cascade(ctx, entity, cfg, false); err != nil {
			return err
		}
	}

	_, metaID := entity.PublishState()
	if metaID == "" {
		return nil
	}
	if err := e.store.ApplyUnpublish(ctx, entity.PublishSource(), metaID); err != nil {
		return fmt.Errorf("apply unpublish: %w", err)
	}
	entity.SetPublishState(nil, "")
	return nil
}

// UnpublishPurge unpublishes the entity and then strips the content of
// every surviving snapshot tagged with its source, keeping only the
// source envelope. The purge cannot be undone.
func (e *Engine) UnpublishPurge(ctx context.Context, entity publish.Publishable) error {
	if err := e.Unpublish(ctx, entity, false); err != nil {
		return err
	}

	source := entity.PublishSource()
	remnants, err := e.store.ListMetaInfoBySource(ctx, source)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	now := e.now().UTC()
	for _, meta := range remnants {
		purged, err := publish.Purge(meta.BodyJSON)
		if err != nil {
			return fmt.Errorf("purge snapshot %s: %w", meta.ID, err)
		}
		if err := e.store.UpdateMetaInfoBody(ctx, meta.ID, purged, purged, now); err != nil {
			return fmt.Errorf("store purged snapshot %s: %w", meta.ID, err)
		}
	}
	return nil
}

// cascade publishes or unpublishes every loaded child. A child that
// does not publish is logged and skipped, never fatal to the parent;
// any other child failure aborts the cascade.
func (e *Engine) cascade(ctx context.Context, entity publish.Publishable, cfg publish.Config, publishing bool) error {
	for _, relation := range cfg.Children {
		for _, child := range entity.Children(relation) {
			var err error
			if publishing {
				_, err = e.Publish(ctx, child, false)
			} else {
				err = e.Unpublish(ctx, child, false)
			}
			if err == nil {
				continue
			}
			source := child.PublishSource()
			if apperrors.IsCode(err, apperrors.CodePublishNotConfigured) {
				e.log.Warn("skipping child without publish support",
					"relation", relation, "kind", source.Kind, "id", source.ID)
				continue
			}
			return fmt.Errorf("cascade %s %s/%s: %w", relation, source.Kind, source.ID, err)
		}
	}
	return nil
}
