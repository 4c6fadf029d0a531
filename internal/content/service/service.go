// Package service implements post and comment management, including
// their publish lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/content"
	"github.com/openshelf/circles/internal/event"
	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/publish"
	publishservice "github.com/openshelf/circles/internal/publish/service"
	"github.com/openshelf/circles/internal/storage"
)

// Service coordinates posts, comments, and their snapshots.
type Service struct {
	posts    storage.PostStore
	comments storage.CommentStore
	engine   *publishservice.Engine
	events   *event.Emitter
	log      *slog.Logger
	now      func() time.Time
	idGen    func() (string, error)
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

// NewService builds a content service around a publish engine.
func NewService(posts storage.PostStore, comments storage.CommentStore, engine *publishservice.Engine, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	service := &Service{
		posts:    posts,
		comments: comments,
		engine:   engine,
		log:      log,
		now:      time.Now,
		idGen:    id.NewID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreatePost creates and stores a post.
func (s *Service) CreatePost(ctx context.Context, input content.CreatePostInput) (content.Post, error) {
	created, err := content.CreatePost(input, s.now, s.idGen)
	if err != nil {
		return content.Post{}, err
	}
	if err := s.posts.CreatePost(ctx, created); err != nil {
		return content.Post{}, fmt.Errorf("store post: %w", err)
	}
	return created, nil
}

// GetPost loads a post by ID.
func (s *Service) GetPost(ctx context.Context, postID string) (content.Post, error) {
	loaded, err := s.posts.GetPost(ctx, strings.TrimSpace(postID))
	if errors.Is(err, storage.ErrNotFound) {
		return content.Post{}, apperrors.New(apperrors.CodeNotFound, "post not found")
	}
	if err != nil {
		return content.Post{}, fmt.Errorf("load post: %w", err)
	}
	return loaded, nil
}

// ListPosts returns a circle's posts.
func (s *Service) ListPosts(ctx context.Context, circleID string) ([]content.Post, error) {
	posts, err := s.posts.ListPostsByCircle(ctx, strings.TrimSpace(circleID))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListComments returns a post's comments.
func (s *Service) ListComments(ctx context.Context, postID string) ([]content.Comment, error) {
	comments, err := s.comments.ListCommentsByPost(ctx, strings.TrimSpace(postID))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// CreateComment creates and stores a comment after checking the parent
// post exists.
func (s *Service) CreateComment(ctx context.Context, input content.CreateCommentInput) (content.Comment, error) {
	created, err := content.CreateComment(input, s.now, s.idGen)
	if err != nil {
		return content.Comment{}, err
	}
	if _, err := s.GetPost(ctx, created.PostID); err != nil {
		return content.Comment{}, err
	}
	if err := s.comments.CreateComment(ctx, created); err != nil {
		return content.Comment{}, fmt.Errorf("store comment: %w", err)
	}
	return created, nil
}

// GetComment loads a comment by ID.
func (s *Service) GetComment(ctx context.Context, commentID string) (content.Comment, error) {
	loaded, err := s.comments.GetComment(ctx, strings.TrimSpace(commentID))
	if errors.Is(err, storage.ErrNotFound) {
		return content.Comment{}, apperrors.New(apperrors.CodeNotFound, "comment not found")
	}
	if err != nil {
		return content.Comment{}, fmt.Errorf("load comment: %w", err)
	}
	return loaded, nil
}

// PublishPost snapshots a post, cascading into its comments unless
// skipChildren is set.
func (s *Service) PublishPost(ctx context.Context, postID string, skipChildren bool) (publish.MetaInfo, error) {
	loaded, err := s.loadPostWithComments(ctx, postID, skipChildren)
	if err != nil {
		return publish.MetaInfo{}, err
	}
	meta, err := s.engine.Publish(ctx, loaded, skipChildren)
	if err != nil {
		return publish.MetaInfo{}, err
	}
	s.notify(ctx, event.ActionEntityPublished, "post", loaded.ID, loaded.AuthorProfileID)
	return meta, nil
}

// UnpublishPost retracts a post's snapshot, cascading into its comments
// unless skipChildren is set.
func (s *Service) UnpublishPost(ctx context.Context, postID string, skipChildren bool) error {
	loaded, err := s.loadPostWithComments(ctx, postID, skipChildren)
	if err != nil {
		return err
	}
	if err := s.engine.Unpublish(ctx, loaded, skipChildren); err != nil {
		return err
	}
	s.notify(ctx, event.ActionEntityUnpublished, "post", loaded.ID, loaded.AuthorProfileID)
	return nil
}

// PurgePost unpublishes a post and strips the content of every snapshot
// still tagged with it.
func (s *Service) PurgePost(ctx context.Context, postID string) error {
	loaded, err := s.loadPostWithComments(ctx, postID, false)
	if err != nil {
		return err
	}
	if err := s.engine.UnpublishPurge(ctx, loaded); err != nil {
		return err
	}
	s.notify(ctx, event.ActionEntityPurged, "post", loaded.ID, loaded.AuthorProfileID)
	return nil
}

// PublishComment snapshots a single comment.
func (s *Service) PublishComment(ctx context.Context, commentID string) (publish.MetaInfo, error) {
	loaded, err := s.GetComment(ctx, commentID)
	if err != nil {
		return publish.MetaInfo{}, err
	}
	meta, err := s.engine.Publish(ctx, &loaded, true)
	if err != nil {
		return publish.MetaInfo{}, err
	}
	s.notify(ctx, event.ActionEntityPublished, "comment", loaded.ID, loaded.AuthorProfileID)
	return meta, nil
}

// UnpublishComment retracts a single comment's snapshot.
func (s *Service) UnpublishComment(ctx context.Context, commentID string) error {
	loaded, err := s.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.engine.Unpublish(ctx, &loaded, true); err != nil {
		return err
	}
	s.notify(ctx, event.ActionEntityUnpublished, "comment", loaded.ID, loaded.AuthorProfileID)
	return nil
}

// loadPostWithComments loads a post, attaching its comments when a
// cascade will need them.
func (s *Service) loadPostWithComments(ctx context.Context, postID string, skipChildren bool) (*content.Post, error) {
	loaded, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !skipChildren {
		comments, err := s.comments.ListCommentsByPost(ctx, loaded.ID)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		loaded.Comments = make([]*content.Comment, 0, len(comments))
		for i := range comments {
			loaded.Comments = append(loaded.Comments, &comments[i])
		}
	}
	return &loaded, nil
}

func (s *Service) notify(ctx context.Context, action, kind, targetID, actorID string) {
	if err := s.events.Notify(ctx, action, kind, targetID, actorID); err != nil {
		s.log.Warn("journal append failed", "action", action, "target", targetID, "error", err)
	}
}
