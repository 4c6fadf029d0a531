// Package content provides the post and comment entities that profiles
// publish and react to.
package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/circles/internal/emote"
	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
	"github.com/openshelf/circles/internal/publish"
)

var (
	// ErrEmptyAuthor indicates a missing author profile ID.
	ErrEmptyAuthor = apperrors.New(apperrors.CodePostEmptyAuthor, "author profile id is required")
)

// Visibility values accepted by the post publish rules.
const (
	VisibilityPrivate = "private"
	VisibilityCircle  = "circle"
	VisibilityPublic  = "public"
)

// Post represents an authored piece of content inside a circle.
type Post struct {
	ID              string
	CircleID        string
	AuthorProfileID string
	Title           string
	Body            string
	Visibility      string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	PublishedAt     *time.Time
	PublishedMetaID string

	// EmoteAggregate tracks per-type reaction counts for the post.
	EmoteAggregate emote.Aggregate
	// Comments holds loaded child comments for publish cascades. The
	// service populates it before publishing; nil means not loaded.
	Comments []*Comment
}

// CreatePostInput describes the metadata needed to create a post.
type CreatePostInput struct {
	CircleID        string
	AuthorProfileID string
	Title           string
	Body            string
	Visibility      string
}

// CreatePost creates a new post with a generated ID and timestamps.
// Visibility defaults to circle.
func CreatePost(input CreatePostInput, now func() time.Time, idGenerator func() (string, error)) (Post, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreatePostInput(input)
	if err != nil {
		return Post{}, err
	}

	postID, err := idGenerator()
	if err != nil {
		return Post{}, fmt.Errorf("generate post id: %w", err)
	}

	createdAt := now().UTC()
	return Post{
		ID:              postID,
		CircleID:        normalized.CircleID,
		AuthorProfileID: normalized.AuthorProfileID,
		Title:           normalized.Title,
		Body:            normalized.Body,
		Visibility:      normalized.Visibility,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		EmoteAggregate:  emote.Aggregate{},
	}, nil
}

// NormalizeCreatePostInput trims and validates post input metadata.
func NormalizeCreatePostInput(input CreatePostInput) (CreatePostInput, error) {
	input.AuthorProfileID = strings.TrimSpace(input.AuthorProfileID)
	if input.AuthorProfileID == "" {
		return CreatePostInput{}, ErrEmptyAuthor
	}
	input.CircleID = strings.TrimSpace(input.CircleID)
	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)
	input.Visibility = strings.ToLower(strings.TrimSpace(input.Visibility))
	if input.Visibility == "" {
		input.Visibility = VisibilityCircle
	}
	return input, nil
}

// PublishConfig declares how posts publish: visibility must allow it and
// loaded comments cascade.
func (p *Post) PublishConfig() publish.Config {
	return publish.Config{
		Kind: "post",
		Rules: []publish.Rule{
			{
				Field:   "visibility",
				Allowed: []string{VisibilityCircle, VisibilityPublic},
				Message: "private posts cannot be published",
			},
		},
		Children: []string{"comments"},
	}
}

// PublishSource identifies the post for snapshot back-references.
func (p *Post) PublishSource() publish.SourceRef {
	return publish.SourceRef{ID: p.ID, Kind: "post"}
}

// PublishState returns the post's current snapshot linkage.
func (p *Post) PublishState() (*time.Time, string) {
	return p.PublishedAt, p.PublishedMetaID
}

// SetPublishState records new snapshot linkage on the post.
func (p *Post) SetPublishState(publishedAt *time.Time, metaID string) {
	p.PublishedAt = publishedAt
	p.PublishedMetaID = metaID
}

// FieldValue resolves publish rule fields by name.
func (p *Post) FieldValue(name string) string {
	switch name {
	case "visibility":
		return p.Visibility
	case "title":
		return p.Title
	default:
		return ""
	}
}

// Children returns loaded child entities for publish cascades.
func (p *Post) Children(name string) []publish.Publishable {
	if name != "comments" || len(p.Comments) == 0 {
		return nil
	}
	children := make([]publish.Publishable, 0, len(p.Comments))
	for _, comment := range p.Comments {
		children = append(children, comment)
	}
	return children
}

// Snapshot serializes the post's public representation.
func (p *Post) Snapshot() (map[string]any, error) {
	return map[string]any{
		"title":      p.Title,
		"body":       p.Body,
		"author":     p.AuthorProfileID,
		"circle":     p.CircleID,
		"visibility": p.Visibility,
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
