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
	// ErrEmptyPostID indicates a comment without a parent post.
	ErrEmptyPostID = apperrors.New(apperrors.CodeCommentEmptyPostID, "post id is required")
)

// Comment represents a reply attached to a post.
type Comment struct {
	ID              string
	PostID          string
	AuthorProfileID string
	Body            string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	PublishedAt     *time.Time
	PublishedMetaID string

	// EmoteAggregate tracks per-type reaction counts for the comment.
	EmoteAggregate emote.Aggregate
}

// CreateCommentInput describes the metadata needed to create a comment.
type CreateCommentInput struct {
	PostID          string
	AuthorProfileID string
	Body            string
}

// CreateComment creates a new comment with a generated ID and timestamps.
func CreateComment(input CreateCommentInput, now func() time.Time, idGenerator func() (string, error)) (Comment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateCommentInput(input)
	if err != nil {
		return Comment{}, err
	}

	commentID, err := idGenerator()
	if err != nil {
		return Comment{}, fmt.Errorf("generate comment id: %w", err)
	}

	createdAt := now().UTC()
	return Comment{
		ID:              commentID,
		PostID:          normalized.PostID,
		AuthorProfileID: normalized.AuthorProfileID,
		Body:            normalized.Body,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		EmoteAggregate:  emote.Aggregate{},
	}, nil
}

// NormalizeCreateCommentInput trims and validates comment input metadata.
func NormalizeCreateCommentInput(input CreateCommentInput) (CreateCommentInput, error) {
	input.PostID = strings.TrimSpace(input.PostID)
	if input.PostID == "" {
		return CreateCommentInput{}, ErrEmptyPostID
	}
	input.AuthorProfileID = strings.TrimSpace(input.AuthorProfileID)
	if input.AuthorProfileID == "" {
		return CreateCommentInput{}, ErrEmptyAuthor
	}
	input.Body = strings.TrimSpace(input.Body)
	return input, nil
}

// PublishConfig declares how comments publish: no rules, no children.
func (c *Comment) PublishConfig() publish.Config {
	return publish.Config{Kind: "comment"}
}

// PublishSource identifies the comment for snapshot back-references.
func (c *Comment) PublishSource() publish.SourceRef {
	return publish.SourceRef{ID: c.ID, Kind: "comment"}
}

// PublishState returns the comment's current snapshot linkage.
func (c *Comment) PublishState() (*time.Time, string) {
	return c.PublishedAt, c.PublishedMetaID
}

// SetPublishState records new snapshot linkage on the comment.
func (c *Comment) SetPublishState(publishedAt *time.Time, metaID string) {
	c.PublishedAt = publishedAt
	c.PublishedMetaID = metaID
}

// FieldValue resolves publish rule fields by name.
func (c *Comment) FieldValue(name string) string {
	if name == "body" {
		return c.Body
	}
	return ""
}

// Children returns nil; comments declare no child relations.
func (c *Comment) Children(string) []publish.Publishable {
	return nil
}

// Snapshot serializes the comment's public representation.
func (c *Comment) Snapshot() (map[string]any, error) {
	return map[string]any{
		"post":       c.PostID,
		"author":     c.AuthorProfileID,
		"body":       c.Body,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
