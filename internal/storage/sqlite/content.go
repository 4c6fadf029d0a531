package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openshelf/circles/internal/content"
	"github.com/openshelf/circles/internal/emote"
	"github.com/openshelf/circles/internal/storage"
)

// CreatePost inserts one post record.
func (s *Store) CreatePost(ctx context.Context, p content.Post) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("post id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO posts (id, circle_id, author_profile_id, title, body, visibility, created_at_ms, updated_at_ms, published_at_ms, published_meta_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CircleID, p.AuthorProfileID, p.Title, p.Body, p.Visibility,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt), toNullMillis(p.PublishedAt), p.PublishedMetaID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPost fetches a post by ID, with its emote aggregate attached.
func (s *Store) GetPost(ctx context.Context, id string) (content.Post, error) {
	if err := s.ready(ctx); err != nil {
		return content.Post{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, circle_id, author_profile_id, title, body, visibility, created_at_ms, updated_at_ms, published_at_ms, published_meta_id
		FROM posts WHERE id = ?`, strings.TrimSpace(id))
	p, err := scanPost(row)
	if err != nil {
		return content.Post{}, err
	}
	aggregate, err := s.GetAggregate(ctx, emote.Target{PostID: p.ID})
	if err != nil {
		return content.Post{}, err
	}
	p.EmoteAggregate = aggregate
	return p, nil
}

// ListPostsByCircle returns a circle's posts.
func (s *Store) ListPostsByCircle(ctx context.Context, circleID string) ([]content.Post, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, circle_id, author_profile_id, title, body, visibility, created_at_ms, updated_at_ms, published_at_ms, published_meta_id
		FROM posts WHERE circle_id = ? ORDER BY created_at_ms ASC`, strings.TrimSpace(circleID))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []content.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// UpdatePost overwrites a post's mutable fields, including its publish
// linkage.
func (s *Store) UpdatePost(ctx context.Context, p content.Post) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE posts
		SET title = ?, body = ?, visibility = ?, updated_at_ms = ?, published_at_ms = ?, published_meta_id = ?
		WHERE id = ?`,
		p.Title, p.Body, p.Visibility, toMillis(p.UpdatedAt), toNullMillis(p.PublishedAt), p.PublishedMetaID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireRow(result)
}

// CreateComment inserts one comment record.
func (s *Store) CreateComment(ctx context.Context, c content.Comment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("comment id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, author_profile_id, body, created_at_ms, updated_at_ms, published_at_ms, published_meta_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.AuthorProfileID, c.Body,
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt), toNullMillis(c.PublishedAt), c.PublishedMetaID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetComment fetches a comment by ID, with its emote aggregate attached.
func (s *Store) GetComment(ctx context.Context, id string) (content.Comment, error) {
	if err := s.ready(ctx); err != nil {
		return content.Comment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, post_id, author_profile_id, body, created_at_ms, updated_at_ms, published_at_ms, published_meta_id
		FROM comments WHERE id = ?`, strings.TrimSpace(id))
	c, err := scanComment(row)
	if err != nil {
		return content.Comment{}, err
	}
	aggregate, err := s.GetAggregate(ctx, emote.Target{CommentID: c.ID})
	if err != nil {
		return content.Comment{}, err
	}
	c.EmoteAggregate = aggregate
	return c, nil
}

// ListCommentsByPost returns a post's comments.
func (s *Store) ListCommentsByPost(ctx context.Context, postID string) ([]content.Comment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, post_id, author_profile_id, body, created_at_ms, updated_at_ms, published_at_ms, published_meta_id
		FROM comments WHERE post_id = ? ORDER BY created_at_ms ASC`, strings.TrimSpace(postID))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []content.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateComment overwrites a comment's mutable fields, including its
// publish linkage.
func (s *Store) UpdateComment(ctx context.Context, c content.Comment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE comments
		SET body = ?, updated_at_ms = ?, published_at_ms = ?, published_meta_id = ?
		WHERE id = ?`,
		c.Body, toMillis(c.UpdatedAt), toNullMillis(c.PublishedAt), c.PublishedMetaID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireRow(result)
}

func scanPost(row rowScanner) (content.Post, error) {
	var p content.Post
	var createdAt, updatedAt int64
	var publishedAt sql.NullInt64
	err := row.Scan(&p.ID, &p.CircleID, &p.AuthorProfileID, &p.Title, &p.Body, &p.Visibility,
		&createdAt, &updatedAt, &publishedAt, &p.PublishedMetaID)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Post{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Post{}, fmt.Errorf("scan post: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.PublishedAt = fromNullMillis(publishedAt)
	return p, nil
}

func scanComment(row rowScanner) (content.Comment, error) {
	var c content.Comment
	var createdAt, updatedAt int64
	var publishedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorProfileID, &c.Body,
		&createdAt, &updatedAt, &publishedAt, &c.PublishedMetaID)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Comment{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Comment{}, fmt.Errorf("scan comment: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	c.PublishedAt = fromNullMillis(publishedAt)
	return c, nil
}
