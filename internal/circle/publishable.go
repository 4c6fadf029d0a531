package circle

import (
	"time"

	"github.com/openshelf/circles/internal/publish"
)

// PublishConfig declares how circles publish: no field rules and no
// child cascade, the directory card stands alone.
func (c *Circle) PublishConfig() publish.Config {
	return publish.Config{Kind: "circle"}
}

// PublishSource identifies the circle for snapshot back-references.
func (c *Circle) PublishSource() publish.SourceRef {
	return publish.SourceRef{ID: c.ID, Kind: "circle"}
}

// PublishState returns the circle's current snapshot linkage.
func (c *Circle) PublishState() (*time.Time, string) {
	return c.PublishedAt, c.PublishedMetaID
}

// SetPublishState records new snapshot linkage on the circle.
func (c *Circle) SetPublishState(publishedAt *time.Time, metaID string) {
	c.PublishedAt = publishedAt
	c.PublishedMetaID = metaID
}

// FieldValue resolves publish rule fields by name.
func (c *Circle) FieldValue(name string) string {
	switch name {
	case "name":
		return c.Name
	case "description":
		return c.Description
	default:
		return ""
	}
}

// Children returns nil; circles declare no child relations.
func (c *Circle) Children(string) []publish.Publishable {
	return nil
}

// Snapshot serializes the circle's public directory card.
func (c *Circle) Snapshot() (map[string]any, error) {
	return map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"owner":       c.OwnerProfileID,
		"created_at":  c.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
