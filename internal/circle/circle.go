// Package circle provides the circle group entity.
package circle

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
)

var (
	// ErrEmptyName indicates a missing circle name.
	ErrEmptyName = apperrors.New(apperrors.CodeCircleNameEmpty, "circle name is required")
	// ErrEmptyOwner indicates a missing owner profile ID.
	ErrEmptyOwner = apperrors.New(apperrors.CodeCircleEmptyOwner, "owner profile id is required")
)

// Circle represents a named group that profiles join via invitation.
type Circle struct {
	ID             string
	OwnerProfileID string
	Name           string
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// PublishedAt is set while a published snapshot exists for the
	// circle and is cleared on unpublish.
	PublishedAt *time.Time
	// PublishedMetaID references the current snapshot, empty when the
	// circle is unpublished.
	PublishedMetaID string
}

// Published reports whether the circle currently has a live snapshot.
func (c Circle) Published() bool {
	return c.PublishedAt != nil
}

// CreateCircleInput describes the metadata needed to create a circle.
type CreateCircleInput struct {
	OwnerProfileID string
	Name           string
	Description    string
}

// CreateCircle creates a new circle with a generated ID and timestamps.
func CreateCircle(input CreateCircleInput, now func() time.Time, idGenerator func() (string, error)) (Circle, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateCircleInput(input)
	if err != nil {
		return Circle{}, err
	}

	circleID, err := idGenerator()
	if err != nil {
		return Circle{}, fmt.Errorf("generate circle id: %w", err)
	}

	createdAt := now().UTC()
	return Circle{
		ID:             circleID,
		OwnerProfileID: normalized.OwnerProfileID,
		Name:           normalized.Name,
		Description:    normalized.Description,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

// NormalizeCreateCircleInput trims and validates circle input metadata.
func NormalizeCreateCircleInput(input CreateCircleInput) (CreateCircleInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateCircleInput{}, ErrEmptyName
	}
	input.OwnerProfileID = strings.TrimSpace(input.OwnerProfileID)
	if input.OwnerProfileID == "" {
		return CreateCircleInput{}, ErrEmptyOwner
	}
	input.Description = strings.TrimSpace(input.Description)
	return input, nil
}
