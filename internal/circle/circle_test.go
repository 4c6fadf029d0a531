package circle

import (
	"errors"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, time.May, 10, 8, 0, 0, 0, time.UTC)
}

func staticID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func TestCreateCircle(t *testing.T) {
	t.Parallel()

	got, err := CreateCircle(CreateCircleInput{
		OwnerProfileID: " profile-1 ",
		Name:           "  Book Club ",
		Description:    " Weekly reads ",
	}, fixedClock, staticID("circle-1"))
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	if got.ID != "circle-1" {
		t.Fatalf("id = %q, want %q", got.ID, "circle-1")
	}
	if got.Name != "Book Club" {
		t.Fatalf("name = %q, want %q", got.Name, "Book Club")
	}
	if got.OwnerProfileID != "profile-1" {
		t.Fatalf("owner = %q, want %q", got.OwnerProfileID, "profile-1")
	}
	if got.Published() {
		t.Fatal("new circle must not be published")
	}
}

func TestCreateCircleValidation(t *testing.T) {
	t.Parallel()

	_, err := CreateCircle(CreateCircleInput{OwnerProfileID: "p"}, fixedClock, staticID("c"))
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("err = %v, want %v", err, ErrEmptyName)
	}

	_, err = CreateCircle(CreateCircleInput{Name: "Book Club"}, fixedClock, staticID("c"))
	if !errors.Is(err, ErrEmptyOwner) {
		t.Fatalf("err = %v, want %v", err, ErrEmptyOwner)
	}
}

func TestPublished(t *testing.T) {
	t.Parallel()

	at := fixedClock()
	c := Circle{PublishedAt: &at, PublishedMetaID: "meta-1"}
	if !c.Published() {
		t.Fatal("circle with snapshot must report published")
	}
}
