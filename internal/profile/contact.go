package profile

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
	"github.com/openshelf/circles/internal/platform/id"
)

var (
	// ErrEmptyContactValue indicates a missing contact value.
	ErrEmptyContactValue = apperrors.New(apperrors.CodeContactEmptyValue, "contact value is required")
	// ErrInvalidContactKind indicates a missing or invalid contact kind.
	ErrInvalidContactKind = apperrors.New(apperrors.CodeContactInvalidKind, "contact kind is required")
)

// ContactKind describes the delivery channel of a contact method.
type ContactKind int

const (
	// ContactKindUnspecified represents an invalid contact kind.
	ContactKindUnspecified ContactKind = iota
	// ContactKindEmail is an email address.
	ContactKindEmail
	// ContactKindPhone is a phone number.
	ContactKindPhone
)

// ContactKindLabel returns the string label for a contact kind.
func ContactKindLabel(k ContactKind) string {
	switch k {
	case ContactKindEmail:
		return "EMAIL"
	case ContactKindPhone:
		return "PHONE"
	default:
		return "UNSPECIFIED"
	}
}

// ContactKindFromLabel converts a contact kind label to a ContactKind value.
func ContactKindFromLabel(label string) ContactKind {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "EMAIL":
		return ContactKindEmail
	case "PHONE":
		return ContactKindPhone
	default:
		return ContactKindUnspecified
	}
}

// ContactMethod represents one way to reach a profile.
type ContactMethod struct {
	ID        string
	ProfileID string
	Kind      ContactKind
	Value     string
	Primary   bool
	CreatedAt time.Time
}

// CreateContactMethodInput describes the metadata needed to create a contact method.
type CreateContactMethodInput struct {
	ProfileID string
	Kind      ContactKind
	Value     string
}

// CreateContactMethod creates a contact method with a generated ID and timestamp.
func CreateContactMethod(input CreateContactMethodInput, now func() time.Time, idGenerator func() (string, error)) (ContactMethod, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateContactMethodInput(input)
	if err != nil {
		return ContactMethod{}, err
	}

	contactID, err := idGenerator()
	if err != nil {
		return ContactMethod{}, fmt.Errorf("generate contact method id: %w", err)
	}

	return ContactMethod{
		ID:        contactID,
		ProfileID: normalized.ProfileID,
		Kind:      normalized.Kind,
		Value:     normalized.Value,
		CreatedAt: now().UTC(),
	}, nil
}

// NormalizeCreateContactMethodInput trims and validates contact method input.
func NormalizeCreateContactMethodInput(input CreateContactMethodInput) (CreateContactMethodInput, error) {
	input.ProfileID = strings.TrimSpace(input.ProfileID)
	input.Value = strings.TrimSpace(input.Value)
	if input.Value == "" {
		return CreateContactMethodInput{}, ErrEmptyContactValue
	}
	if input.Kind == ContactKindUnspecified {
		return CreateContactMethodInput{}, ErrInvalidContactKind
	}
	if input.Kind == ContactKindEmail {
		input.Value = strings.ToLower(input.Value)
		if err := ValidateEmail(input.Value); err != nil {
			return CreateContactMethodInput{}, err
		}
	}
	return input, nil
}
