// Package publish freezes mutable entities into immutable snapshots and
// tracks their publish state.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/openshelf/circles/internal/platform/errors"
)

// sourceKey is the one snapshot field that survives a content purge.
const sourceKey = "source"

// SourceRef identifies the entity a snapshot was taken from.
type SourceRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// MetaInfo is an immutable snapshot of a published entity: a JSON body
// plus a display text copy, tagged with its source.
type MetaInfo struct {
	ID        string
	Source    SourceRef
	BodyJSON  string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rule restricts one entity field to an allowed value set. Rules are
// checked on publish only, never on unpublish.
type Rule struct {
	Field   string
	Allowed []string
	Message string
}

// Config declares how an entity type publishes: its source kind, the
// verification rules, and the child relations to cascade into.
type Config struct {
	Kind     string
	Rules    []Rule
	Children []string
}

// Publishable is the capability an entity type implements to take part
// in publish, unpublish, and purge operations.
type Publishable interface {
	// PublishConfig returns the static publishing declaration. A zero
	// Kind means the type does not publish.
	PublishConfig() Config
	// PublishSource identifies this entity instance.
	PublishSource() SourceRef
	// PublishState returns the current snapshot linkage.
	PublishState() (publishedAt *time.Time, metaID string)
	// SetPublishState records new snapshot linkage on the entity.
	SetPublishState(publishedAt *time.Time, metaID string)
	// FieldValue resolves a verification rule field by name.
	FieldValue(name string) string
	// Children returns the loaded entities of one declared child
	// relation. Unloaded relations return nil.
	Children(name string) []Publishable
	// Snapshot serializes the entity's public representation.
	Snapshot() (map[string]any, error)
}

// Verify checks an entity's field values against its configured rules.
// Failures are collected per field into the error metadata.
func Verify(entity Publishable, cfg Config) error {
	fields := map[string]string{}
	for _, rule := range cfg.Rules {
		value := entity.FieldValue(rule.Field)
		if allowedValue(rule.Allowed, value) {
			continue
		}
		message := rule.Message
		if message == "" {
			message = fmt.Sprintf("value %q is not allowed", value)
		}
		fields[rule.Field] = message
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodePublishValidation, "entity failed publish verification", fields)
}

func allowedValue(allowed []string, value string) bool {
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}

// Render builds the snapshot document for an entity: the serializer
// output merged with the source envelope.
func Render(entity Publishable) (string, error) {
	doc, err := entity.Snapshot()
	if err != nil {
		return "", fmt.Errorf("serialize snapshot: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc[sourceKey] = entity.PublishSource()
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(body), nil
}

// Purge strips every key except the source envelope from a snapshot
// body. The shell survives but the content is gone for good.
func Purge(bodyJSON string) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(bodyJSON), &doc); err != nil {
		return "", fmt.Errorf("decode snapshot body: %w", err)
	}
	purged := map[string]json.RawMessage{}
	if source, ok := doc[sourceKey]; ok {
		purged[sourceKey] = source
	}
	body, err := json.Marshal(purged)
	if err != nil {
		return "", fmt.Errorf("encode purged body: %w", err)
	}
	return string(body), nil
}
