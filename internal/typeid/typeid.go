package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixProject    = "proj"
	PrefixShape      = "shape"
	PrefixAnnotation = "ann"
	PrefixArtifact   = "art"
	PrefixEvent      = "evt"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewProjectID() string    { return New(PrefixProject) }
func NewShapeID() string      { return New(PrefixShape) }
func NewAnnotationID() string { return New(PrefixAnnotation) }
func NewArtifactID() string   { return New(PrefixArtifact) }
func NewEventID() string      { return New(PrefixEvent) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
