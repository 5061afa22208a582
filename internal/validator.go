package internal

import (
	"fmt"
	"net/url"

	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"github.com/threadsdev/go-threads/pkg/types"
)

const (
	// Carousel child-count bounds enforced by the Threads API.
	MinCarouselChildren = 2
	MaxCarouselChildren = 10

	// MaxTextLength is the maximum length of a thread's text.
	MaxTextLength = 500
)

// knownScopes are the permission scopes the Threads API defines.
var knownScopes = map[string]struct{}{
	"threads_basic":           {},
	"threads_content_publish": {},
	"threads_manage_insights": {},
	"threads_manage_replies":  {},
	"threads_read_replies":    {},
	"threads_keyword_search":  {},
	"threads_manage_mentions": {},
}

// Validator checks request parameters locally, before any call is issued.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateContainerParams enforces the container creation rules: a request
// is exactly a text post, a single-media post (which may carry text), or a
// carousel-item container (media required, no text).
func (v *Validator) ValidateContainerParams(text string, media *types.Media, isCarouselItem bool) error {
	if text == "" && media == nil {
		return &pkgerrs.ValidationError{Field: "container", Message: "either text or media must be provided"}
	}
	if len(text) > MaxTextLength {
		return &pkgerrs.ValidationError{Field: "text", Message: fmt.Sprintf("text cannot exceed %d characters", MaxTextLength)}
	}

	if isCarouselItem {
		if media == nil {
			return &pkgerrs.ValidationError{Field: "media", Message: "a carousel item requires media"}
		}
		if text != "" {
			return &pkgerrs.ValidationError{Field: "text", Message: "a carousel item cannot carry text; put the text on the carousel container"}
		}
	}

	if media != nil {
		if err := v.ValidateMedia(media); err != nil {
			return err
		}
	}

	return nil
}

// ValidateMedia checks a single media descriptor. Only IMAGE and VIDEO may
// be attached directly; CAROUSEL is a container type, not an attachment.
func (v *Validator) ValidateMedia(media *types.Media) error {
	switch media.Type {
	case types.MediaTypeImage, types.MediaTypeVideo:
	default:
		return &pkgerrs.ValidationError{Field: "media", Message: fmt.Sprintf("media type %q cannot be attached to a container", media.Type)}
	}

	parsed, err := url.Parse(media.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &pkgerrs.ValidationError{Field: "media", Message: fmt.Sprintf("media URL %q must be a publicly fetchable http(s) URL", media.URL)}
	}

	return nil
}

// ValidateCarouselChildren enforces the carousel composition rules: between
// MinCarouselChildren and MaxCarouselChildren children, all FINISHED.
func (v *Validator) ValidateCarouselChildren(children []types.ContainerStatus) error {
	if len(children) < MinCarouselChildren || len(children) > MaxCarouselChildren {
		return &pkgerrs.ValidationError{
			Field:   "children",
			Message: fmt.Sprintf("a carousel requires between %d and %d child containers, got %d", MinCarouselChildren, MaxCarouselChildren, len(children)),
		}
	}

	for _, child := range children {
		if child.ID == "" {
			return &pkgerrs.ValidationError{Field: "children", Message: "carousel child is missing a container id"}
		}
		if child.Status != types.StatusFinished {
			return &pkgerrs.ValidationError{
				Field:   "children",
				Message: fmt.Sprintf("carousel child %s has status %s; all children must be FINISHED", child.ID, child.Status),
			}
		}
	}

	return nil
}

// ValidateScopes rejects permission scopes the Threads API does not define.
func (v *Validator) ValidateScopes(scopes []string) error {
	for _, scope := range scopes {
		if _, ok := knownScopes[scope]; !ok {
			return &pkgerrs.ValidationError{Field: "scopes", Message: fmt.Sprintf("unknown scope %q", scope)}
		}
	}
	return nil
}

// ValidateContainerID rejects empty container ids before they reach a URL.
func (v *Validator) ValidateContainerID(id string) error {
	if id == "" {
		return &pkgerrs.ValidationError{Field: "container_id", Message: "container id cannot be empty"}
	}
	return nil
}
