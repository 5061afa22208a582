package threads

import (
	"context"
	"time"

	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"github.com/threadsdev/go-threads/pkg/types"
)

// WaitForContainer polls a container's status at Config.PollInterval until
// it reaches a terminal state (FINISHED, ERROR, EXPIRED or PUBLISHED) or
// ctx is done. There is no timeout beyond the context; media processing
// time is unbounded on the server side.
func (c *Client) WaitForContainer(ctx context.Context, containerID string) (*types.ContainerStatus, error) {
	for {
		status, err := c.ContainerStatus(ctx, containerID)
		if err != nil {
			return nil, err
		}
		if status.Status.Terminal() {
			return status, nil
		}

		c.logger.Debug("container still processing", "container_id", containerID, "status", status.Status)

		timer := time.NewTimer(c.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &pkgerrs.ClientError{Operation: "wait for container", Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// waitForFinished polls until FINISHED, converting any other terminal state
// into a *PublishingError so composed flows fail fast.
func (c *Client) waitForFinished(ctx context.Context, containerID string) (*types.ContainerStatus, error) {
	status, err := c.WaitForContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if status.Status != types.StatusFinished {
		return nil, &pkgerrs.PublishingError{
			ContainerID: status.ID,
			Status:      string(status.Status),
			Code:        string(status.Error),
		}
	}
	return status, nil
}

// Publish is the composed convenience entry point: it runs the full
// create → poll → publish workflow in a single call and returns the post
// id, which equals the id of the container that was published.
//
//   - With no attachments, a text container is created and published
//     directly; text containers finish synchronously, so no status call is
//     made.
//   - With one attachment, a single media container carrying the text is
//     created, polled internally until it finishes, then published.
//   - With multiple attachments, a carousel-item container is created per
//     attachment (text stays off the children), each is polled to FINISHED,
//     then a carousel container referencing all children plus the text is
//     created, polled, and published.
//
// Polling happens inside this method at Config.PollInterval and is bounded
// only by ctx; callers who need their own cadence should use the manual
// CreateContainer / ContainerStatus / PublishContainer steps instead.
//
// If any container reaches ERROR or EXPIRED the whole operation fails with
// *PublishingError. Containers created before the failure are abandoned,
// not rolled back; the remote service has no transactional semantics.
func (c *Client) Publish(ctx context.Context, text string, attachments []types.Media) (string, error) {
	switch len(attachments) {
	case 0:
		return c.publishText(ctx, text)
	case 1:
		return c.publishSingleMedia(ctx, text, attachments[0])
	default:
		return c.publishCarousel(ctx, text, attachments)
	}
}

func (c *Client) publishText(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", &pkgerrs.ValidationError{Field: "text", Message: "a post with no attachments requires text"}
	}

	containerID, err := c.CreateContainer(ctx, text, nil, nil)
	if err != nil {
		return "", err
	}

	// Text containers transition CREATED→FINISHED synchronously.
	return c.publishContainer(ctx, containerID)
}

func (c *Client) publishSingleMedia(ctx context.Context, text string, media types.Media) (string, error) {
	containerID, err := c.CreateContainer(ctx, text, &media, nil)
	if err != nil {
		return "", err
	}

	if _, err := c.waitForFinished(ctx, containerID); err != nil {
		return "", err
	}

	return c.publishContainer(ctx, containerID)
}

func (c *Client) publishCarousel(ctx context.Context, text string, attachments []types.Media) (string, error) {
	if len(attachments) > MaxCarouselItems {
		return "", &pkgerrs.ValidationError{
			Field:   "attachments",
			Message: "a carousel post cannot have more than 10 attachments",
		}
	}

	children := make([]types.ContainerStatus, 0, len(attachments))
	for i := range attachments {
		childID, err := c.CreateContainer(ctx, "", &attachments[i], &ContainerOptions{IsCarouselItem: true})
		if err != nil {
			return "", err
		}

		status, err := c.waitForFinished(ctx, childID)
		if err != nil {
			return "", err
		}
		children = append(children, *status)
	}

	carouselID, err := c.CreateCarouselContainer(ctx, children, text, nil)
	if err != nil {
		return "", err
	}

	if _, err := c.waitForFinished(ctx, carouselID); err != nil {
		return "", err
	}

	return c.publishContainer(ctx, carouselID)
}
