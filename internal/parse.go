package internal

import (
	"encoding/json"
	"fmt"

	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"github.com/threadsdev/go-threads/pkg/types"
)

// graphErrorEnvelope is the error wrapper returned by Meta graph endpoints.
type graphErrorEnvelope struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// ContainerStatusEnvelope is the raw shape of a container status lookup.
type ContainerStatusEnvelope struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// DecodeAPIError turns a non-2xx response body into an *APIError, decoding
// the graph error envelope when present.
func DecodeAPIError(statusCode int, body []byte) *pkgerrs.APIError {
	apiErr := &pkgerrs.APIError{
		StatusCode: statusCode,
		Body:       string(body),
	}

	var envelope graphErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
		apiErr.Subcode = envelope.Error.ErrorSubcode
		apiErr.TraceID = envelope.Error.FbtraceID
	}

	return apiErr
}

// UnmarshalResponse decodes a 2xx response body, wrapping decode failures
// so callers can distinguish malformed payloads from transport errors.
func UnmarshalResponse(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &pkgerrs.ParseError{Operation: "decode response", Err: err}
	}
	return nil
}

// ParseContainerStatus converts a raw status lookup into a ContainerStatus,
// rejecting status values the publishing state machine does not know.
func ParseContainerStatus(raw ContainerStatusEnvelope) (*types.ContainerStatus, error) {
	status := types.PublishingStatus(raw.Status)
	switch status {
	case types.StatusInProgress, types.StatusFinished, types.StatusError, types.StatusExpired, types.StatusPublished:
	default:
		return nil, &pkgerrs.ParseError{
			Operation: "container status",
			Message:   fmt.Sprintf("unknown publishing status %q for container %s", raw.Status, raw.ID),
		}
	}

	cs := &types.ContainerStatus{
		ID:     raw.ID,
		Status: status,
	}
	if raw.ErrorMessage != "" {
		cs.Error = types.PublishingErrorCode(raw.ErrorMessage)
	}

	return cs, nil
}
