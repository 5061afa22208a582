package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMessage(t *testing.T) {
	withField := &ValidationError{Field: "children", Message: "too few"}
	assert.Equal(t, "invalid children: too few", withField.Error())

	withoutField := &ValidationError{Message: "broken"}
	assert.Equal(t, "validation error: broken", withoutField.Error())
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "AppID", Message: "THREADS_APP_ID must be set"}
	assert.Equal(t, "config error in field AppID: THREADS_APP_ID must be set", err.Error())
}

func TestAuthorizationErrorUnwrap(t *testing.T) {
	underlying := stderrors.New("connection refused")
	err := &AuthorizationError{Message: "code exchange failed", Err: underlying}

	assert.Contains(t, err.Error(), "code exchange failed")
	assert.ErrorIs(t, err, underlying)
}

func TestTokenExpiredErrorMessage(t *testing.T) {
	expiration := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := &TokenExpiredError{Expiration: expiration}
	assert.Contains(t, err.Error(), "2026-01-02T03:04:05Z")

	zero := &TokenExpiredError{}
	assert.Equal(t, "access token has expired", zero.Error())
}

func TestAPIErrorMessage(t *testing.T) {
	withEnvelope := &APIError{
		StatusCode: 400,
		Type:       "OAuthException",
		Code:       190,
		Message:    "Invalid OAuth access token",
	}
	assert.Equal(t, "threads API error (status 400, type OAuthException, code 190): Invalid OAuth access token", withEnvelope.Error())

	bare := &APIError{StatusCode: 500, Body: "upstream broke"}
	assert.Contains(t, bare.Error(), "status 500")
	assert.Contains(t, bare.Error(), "upstream broke")
}

func TestPublishingErrorMessage(t *testing.T) {
	err := &PublishingError{ContainerID: "123", Status: "ERROR", Code: "FAILED_PROCESSING_VIDEO"}
	assert.Equal(t, "container 123 cannot be published: status ERROR (FAILED_PROCESSING_VIDEO)", err.Error())

	noCode := &PublishingError{ContainerID: "123", Status: "IN_PROGRESS"}
	assert.Equal(t, "container 123 cannot be published: status IN_PROGRESS", noCode.Error())
}

func TestClientErrorWrapping(t *testing.T) {
	underlying := fmt.Errorf("dial tcp: timeout")
	err := &ClientError{Operation: "GET /me", Err: underlying}

	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "GET /me")

	var clientErr *ClientError
	assert.True(t, stderrors.As(err, &clientErr))
}

func TestParseErrorMessagePreference(t *testing.T) {
	withMessage := &ParseError{Operation: "container status", Message: "unknown status"}
	assert.Equal(t, "parse error during container status: unknown status", withMessage.Error())

	withErr := &ParseError{Err: stderrors.New("unexpected end of JSON input")}
	assert.Equal(t, "parse error: unexpected end of JSON input", withErr.Error())
}
