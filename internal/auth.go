package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"github.com/threadsdev/go-threads/pkg/types"
	"golang.org/x/oauth2"
)

const (
	tokenEndpointPath       = "oauth/access_token"
	longLivedEndpointPath   = "access_token"
	refreshEndpointPath     = "refresh_access_token"
	grantTypeCode           = "authorization_code"
	grantTypeExchange       = "th_exchange_token"
	grantTypeRefresh        = "th_refresh_token"
	shortLivedTokenLifetime = time.Hour
	stateTokenLength        = 32
)

// Authenticator drives the Threads OAuth2 flow: authorization URL with a
// CSRF state token, authorization-code exchange for a short-lived token,
// exchange for a long-lived token, and long-lived token refresh.
type Authenticator struct {
	client      *http.Client
	appID       string
	apiSecret   string
	redirectURI string
	scopes      []string
	authURL     string
	BaseURL     *url.URL
	logger      *slog.Logger
}

// NewAuthenticator creates a new authenticator. authURL is the browser-facing
// authorization endpoint; baseURL is the graph API base for token exchanges.
func NewAuthenticator(httpClient *http.Client, appID, apiSecret, redirectURI string, scopes []string, authURL, baseURL string, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "parse base URL", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	return &Authenticator{
		client:      httpClient,
		appID:       appID,
		apiSecret:   apiSecret,
		redirectURI: redirectURI,
		scopes:      scopes,
		authURL:     authURL,
		BaseURL:     parsedURL,
		logger:      logger,
	}, nil
}

func (a *Authenticator) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    a.appID,
		RedirectURL: a.redirectURI,
		// Threads wants the scope parameter comma-joined, not the
		// space-joined form oauth2 produces for multiple entries.
		Scopes: []string{strings.Join(a.scopes, ",")},
		Endpoint: oauth2.Endpoint{
			AuthURL: a.authURL,
		},
	}
}

// AuthorizationURL returns the provider authorization URL and the freshly
// generated state token the caller must persist for the callback check.
func (a *Authenticator) AuthorizationURL() (string, string, error) {
	state, err := gonanoid.New(stateTokenLength)
	if err != nil {
		return "", "", &pkgerrs.AuthorizationError{Message: "failed to generate state token", Err: err}
	}
	return a.oauthConfig().AuthCodeURL(state), state, nil
}

// CompleteAuthorization verifies the callback against the expected state
// token, exchanges the authorization code for a short-lived token, and then
// immediately exchanges that for a long-lived one.
func (a *Authenticator) CompleteAuthorization(ctx context.Context, callbackURL, expectedState string) (types.Credentials, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: "failed to parse callback URL", Err: err}
	}
	query := parsed.Query()

	if errParam := query.Get("error"); errParam != "" {
		msg := errParam
		if desc := query.Get("error_description"); desc != "" {
			msg = fmt.Sprintf("%s: %s", errParam, desc)
		}
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: "provider reported " + msg}
	}

	// Exact, case-sensitive match.
	if query.Get("state") != expectedState {
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: "state token mismatch"}
	}

	code := query.Get("code")
	if code == "" {
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: "callback URL did not include an authorization code"}
	}

	tokenResp, err := a.exchangeAuthorizationCode(ctx, code)
	if err != nil {
		return types.Credentials{}, err
	}

	shortLived := types.Credentials{
		UserID:      tokenResp.UserID.String(),
		Scopes:      a.scopes,
		ShortLived:  true,
		AccessToken: tokenResp.AccessToken,
		Expiration:  time.Now().UTC().Add(shortLivedTokenLifetime),
	}

	a.logger.Debug("exchanged authorization code", "user_id", shortLived.UserID)

	return a.ExchangeLongLivedToken(ctx, shortLived)
}

type shortLivedTokenResponse struct {
	AccessToken string `json:"access_token"`
	// UserID stays a json.Number end to end: Threads user ids are
	// 17-digit integers, past float64's exact range.
	UserID json.Number `json:"user_id"`
}

func (a *Authenticator) exchangeAuthorizationCode(ctx context.Context, code string) (shortLivedTokenResponse, error) {
	endpoint, err := a.BaseURL.Parse(tokenEndpointPath)
	if err != nil {
		return shortLivedTokenResponse{}, &pkgerrs.ClientError{Operation: "build token URL", Err: err}
	}

	form := url.Values{}
	form.Set("client_id", a.appID)
	form.Set("client_secret", a.apiSecret)
	form.Set("grant_type", grantTypeCode)
	form.Set("redirect_uri", a.redirectURI)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return shortLivedTokenResponse{}, &pkgerrs.ClientError{Operation: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return shortLivedTokenResponse{}, &pkgerrs.ClientError{Operation: "execute token request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return shortLivedTokenResponse{}, &pkgerrs.ClientError{Operation: "read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return shortLivedTokenResponse{}, DecodeAPIError(resp.StatusCode, body)
	}

	var tokenResp shortLivedTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return shortLivedTokenResponse{}, &pkgerrs.AuthorizationError{Message: "failed to decode token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return shortLivedTokenResponse{}, &pkgerrs.AuthorizationError{Message: fmt.Sprintf("token response %q did not include an access_token", body)}
	}
	if tokenResp.UserID.String() == "" {
		return shortLivedTokenResponse{}, &pkgerrs.AuthorizationError{Message: "token response did not include a user_id"}
	}

	return tokenResp, nil
}

// ExchangeLongLivedToken trades a still-valid short-lived token for a
// long-lived one (~60 days). The input credentials are not modified.
func (a *Authenticator) ExchangeLongLivedToken(ctx context.Context, creds types.Credentials) (types.Credentials, error) {
	if creds.Expired() {
		return types.Credentials{}, &pkgerrs.TokenExpiredError{Expiration: creds.Expiration}
	}

	params := url.Values{}
	params.Set("grant_type", grantTypeExchange)
	params.Set("client_secret", a.apiSecret)
	params.Set("access_token", creds.AccessToken)

	return a.fetchLongLivedToken(ctx, longLivedEndpointPath, params, creds)
}

// RefreshLongLivedToken trades an unexpired long-lived token for a fresh
// one with an extended expiration. The input credentials are not modified.
func (a *Authenticator) RefreshLongLivedToken(ctx context.Context, creds types.Credentials) (types.Credentials, error) {
	if creds.ShortLived {
		return types.Credentials{}, &pkgerrs.ValidationError{
			Field:   "credentials",
			Message: "only long-lived tokens may be refreshed; exchange the short-lived token first",
		}
	}
	if creds.Expired() {
		return types.Credentials{}, &pkgerrs.TokenExpiredError{Expiration: creds.Expiration}
	}

	params := url.Values{}
	params.Set("grant_type", grantTypeRefresh)
	params.Set("access_token", creds.AccessToken)

	return a.fetchLongLivedToken(ctx, refreshEndpointPath, params, creds)
}

type longLivedTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Authenticator) fetchLongLivedToken(ctx context.Context, path string, params url.Values, creds types.Credentials) (types.Credentials, error) {
	endpoint, err := a.BaseURL.Parse(path)
	if err != nil {
		return types.Credentials{}, &pkgerrs.ClientError{Operation: "build token URL", Err: err}
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return types.Credentials{}, &pkgerrs.ClientError{Operation: "build token request", Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return types.Credentials{}, &pkgerrs.ClientError{Operation: "execute token request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Credentials{}, &pkgerrs.ClientError{Operation: "read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return types.Credentials{}, DecodeAPIError(resp.StatusCode, body)
	}

	var tokenResp longLivedTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: "failed to decode token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: fmt.Sprintf("token response %q did not include an access_token", body)}
	}
	if tokenResp.ExpiresIn <= 0 {
		return types.Credentials{}, &pkgerrs.AuthorizationError{Message: fmt.Sprintf("token response %q did not include expires_in", body)}
	}

	a.logger.Debug("fetched long-lived token", "user_id", creds.UserID, "expires_in", tokenResp.ExpiresIn)

	return types.Credentials{
		UserID:      creds.UserID,
		Scopes:      creds.Scopes,
		ShortLived:  false,
		AccessToken: tokenResp.AccessToken,
		Expiration:  time.Now().UTC().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}
