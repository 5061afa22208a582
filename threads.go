package threads

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/threadsdev/go-threads/internal"
	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"github.com/threadsdev/go-threads/pkg/types"
)

const (
	// DefaultBaseURL is the default Threads graph API base URL
	DefaultBaseURL = "https://graph.threads.net/"
	// DefaultAuthorizationURL is the browser-facing OAuth authorization endpoint
	DefaultAuthorizationURL = "https://threads.net/oauth/authorize"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "go-threads/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval is the cadence Publish and WaitForContainer use
	// when polling container status
	DefaultPollInterval = 2 * time.Second
)

// Carousel composition bounds enforced by the Threads API.
const (
	MinCarouselItems = internal.MinCarouselChildren
	MaxCarouselItems = internal.MaxCarouselChildren
)

// AllScopes lists every permission scope the library may request. Used when
// Config.Scopes is empty.
var AllScopes = []string{
	"threads_basic",
	"threads_content_publish",
	"threads_manage_insights",
	"threads_manage_replies",
	"threads_read_replies",
}

// RateLimitConfig controls client-side request throttling.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

// Config holds the application registration and client settings.
//
// AppID, APISecret and RedirectURI come from the app's configuration in the
// Meta developer console and are required for the OAuth flow. A Client that
// only makes API calls with existing Credentials needs none of them.
type Config struct {
	// AppID is the Threads app id.
	AppID string
	// APISecret is the Threads app secret.
	APISecret string
	// RedirectURI is the OAuth callback URL registered for the app.
	RedirectURI string

	// Scopes to request during authorization. Defaults to AllScopes.
	Scopes []string

	// BaseURL for the Threads graph API.
	// Defaults to DefaultBaseURL if not specified.
	BaseURL string

	// GraphAPIVersion pins a specific API version, e.g. "v1.0". When set it
	// is appended to BaseURL. Unversioned calls hit the latest version.
	GraphAPIVersion string

	// AuthorizationURL for the browser-facing OAuth endpoint.
	// Defaults to DefaultAuthorizationURL if not specified.
	AuthorizationURL string

	// UserAgent string sent with every request.
	UserAgent string

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// RateLimit tunes client-side throttling. Defaults applied if nil.
	RateLimit *RateLimitConfig

	// PollInterval is the cadence used by Publish and WaitForContainer.
	// Defaults to DefaultPollInterval if zero.
	PollInterval time.Duration

	// Logger for structured diagnostics.
	// Optional. If provided, debug information will be logged during API calls.
	Logger *slog.Logger
}

// ConfigFromEnv builds a Config from the environment, loading a .env file
// first if one is present. Recognized variables: THREADS_APP_ID,
// THREADS_API_SECRET, THREADS_REDIRECT_URI, THREADS_SCOPES (comma
// separated), THREADS_GRAPH_API_VERSION.
func ConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppID:           os.Getenv("THREADS_APP_ID"),
		APISecret:       os.Getenv("THREADS_API_SECRET"),
		RedirectURI:     os.Getenv("THREADS_REDIRECT_URI"),
		GraphAPIVersion: os.Getenv("THREADS_GRAPH_API_VERSION"),
	}

	if cfg.AppID == "" {
		return nil, &pkgerrs.ConfigError{Field: "AppID", Message: "THREADS_APP_ID must be set"}
	}
	if cfg.APISecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "APISecret", Message: "THREADS_API_SECRET must be set"}
	}
	if cfg.RedirectURI == "" {
		return nil, &pkgerrs.ConfigError{Field: "RedirectURI", Message: "THREADS_REDIRECT_URI must be set"}
	}

	if raw := os.Getenv("THREADS_SCOPES"); raw != "" {
		for _, scope := range strings.Split(raw, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				cfg.Scopes = append(cfg.Scopes, scope)
			}
		}
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthorizationURL == "" {
		cfg.AuthorizationURL = DefaultAuthorizationURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = AllScopes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
}

// graphBaseURL is BaseURL with the optional version segment appended.
func (cfg *Config) graphBaseURL() string {
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if cfg.GraphAPIVersion != "" {
		base += cfg.GraphAPIVersion + "/"
	}
	return base
}

func (cfg *Config) newAuthenticator() (*internal.Authenticator, error) {
	if cfg.AppID == "" || cfg.APISecret == "" || cfg.RedirectURI == "" {
		return nil, &pkgerrs.ConfigError{Message: "AppID, APISecret and RedirectURI are required for the OAuth flow"}
	}
	if err := internal.NewValidator().ValidateScopes(cfg.Scopes); err != nil {
		return nil, err
	}
	return internal.NewAuthenticator(
		cfg.HTTPClient,
		cfg.AppID,
		cfg.APISecret,
		cfg.RedirectURI,
		cfg.Scopes,
		cfg.AuthorizationURL,
		cfg.graphBaseURL(),
		cfg.Logger,
	)
}

// AuthorizationURL builds the provider authorization URL together with a
// freshly generated CSRF state token. Persist the state token out-of-band;
// CompleteAuthorization verifies the callback against it.
func AuthorizationURL(config *Config) (string, string, error) {
	if config == nil {
		return "", "", &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	config.applyDefaults()

	auth, err := config.newAuthenticator()
	if err != nil {
		return "", "", err
	}
	return auth.AuthorizationURL()
}

// CompleteAuthorization finishes the OAuth dance: it verifies the returned
// state against expectedState, exchanges the authorization code for a
// short-lived token, and immediately upgrades it to a long-lived token.
// The returned Credentials always have ShortLived set to false.
func CompleteAuthorization(ctx context.Context, config *Config, callbackURL, expectedState string) (types.Credentials, error) {
	if config == nil {
		return types.Credentials{}, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	config.applyDefaults()

	auth, err := config.newAuthenticator()
	if err != nil {
		return types.Credentials{}, err
	}
	return auth.CompleteAuthorization(ctx, callbackURL, expectedState)
}

// RefreshLongLivedToken exchanges a still-valid long-lived token for a
// fresh one with an extended expiration. The input credentials are never
// mutated; persist the returned value.
func RefreshLongLivedToken(ctx context.Context, config *Config, creds types.Credentials) (types.Credentials, error) {
	if config == nil {
		return types.Credentials{}, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	config.applyDefaults()

	auth, err := config.newAuthenticator()
	if err != nil {
		return types.Credentials{}, err
	}
	return auth.RefreshLongLivedToken(ctx, creds)
}

// HTTPClient defines the behavior required from the internal transport.
// This interface allows for easy testing and customization of HTTP behavior.
type HTTPClient interface {
	// NewRequest creates a new HTTP request with proper authentication
	// headers. The path is relative to the configured base URL.
	NewRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error)

	// Do executes an HTTP request and unmarshals the response into v.
	Do(req *http.Request, v any) error
}

// Client is the Threads API client. It is bound to one user's Credentials
// and is safe for use by multiple goroutines, including concurrent Publish
// calls sharing the same underlying HTTP client.
type Client struct {
	client    HTTPClient
	config    *Config
	creds     types.Credentials
	validator *internal.Validator
	logger    *slog.Logger
}

// NewClient creates a Threads client bound to the given credentials.
// Credentials may be freshly obtained from CompleteAuthorization or
// deserialized from wherever the caller persists them. Expiry is checked
// on every call, not here; a client built with expired credentials fails
// with *TokenExpiredError on first use.
func NewClient(config *Config, creds types.Credentials) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if creds.AccessToken == "" {
		return nil, &pkgerrs.ConfigError{Field: "credentials", Message: "credentials are missing an access token"}
	}
	if creds.UserID == "" {
		return nil, &pkgerrs.ConfigError{Field: "credentials", Message: "credentials are missing a user id"}
	}
	config.applyDefaults()

	var rateCfg *internal.RateLimitConfig
	if config.RateLimit != nil {
		rateCfg = &internal.RateLimitConfig{
			RequestsPerMinute: config.RateLimit.RequestsPerMinute,
			Burst:             config.RateLimit.Burst,
		}
	}

	httpClient, err := internal.NewClient(
		config.HTTPClient,
		creds.AccessToken,
		config.graphBaseURL(),
		config.UserAgent,
		rateCfg,
		config.Logger,
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    httpClient,
		config:    config,
		creds:     creds,
		validator: internal.NewValidator(),
		logger:    config.Logger,
	}, nil
}

// Credentials returns the credentials the client is bound to.
func (c *Client) Credentials() types.Credentials {
	return c.creds
}

// checkToken guards every API call; expired credentials never produce a
// request.
func (c *Client) checkToken() error {
	if c.creds.Expired() {
		return &pkgerrs.TokenExpiredError{Expiration: c.creds.Expiration}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if err := c.checkToken(); err != nil {
		return err
	}
	req, err := c.client.NewRequest(ctx, http.MethodGet, path, params)
	if err != nil {
		return err
	}
	return c.client.Do(req, v)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, v any) error {
	if err := c.checkToken(); err != nil {
		return err
	}
	req, err := c.client.NewRequest(ctx, http.MethodPost, path, params)
	if err != nil {
		return err
	}
	return c.client.Do(req, v)
}

// threadFields is the field list requested for thread media objects.
const threadFields = "id,text,username,permalink,shortcode,timestamp,media_type,media_product_type,media_url,thumbnail_url,is_quote_post,children,owner"

// profileFields is the field list requested for profile lookups.
const profileFields = "id,username,threads_biography,threads_profile_picture_url"

// Account retrieves the authenticated user's profile information.
func (c *Client) Account(ctx context.Context) (*types.Profile, error) {
	params := url.Values{}
	params.Set("fields", profileFields)

	var profile types.Profile
	if err := c.get(ctx, c.creds.UserID, params, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// userMetrics are the metric names accepted by UserInsights.
var userMetrics = map[string]struct{}{
	"views":                 {},
	"likes":                 {},
	"replies":               {},
	"reposts":               {},
	"quotes":                {},
	"followers_count":       {},
	"follower_demographics": {},
}

// demographicBreakdowns are the breakdown values accepted for the
// follower_demographics metric.
var demographicBreakdowns = map[string]struct{}{
	"age":     {},
	"city":    {},
	"country": {},
	"gender":  {},
}

// UserInsightsOptions narrows a UserInsights query.
type UserInsightsOptions struct {
	// Since and Until bound the reporting window.
	Since time.Time
	Until time.Time
	// Breakdown is required when requesting follower_demographics.
	Breakdown string
}

// UserInsights retrieves account-level insight metrics.
func (c *Client) UserInsights(ctx context.Context, metrics []string, opts *UserInsightsOptions) (*InsightsResponse, error) {
	if len(metrics) == 0 {
		return nil, &pkgerrs.ValidationError{Field: "metrics", Message: "at least one metric is required"}
	}
	for _, metric := range metrics {
		if _, ok := userMetrics[metric]; !ok {
			return nil, &pkgerrs.ValidationError{Field: "metrics", Message: fmt.Sprintf("unknown metric %q", metric)}
		}
	}

	params := url.Values{}
	params.Set("metric", strings.Join(metrics, ","))

	if opts != nil {
		if !opts.Since.IsZero() {
			params.Set("since", strconv.FormatInt(opts.Since.Unix(), 10))
		}
		if !opts.Until.IsZero() {
			params.Set("until", strconv.FormatInt(opts.Until.Unix(), 10))
		}
		if opts.Breakdown != "" {
			if _, ok := demographicBreakdowns[opts.Breakdown]; !ok {
				return nil, &pkgerrs.ValidationError{Field: "breakdown", Message: fmt.Sprintf("unknown breakdown %q", opts.Breakdown)}
			}
			params.Set("breakdown", opts.Breakdown)
		}
	}

	for _, metric := range metrics {
		if metric == "follower_demographics" && (opts == nil || opts.Breakdown == "") {
			return nil, &pkgerrs.ValidationError{Field: "breakdown", Message: "follower_demographics requires a breakdown value"}
		}
	}

	var resp InsightsResponse
	if err := c.get(ctx, c.creds.UserID+"/threads_insights", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PublishingLimit reports the user's current API usage against their
// publishing quota.
func (c *Client) PublishingLimit(ctx context.Context) (*types.PublishingLimit, error) {
	params := url.Values{}
	params.Set("fields", "quota_usage,config,reply_quota_usage,reply_config")

	var resp publishingLimitResponse
	if err := c.get(ctx, c.creds.UserID+"/threads_publishing_limit", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return &types.PublishingLimit{}, nil
	}
	return resp.Data[0], nil
}

// ContainerOptions carries the optional settings for container creation.
type ContainerOptions struct {
	// ReplyControl restricts who may reply. Defaults to everyone.
	ReplyControl types.ReplyControl
	// ReplyToID makes the new thread a reply to an existing one.
	ReplyToID string
	// IsCarouselItem marks the container as a carousel child.
	IsCarouselItem bool
}

// CreateContainer creates a media container: the server-side staging
// resource for a post. The request must be exactly a text post, a
// single-media post (text allowed), or a carousel-item container; anything
// else fails with *ValidationError before a request is made.
//
// Text-only containers are FINISHED as soon as creation returns; media
// containers usually need processing time and must be polled via
// ContainerStatus or WaitForContainer before publishing.
func (c *Client) CreateContainer(ctx context.Context, text string, media *types.Media, opts *ContainerOptions) (string, error) {
	var (
		replyControl   = types.ReplyControlEveryone
		replyToID      string
		isCarouselItem bool
	)
	if opts != nil {
		if opts.ReplyControl != "" {
			replyControl = opts.ReplyControl
		}
		replyToID = opts.ReplyToID
		isCarouselItem = opts.IsCarouselItem
	}

	if err := c.validator.ValidateContainerParams(text, media, isCarouselItem); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("reply_control", string(replyControl))

	if text != "" {
		params.Set("text", text)
		params.Set("media_type", string(types.MediaTypeText))
	}
	if replyToID != "" {
		params.Set("reply_to_id", replyToID)
	}
	if isCarouselItem {
		params.Set("is_carousel_item", "true")
	}

	if media != nil {
		params.Set("media_type", string(media.Type))
		switch media.Type {
		case types.MediaTypeImage:
			params.Set("image_url", media.URL)
		case types.MediaTypeVideo:
			params.Set("video_url", media.URL)
		}
	}

	var envelope struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, c.creds.UserID+"/threads", params, &envelope); err != nil {
		return "", err
	}
	if envelope.ID == "" {
		return "", &pkgerrs.ParseError{Operation: "create container", Message: "response did not include a container id"}
	}

	c.logger.Debug("created container", "container_id", envelope.ID, "carousel_item", isCarouselItem)

	return envelope.ID, nil
}

// CreateCarouselContainer creates a carousel container referencing between
// 2 and 10 previously created child containers. Every child must already
// have FINISHED status; violations fail with *ValidationError before a
// request is made.
func (c *Client) CreateCarouselContainer(ctx context.Context, children []types.ContainerStatus, text string, opts *ContainerOptions) (string, error) {
	if err := c.validator.ValidateCarouselChildren(children); err != nil {
		return "", err
	}

	replyControl := types.ReplyControlEveryone
	var replyToID string
	if opts != nil {
		if opts.ReplyControl != "" {
			replyControl = opts.ReplyControl
		}
		replyToID = opts.ReplyToID
	}

	childIDs := make([]string, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.ID)
	}

	params := url.Values{}
	params.Set("media_type", string(types.MediaTypeCarousel))
	params.Set("children", strings.Join(childIDs, ","))
	params.Set("reply_control", string(replyControl))
	if text != "" {
		params.Set("text", text)
	}
	if replyToID != "" {
		params.Set("reply_to_id", replyToID)
	}

	var envelope struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, c.creds.UserID+"/threads", params, &envelope); err != nil {
		return "", err
	}
	if envelope.ID == "" {
		return "", &pkgerrs.ParseError{Operation: "create carousel container", Message: "response did not include a container id"}
	}

	c.logger.Debug("created carousel container", "container_id", envelope.ID, "children", len(childIDs))

	return envelope.ID, nil
}

// ContainerStatus looks up a container's current publishing status. It is a
// pure read; polling cadence is the caller's concern (or use
// WaitForContainer).
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (*types.ContainerStatus, error) {
	if err := c.validator.ValidateContainerID(containerID); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,status,error_message")

	var raw internal.ContainerStatusEnvelope
	if err := c.get(ctx, containerID, params, &raw); err != nil {
		return nil, err
	}
	return internal.ParseContainerStatus(raw)
}

// PublishContainer publishes a container that has already reached FINISHED
// status. The container's status is checked first; if it is anything other
// than FINISHED the call fails with *PublishingError and no publish request
// is issued. The returned post id equals the container id.
func (c *Client) PublishContainer(ctx context.Context, containerID string) (string, error) {
	status, err := c.ContainerStatus(ctx, containerID)
	if err != nil {
		return "", err
	}
	if status.Status != types.StatusFinished {
		return "", &pkgerrs.PublishingError{
			ContainerID: containerID,
			Status:      string(status.Status),
			Code:        string(status.Error),
		}
	}
	return c.publishContainer(ctx, containerID)
}

// publishContainer issues the publish call without a status precheck. Used
// by the composed Publish flow once FINISHED has already been observed.
func (c *Client) publishContainer(ctx context.Context, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)

	var envelope struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, c.creds.UserID+"/threads_publish", params, &envelope); err != nil {
		return "", err
	}
	if envelope.ID == "" {
		return "", &pkgerrs.ParseError{Operation: "publish container", Message: "response did not include a post id"}
	}

	c.logger.Debug("published container", "post_id", envelope.ID)

	return envelope.ID, nil
}

// Container retrieves a single Threads media object by id.
func (c *Client) Container(ctx context.Context, containerID string) (*types.Thread, error) {
	if err := c.validator.ValidateContainerID(containerID); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", threadFields)

	var thread types.Thread
	if err := c.get(ctx, containerID, params, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// Thread retrieves a single published thread. It is an alias for Container;
// a published thread and its container share an id.
func (c *Client) Thread(ctx context.Context, threadID string) (*types.Thread, error) {
	return c.Container(ctx, threadID)
}

// ListingOptions narrows a Threads listing query.
type ListingOptions struct {
	// Since and Until bound the window of threads being queried (by date).
	Since string
	Until string
	// Limit is the maximum number of threads per page.
	Limit int
	// Before and After are pagination cursors from a previous response.
	Before string
	After  string
}

func (o *ListingOptions) apply(params url.Values) {
	if o == nil {
		return
	}
	if o.Since != "" {
		params.Set("since", o.Since)
	}
	if o.Until != "" {
		params.Set("until", o.Until)
	}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Before != "" {
		params.Set("before", o.Before)
	}
	if o.After != "" {
		params.Set("after", o.After)
	}
}

// Threads returns a page of the user's threads, newest first, with
// pagination cursors for fetching adjacent pages. See NewThreadIterator for
// a cursor-free way to walk the full listing.
func (c *Client) Threads(ctx context.Context, opts *ListingOptions) (*types.Listing, error) {
	params := url.Values{}
	params.Set("fields", threadFields)
	opts.apply(params)

	var listing types.Listing
	if err := c.get(ctx, c.creds.UserID+"/threads", params, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Replies returns the immediate replies of a thread.
func (c *Client) Replies(ctx context.Context, threadID string) (*types.Listing, error) {
	if err := c.validator.ValidateContainerID(threadID); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", threadFields)

	var listing types.Listing
	if err := c.get(ctx, threadID+"/replies", params, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Conversation returns a flattened, cursor-paged list of all top-level and
// nested replies of a root thread.
func (c *Client) Conversation(ctx context.Context, threadID string, opts *ListingOptions) (*types.Listing, error) {
	if err := c.validator.ValidateContainerID(threadID); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", threadFields)
	opts.apply(params)

	var listing types.Listing
	if err := c.get(ctx, threadID+"/conversation", params, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ManageReply hides or unhides a top-level reply. Nested replies follow
// their parent automatically and cannot be targeted in isolation.
func (c *Client) ManageReply(ctx context.Context, replyID string, hide bool) error {
	if err := c.validator.ValidateContainerID(replyID); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("hide", strconv.FormatBool(hide))

	return c.post(ctx, replyID+"/manage_reply", params, nil)
}

// Insights retrieves the media metrics available for a single thread.
func (c *Client) Insights(ctx context.Context, threadID string) (*InsightsResponse, error) {
	if err := c.validator.ValidateContainerID(threadID); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "views,likes,replies,reposts,quotes")

	var resp InsightsResponse
	if err := c.get(ctx, threadID+"/insights", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
