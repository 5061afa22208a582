package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrs "github.com/threadsdev/go-threads/pkg/errors"
	"github.com/threadsdev/go-threads/pkg/types"
)

const testUserID = "7331"

// recordedRequest captures one request as it arrived at the fake graph
// server.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
}

// fakeGraph is an httptest-backed stand-in for the Threads graph API. Routes
// are registered per method and path; every request is recorded so tests can
// assert on call counts and parameters.
type fakeGraph struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []recordedRequest
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	g := &fakeGraph{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.requests = append(g.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
	})
	handler := g.handlers[r.Method+" "+r.URL.Path]
	g.mu.Unlock()

	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":{"message":"unhandled route %s %s","type":"TestException","code":404}}`, r.Method, r.URL.Path)
		return
	}
	handler(w, r)
}

// handle registers a canned JSON body for a method and path.
func (g *fakeGraph) handle(method, path, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

// handleFunc registers a custom handler for a method and path.
func (g *fakeGraph) handleFunc(method, path string, fn http.HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[method+" "+path] = fn
}

// stubStatus serves successive status values for a container; the last value
// repeats once the queue is drained.
func (g *fakeGraph) stubStatus(containerID string, statuses ...string) {
	var mu sync.Mutex
	idx := 0
	g.handleFunc(http.MethodGet, "/"+containerID, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		status := statuses[idx]
		if idx < len(statuses)-1 {
			idx++
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": containerID, "status": status})
	})
}

// calls returns the recorded requests matching method and path.
func (g *fakeGraph) calls(method, path string) []recordedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []recordedRequest
	for _, req := range g.requests {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (g *fakeGraph) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func testCredentials() types.Credentials {
	return types.Credentials{
		UserID:      testUserID,
		Scopes:      []string{"threads_basic", "threads_content_publish"},
		AccessToken: "long-token",
		Expiration:  time.Now().UTC().Add(time.Hour),
	}
}

func newTestClient(t *testing.T, g *fakeGraph) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		BaseURL:      g.server.URL,
		PollInterval: time.Millisecond,
	}, testCredentials())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds types.Credentials
	}{
		{"missing token", types.Credentials{UserID: testUserID}},
		{"missing user id", types.Credentials{AccessToken: "tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(&Config{}, tt.creds)
			var cfgErr *pkgerrs.ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestNewClientNilConfig(t *testing.T) {
	_, err := NewClient(nil, testCredentials())
	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestClientRejectsExpiredCredentials(t *testing.T) {
	g := newFakeGraph(t)

	creds := testCredentials()
	creds.Expiration = time.Now().UTC().Add(-time.Minute)
	client, err := NewClient(&Config{BaseURL: g.server.URL}, creds)
	require.NoError(t, err)

	_, err = client.Account(context.Background())
	var expErr *pkgerrs.TokenExpiredError
	require.ErrorAs(t, err, &expErr)
	assert.Zero(t, g.requestCount())
}

func TestCreateContainerText(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodPost, "/"+testUserID+"/threads", `{"id":"17890001"}`)
	client := newTestClient(t, g)

	id, err := client.CreateContainer(context.Background(), "hello world", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "17890001", id)

	calls := g.calls(http.MethodPost, "/"+testUserID+"/threads")
	require.Len(t, calls, 1)
	query := calls[0].Query
	assert.Equal(t, "hello world", query.Get("text"))
	assert.Equal(t, "TEXT", query.Get("media_type"))
	assert.Equal(t, "everyone", query.Get("reply_control"))
	assert.Empty(t, query.Get("is_carousel_item"))
}

func TestCreateContainerImageWithOptions(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodPost, "/"+testUserID+"/threads", `{"id":"17890002"}`)
	client := newTestClient(t, g)

	media := &types.Media{Type: types.MediaTypeImage, URL: "https://example.com/cat.jpg"}
	opts := &ContainerOptions{
		ReplyControl: types.ReplyControlMentionedOnly,
		ReplyToID:    "17880000",
	}
	id, err := client.CreateContainer(context.Background(), "look", media, opts)
	require.NoError(t, err)
	assert.Equal(t, "17890002", id)

	calls := g.calls(http.MethodPost, "/"+testUserID+"/threads")
	require.Len(t, calls, 1)
	query := calls[0].Query
	assert.Equal(t, "IMAGE", query.Get("media_type"))
	assert.Equal(t, "https://example.com/cat.jpg", query.Get("image_url"))
	assert.Equal(t, "look", query.Get("text"))
	assert.Equal(t, "mentioned_only", query.Get("reply_control"))
	assert.Equal(t, "17880000", query.Get("reply_to_id"))
}

func TestCreateContainerCarouselItem(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodPost, "/"+testUserID+"/threads", `{"id":"17890003"}`)
	client := newTestClient(t, g)

	media := &types.Media{Type: types.MediaTypeVideo, URL: "https://example.com/clip.mp4"}
	_, err := client.CreateContainer(context.Background(), "", media, &ContainerOptions{IsCarouselItem: true})
	require.NoError(t, err)

	calls := g.calls(http.MethodPost, "/"+testUserID+"/threads")
	require.Len(t, calls, 1)
	query := calls[0].Query
	assert.Equal(t, "VIDEO", query.Get("media_type"))
	assert.Equal(t, "https://example.com/clip.mp4", query.Get("video_url"))
	assert.Equal(t, "true", query.Get("is_carousel_item"))
	assert.Empty(t, query.Get("text"))
}

func TestCreateContainerValidation(t *testing.T) {
	g := newFakeGraph(t)
	client := newTestClient(t, g)

	tests := []struct {
		name  string
		text  string
		media *types.Media
		opts  *ContainerOptions
	}{
		{name: "neither text nor media"},
		{
			name: "carousel item with text",
			text: "nope",
			media: &types.Media{
				Type: types.MediaTypeImage, URL: "https://example.com/a.jpg",
			},
			opts: &ContainerOptions{IsCarouselItem: true},
		},
		{
			name:  "bad media url",
			media: &types.Media{Type: types.MediaTypeImage, URL: "ftp://example.com/a.jpg"},
		},
		{
			name:  "carousel media type on single container",
			media: &types.Media{Type: types.MediaTypeCarousel, URL: "https://example.com/a.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateContainer(context.Background(), tt.text, tt.media, tt.opts)
			var valErr *pkgerrs.ValidationError
			require.ErrorAs(t, err, &valErr)
		})
	}

	assert.Zero(t, g.requestCount())
}

func TestCreateCarouselContainer(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodPost, "/"+testUserID+"/threads", `{"id":"17890010"}`)
	client := newTestClient(t, g)

	children := []types.ContainerStatus{
		{ID: "111", Status: types.StatusFinished},
		{ID: "222", Status: types.StatusFinished},
	}
	id, err := client.CreateCarouselContainer(context.Background(), children, "a trip", nil)
	require.NoError(t, err)
	assert.Equal(t, "17890010", id)

	calls := g.calls(http.MethodPost, "/"+testUserID+"/threads")
	require.Len(t, calls, 1)
	query := calls[0].Query
	assert.Equal(t, "CAROUSEL", query.Get("media_type"))
	assert.Equal(t, "111,222", query.Get("children"))
	assert.Equal(t, "a trip", query.Get("text"))
}

func TestCreateCarouselContainerRejectsUnfinishedChildren(t *testing.T) {
	g := newFakeGraph(t)
	client := newTestClient(t, g)

	children := []types.ContainerStatus{
		{ID: "111", Status: types.StatusFinished},
		{ID: "222", Status: types.StatusInProgress},
	}
	_, err := client.CreateCarouselContainer(context.Background(), children, "", nil)
	var valErr *pkgerrs.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Zero(t, g.requestCount())
}

func TestContainerStatus(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/17890001", `{"id":"17890001","status":"ERROR","error_message":"FAILED_DOWNLOADING_VIDEO"}`)
	client := newTestClient(t, g)

	status, err := client.ContainerStatus(context.Background(), "17890001")
	require.NoError(t, err)
	assert.Equal(t, "17890001", status.ID)
	assert.Equal(t, types.StatusError, status.Status)
	assert.Equal(t, types.ErrFailedDownloadingVideo, status.Error)

	calls := g.calls(http.MethodGet, "/17890001")
	require.Len(t, calls, 1)
	assert.Equal(t, "id,status,error_message", calls[0].Query.Get("fields"))
}

func TestContainerStatusUnknownValue(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/17890001", `{"id":"17890001","status":"MYSTERIOUS"}`)
	client := newTestClient(t, g)

	_, err := client.ContainerStatus(context.Background(), "17890001")
	var parseErr *pkgerrs.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestPublishContainer(t *testing.T) {
	g := newFakeGraph(t)
	g.stubStatus("17890001", "FINISHED")
	g.handle(http.MethodPost, "/"+testUserID+"/threads_publish", `{"id":"17890001"}`)
	client := newTestClient(t, g)

	postID, err := client.PublishContainer(context.Background(), "17890001")
	require.NoError(t, err)
	assert.Equal(t, "17890001", postID)

	calls := g.calls(http.MethodPost, "/"+testUserID+"/threads_publish")
	require.Len(t, calls, 1)
	assert.Equal(t, "17890001", calls[0].Query.Get("creation_id"))
}

func TestPublishContainerNotFinished(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"in progress", "IN_PROGRESS"},
		{"errored", "ERROR"},
		{"expired", "EXPIRED"},
		{"already published", "PUBLISHED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph(t)
			g.stubStatus("17890001", tt.status)
			client := newTestClient(t, g)

			_, err := client.PublishContainer(context.Background(), "17890001")
			var pubErr *pkgerrs.PublishingError
			require.ErrorAs(t, err, &pubErr)
			assert.Equal(t, "17890001", pubErr.ContainerID)
			assert.Equal(t, tt.status, pubErr.Status)
			assert.Empty(t, g.calls(http.MethodPost, "/"+testUserID+"/threads_publish"))
		})
	}
}

func TestAccount(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/"+testUserID, `{"id":"7331","username":"threadstester","threads_biography":"posting from Go"}`)
	client := newTestClient(t, g)

	profile, err := client.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "threadstester", profile.Username)
	assert.Equal(t, "posting from Go", profile.Biography)

	calls := g.calls(http.MethodGet, "/"+testUserID)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Query.Get("fields"), "threads_profile_picture_url")
}

func TestUserInsights(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/"+testUserID+"/threads_insights", `{"data":[{"name":"views","period":"day","values":[{"value":42}]}]}`)
	client := newTestClient(t, g)

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	resp, err := client.UserInsights(context.Background(), []string{"views", "likes"}, &UserInsightsOptions{Since: since, Until: until})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "views", resp.Data[0].Name)

	calls := g.calls(http.MethodGet, "/"+testUserID+"/threads_insights")
	require.Len(t, calls, 1)
	query := calls[0].Query
	assert.Equal(t, "views,likes", query.Get("metric"))
	assert.Equal(t, "1780272000", query.Get("since"))
	assert.Equal(t, "1782777600", query.Get("until"))
}

func TestUserInsightsValidation(t *testing.T) {
	g := newFakeGraph(t)
	client := newTestClient(t, g)

	tests := []struct {
		name    string
		metrics []string
		opts    *UserInsightsOptions
	}{
		{name: "no metrics"},
		{name: "unknown metric", metrics: []string{"upvotes"}},
		{name: "demographics without breakdown", metrics: []string{"follower_demographics"}},
		{name: "unknown breakdown", metrics: []string{"follower_demographics"}, opts: &UserInsightsOptions{Breakdown: "starsign"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.UserInsights(context.Background(), tt.metrics, tt.opts)
			var valErr *pkgerrs.ValidationError
			require.ErrorAs(t, err, &valErr)
		})
	}

	assert.Zero(t, g.requestCount())
}

func TestPublishingLimit(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/"+testUserID+"/threads_publishing_limit",
		`{"data":[{"quota_usage":17,"config":{"quota_total":250,"quota_duration":86400}}]}`)
	client := newTestClient(t, g)

	limit, err := client.PublishingLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, limit.QuotaUsage)
	require.NotNil(t, limit.Config)
	assert.Equal(t, 250, limit.Config.QuotaTotal)
	assert.Equal(t, 86400, limit.Config.QuotaDuration)
}

func TestPublishingLimitEmptyData(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/"+testUserID+"/threads_publishing_limit", `{"data":[]}`)
	client := newTestClient(t, g)

	limit, err := client.PublishingLimit(context.Background())
	require.NoError(t, err)
	assert.Zero(t, limit.QuotaUsage)
}

func TestThreadsListing(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/"+testUserID+"/threads",
		`{"data":[{"id":"1","text":"first"},{"id":"2","text":"second"}],"paging":{"cursors":{"after":"QVFI"}}}`)
	client := newTestClient(t, g)

	listing, err := client.Threads(context.Background(), &ListingOptions{Limit: 2, After: "prev-cursor"})
	require.NoError(t, err)
	require.Len(t, listing.Data, 2)
	assert.Equal(t, "first", listing.Data[0].Text)
	assert.Equal(t, "QVFI", listing.Paging.Cursors.After)

	calls := g.calls(http.MethodGet, "/"+testUserID+"/threads")
	require.Len(t, calls, 1)
	assert.Equal(t, "2", calls[0].Query.Get("limit"))
	assert.Equal(t, "prev-cursor", calls[0].Query.Get("after"))
}

func TestReplies(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/17890001/replies", `{"data":[{"id":"9","text":"nice one"}]}`)
	client := newTestClient(t, g)

	listing, err := client.Replies(context.Background(), "17890001")
	require.NoError(t, err)
	require.Len(t, listing.Data, 1)
	assert.Equal(t, "nice one", listing.Data[0].Text)
}

func TestManageReply(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodPost, "/17890009/manage_reply", `{"success":true}`)
	client := newTestClient(t, g)

	require.NoError(t, client.ManageReply(context.Background(), "17890009", true))

	calls := g.calls(http.MethodPost, "/17890009/manage_reply")
	require.Len(t, calls, 1)
	assert.Equal(t, "true", calls[0].Query.Get("hide"))
}

func TestInsights(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/17890001/insights",
		`{"data":[{"name":"likes","period":"lifetime","values":[{"value":7}]}]}`)
	client := newTestClient(t, g)

	resp, err := client.Insights(context.Background(), "17890001")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "likes", resp.Data[0].Name)

	calls := g.calls(http.MethodGet, "/17890001/insights")
	require.Len(t, calls, 1)
	assert.Equal(t, "views,likes,replies,reposts,quotes", calls[0].Query.Get("metric"))
}

func TestGraphAPIVersionPathPrefix(t *testing.T) {
	g := newFakeGraph(t)
	g.handle(http.MethodGet, "/v1.0/"+testUserID, `{"id":"7331","username":"versioned"}`)

	client, err := NewClient(&Config{
		BaseURL:         g.server.URL,
		GraphAPIVersion: "v1.0",
	}, testCredentials())
	require.NoError(t, err)

	profile, err := client.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "versioned", profile.Username)
}
