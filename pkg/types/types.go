// Package types defines the data types exchanged with the Threads API.
package types

import (
	"encoding/json"
	"time"
)

// MediaType identifies the kind of content a container holds.
type MediaType string

const (
	MediaTypeText     MediaType = "TEXT"
	MediaTypeImage    MediaType = "IMAGE"
	MediaTypeVideo    MediaType = "VIDEO"
	MediaTypeCarousel MediaType = "CAROUSEL"
)

// Media describes a single media item to attach to a post. The URL must be
// publicly fetchable; the Threads servers download the media themselves.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// ReplyControl restricts who may reply to a thread.
type ReplyControl string

const (
	ReplyControlEveryone          ReplyControl = "everyone"
	ReplyControlAccountsYouFollow ReplyControl = "accounts_you_follow"
	ReplyControlMentionedOnly     ReplyControl = "mentioned_only"
)

// PublishingStatus is the server-side processing state of a container.
type PublishingStatus string

const (
	StatusInProgress PublishingStatus = "IN_PROGRESS"
	StatusFinished   PublishingStatus = "FINISHED"
	StatusError      PublishingStatus = "ERROR"
	StatusExpired    PublishingStatus = "EXPIRED"
	StatusPublished  PublishingStatus = "PUBLISHED"
)

// Terminal reports whether the status is an end state for media processing.
// A terminal container will never return to IN_PROGRESS.
func (s PublishingStatus) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusExpired, StatusPublished:
		return true
	}
	return false
}

// PublishingErrorCode is the error detail reported for a failed container.
type PublishingErrorCode string

const (
	ErrFailedDownloadingVideo    PublishingErrorCode = "FAILED_DOWNLOADING_VIDEO"
	ErrFailedProcessingAudio     PublishingErrorCode = "FAILED_PROCESSING_AUDIO"
	ErrFailedProcessingVideo     PublishingErrorCode = "FAILED_PROCESSING_VIDEO"
	ErrInvalidAspectRatio        PublishingErrorCode = "INVALID_ASPEC_RATIO"
	ErrInvalidBitRate            PublishingErrorCode = "INVALID_BIT_RATE"
	ErrInvalidDuration           PublishingErrorCode = "INVALID_DURATION"
	ErrInvalidFrameRate          PublishingErrorCode = "INVALID_FRAME_RATE"
	ErrInvalidAudioChannels      PublishingErrorCode = "INVALID_AUDIO_CHANNELS"
	ErrInvalidAudioChannelLayout PublishingErrorCode = "INVALID_AUDIO_CHANNEL_LAYOUT"
	ErrUnknown                   PublishingErrorCode = "UNKNOWN"
)

// ContainerStatus is the polled state of a single container. It is never
// cached beyond the call that produced it.
type ContainerStatus struct {
	ID     string              `json:"id"`
	Status PublishingStatus    `json:"status"`
	Error  PublishingErrorCode `json:"error_message,omitempty"`
}

// Credentials holds an access token together with its scope and lifetime.
// Expiration is always stored and compared in UTC. Credentials are never
// mutated in place; a refresh produces a new value.
type Credentials struct {
	UserID      string    `json:"user_id"`
	Scopes      []string  `json:"scopes"`
	ShortLived  bool      `json:"short_lived"`
	AccessToken string    `json:"access_token"`
	Expiration  time.Time `json:"expiration"`
}

// credentialsJSON mirrors Credentials for (un)marshalling so that the
// custom methods below cannot recurse.
type credentialsJSON struct {
	UserID      string    `json:"user_id"`
	Scopes      []string  `json:"scopes"`
	ShortLived  bool      `json:"short_lived"`
	AccessToken string    `json:"access_token"`
	Expiration  time.Time `json:"expiration"`
}

// MarshalJSON serializes the credentials with the expiration as an
// ISO-8601 timestamp in UTC.
func (c Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialsJSON{
		UserID:      c.UserID,
		Scopes:      c.Scopes,
		ShortLived:  c.ShortLived,
		AccessToken: c.AccessToken,
		Expiration:  c.Expiration.UTC(),
	})
}

// UnmarshalJSON restores credentials, normalizing the expiration to UTC
// regardless of the offset the stored timestamp carried.
func (c *Credentials) UnmarshalJSON(data []byte) error {
	var raw credentialsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.UserID = raw.UserID
	c.Scopes = raw.Scopes
	c.ShortLived = raw.ShortLived
	c.AccessToken = raw.AccessToken
	c.Expiration = raw.Expiration.UTC()
	return nil
}

// ExpiresIn returns the number of whole seconds before the access token
// expires. It never returns a negative value.
func (c Credentials) ExpiresIn() int {
	seconds := int(time.Until(c.Expiration).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// Expired reports whether the access token has expired.
func (c Credentials) Expired() bool {
	return c.ExpiresIn() == 0
}

// Profile is a Threads user's public profile information.
type Profile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Biography         string `json:"threads_biography"`
	ProfilePictureURL string `json:"threads_profile_picture_url"`
}

// Thread is a single published thread (a Threads media object).
type Thread struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Username         string   `json:"username"`
	Permalink        string   `json:"permalink"`
	Shortcode        string   `json:"shortcode"`
	Timestamp        string   `json:"timestamp"`
	MediaType        string   `json:"media_type"`
	MediaProductType string   `json:"media_product_type"`
	MediaURL         string   `json:"media_url"`
	ThumbnailURL     string   `json:"thumbnail_url"`
	IsQuotePost      bool     `json:"is_quote_post"`
	Children         *Listing `json:"children,omitempty"`
	Owner            *Owner   `json:"owner,omitempty"`
}

// Owner identifies the account that owns a thread.
type Owner struct {
	ID string `json:"id"`
}

// Listing is a cursor-paged list of threads as returned by the listing,
// replies and conversation endpoints.
type Listing struct {
	Data   []*Thread `json:"data"`
	Paging *Paging   `json:"paging,omitempty"`
}

// Paging carries the pagination cursors for a Listing.
type Paging struct {
	Cursors  Cursors `json:"cursors"`
	Next     string  `json:"next,omitempty"`
	Previous string  `json:"previous,omitempty"`
}

// Cursors are opaque pagination positions.
type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// MetricValue is a single datapoint of an insight metric.
type MetricValue struct {
	Value     json.Number `json:"value"`
	EndTime   string      `json:"end_time,omitempty"`
	Breakdown string      `json:"breakdown,omitempty"`
}

// Metric is one insight series, e.g. "views" or "likes".
type Metric struct {
	Name        string        `json:"name"`
	Period      string        `json:"period"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ID          string        `json:"id"`
	Values      []MetricValue `json:"values"`
	TotalValue  *TotalValue   `json:"total_value,omitempty"`
}

// TotalValue is the aggregate form some metrics report instead of a series.
type TotalValue struct {
	Value json.Number `json:"value"`
}

// QuotaConfig describes one publishing quota window.
type QuotaConfig struct {
	QuotaTotal    int `json:"quota_total"`
	QuotaDuration int `json:"quota_duration"`
}

// PublishingLimit is the user's current API usage against their quota.
type PublishingLimit struct {
	QuotaUsage      int          `json:"quota_usage"`
	Config          *QuotaConfig `json:"config,omitempty"`
	ReplyQuotaUsage int          `json:"reply_quota_usage"`
	ReplyConfig     *QuotaConfig `json:"reply_config,omitempty"`
}
