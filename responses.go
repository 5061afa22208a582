package threads

import "github.com/threadsdev/go-threads/pkg/types"

// InsightsResponse is the envelope returned by the insight endpoints.
type InsightsResponse struct {
	Data   []types.Metric `json:"data"`
	Paging *types.Paging  `json:"paging,omitempty"`
}

// publishingLimitResponse wraps the publishing quota lookup, which the API
// returns as a single-element data array.
type publishingLimitResponse struct {
	Data []*types.PublishingLimit `json:"data"`
}
