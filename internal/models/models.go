// Package models contains the data models and DTOs for the sermon feed service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus says whether a FeedResult came from YouTube or from placeholders.
type ResultStatus string

// ResultStatus constants.
const (
	StatusLive     ResultStatus = "live"
	StatusFallback ResultStatus = "fallback"
)

// FetchPath records how the payload reached us.
type FetchPath string

// FetchPath constants.
const (
	PathDirect   FetchPath = "direct"
	PathRelay    FetchPath = "relay"
	PathFallback FetchPath = "fallback"
)

// Source identifies the upstream a record was parsed from.
type Source string

// Source constants.
const (
	SourceRSS      Source = "rss"
	SourceDataAPI  Source = "data_api"
	SourceFallback Source = "fallback"
)

// VideoRecord is one normalised sermon video.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	OriginalTitle   string    `json:"originalTitle,omitempty"`
	Description     string    `json:"description,omitempty"`
	PublishedAt     time.Time `json:"publishedAt"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
	Duration        string    `json:"duration,omitempty"`
	ViewCount       *int64    `json:"viewCount,omitempty"`
	Views           string    `json:"views,omitempty"`
}

// FeedPage is one page of records as handed to the UI.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FeedPage struct {
	Videos            []VideoRecord `json:"videos"`
	ContinuationToken string        `json:"continuationToken,omitempty"`
	Warning           string        `json:"warning,omitempty"`
	// Total is the number of records the paginator saw. Zero when paging happened upstream.
	Total int `json:"total,omitempty"`
}

// FeedResult is the outcome of one retrieval cycle. Status discriminates a
// live page from a placeholder page; Warning is always set for the latter.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FeedResult struct {
	FeedPage
	Status    ResultStatus `json:"status"`
	Source    Source       `json:"source"`
	Path      FetchPath    `json:"path"`
	ChannelID string       `json:"channelId"`
	FetchedAt time.Time    `json:"fetchedAt"`
}

// IsLive reports whether the videos came from YouTube.
func (r *FeedResult) IsLive() bool {
	return r != nil && r.Status == StatusLive
}

// VideoIDs returns the ids of the page in order.
func (p FeedPage) VideoIDs() []string {
	ids := make([]string, len(p.Videos))
	for i, v := range p.Videos {
		ids[i] = v.ID
	}
	return ids
}

// FetchRecord is one row of the fetch audit log.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FetchRecord struct {
	ID          uuid.UUID    `json:"id"`
	ChannelID   string       `json:"channelId"`
	Source      Source       `json:"source"`
	Path        FetchPath    `json:"path"`
	Status      ResultStatus `json:"status"`
	VideoCount  int          `json:"videoCount"`
	VideoIDs    []string     `json:"videoIds"`
	ContentHash string       `json:"contentHash"`
	Warning     *string      `json:"warning,omitempty"`
	DurationMS  int64        `json:"durationMs"`
	FetchedAt   time.Time    `json:"fetchedAt"`
}

// FeedUpdatedEvent is published when a poll sees videos it has not seen before.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FeedUpdatedEvent struct {
	EventID     uuid.UUID     `json:"eventId"`
	ChannelID   string        `json:"channelId"`
	Source      Source        `json:"source"`
	NewVideoIDs []string      `json:"newVideoIds"`
	Videos      []VideoRecord `json:"videos"`
	ContentHash string        `json:"contentHash"`
	Generation  uint64        `json:"generation"`
	Timestamp   time.Time     `json:"timestamp"`
}

// CleanTitleResponse is returned by the title cleaning endpoint.
type CleanTitleResponse struct {
	Original string `json:"original"`
	Title    string `json:"title"`
}

// RefreshResponse is returned by the admin refresh endpoint.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RefreshResponse struct {
	Generation uint64       `json:"generation"`
	Applied    bool         `json:"applied"`
	Status     ResultStatus `json:"status"`
	VideoCount int          `json:"videoCount"`
	Warning    string       `json:"warning,omitempty"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
