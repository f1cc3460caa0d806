// Package parser turns upstream feed payloads into validated RawVideo entries.
//
// Two wire formats are understood: the channel Atom feed and the YouTube
// Data API v3 JSON responses. Each parsed entry is tagged with its Source and
// carries a non-empty ID; entries that cannot be identified are dropped at this
// boundary and counted.
package parser

import (
	"errors"
	"time"

	"github.com/church-web/sermon-feed-go/internal/models"
)

// UntitledVideo replaces empty upstream titles.
const UntitledVideo = "Untitled Video"

var (
	// ErrMalformedFeed is returned when a payload cannot be parsed as a whole.
	ErrMalformedFeed = errors.New("malformed feed payload")

	// ErrChannelNotFound is returned when the Data API knows no such channel.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoUploadsPlaylist is returned when a channel has no uploads playlist.
	ErrNoUploadsPlaylist = errors.New("channel has no uploads playlist")
)

// RawVideo is one validated entry from either feed format.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RawVideo struct {
	Source      models.Source
	ID          string
	Title       string
	Description string
	PublishedAt time.Time
	// Thumbnails are ordered best first. May be empty.
	Thumbnails []string
	// Duration is the raw ISO 8601 value (Data API only).
	Duration  string
	ViewCount *uint64
}

func titleOrDefault(title string) string {
	if title == "" {
		return UntitledVideo
	}
	return title
}
