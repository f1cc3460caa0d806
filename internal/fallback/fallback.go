// Package fallback serves placeholder videos when no upstream path works.
package fallback

import (
	"fmt"
	"time"

	"github.com/church-web/sermon-feed-go/internal/models"
)

// DefaultWarning is shown when no cause is available.
const DefaultWarning = "Unable to load the latest sermons from YouTube. Showing placeholder content; please try again shortly."

type placeholder struct {
	id        string
	title     string
	thumbnail string
	age       time.Duration
}

var placeholders = []placeholder{
	{id: "welcome-video-1", title: "Welcome To Our Church", thumbnail: "/images/placeholder-1.jpg", age: 0},
	{id: "sermon-video-2", title: "Sunday Service", thumbnail: "/images/placeholder-2.jpg", age: 24 * time.Hour},
	{id: "worship-video-3", title: "Worship Night", thumbnail: "/images/placeholder-3.jpg", age: 48 * time.Hour},
}

// Provider builds placeholder pages. The zero value uses time.Now.
type Provider struct {
	now func() time.Time
}

// NewProvider returns a Provider; a nil clock means time.Now.
func NewProvider(now func() time.Time) *Provider {
	return &Provider{now: now}
}

// Size is the number of placeholder records available.
func Size() int {
	return len(placeholders)
}

// Page returns up to count placeholder records (at least one) and a warning
// that always names degraded mode. cause, when non-empty, is appended.
func (p *Provider) Page(count int, cause string) models.FeedPage {
	now := time.Now
	if p != nil && p.now != nil {
		now = p.now
	}
	ts := now().UTC()

	if count < 1 {
		count = 1
	}
	if count > len(placeholders) {
		count = len(placeholders)
	}

	videos := make([]models.VideoRecord, 0, count)
	for _, ph := range placeholders[:count] {
		videos = append(videos, models.VideoRecord{
			ID:            ph.id,
			Title:         ph.title,
			OriginalTitle: ph.title,
			PublishedAt:   ts.Add(-ph.age),
			ThumbnailURL:  ph.thumbnail,
		})
	}

	warning := DefaultWarning
	if cause != "" {
		warning = fmt.Sprintf("%s (%s)", DefaultWarning, cause)
	}

	return models.FeedPage{
		Videos:  videos,
		Warning: warning,
	}
}
