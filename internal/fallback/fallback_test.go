package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Page(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	p := NewProvider(func() time.Time { return fixed })

	tests := []struct {
		name      string
		count     int
		cause     string
		wantIDs   []string
		wantCause bool
	}{
		{name: "truncated to two", count: 2, wantIDs: []string{"welcome-video-1", "sermon-video-2"}},
		{name: "capped at available", count: 12, wantIDs: []string{"welcome-video-1", "sermon-video-2", "worship-video-3"}},
		{name: "zero still returns one", count: 0, wantIDs: []string{"welcome-video-1"}},
		{name: "cause is included", count: 1, cause: "relay returned 502", wantIDs: []string{"welcome-video-1"}, wantCause: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := p.Page(tt.count, tt.cause)
			assert.Equal(t, tt.wantIDs, page.VideoIDs())
			require.NotEmpty(t, page.Warning)
			assert.Contains(t, page.Warning, DefaultWarning)
			if tt.wantCause {
				assert.Contains(t, page.Warning, tt.cause)
			}
			assert.Empty(t, page.ContinuationToken)
		})
	}
}

func TestProvider_Records(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	page := NewProvider(func() time.Time { return fixed }).Page(Size(), "")

	require.Len(t, page.Videos, 3)
	assert.Equal(t, fixed, page.Videos[0].PublishedAt)
	assert.Equal(t, fixed.Add(-24*time.Hour), page.Videos[1].PublishedAt)
	assert.Equal(t, "/images/placeholder-1.jpg", page.Videos[0].ThumbnailURL)

	for i := 1; i < len(page.Videos); i++ {
		assert.True(t, page.Videos[i-1].PublishedAt.After(page.Videos[i].PublishedAt), "newest first")
	}
}

func TestProvider_ZeroValue(t *testing.T) {
	t.Parallel()

	var p *Provider
	page := p.Page(1, "")
	require.Len(t, page.Videos, 1)
	assert.WithinDuration(t, time.Now(), page.Videos[0].PublishedAt, time.Minute)
}
