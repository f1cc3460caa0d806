package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/church-web/sermon-feed-go/internal/models"
)

func TestParseChannelUploads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{
			name: "uploads playlist",
			raw:  `{"items":[{"id":"UCfGHCtW5XlkY78l97_Rwu4Q","contentDetails":{"relatedPlaylists":{"uploads":"UUfGHCtW5XlkY78l97_Rwu4Q"}}}]}`,
			want: "UUfGHCtW5XlkY78l97_Rwu4Q",
		},
		{
			name:    "no items",
			raw:     `{"items":[]}`,
			wantErr: ErrChannelNotFound,
		},
		{
			name:    "missing content details",
			raw:     `{"items":[{"id":"UCfGHCtW5XlkY78l97_Rwu4Q"}]}`,
			wantErr: ErrNoUploadsPlaylist,
		},
		{
			name:    "invalid json",
			raw:     `{"items":`,
			wantErr: ErrMalformedFeed,
		},
		{
			name:    "api error envelope",
			raw:     `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`,
			wantErr: ErrMalformedFeed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseChannelUploads([]byte(tt.raw))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlaylistPage(t *testing.T) {
	t.Parallel()

	raw := `{
  "nextPageToken": "CAYQAA",
  "pageInfo": {"totalResults": 120, "resultsPerPage": 6},
  "items": [
    {"snippet": {"resourceId": {"videoId": "aaaaaaaaaa1"}}},
    {"contentDetails": {"videoId": "bbbbbbbbbb2"}},
    {"snippet": {"resourceId": {"videoId": "aaaaaaaaaa1"}}},
    {"snippet": {"title": "private video"}}
  ]
}`

	page, err := ParsePlaylistPage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaa1", "bbbbbbbbbb2"}, page.VideoIDs)
	assert.Equal(t, "CAYQAA", page.NextPageToken)
	assert.Equal(t, int64(120), page.TotalResults)
}

func TestParseVideoList(t *testing.T) {
	t.Parallel()

	raw := `{
  "items": [
    {
      "id": "aaaaaaaaaa1",
      "snippet": {
        "title": "LIVE | Sunday Service",
        "description": "Morning worship",
        "publishedAt": "2025-03-02T10:00:00Z",
        "thumbnails": {
          "default": {"url": "http://i1.ytimg.com/vi/aaaaaaaaaa1/default.jpg"},
          "high": {"url": "https://i.ytimg.com/vi/aaaaaaaaaa1/hqdefault.jpg"},
          "maxres": {"url": "https://i.ytimg.com/vi/aaaaaaaaaa1/maxresdefault.jpg"}
        }
      },
      "contentDetails": {"duration": "PT1H2M3S"},
      "statistics": {"viewCount": "2300000"}
    },
    {
      "id": "bbbbbbbbbb2",
      "snippet": {"title": "", "publishedAt": "not a date"}
    },
    {
      "snippet": {"title": "orphan"}
    }
  ]
}`

	videos, dropped, err := ParseVideoList([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, videos, 2)

	first := videos[0]
	assert.Equal(t, models.SourceDataAPI, first.Source)
	assert.Equal(t, "aaaaaaaaaa1", first.ID)
	assert.Equal(t, "LIVE | Sunday Service", first.Title)
	assert.Equal(t, "Morning worship", first.Description)
	assert.Equal(t, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, []string{
		"https://i.ytimg.com/vi/aaaaaaaaaa1/maxresdefault.jpg",
		"https://i.ytimg.com/vi/aaaaaaaaaa1/hqdefault.jpg",
		"http://i1.ytimg.com/vi/aaaaaaaaaa1/default.jpg",
	}, first.Thumbnails)
	assert.Equal(t, "PT1H2M3S", first.Duration)
	require.NotNil(t, first.ViewCount)
	assert.Equal(t, uint64(2300000), *first.ViewCount)

	second := videos[1]
	assert.Equal(t, UntitledVideo, second.Title)
	assert.True(t, second.PublishedAt.IsZero())
	assert.Empty(t, second.Thumbnails)
	assert.Nil(t, second.ViewCount)
}

func TestParseVideoList_Malformed(t *testing.T) {
	t.Parallel()

	_, _, err := ParseVideoList([]byte(`<feed/>`))
	assert.ErrorIs(t, err, ErrMalformedFeed)
}

func TestParseAPIError(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"error":{"code":403,"message":"The request cannot be completed because you have exceeded your quota.","errors":[{"message":"quota","domain":"youtube.quota","reason":"quotaExceeded"}]}}`)

	apiErr := ParseAPIError(raw)
	require.NotNil(t, apiErr)
	assert.Equal(t, 403, apiErr.Code)
	assert.Contains(t, apiErr.Message, "exceeded your quota")
	assert.Equal(t, "quotaExceeded", APIErrorReason(apiErr))

	assert.Nil(t, ParseAPIError([]byte(`{"items":[]}`)))
	assert.Nil(t, ParseAPIError([]byte(`not json`)))
	assert.Empty(t, APIErrorReason(nil))
}
