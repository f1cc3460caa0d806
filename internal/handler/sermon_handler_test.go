package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/church-web/sermon-feed-go/internal/config"
	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/internal/service"
	"github.com/church-web/sermon-feed-go/internal/validation"
)

func newTestContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSermonHandler_ListSermons(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{result: liveResult("a", "b")}
	h := NewSermonHandler(feed, nil, nil, validation.New(config.SourceRSS), testChannel)

	c, w := newTestContext(http.MethodGet, "/api/v1/sermons?channelId="+testChannel+"&maxResults=2&startIndex=4&q=grace&order=oldest")
	h.ListSermons(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FeedQuery{
		ChannelID:  testChannel,
		MaxResults: 2,
		StartIndex: "4",
		Query:      "grace",
		Order:      "oldest",
	}, feed.lastQuery())

	var got models.FeedResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StatusLive, got.Status)
	assert.Equal(t, []string{"a", "b"}, got.VideoIDs())
}

func TestSermonHandler_ListSermons_FallbackIsStillOK(t *testing.T) {
	t.Parallel()

	h := NewSermonHandler(&fakeFeed{result: fallbackResult()}, nil, nil, validation.New(config.SourceRSS), testChannel)

	c, w := newTestContext(http.MethodGet, "/api/v1/sermons")
	h.ListSermons(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.FeedResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StatusFallback, got.Status)
	assert.NotEmpty(t, got.Warning)
}

func TestSermonHandler_ListSermons_InvalidParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
	}{
		{name: "bad channel", target: "/api/v1/sermons?channelId=nope"},
		{name: "maxResults too large", target: "/api/v1/sermons?maxResults=500"},
		{name: "token on RSS", target: "/api/v1/sermons?startIndex=CAYQAA"},
		{name: "bad order", target: "/api/v1/sermons?order=random"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			feed := &fakeFeed{result: liveResult("a")}
			h := NewSermonHandler(feed, nil, nil, validation.New(config.SourceRSS), testChannel)

			c, w := newTestContext(http.MethodGet, tt.target)
			h.ListSermons(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, feed.queries, "pipeline must not run")
			resp := decodeError(t, w)
			assert.Equal(t, http.StatusBadRequest, resp.Status)
			assert.Equal(t, "/api/v1/sermons", resp.Path)
		})
	}
}

func TestSermonHandler_LatestSermons(t *testing.T) {
	t.Parallel()

	t.Run("no poller", func(t *testing.T) {
		t.Parallel()

		h := NewSermonHandler(&fakeFeed{}, nil, nil, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/sermons/latest")
		h.LatestSermons(c)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("before first cycle", func(t *testing.T) {
		t.Parallel()

		h := NewSermonHandler(&fakeFeed{}, &fakeSnapshot{err: service.ErrNoSnapshot}, nil, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/sermons/latest")
		h.LatestSermons(c)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "No sermons fetched yet", decodeError(t, w).Message)
	})

	t.Run("snapshot", func(t *testing.T) {
		t.Parallel()

		h := NewSermonHandler(&fakeFeed{}, &fakeSnapshot{latest: liveResult("x"), gen: 7}, nil, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/sermons/latest")
		h.LatestSermons(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "7", w.Header().Get(headerGeneration))
		var got models.FeedResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, []string{"x"}, got.VideoIDs())
	})
}

func TestSermonHandler_CleanTitle(t *testing.T) {
	t.Parallel()

	h := NewSermonHandler(&fakeFeed{}, nil, nil, validation.New(config.SourceRSS), testChannel)

	c, w := newTestContext(http.MethodGet, "/api/v1/sermons/clean-title?title=LIVE+%7C+sunday+service+%7C+WORSHIP+%26+WORD+OF+GOD+BY+Pastor")
	h.CleanTitle(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.CleanTitleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Sunday Service", got.Title)
	assert.Equal(t, "LIVE | sunday service | WORSHIP & WORD OF GOD BY Pastor", got.Original)

	c, w = newTestContext(http.MethodGet, "/api/v1/sermons/clean-title")
	h.CleanTitle(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSermonHandler_Refresh(t *testing.T) {
	t.Parallel()

	snap := &fakeSnapshot{outcome: service.RefreshOutcome{Result: fallbackResult(), Generation: 3, Applied: true}}
	h := NewSermonHandler(&fakeFeed{}, snap, nil, validation.New(config.SourceRSS), testChannel)

	c, w := newTestContext(http.MethodPost, "/api/v1/admin/refresh")
	h.Refresh(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.RefreshResponse{
		Generation: 3,
		Applied:    true,
		Status:     models.StatusFallback,
		VideoCount: 1,
		Warning:    "Unable to load latest videos",
	}, got)

	canceled := NewSermonHandler(&fakeFeed{}, &fakeSnapshot{}, nil, validation.New(config.SourceRSS), testChannel)
	c, w = newTestContext(http.MethodPost, "/api/v1/admin/refresh")
	canceled.Refresh(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSermonHandler_RecentFetches(t *testing.T) {
	t.Parallel()

	t.Run("lists records", func(t *testing.T) {
		t.Parallel()

		lister := new(mockFetchLister)
		lister.On("RecentFetches", mock.Anything, testChannel, 5).
			Return([]*models.FetchRecord{{ChannelID: testChannel, Status: models.StatusLive, VideoCount: 6}}, nil)

		h := NewSermonHandler(&fakeFeed{}, nil, lister, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/admin/fetches?limit=5")
		h.RecentFetches(c)

		require.Equal(t, http.StatusOK, w.Code)
		var got struct {
			ChannelID string                `json:"channelId"`
			Fetches   []*models.FetchRecord `json:"fetches"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, testChannel, got.ChannelID)
		require.Len(t, got.Fetches, 1)
		assert.Equal(t, 6, got.Fetches[0].VideoCount)
		lister.AssertExpectations(t)
	})

	t.Run("default limit and empty result", func(t *testing.T) {
		t.Parallel()

		lister := new(mockFetchLister)
		lister.On("RecentFetches", mock.Anything, testChannel, defaultFetchLimit).Return(nil, nil)

		h := NewSermonHandler(&fakeFeed{}, nil, lister, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/admin/fetches")
		h.RecentFetches(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"fetches":[]`)
	})

	t.Run("bad limit", func(t *testing.T) {
		t.Parallel()

		h := NewSermonHandler(&fakeFeed{}, nil, new(mockFetchLister), validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/admin/fetches?limit=zero")
		h.RecentFetches(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("repository error", func(t *testing.T) {
		t.Parallel()

		lister := new(mockFetchLister)
		lister.On("RecentFetches", mock.Anything, testChannel, defaultFetchLimit).Return(nil, errors.New("connection refused"))

		h := NewSermonHandler(&fakeFeed{}, nil, lister, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/admin/fetches")
		h.RecentFetches(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("database disabled", func(t *testing.T) {
		t.Parallel()

		h := NewSermonHandler(&fakeFeed{}, nil, nil, validation.New(config.SourceRSS), testChannel)
		c, w := newTestContext(http.MethodGet, "/api/v1/admin/fetches")
		h.RecentFetches(c)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
