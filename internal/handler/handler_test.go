package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/internal/service"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

const testChannel = "UCfGHCtW5XlkY78l97_Rwu4Q"

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "")
}

type fakeFeed struct {
	mu      sync.Mutex
	queries []service.FeedQuery
	result  *models.FeedResult
}

func (f *fakeFeed) Fetch(_ context.Context, q service.FeedQuery) *models.FeedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.result
}

func (f *fakeFeed) lastQuery() service.FeedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type fakeSnapshot struct {
	latest  *models.FeedResult
	gen     uint64
	err     error
	outcome service.RefreshOutcome
}

func (f *fakeSnapshot) Latest() (*models.FeedResult, uint64, error) {
	return f.latest, f.gen, f.err
}

func (f *fakeSnapshot) Refresh(context.Context) service.RefreshOutcome {
	return f.outcome
}

type mockFetchLister struct {
	mock.Mock
}

func (m *mockFetchLister) RecentFetches(ctx context.Context, channelID string, limit int) ([]*models.FetchRecord, error) {
	args := m.Called(ctx, channelID, limit)
	if v := args.Get(0); v != nil {
		return v.([]*models.FetchRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func liveResult(ids ...string) *models.FeedResult {
	videos := make([]models.VideoRecord, len(ids))
	for i, id := range ids {
		videos[i] = models.VideoRecord{ID: id, Title: "Sermon " + id}
	}
	return &models.FeedResult{
		FeedPage:  models.FeedPage{Videos: videos},
		Status:    models.StatusLive,
		Source:    models.SourceRSS,
		Path:      models.PathDirect,
		ChannelID: testChannel,
		FetchedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func fallbackResult() *models.FeedResult {
	return &models.FeedResult{
		FeedPage: models.FeedPage{
			Videos:  []models.VideoRecord{{ID: "welcome-video-1", Title: "Welcome"}},
			Warning: "Unable to load latest videos",
		},
		Status:    models.StatusFallback,
		Source:    models.SourceRSS,
		Path:      models.PathFallback,
		ChannelID: testChannel,
	}
}
