// Package service provides the sermon feed pipeline and its background poller.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/config"
	"github.com/church-web/sermon-feed-go/internal/fallback"
	"github.com/church-web/sermon-feed-go/internal/fetcher"
	"github.com/church-web/sermon-feed-go/internal/metrics"
	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/internal/normalize"
	"github.com/church-web/sermon-feed-go/internal/pagination"
	"github.com/church-web/sermon-feed-go/internal/parser"
	"github.com/church-web/sermon-feed-go/internal/service/quota"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

// MaxResultsLimit is the Data API's per-request ceiling; RSS pages use it too.
const MaxResultsLimit = 50

const (
	acceptFeed = "application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	acceptJSON = "application/json"
)

// FeedFetcher retrieves raw payloads. *fetcher.Fetcher implements it.
type FeedFetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (*fetcher.Result, error)
}

// FeedQuery is a full retrieval request.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FeedQuery struct {
	ChannelID  string
	MaxResults int
	// StartIndex is a numeric offset for RSS and an opaque page token for the Data API.
	StartIndex string
	Query      string
	Order      string
}

// SermonFeedService runs Fetcher -> Parser -> Normalizer -> Paginator and
// substitutes the fallback page when the upstream cannot be read.
type SermonFeedService struct {
	cfg      config.FeedConfig
	fetcher  FeedFetcher
	fallback *fallback.Provider
	metrics  *metrics.Metrics
	quota    *quota.Manager
	now      func() time.Time
}

// NewSermonFeedService creates the pipeline. cfg is copied; later changes to
// the caller's value have no effect.
func NewSermonFeedService(cfg config.FeedConfig, f FeedFetcher, fb *fallback.Provider, m *metrics.Metrics) *SermonFeedService {
	if fb == nil {
		fb = fallback.NewProvider(nil)
	}
	return &SermonFeedService{
		cfg:      cfg,
		fetcher:  f,
		fallback: fb,
		metrics:  m,
		now:      time.Now,
	}
}

// SetQuotaManager makes Data API requests spend from m. Without one no
// budget is enforced. Call before the first Fetch.
func (s *SermonFeedService) SetQuotaManager(m *quota.Manager) {
	s.quota = m
}

// Settings returns the configuration the service was built with.
func (s *SermonFeedService) Settings() config.FeedConfig {
	return s.cfg
}

// FetchLatestVideos returns one page of the channel's newest videos.
// It never returns nil and never fails: any upstream failure yields a
// fallback result with a warning.
func (s *SermonFeedService) FetchLatestVideos(ctx context.Context, channelID string, maxResults int, startIndex string) *models.FeedResult {
	return s.Fetch(ctx, FeedQuery{
		ChannelID:  channelID,
		MaxResults: maxResults,
		StartIndex: startIndex,
	})
}

// Fetch runs one retrieval cycle for q.
func (s *SermonFeedService) Fetch(ctx context.Context, q FeedQuery) *models.FeedResult {
	start := s.now()
	q = s.withDefaults(q)

	source := models.SourceRSS
	if s.cfg.Source == config.SourceDataAPI {
		source = models.SourceDataAPI
	}

	log := logger.L().With(
		zap.String("channelId", q.ChannelID),
		zap.String("source", string(source)),
		zap.String("startIndex", q.StartIndex),
		zap.Int("maxResults", q.MaxResults),
	)

	var (
		page models.FeedPage
		path models.FetchPath
		err  error
	)
	if source == models.SourceDataAPI {
		page, path, err = s.fetchDataAPI(ctx, q)
	} else {
		page, path, err = s.fetchRSS(ctx, q)
	}

	result := &models.FeedResult{
		Source:    source,
		ChannelID: q.ChannelID,
		FetchedAt: s.now().UTC(),
	}

	if err != nil {
		cause := describeFailure(err)
		log.Warn("Serving fallback sermons", zap.Error(err), zap.String("cause", cause))
		result.FeedPage = s.fallback.Page(q.MaxResults, cause)
		result.Status = models.StatusFallback
		result.Path = models.PathFallback
	} else {
		log.Info("Fetched sermons",
			zap.String("path", string(path)),
			zap.Int("videos", len(page.Videos)),
			zap.Bool("hasMore", page.ContinuationToken != ""),
		)
		result.FeedPage = page
		result.Status = models.StatusLive
		result.Path = path
	}

	s.metrics.Result(string(source), string(result.Status), s.now().Sub(start))
	return result
}

func (s *SermonFeedService) withDefaults(q FeedQuery) FeedQuery {
	q.ChannelID = strings.TrimSpace(q.ChannelID)
	if q.ChannelID == "" {
		q.ChannelID = s.cfg.ChannelID
	}
	if q.MaxResults <= 0 {
		q.MaxResults = s.cfg.PageSize
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 6
	}
	if q.MaxResults > MaxResultsLimit {
		q.MaxResults = MaxResultsLimit
	}
	q.StartIndex = strings.TrimSpace(q.StartIndex)
	return q
}

// fetchRSS pulls the whole channel feed and pages it locally.
func (s *SermonFeedService) fetchRSS(ctx context.Context, q FeedQuery) (models.FeedPage, models.FetchPath, error) {
	offset, err := pagination.ParseOffset(q.StartIndex)
	if err != nil {
		logger.L().Debug("Ignoring invalid start index", zap.Error(err))
		offset = 0
	}

	res, err := s.fetcher.Fetch(ctx, fetcher.Request{
		URL:    s.RSSURL(q.ChannelID),
		Accept: acceptFeed,
	})
	if err != nil {
		return models.FeedPage{}, "", err
	}

	feed, err := parser.ParseRSSFeed(res.Body)
	if err != nil {
		return models.FeedPage{}, "", err
	}
	s.metrics.Dropped(string(models.SourceRSS), feed.Dropped)

	records := normalize.Normalize(feed.Videos)
	records = normalize.Filter(records, q.Query)
	records = normalize.Order(records, q.Order)

	return pagination.Paginate(records, offset, q.MaxResults), res.Path, nil
}

// fetchDataAPI resolves the uploads playlist, reads one playlist page and
// hydrates it with video details. Paging is done upstream.
func (s *SermonFeedService) fetchDataAPI(ctx context.Context, q FeedQuery) (models.FeedPage, models.FetchPath, error) {
	res, err := s.fetchAPI(ctx, "channels", url.Values{
		"part": {"contentDetails"},
		"id":   {q.ChannelID},
	})
	if err != nil {
		return models.FeedPage{}, "", err
	}
	path := res.Path

	uploads, err := parser.ParseChannelUploads(res.Body)
	if err != nil {
		return models.FeedPage{}, "", err
	}

	params := url.Values{
		"part":       {"snippet,contentDetails"},
		"playlistId": {uploads},
		"maxResults": {strconv.Itoa(q.MaxResults)},
	}
	if q.StartIndex != "" {
		params.Set("pageToken", q.StartIndex)
	}
	res, err = s.fetchAPI(ctx, "playlistItems", params)
	if err != nil {
		return models.FeedPage{}, "", err
	}
	path = worsePath(path, res.Path)

	playlist, err := parser.ParsePlaylistPage(res.Body)
	if err != nil {
		return models.FeedPage{}, "", err
	}

	page := models.FeedPage{
		Videos:            []models.VideoRecord{},
		ContinuationToken: playlist.NextPageToken,
	}
	if len(playlist.VideoIDs) == 0 {
		return page, path, nil
	}

	res, err = s.fetchAPI(ctx, "videos", url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(playlist.VideoIDs, ",")},
	})
	if err != nil {
		return models.FeedPage{}, "", err
	}
	path = worsePath(path, res.Path)

	raw, dropped, err := parser.ParseVideoList(res.Body)
	if err != nil {
		return models.FeedPage{}, "", err
	}
	s.metrics.Dropped(string(models.SourceDataAPI), dropped)

	records := normalize.Normalize(raw)
	records = normalize.Filter(records, q.Query)
	page.Videos = normalize.Order(records, q.Order)

	return page, path, nil
}

// fetchAPI performs one list call. Every list call costs one quota unit.
func (s *SermonFeedService) fetchAPI(ctx context.Context, resource string, params url.Values) (*fetcher.Result, error) {
	if ok, _ := s.quota.Reserve(1, resource); !ok {
		return nil, quota.ErrExhausted
	}
	params.Set("key", s.cfg.APIKey)
	return s.fetcher.Fetch(ctx, fetcher.Request{
		URL:       strings.TrimRight(s.cfg.APIBaseURL, "/") + "/" + resource + "?" + params.Encode(),
		Accept:    acceptJSON,
		SkipRelay: !s.cfg.RelayAPIRequests,
	})
}

// RSSURL is the channel feed location.
func (s *SermonFeedService) RSSURL(channelID string) string {
	u, err := url.Parse(s.cfg.RSSBaseURL)
	if err != nil {
		return s.cfg.RSSBaseURL + "?channel_id=" + url.QueryEscape(channelID)
	}
	q := u.Query()
	q.Set("channel_id", channelID)
	u.RawQuery = q.Encode()
	return u.String()
}

// worsePath reports relay if any hop needed it.
func worsePath(a, b models.FetchPath) models.FetchPath {
	if a == models.PathRelay || b == models.PathRelay {
		return models.PathRelay
	}
	return models.PathDirect
}

// describeFailure renders err for the degraded-mode notice.
func describeFailure(err error) string {
	var te *fetcher.TransportError
	if errors.As(err, &te) {
		var se *fetcher.StatusError
		if errors.As(err, &se) {
			if apiErr := parser.ParseAPIError(se.Body); apiErr != nil {
				if reason := parser.APIErrorReason(apiErr); reason != "" {
					return fmt.Sprintf("YouTube Data API error %d (%s)", apiErr.Code, reason)
				}
				return fmt.Sprintf("YouTube Data API error %d", apiErr.Code)
			}
		}
		return te.Warning()
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request canceled before the feed arrived"
	case errors.Is(err, quota.ErrExhausted):
		return "YouTube Data API daily quota reached"
	case errors.Is(err, parser.ErrChannelNotFound):
		return "channel not found"
	case errors.Is(err, parser.ErrMalformedFeed):
		return "the video feed could not be read"
	default:
		return err.Error()
	}
}
