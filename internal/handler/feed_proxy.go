package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/fetcher"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

const (
	proxyCacheControl = "s-maxage=3600, stale-while-revalidate"
	proxyErrorMessage = "Failed to fetch YouTube data"
	contentTypeXML    = "application/xml; charset=utf-8"
)

// RawFetcher retrieves the raw channel feed. *fetcher.Fetcher implements it.
type RawFetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (*fetcher.Result, error)
}

// RawCache holds raw feed bodies. *cache.RawFeedCache implements it.
type RawCache interface {
	Get(ctx context.Context, channelID string) ([]byte, bool, error)
	Set(ctx context.Context, channelID string, body []byte) error
}

// FeedProxyHandler serves the channel's Atom feed unchanged, for clients that
// parse it themselves.
type FeedProxyHandler struct {
	fetcher   RawFetcher
	cache     RawCache
	channelID string
	feedURL   string
}

// NewFeedProxyHandler creates the proxy for one channel. cache may be nil.
func NewFeedProxyHandler(f RawFetcher, cache RawCache, channelID, feedURL string) *FeedProxyHandler {
	return &FeedProxyHandler{
		fetcher:   f,
		cache:     cache,
		channelID: channelID,
		feedURL:   feedURL,
	}
}

// ServeFeed answers GET /api/youtube.
func (h *FeedProxyHandler) ServeFeed(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.L().With(zap.String("channelId", h.channelID))

	if h.cache != nil {
		body, ok, err := h.cache.Get(ctx, h.channelID)
		switch {
		case err != nil:
			log.Warn("Feed cache read failed", zap.Error(err))
		case ok:
			h.write(c, body, "HIT")
			return
		}
	}

	res, err := h.fetcher.Fetch(ctx, fetcher.Request{URL: h.feedURL, Accept: "application/atom+xml, application/xml"})
	if err != nil {
		log.Error("Error fetching YouTube feed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": proxyErrorMessage})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, h.channelID, res.Body); err != nil {
			log.Warn("Feed cache write failed", zap.Error(err))
		}
	}

	h.write(c, res.Body, "MISS")
}

func (h *FeedProxyHandler) write(c *gin.Context, body []byte, cacheStatus string) {
	c.Header("Cache-Control", proxyCacheControl)
	c.Header("X-Cache", cacheStatus)
	c.Data(http.StatusOK, contentTypeXML, body)
}
