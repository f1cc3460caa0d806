package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/internal/normalize"
	"github.com/church-web/sermon-feed-go/internal/service"
	"github.com/church-web/sermon-feed-go/internal/validation"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

const (
	headerGeneration   = "X-Feed-Generation"
	defaultFetchLimit  = 20
	maxCleanTitleInput = 1000
)

// FeedService runs one retrieval cycle. *service.SermonFeedService implements it.
type FeedService interface {
	Fetch(ctx context.Context, q service.FeedQuery) *models.FeedResult
}

// FeedSnapshot exposes the poller. *service.FeedPoller implements it.
type FeedSnapshot interface {
	Latest() (*models.FeedResult, uint64, error)
	Refresh(ctx context.Context) service.RefreshOutcome
}

// FetchLister reads the fetch log. *repository.Repository implements it.
type FetchLister interface {
	RecentFetches(ctx context.Context, channelID string, limit int) ([]*models.FetchRecord, error)
}

// SermonHandler serves the sermons API.
type SermonHandler struct {
	feed      FeedService
	poller    FeedSnapshot
	fetches   FetchLister
	validator *validation.Validator
	channelID string
}

// NewSermonHandler creates a SermonHandler. poller and fetches may be nil;
// the routes that need them then answer 503.
func NewSermonHandler(feed FeedService, poller FeedSnapshot, fetches FetchLister, validator *validation.Validator, channelID string) *SermonHandler {
	return &SermonHandler{
		feed:      feed,
		poller:    poller,
		fetches:   fetches,
		validator: validator,
		channelID: channelID,
	}
}

// ListSermons answers GET /api/v1/sermons. A degraded upstream still yields
// 200 with a fallback result; only malformed parameters are rejected.
func (h *SermonHandler) ListSermons(c *gin.Context) {
	q, err := h.validator.ValidateQuery(validation.RawQuery{
		ChannelID:  c.Query("channelId"),
		MaxResults: c.Query("maxResults"),
		StartIndex: c.Query("startIndex"),
		Query:      c.Query("q"),
		Order:      c.Query("order"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	result := h.feed.Fetch(c.Request.Context(), service.FeedQuery{
		ChannelID:  q.ChannelID,
		MaxResults: q.MaxResults,
		StartIndex: q.StartIndex,
		Query:      q.Query,
		Order:      q.Order,
	})

	c.JSON(http.StatusOK, result)
}

// LatestSermons answers GET /api/v1/sermons/latest from the poller snapshot.
func (h *SermonHandler) LatestSermons(c *gin.Context) {
	if h.poller == nil {
		respondError(c, http.StatusServiceUnavailable, "Feed poller is disabled")
		return
	}

	result, gen, err := h.poller.Latest()
	if err != nil {
		if errors.Is(err, service.ErrNoSnapshot) {
			respondError(c, http.StatusServiceUnavailable, "No sermons fetched yet")
			return
		}
		h.handleError(c, err)
		return
	}

	c.Header(headerGeneration, strconv.FormatUint(gen, 10))
	c.JSON(http.StatusOK, result)
}

// CleanTitle answers GET /api/v1/sermons/clean-title?title=.
func (h *SermonHandler) CleanTitle(c *gin.Context) {
	title, ok := c.GetQuery("title")
	if !ok {
		respondError(c, http.StatusBadRequest, "Missing title parameter")
		return
	}
	if len(title) > maxCleanTitleInput {
		respondError(c, http.StatusBadRequest, "Title is too long")
		return
	}

	c.JSON(http.StatusOK, models.CleanTitleResponse{
		Original: title,
		Title:    normalize.CleanTitle(title),
	})
}

// Refresh answers POST /api/v1/admin/refresh by running one poll cycle.
func (h *SermonHandler) Refresh(c *gin.Context) {
	if h.poller == nil {
		respondError(c, http.StatusServiceUnavailable, "Feed poller is disabled")
		return
	}

	out := h.poller.Refresh(c.Request.Context())
	if out.Result == nil {
		respondError(c, http.StatusServiceUnavailable, "Refresh was canceled")
		return
	}

	logger.L().Info("Manual refresh",
		zap.Uint64("generation", out.Generation),
		zap.Bool("applied", out.Applied),
		zap.String("status", string(out.Result.Status)),
	)

	c.JSON(http.StatusOK, models.RefreshResponse{
		Generation: out.Generation,
		Applied:    out.Applied,
		Status:     out.Result.Status,
		VideoCount: len(out.Result.Videos),
		Warning:    out.Result.Warning,
	})
}

// RecentFetches answers GET /api/v1/admin/fetches?limit=&channelId=.
func (h *SermonHandler) RecentFetches(c *gin.Context) {
	if h.fetches == nil {
		respondError(c, http.StatusServiceUnavailable, "Fetch log is disabled")
		return
	}

	limit := defaultFetchLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	channelID := c.DefaultQuery("channelId", h.channelID)
	if !h.validator.IsValidChannelID(channelID) {
		h.handleError(c, &validation.ValidationError{Field: "channelId", Message: "must look like UC followed by 22 characters"})
		return
	}

	records, err := h.fetches.RecentFetches(c.Request.Context(), channelID, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if records == nil {
		records = []*models.FetchRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"channelId": channelID,
		"fetches":   records,
	})
}

func (h *SermonHandler) handleError(c *gin.Context, err error) {
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		logger.L().Warn("Validation error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, vErr.Error())
		return
	}

	logger.L().Error("Unexpected error",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	respondError(c, http.StatusInternalServerError, "An unexpected error occurred")
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
