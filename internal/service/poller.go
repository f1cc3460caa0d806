package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/db"
	"github.com/church-web/sermon-feed-go/internal/metrics"
	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

// ErrNoSnapshot is returned by Latest before any cycle has been applied.
var ErrNoSnapshot = errors.New("no feed snapshot yet")

// FeedSource is the pipeline entry point. *SermonFeedService implements it.
type FeedSource interface {
	FetchLatestVideos(ctx context.Context, channelID string, maxResults int, startIndex string) *models.FeedResult
}

// FetchRecorder persists the fetch audit log. *repository.Repository implements it.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, rec *models.FetchRecord) error
	LatestFetch(ctx context.Context, channelID string) (*models.FetchRecord, error)
}

// EventPublisher announces new videos. *MessagePublisher implements it.
type EventPublisher interface {
	PublishFeedUpdated(ctx context.Context, event *models.FeedUpdatedEvent) error
}

// PollerOptions configures a FeedPoller.
type PollerOptions struct {
	ChannelID string
	PageSize  int
	Interval  time.Duration
	// Timeout bounds one cycle. Zero means no extra bound.
	Timeout time.Duration
}

// RefreshOutcome describes one poll cycle.
type RefreshOutcome struct {
	Result     *models.FeedResult
	Generation uint64
	// Applied is false when a newer cycle finished first or ctx was canceled.
	Applied bool
}

// FeedPoller re-polls the channel on an interval and keeps the latest
// snapshot. Every cycle takes a generation number; results older than the
// last applied generation are discarded.
type FeedPoller struct {
	source    FeedSource
	recorder  FetchRecorder
	publisher EventPublisher
	metrics   *metrics.Metrics
	opts      PollerOptions

	issued atomic.Uint64

	mu         sync.RWMutex
	applied    uint64
	latest     *models.FeedResult
	latestLive *models.FeedResult
	liveGen    uint64
	lastHash   string
	seen       map[string]struct{}
}

// NewFeedPoller creates a poller. recorder and publisher may be nil.
func NewFeedPoller(source FeedSource, recorder FetchRecorder, publisher EventPublisher, m *metrics.Metrics, opts PollerOptions) *FeedPoller {
	return &FeedPoller{
		source:    source,
		recorder:  recorder,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		seen:      make(map[string]struct{}),
	}
}

// Seed loads the last stored fetch so a restart does not re-announce known videos.
func (p *FeedPoller) Seed(ctx context.Context) error {
	if p.recorder == nil {
		return nil
	}

	rec, err := p.recorder.LatestFetch(ctx, p.opts.ChannelID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHash = rec.ContentHash
	for _, id := range rec.VideoIDs {
		p.seen[id] = struct{}{}
	}

	logger.L().Info("Seeded poller from fetch log",
		zap.String("channelId", p.opts.ChannelID),
		zap.Int("knownVideos", len(rec.VideoIDs)),
	)
	return nil
}

// Run refreshes immediately and then every Interval until ctx is done.
func (p *FeedPoller) Run(ctx context.Context) {
	interval := p.opts.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	logger.L().Info("Feed poller started",
		zap.String("channelId", p.opts.ChannelID),
		zap.Duration("interval", interval),
	)

	p.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.L().Info("Feed poller stopped")
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh runs one cycle and applies its result unless it is stale.
func (p *FeedPoller) Refresh(ctx context.Context) RefreshOutcome {
	gen := p.issued.Add(1)
	start := time.Now()

	cycleCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	result := p.source.FetchLatestVideos(cycleCtx, p.opts.ChannelID, p.opts.PageSize, "")
	out := RefreshOutcome{Result: result, Generation: gen}

	if ctx.Err() != nil || result == nil {
		return out
	}

	event, hash, applied := p.apply(gen, result)
	out.Applied = applied
	if !applied {
		p.metrics.PollStale()
		logger.L().Debug("Discarding stale poll result", zap.Uint64("generation", gen))
		return out
	}
	p.metrics.PollApplied(gen)

	p.record(ctx, result, hash, time.Since(start))
	if event != nil {
		p.publish(ctx, event)
	}

	return out
}

// apply stores result if gen is current and returns an event when new videos appeared.
func (p *FeedPoller) apply(gen uint64, result *models.FeedResult) (*models.FeedUpdatedEvent, string, bool) {
	hash := db.FeedContentHash(result.Videos)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen < p.applied {
		return nil, hash, false
	}
	p.applied = gen
	p.latest = result

	if !result.IsLive() {
		return nil, hash, true
	}
	p.latestLive, p.liveGen = result, gen

	if hash == p.lastHash {
		return nil, hash, true
	}
	p.lastHash = hash

	var fresh []string
	for _, v := range result.Videos {
		if _, ok := p.seen[v.ID]; ok {
			continue
		}
		p.seen[v.ID] = struct{}{}
		fresh = append(fresh, v.ID)
	}
	if len(fresh) == 0 {
		return nil, hash, true
	}

	return &models.FeedUpdatedEvent{
		EventID:     uuid.New(),
		ChannelID:   result.ChannelID,
		Source:      result.Source,
		NewVideoIDs: fresh,
		Videos:      result.Videos,
		ContentHash: hash,
		Generation:  gen,
		Timestamp:   time.Now().UTC(),
	}, hash, true
}

func (p *FeedPoller) record(ctx context.Context, result *models.FeedResult, hash string, took time.Duration) {
	if p.recorder == nil {
		return
	}

	rec := &models.FetchRecord{
		ID:          uuid.New(),
		ChannelID:   result.ChannelID,
		Source:      result.Source,
		Path:        result.Path,
		Status:      result.Status,
		VideoCount:  len(result.Videos),
		VideoIDs:    result.VideoIDs(),
		ContentHash: hash,
		DurationMS:  took.Milliseconds(),
		FetchedAt:   result.FetchedAt,
	}
	if result.Warning != "" {
		w := result.Warning
		rec.Warning = &w
	}

	if err := p.recorder.RecordFetch(ctx, rec); err != nil {
		logger.L().Error("Failed to record fetch", zap.Error(err), zap.String("channelId", result.ChannelID))
	}
}

func (p *FeedPoller) publish(ctx context.Context, event *models.FeedUpdatedEvent) {
	if p.publisher == nil {
		return
	}

	err := p.publisher.PublishFeedUpdated(ctx, event)
	p.metrics.EventPublished(err == nil)
	if err != nil {
		logger.L().Error("Failed to publish feed update",
			zap.Error(err),
			zap.String("eventId", event.EventID.String()),
		)
		return
	}

	logger.L().Info("Published feed update",
		zap.String("eventId", event.EventID.String()),
		zap.Strings("newVideoIds", event.NewVideoIDs),
	)
}

// Latest returns the newest live snapshot, or the newest snapshot of any
// status when no live result has been applied yet. The generation is the
// cycle that produced the returned result.
func (p *FeedPoller) Latest() (*models.FeedResult, uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.latestLive != nil:
		return p.latestLive, p.liveGen, nil
	case p.latest != nil:
		return p.latest, p.applied, nil
	default:
		return nil, 0, ErrNoSnapshot
	}
}
