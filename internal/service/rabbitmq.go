package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/config"
	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

const (
	confirmTimeout = 5 * time.Second

	// Feed updates go stale after a week; the queue is a notification buffer,
	// not an archive.
	eventTTL       = 7 * 24 * time.Hour
	maxQueuedEvent = 10000
)

// ErrPublisherClosed is returned by PublishFeedUpdated after Close.
var ErrPublisherClosed = errors.New("publisher channel is not initialized")

// MessagePublisher sends FeedUpdatedEvents to a durable topic exchange and
// waits for the broker to confirm each one.
type MessagePublisher struct {
	cfg config.RabbitMQConfig

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewMessagePublisher dials cfg.URL and declares the exchange, the queue and
// the binding between them.
func NewMessagePublisher(cfg config.RabbitMQConfig) (*MessagePublisher, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	logger.L().Info("RabbitMQ publisher ready",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.String("routingKey", cfg.RoutingKey),
	)
	return &MessagePublisher{cfg: cfg, conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq confirm mode: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare exchange %q: %w", cfg.Exchange, err)
	}
	args := amqp.Table{
		"x-message-ttl": int32(eventTTL / time.Millisecond),
		"x-max-length":  int32(maxQueuedEvent),
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq declare queue %q: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq bind %q to %q: %w", cfg.Queue, cfg.Exchange, err)
	}
	return nil
}

// PublishFeedUpdated blocks until the broker acks the event, ctx ends, or
// confirmTimeout passes.
func (mp *MessagePublisher) PublishFeedUpdated(ctx context.Context, event *models.FeedUpdatedEvent) error {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if mp.ch == nil {
		return ErrPublisherClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID.String(),
		Timestamp:    event.Timestamp,
		Type:         "feed.updated",
		Headers:      amqp.Table{"channelId": event.ChannelID, "source": string(event.Source)},
		Body:         body,
	}
	dc, err := mp.ch.PublishWithDeferredConfirmWithContext(ctx, mp.cfg.Exchange, mp.cfg.RoutingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := dc.WaitContext(waitCtx)
	switch {
	case err != nil:
		return fmt.Errorf("await broker confirm: %w", err)
	case !acked:
		return errors.New("broker nacked feed event")
	}

	logger.L().Debug("Feed event confirmed",
		zap.String("eventId", msg.MessageId),
		zap.Uint64("generation", event.Generation),
		zap.Int("newVideos", len(event.NewVideoIDs)),
	)
	return nil
}

// Close tears down the channel then the connection. Later publishes return
// ErrPublisherClosed.
func (mp *MessagePublisher) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var errs []error
	if mp.ch != nil {
		errs = append(errs, mp.ch.Close())
		mp.ch = nil
	}
	if mp.conn != nil {
		errs = append(errs, mp.conn.Close())
		mp.conn = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	logger.L().Info("RabbitMQ publisher closed")
	return nil
}

// IsHealthy backs the readiness probe.
func (mp *MessagePublisher) IsHealthy() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.ch != nil && mp.conn != nil && !mp.conn.IsClosed()
}
