// Package redisbridge relays monitor events over Redis pub/sub so several
// processes can share one logical bus.
package redisbridge

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/monitor/errors"
	"github.com/leeforge/monitor/event"
	"github.com/leeforge/monitor/json"
	"github.com/leeforge/monitor/logging"
	"github.com/leeforge/monitor/plugin"
)

// OriginKey is the metadata key marking events that arrived from Redis.
const OriginKey = event.MetaOrigin

// Publisher is the part of *redis.Client the bridge publishes through.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Options is the bridge plugin configuration.
type Options struct {
	Channel string `json:"channel" default:"monitor:events" validate:"required"`
}

// envelope is the wire form of a relayed event.
type envelope struct {
	Origin string      `json:"origin"`
	Event  event.Event `json:"event"`
}

// Bridge publishes every local event to a Redis channel and re-emits
// messages from other processes locally.
type Bridge struct {
	client  Publisher
	origin  string
	breaker *gobreaker.CircuitBreaker

	mu       sync.RWMutex
	channel  string
	producer plugin.ProducerContext
	logger   logging.Logger
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithOrigin fixes the origin id instead of generating one.
func WithOrigin(origin string) Option {
	return func(b *Bridge) { b.origin = origin }
}

// WithBreaker overrides the circuit breaker settings for publishes.
func WithBreaker(st gobreaker.Settings) Option {
	return func(b *Bridge) { b.breaker = gobreaker.NewCircuitBreaker(st) }
}

// New creates a bridge publishing through client.
func New(client Publisher, opts ...Option) *Bridge {
	b := &Bridge{
		client:  client,
		origin:  uuid.NewString(),
		channel: "monitor:events",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.breaker == nil {
		b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redisbridge",
			MaxRequests: 100,
			Interval:    5 * time.Second,
			Timeout:     3 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		})
	}
	return b
}

// Origin identifies this process on the channel.
func (b *Bridge) Origin() string { return b.origin }

// Channel returns the configured channel.
func (b *Bridge) Channel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channel
}

// Define returns the bridge plugin class. Without inbound event types the
// bridge only publishes; with them it also relays those types back in.
func (b *Bridge) Define(inbound ...string) (*plugin.Class, error) {
	typ := plugin.TypeConsumer
	if len(inbound) > 0 {
		typ = plugin.TypeBoth
	}
	return plugin.Define(
		plugin.Descriptor{
			Name:   "redisbridge",
			Type:   typ,
			Opts:   plugin.StructSchema[Options](),
			Events: inbound,
		},
		plugin.Architecture{
			Init:    b.init,
			Dispose: b.dispose,
		},
	)
}

func (b *Bridge) init(ctx plugin.Context, cfg any) error {
	opts := cfg.(*Options)
	consumer, ok := plugin.AsConsumer(ctx)
	if !ok {
		return apperrors.NewConfiguration("redisbridge needs a consumer context")
	}

	b.mu.Lock()
	b.channel = opts.Channel
	b.logger = ctx.Logger()
	if producer, ok := plugin.AsProducer(ctx); ok {
		b.producer = producer
	}
	b.mu.Unlock()

	consumer.Subscribe(b.publish)
	b.logger.Info("redis bridge ready",
		zap.String("channel", opts.Channel),
		zap.String("origin", b.origin),
	)
	return nil
}

func (b *Bridge) dispose(context.Context, any) error {
	b.mu.Lock()
	b.producer = nil
	b.mu.Unlock()
	return nil
}

// publish forwards a local event to Redis. Events that arrived from Redis
// are not published again. Publish failures are logged and never fail the
// local delivery.
func (b *Bridge) publish(ctx context.Context, e event.Event) error {
	if _, relayed := e.Meta(OriginKey); relayed {
		return nil
	}
	body, err := json.Marshal(envelope{Origin: b.origin, Event: e})
	if err != nil {
		b.log().Warn("redis bridge encode failed", zap.String("event", e.Type), zap.Error(err))
		return nil
	}

	channel := b.Channel()
	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.client.Publish(ctx, channel, string(body)).Err()
	})
	if err != nil {
		b.log().Warn("redis bridge publish failed",
			zap.String("event", e.Type),
			zap.String("channel", channel),
			zap.String("breaker", b.breaker.State().String()),
			zap.Error(err),
		)
	}
	return nil
}

// Relay emits every message from messages on the local monitor until the
// channel closes or ctx is done. Messages published by this bridge are
// dropped. Relay needs the bridge to have been defined with inbound types.
func (b *Bridge) Relay(ctx context.Context, messages <-chan *redis.Message) error {
	b.mu.RLock()
	producer := b.producer
	b.mu.RUnlock()
	if producer == nil {
		return apperrors.NewConfiguration("redisbridge has no inbound event types or is not activated")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.relayOne(ctx, producer, msg)
		}
	}
}

func (b *Bridge) relayOne(ctx context.Context, producer plugin.ProducerContext, msg *redis.Message) {
	if msg == nil {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.log().Warn("redis bridge decode failed", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if env.Origin == b.origin {
		return
	}
	if env.Origin == "" {
		env.Origin = "unknown"
	}

	e := env.Event.WithMeta(OriginKey, env.Origin)
	if err := producer.Emit(ctx, e); err != nil {
		b.log().Warn("redis bridge relay failed",
			zap.String("event", e.Type),
			zap.String("origin", env.Origin),
			zap.Error(err),
		)
	}
}

// Listen subscribes client to the bridge channel and relays until ctx is done.
func (b *Bridge) Listen(ctx context.Context, client *redis.Client) error {
	pubsub := client.Subscribe(ctx, b.Channel())
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	return b.Relay(ctx, pubsub.Channel())
}

func (b *Bridge) log() logging.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger
}
