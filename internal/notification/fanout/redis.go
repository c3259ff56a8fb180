// Package fanout relays addressed SSE events between API instances over Redis
// pub/sub, so a client connected to any instance sees every event.
package fanout

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"interior_portal_backend/internal/notification/sse"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const defaultChannel = "interior:realtime"

// Deliverer hands an event to the connections held by this instance.
type Deliverer interface {
	Deliver(audience sse.Audience, event json.RawMessage) int
}

type Redis struct {
	client  *redis.Client
	channel string
	local   Deliverer
	log     *logger.Logger
}

// NewRedis connects to cfg's Redis URL. Subscribed envelopes, including the
// ones this instance published, are delivered to local.
func NewRedis(cfg config.RealtimeConfig, tlsInsecure bool, local Deliverer, log *logger.Logger) (*Redis, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redisOptions(cfg.GetRedisURL(), tlsInsecure)
	if err != nil {
		return nil, err
	}
	return newRedis(redis.NewClient(opt), cfg.GetRealtimeChannel(), local, log), nil
}

func newRedis(client *redis.Client, channel string, local Deliverer, log *logger.Logger) *Redis {
	if channel == "" {
		channel = defaultChannel
	}
	return &Redis{client: client, channel: channel, local: local, log: log}
}

// Publish sends env to every subscribed instance.
func (r *Redis) Publish(ctx context.Context, env sse.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Run subscribes and delivers incoming envelopes until ctx is done.
func (r *Redis) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("realtime fan-out subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env sse.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("dropping malformed realtime envelope", "error", err)
				continue
			}
			r.local.Deliver(env.Audience, env.Event)
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func redisOptions(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil && tlsInsecure {
		clone := opt.TLSConfig.Clone()
		clone.InsecureSkipVerify = true
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}
