package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/pkg/metrics"

	goredis "github.com/redis/go-redis/v9"
)

// Bus is the notification fan-out: envelopes published on two pub/sub
// channels, one per audience. Delivery is fire-and-forget, nothing is
// retained for subscribers that are not connected.
type Bus struct {
	client  *goredis.Client
	service string
}

func NewBus(client *goredis.Client, service string) *Bus {
	return &Bus{
		client:  client,
		service: service,
	}
}

// PublishDriver sends an envelope on the driver channel.
func (b *Bus) PublishDriver(ctx context.Context, env models.Envelope) error {
	return b.publish(ctx, ChannelDriver, env)
}

// PublishPassenger sends an envelope on the passenger channel.
func (b *Bus) PublishPassenger(ctx context.Context, env models.Envelope) error {
	return b.publish(ctx, ChannelPassenger, env)
}

func (b *Bus) publish(ctx context.Context, channel string, env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus: publish %s: %w", channel, err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("bus: publish %s: %w", channel, err)
	}
	metrics.NotificationsPublishedTotal.WithLabelValues(b.service, channel).Inc()
	return nil
}

// Subscribe opens a subscription on both notification channels. The caller
// owns the returned PubSub and must Close it.
func (b *Bus) Subscribe(ctx context.Context) *goredis.PubSub {
	return b.client.Subscribe(ctx, ChannelDriver, ChannelPassenger)
}
