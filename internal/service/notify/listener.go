package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/metrics"
	ws "github.com/gridcab/dispatch/pkg/wsHub"
)

// Listener bridges the notification bus to live WebSocket connections.
// It subscribes to both pub/sub channels and routes each envelope to the
// recipient's connection. Delivery is best effort: an envelope for a user
// without a connection on this gateway is dropped.
type Listener struct {
	bus     Bus
	hub     Hub
	l       logger.Logger
	service string
}

func NewListener(bus Bus, hub Hub, cfg *config.Config, l logger.Logger) *Listener {
	return &Listener{
		bus:     bus,
		hub:     hub,
		l:       l,
		service: string(cfg.Mode),
	}
}

// Run consumes the subscription until the context is cancelled.
func (ln *Listener) Run(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "notify_listen")

	pubsub := ln.bus.Subscribe(ctx)
	defer pubsub.Close()

	ch := pubsub.Channel()
	ln.l.Info(ctx, "notification listener started")

	for {
		select {
		case <-ctx.Done():
			ln.l.Info(ctx, "notification listener stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("notify: subscription channel closed")
			}
			ln.deliver(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (ln *Listener) deliver(ctx context.Context, channel string, payload []byte) {
	dropCtx := wrap.WithAction(ctx, types.ActionNotificationDropped)

	var env models.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		ln.l.Error(dropCtx, "dropping malformed envelope", err, "channel", channel)
		metrics.NotificationsDroppedTotal.WithLabelValues(ln.service, "malformed").Inc()
		return
	}

	// Конверт уходит клиенту в том же виде, в котором пришёл из канала.
	err := ln.hub.SendTo(env.RecipientUserID, payload)
	switch {
	case err == nil:
		metrics.NotificationsDeliveredTotal.WithLabelValues(ln.service).Inc()
		ln.l.Debug(ctx, "envelope delivered",
			"type", env.Type.String(),
			"user_id", env.RecipientUserID,
		)
	case errors.Is(err, ws.ErrConnIsNotFound):
		// Получатель не подключён к этому гейтвею.
		metrics.NotificationsDroppedTotal.WithLabelValues(ln.service, "unroutable").Inc()
		ln.l.Debug(dropCtx, "recipient not connected",
			"type", env.Type.String(),
			"user_id", env.RecipientUserID,
		)
	case errors.Is(err, ws.ErrSendBufferFull):
		metrics.NotificationsDroppedTotal.WithLabelValues(ln.service, "slow_client").Inc()
		ln.l.Warn(dropCtx, "recipient too slow, envelope dropped",
			"type", env.Type.String(),
			"user_id", env.RecipientUserID,
		)
	default:
		metrics.NotificationsDroppedTotal.WithLabelValues(ln.service, "send_failed").Inc()
		ln.l.Warn(dropCtx, "failed to deliver envelope",
			"type", env.Type.String(),
			"user_id", env.RecipientUserID,
			"error", err,
		)
	}
}
