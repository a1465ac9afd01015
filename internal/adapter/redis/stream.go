package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Streams is the ride event queue: two streams (new rides and re-searches)
// consumed by one consumer group, so exactly one worker across every matcher
// replica handles a given entry.
type Streams struct {
	client *goredis.Client
	block  time.Duration
}

// NewStreams builds the stream adapter. block is the XREADGROUP blocking
// window per Read call; negative disables blocking (used by tests).
func NewStreams(client *goredis.Client, block time.Duration) *Streams {
	return &Streams{
		client: client,
		block:  block,
	}
}

// EnsureGroup creates the consumer group on both streams from the beginning,
// creating the streams when missing. An already existing group is fine —
// every worker calls this on startup.
func (s *Streams) EnsureGroup(ctx context.Context) error {
	for _, stream := range []string{StreamOrderEvents, StreamRetryEvents} {
		err := s.client.XGroupCreateMkStream(ctx, stream, MatchingGroup, "0").Err()
		if err != nil && !isBusyGroup(err) {
			return fmt.Errorf("streams: EnsureGroup %s: %w", stream, err)
		}
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func isNoGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}

// AppendNewRide appends a new_ride entry to order_events.
func (s *Streams) AppendNewRide(ctx context.Context, ev models.NewRideEvent) error {
	err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamOrderEvents,
		Values: map[string]any{
			"ride_id": ev.RideID,
			"start_x": ev.Start.X,
			"start_y": ev.Start.Y,
			"end_x":   ev.End.X,
			"end_y":   ev.End.Y,
			"price":   ev.Price,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("streams: AppendNewRide: %w", err)
	}
	return nil
}

// AppendRetry appends a retry_ride entry to retry_search_events. The
// exclusion list is carried as a comma-separated field.
func (s *Streams) AppendRetry(ctx context.Context, ev models.RetryRideEvent) error {
	exclude := strings.Join(lo.Map(ev.Exclude, func(id int64, _ int) string {
		return strconv.FormatInt(id, 10)
	}), ",")

	err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamRetryEvents,
		Values: map[string]any{
			"ride_id":           ev.RideID,
			"exclude_driver_id": exclude,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("streams: AppendRetry: %w", err)
	}
	return nil
}

// Read fetches the next undelivered entries for this consumer, at most one
// per stream. A nil slice with nil error means the blocking window elapsed
// with nothing to do. Entries that fail to parse come back with a zero Kind
// (see RideEvent.Poison) and must still be acked by the caller.
func (s *Streams) Read(ctx context.Context, consumer string) ([]*models.RideEvent, error) {
	res, err := s.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    MatchingGroup,
		Consumer: consumer,
		Streams:  []string{StreamOrderEvents, StreamRetryEvents, ">", ">"},
		Count:    1,
		Block:    s.block,
	}).Result()

	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case isNoGroup(err):
		// Somebody flushed the substrate under us. Recreate and carry on.
		if err := s.EnsureGroup(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("streams: Read: %w", err)
	}

	var events []*models.RideEvent
	for _, st := range res {
		for _, msg := range st.Messages {
			events = append(events, parseEvent(st.Stream, msg))
		}
	}
	return events, nil
}

// Ack confirms one processed (or poison) entry.
func (s *Streams) Ack(ctx context.Context, ev *models.RideEvent) error {
	if err := s.client.XAck(ctx, ev.Stream, MatchingGroup, ev.ID).Err(); err != nil {
		return fmt.Errorf("streams: Ack: %w", err)
	}
	return nil
}

// ClaimPending transfers entries that have been pending on a dead consumer
// for longer than minIdle to this consumer.
func (s *Streams) ClaimPending(ctx context.Context, consumer string, minIdle time.Duration) ([]*models.RideEvent, error) {
	var events []*models.RideEvent

	for _, stream := range []string{StreamOrderEvents, StreamRetryEvents} {
		msgs, _, err := s.client.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
			Stream:   stream,
			Group:    MatchingGroup,
			Consumer: consumer,
			MinIdle:  minIdle,
			Start:    "0",
			Count:    64,
		}).Result()
		if err != nil {
			if isNoGroup(err) {
				continue
			}
			return nil, fmt.Errorf("streams: ClaimPending %s: %w", stream, err)
		}

		for _, msg := range msgs {
			events = append(events, parseEvent(stream, msg))
		}
	}

	return events, nil
}

// parseEvent maps one raw entry to a RideEvent. Missing or garbled required
// fields yield a poison event: Stream and ID are kept so it can be acked,
// Kind stays zero.
func parseEvent(stream string, msg goredis.XMessage) *models.RideEvent {
	ev := &models.RideEvent{
		Stream: stream,
		ID:     msg.ID,
	}

	rideID, ok := fieldInt64(msg.Values, "ride_id")
	if !ok {
		return ev
	}
	ev.RideID = rideID

	switch stream {
	case StreamOrderEvents:
		startX, okSX := fieldInt(msg.Values, "start_x")
		startY, okSY := fieldInt(msg.Values, "start_y")
		endX, okEX := fieldInt(msg.Values, "end_x")
		endY, okEY := fieldInt(msg.Values, "end_y")
		price, okP := fieldFloat(msg.Values, "price")
		if !okSX || !okSY || !okEX || !okEY || !okP {
			return ev
		}
		ev.Start = models.Cell{X: startX, Y: startY}
		ev.End = models.Cell{X: endX, Y: endY}
		ev.Price = price
		ev.Kind = types.EventNewRide

	case StreamRetryEvents:
		raw, _ := fieldString(msg.Values, "exclude_driver_id")
		if raw != "" {
			for _, part := range strings.Split(raw, ",") {
				id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
				if err != nil {
					return ev
				}
				ev.Exclude = append(ev.Exclude, id)
			}
		}
		ev.Kind = types.EventRetryRide
	}

	return ev
}

func fieldString(values map[string]any, key string) (string, bool) {
	v, ok := values[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func fieldInt64(values map[string]any, key string) (int64, bool) {
	s, ok := fieldString(values, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func fieldInt(values map[string]any, key string) (int, bool) {
	n, ok := fieldInt64(values, key)
	return int(n), ok
}

func fieldFloat(values map[string]any, key string) (float64, bool) {
	s, ok := fieldString(values, key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
