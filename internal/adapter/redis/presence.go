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
)

// Presence is the live driver index: cell bucket hashes plus a reverse
// location key per driver. The relational drivers table only mirrors it.
type Presence struct {
	client       *goredis.Client
	heartbeatTTL time.Duration
}

func NewPresence(client *goredis.Client, heartbeatTTL time.Duration) *Presence {
	return &Presence{
		client:       client,
		heartbeatTTL: heartbeatTTL,
	}
}

// Heartbeat upserts the driver's membership. A move is remove-then-add in
// one pipeline; a torn write between the two steps is repaired by the next
// heartbeat. Also refreshes the liveness key.
func (p *Presence) Heartbeat(ctx context.Context, driverID int64, cell models.Cell, status types.DriverStatus) error {
	old, hadOld, err := p.Location(ctx, driverID)
	if err != nil {
		return fmt.Errorf("presence: Heartbeat: %w", err)
	}

	field := strconv.FormatInt(driverID, 10)

	_, err = p.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		if hadOld && old != cell {
			pipe.HDel(ctx, cellKey(old), field)
		}
		pipe.HSet(ctx, cellKey(cell), field, status.String())
		pipe.Set(ctx, locationKey(driverID), fmt.Sprintf("%d:%d", cell.X, cell.Y), 0)
		pipe.Set(ctx, lastSeenKey(driverID), "1", p.heartbeatTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence: Heartbeat: %w", err)
	}
	return nil
}

// SetStatus flips the bucket field value (online↔busy) without moving the
// driver. Returns ErrDriverNotFound when the driver has no live location.
func (p *Presence) SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error {
	cell, ok, err := p.Location(ctx, driverID)
	if err != nil {
		return fmt.Errorf("presence: SetStatus: %w", err)
	}
	if !ok {
		return fmt.Errorf("presence: SetStatus: %w", types.ErrDriverNotFound)
	}

	field := strconv.FormatInt(driverID, 10)
	if err := p.client.HSet(ctx, cellKey(cell), field, status.String()).Err(); err != nil {
		return fmt.Errorf("presence: SetStatus: %w", err)
	}
	return nil
}

// Offline removes every trace of the driver from the live index.
func (p *Presence) Offline(ctx context.Context, driverID int64) error {
	cell, ok, err := p.Location(ctx, driverID)
	if err != nil {
		return fmt.Errorf("presence: Offline: %w", err)
	}

	field := strconv.FormatInt(driverID, 10)

	_, err = p.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		if ok {
			pipe.HDel(ctx, cellKey(cell), field)
		}
		pipe.Del(ctx, locationKey(driverID))
		pipe.Del(ctx, lastSeenKey(driverID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence: Offline: %w", err)
	}
	return nil
}

// Location returns the driver's current cell. ok=false means the driver is
// not in the live index.
func (p *Presence) Location(ctx context.Context, driverID int64) (models.Cell, bool, error) {
	val, err := p.client.Get(ctx, locationKey(driverID)).Result()
	if errors.Is(err, goredis.Nil) {
		return models.Cell{}, false, nil
	}
	if err != nil {
		return models.Cell{}, false, fmt.Errorf("presence: Location: %w", err)
	}

	cell, err := parseCell(val)
	if err != nil {
		return models.Cell{}, false, fmt.Errorf("presence: Location: %w", err)
	}
	return cell, true, nil
}

// Alive reports whether the driver's heartbeat key has not expired yet.
func (p *Presence) Alive(ctx context.Context, driverID int64) (bool, error) {
	n, err := p.client.Exists(ctx, lastSeenKey(driverID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence: Alive: %w", err)
	}
	return n == 1, nil
}

// CellOccupants returns every driver registered in one cell bucket.
func (p *Presence) CellOccupants(ctx context.Context, cell models.Cell) ([]models.Occupant, error) {
	fields, err := p.client.HGetAll(ctx, cellKey(cell)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: CellOccupants: %w", err)
	}
	return parseOccupants(fields), nil
}

// CellsOccupants fetches several buckets in a single pipeline. The result is
// parallel to cells.
func (p *Presence) CellsOccupants(ctx context.Context, cells []models.Cell) ([][]models.Occupant, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(cells))
	_, err := p.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, cell := range cells {
			cmds[i] = pipe.HGetAll(ctx, cellKey(cell))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("presence: CellsOccupants: %w", err)
	}

	out := make([][]models.Occupant, len(cells))
	for i, cmd := range cmds {
		out[i] = parseOccupants(cmd.Val())
	}
	return out, nil
}

// ScanLocations walks driver_location:* and returns every registered driver
// with its cell. Used by the presence sweeper.
func (p *Presence) ScanLocations(ctx context.Context) (map[int64]models.Cell, error) {
	out := make(map[int64]models.Cell)

	var cursor uint64
	for {
		keys, next, err := p.client.Scan(ctx, cursor, locationKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("presence: ScanLocations: %w", err)
		}

		for _, key := range keys {
			id, err := strconv.ParseInt(strings.TrimPrefix(key, locationKeyPrefix), 10, 64)
			if err != nil {
				continue
			}
			cell, ok, err := p.Location(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("presence: ScanLocations: %w", err)
			}
			if ok {
				out[id] = cell
			}
		}

		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func parseCell(s string) (models.Cell, error) {
	xs, ys, ok := strings.Cut(s, ":")
	if !ok {
		return models.Cell{}, fmt.Errorf("malformed location %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return models.Cell{}, fmt.Errorf("malformed location %q", s)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return models.Cell{}, fmt.Errorf("malformed location %q", s)
	}
	return models.Cell{X: x, Y: y}, nil
}

// parseOccupants ignores bucket fields that are not numeric driver ids.
func parseOccupants(fields map[string]string) []models.Occupant {
	if len(fields) == 0 {
		return nil
	}

	out := make([]models.Occupant, 0, len(fields))
	for field, status := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, models.Occupant{
			DriverID: id,
			Status:   types.DriverStatus(status),
		})
	}
	return out
}
