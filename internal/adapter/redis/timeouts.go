package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"

	goredis "github.com/redis/go-redis/v9"
)

func proposalMember(p models.Proposal) string {
	return fmt.Sprintf("%d:%d", p.RideID, p.DriverID)
}

func parseProposalMember(member string) (models.Proposal, bool) {
	left, right, ok := strings.Cut(member, ":")
	if !ok {
		return models.Proposal{}, false
	}
	rideID, err := strconv.ParseInt(left, 10, 64)
	if err != nil {
		return models.Proposal{}, false
	}
	driverID, err := strconv.ParseInt(right, 10, 64)
	if err != nil {
		return models.Proposal{}, false
	}
	return models.Proposal{RideID: rideID, DriverID: driverID}, true
}

// Timeouts is the proposal deadline index, one sorted set scored by the
// unix time each proposal expires.
type Timeouts struct {
	client *goredis.Client
}

func NewTimeouts(client *goredis.Client) *Timeouts {
	return &Timeouts{client: client}
}

// Schedule registers a proposal deadline. Re-scheduling the same pair moves
// the deadline.
func (t *Timeouts) Schedule(ctx context.Context, p models.Proposal, deadline time.Time) error {
	err := t.client.ZAdd(ctx, keyProposalTimeouts, goredis.Z{
		Score:  float64(deadline.Unix()),
		Member: proposalMember(p),
	}).Err()
	if err != nil {
		return fmt.Errorf("timeouts: Schedule: %w", err)
	}
	return nil
}

// Cancel removes a proposal deadline. Cancelling an absent pair is a no-op.
func (t *Timeouts) Cancel(ctx context.Context, p models.Proposal) error {
	if err := t.client.ZRem(ctx, keyProposalTimeouts, proposalMember(p)).Err(); err != nil {
		return fmt.Errorf("timeouts: Cancel: %w", err)
	}
	return nil
}

// PopDue removes and returns every proposal whose deadline is at or before
// now. Each member is removed individually and only members this call
// actually removed are returned, so concurrent reapers never both act on
// the same proposal. Members that do not parse are dropped.
func (t *Timeouts) PopDue(ctx context.Context, now time.Time) ([]models.Proposal, error) {
	members, err := t.client.ZRangeByScore(ctx, keyProposalTimeouts, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("timeouts: PopDue: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.IntCmd, len(members))
	_, err = t.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.ZRem(ctx, keyProposalTimeouts, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("timeouts: PopDue: %w", err)
	}

	due := make([]models.Proposal, 0, len(members))
	for i, m := range members {
		if cmds[i].Val() == 0 {
			continue // забрал другой реапер
		}
		if p, ok := parseProposalMember(m); ok {
			due = append(due, p)
		}
	}
	return due, nil
}
