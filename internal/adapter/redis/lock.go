package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the expected
// value. An unconditional DEL could release a lock that has already expired
// and been re-acquired for another ride.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// promoteScript swaps the lock value only while it still holds the expected
// one. The plain SET also clears the TTL, which is exactly what accept needs:
// an assigned lock lives until completion or cancellation.
var promoteScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// Locks manages driver_lock:{id} keys: short-lived proposal locks taken by
// the matching search and TTL-less assignment locks promoted on accept.
// Значения ключа форматируются только здесь, сервисы оперируют глаголами.
type Locks struct {
	client *goredis.Client
}

func NewLocks(client *goredis.Client) *Locks {
	return &Locks{client: client}
}

// LockValue is the lock content while a proposal is open.
func LockValue(rideID int64) string {
	return strconv.FormatInt(rideID, 10)
}

// AssignedValue is the lock content after the driver accepted the ride.
func AssignedValue(rideID int64) string {
	return "assigned:" + strconv.FormatInt(rideID, 10)
}

// TryLock takes the driver's lock for one ride with a TTL. Returns false
// when the lock is already held, whoever holds it.
func (l *Locks) TryLock(ctx context.Context, driverID, rideID int64, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(driverID), LockValue(rideID), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("locks: TryLock: %w", err)
	}
	return ok, nil
}

// HoldsProposal reports whether the driver's lock is the open proposal lock
// for this ride. The accept precondition.
func (l *Locks) HoldsProposal(ctx context.Context, driverID, rideID int64) (bool, error) {
	val, err := l.client.Get(ctx, lockKey(driverID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("locks: HoldsProposal: %w", err)
	}
	return val == LockValue(rideID), nil
}

// ReleaseProposal deletes the lock if it is still the proposal lock for this
// ride. Returns whether the delete happened; false means the proposal was
// already accepted, released or expired.
func (l *Locks) ReleaseProposal(ctx context.Context, driverID, rideID int64) (bool, error) {
	res, err := releaseScript.Run(ctx, l.client, []string{lockKey(driverID)}, LockValue(rideID)).Int64()
	if err != nil {
		return false, fmt.Errorf("locks: ReleaseProposal: %w", err)
	}
	return res == 1, nil
}

// Promote turns the proposal lock into the assignment marker with no TTL.
// Returns false when the proposal lock no longer holds (expired or reaped).
func (l *Locks) Promote(ctx context.Context, driverID, rideID int64) (bool, error) {
	res, err := promoteScript.Run(ctx, l.client, []string{lockKey(driverID)}, LockValue(rideID), AssignedValue(rideID)).Int64()
	if err != nil {
		return false, fmt.Errorf("locks: Promote: %w", err)
	}
	return res == 1, nil
}

// ReleaseAssigned deletes the assignment marker on ride completion or
// cancellation.
func (l *Locks) ReleaseAssigned(ctx context.Context, driverID, rideID int64) (bool, error) {
	res, err := releaseScript.Run(ctx, l.client, []string{lockKey(driverID)}, AssignedValue(rideID)).Int64()
	if err != nil {
		return false, fmt.Errorf("locks: ReleaseAssigned: %w", err)
	}
	return res == 1, nil
}
