package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking/pkg/timeslot"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrSlotLockNotAcquired is returned when the doctor's day stayed locked for the whole wait.
var ErrSlotLockNotAcquired = errors.New("slot lock not acquired")

// RedisSlotLockKeyPrefix namespaces the per doctor-day lock keys.
const RedisSlotLockKeyPrefix = "booking:lock:"

// releaseScript deletes the key only when it still holds our token, so a lock
// that expired and was re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// SlotLockService serialises writers of the same (clinic, doctor, date) before
// they reach the database. It only thins out contention; the serializable
// transaction stays the authority on overlaps.
type SlotLockService interface {
	WithSlotLock(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

const (
	slotLockMinBackoff = 10 * time.Millisecond
	slotLockMaxBackoff = 200 * time.Millisecond
)

type redisSlotLockService struct {
	redisClient *redis.Client
	log         *logrus.Logger
	ttl         time.Duration
	wait        time.Duration
}

// NewRedisSlotLockService returns a lock that waits up to wait for a busy doctor-day
// before giving up with ErrSlotLockNotAcquired. A zero wait makes a single attempt.
func NewRedisSlotLockService(redisClient *redis.Client, log *logrus.Logger, ttl, wait time.Duration) SlotLockService {
	return &redisSlotLockService{
		redisClient: redisClient,
		log:         log,
		ttl:         ttl,
		wait:        wait,
	}
}

func SlotLockKey(clinicID, doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", RedisSlotLockKeyPrefix, clinicID, doctorID, timeslot.FormatDate(date))
}

func (s *redisSlotLockService) WithSlotLock(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := SlotLockKey(clinicID, doctorID, date)
	token := uuid.NewString()

	if err := s.acquire(ctx, key, token); err != nil {
		if errors.Is(err, ErrSlotLockNotAcquired) || ctx.Err() != nil {
			return err
		}
		// Redis is unreachable; the serializable transaction still rejects overlaps.
		s.log.Warnf("Slot lock %s unavailable, continuing without it: %+v", key, err)
		return fn(ctx)
	}

	defer func() {
		// The caller's ctx may already be cancelled; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, s.redisClient, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			s.log.Warnf("Failed to release slot lock %s: %+v", key, err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, s.ttl)
	defer cancel()

	return fn(lockCtx)
}

// acquire polls SETNX with exponential backoff until the key is ours or the wait runs out.
func (s *redisSlotLockService) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(s.wait)
	delay := slotLockMinBackoff

	for {
		ok, err := s.redisClient.SetNX(ctx, key, token, s.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrSlotLockNotAcquired
		}
		if delay > remaining {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > slotLockMaxBackoff {
			delay = slotLockMaxBackoff
		}
	}
}

type noopSlotLockService struct{}

// NewNoopSlotLockService runs fn directly. Used when the Redis lock is disabled.
func NewNoopSlotLockService() SlotLockService {
	return noopSlotLockService{}
}

func (noopSlotLockService) WithSlotLock(ctx context.Context, _, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
