package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	obsmetrics "github.com/smallbiznis/pixbot/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Deletes the key only while it still holds the owner's token, so an
// expired lock taken over by another purchase is left alone.
const releaseOwnedScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrEmptyLockKey      = errors.New("empty_lock_key")
)

// Locker hands out short-lived redis locks owned by a random token.
type Locker struct {
	client  *redis.Client
	release *redis.Script
	tracer  trace.Tracer
	metrics *obsmetrics.Metrics
}

func NewLocker(client *redis.Client, metrics *obsmetrics.Metrics) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(releaseOwnedScript),
		tracer:  otel.Tracer("pixbot/ratelimit"),
		metrics: metrics,
	}
}

// TryLock returns the owner token and whether the lock was taken. A lock
// held by someone else is not an error.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyLockKey
	}
	if ttl <= 0 {
		return "", false, ErrInvalidLockTTL
	}

	ctx, span := l.tracer.Start(ctx, "ratelimit.lock.acquire", trace.WithAttributes(
		attribute.String("lock.scope", lockScope(key)),
		attribute.Int64("lock.ttl_ms", ttl.Milliseconds()),
	))
	defer span.End()

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "setnx failed")
		l.metrics.RecordLock(ctx, "acquire", "error")
		return "", false, err
	}

	span.SetAttributes(attribute.Bool("lock.acquired", acquired))
	if !acquired {
		l.metrics.RecordLock(ctx, "acquire", "held")
		return "", false, nil
	}
	l.metrics.RecordLock(ctx, "acquire", "acquired")
	return token, true, nil
}

// Release drops the lock if token still owns it. An empty token is a no-op.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "ratelimit.lock.release", trace.WithAttributes(
		attribute.String("lock.scope", lockScope(key)),
	))
	defer span.End()

	deleted, err := l.release.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release failed")
		l.metrics.RecordLock(ctx, "release", "error")
		return err
	}
	if deleted == 0 {
		l.metrics.RecordLock(ctx, "release", "expired")
		return nil
	}
	l.metrics.RecordLock(ctx, "release", "released")
	return nil
}

// lockScope strips the ids from a key ("purchase:lock:9:12" -> "purchase:lock").
func lockScope(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}
